package core

import "time"

type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

type DailyTotal struct {
	Date   Date  `json:"date"`
	Amount Money `json:"amount"`
}

// Summary holds the aggregates derived from a filtered expense view.
type Summary struct {
	Count      int              `json:"count"`
	Total      Money            `json:"totalAmount"`
	ByCategory []CategoryAmount `json:"amountByCategory"`
}

// Summarize computes the total and the per-category breakdown. Categories
// appear in the order they are first seen in expenses.
func Summarize(expenses []Expense) Summary {
	s := Summary{Count: len(expenses)}
	idx := make(map[string]int)
	for _, e := range expenses {
		s.Total = s.Total.Add(e.Amount)
		i, ok := idx[e.Category]
		if !ok {
			i = len(s.ByCategory)
			idx[e.Category] = i
			s.ByCategory = append(s.ByCategory, CategoryAmount{Name: e.Category})
		}
		s.ByCategory[i].Amount = s.ByCategory[i].Amount.Add(e.Amount)
	}
	return s
}

// DailyTotals returns one entry per day for the days ending at today,
// oldest first. Days with no spending have a zero amount.
func DailyTotals(expenses []Expense, today Date, days int) []DailyTotal {
	if days <= 0 {
		return nil
	}
	start := today.AddDays(-(days - 1))
	out := make([]DailyTotal, days)
	for i := range out {
		out[i].Date = start.AddDays(i)
	}
	for _, e := range expenses {
		if e.Date.Before(start.Time) || e.Date.After(today.Time) {
			continue
		}
		i := int(e.Date.Sub(start.Time) / (24 * time.Hour))
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	return out
}

// TotalBalance sums the current balance of every given source.
func TotalBalance(sources []PaymentSource) Money {
	var total Money
	for _, s := range sources {
		total = total.Add(s.CurrentBalance)
	}
	return total
}

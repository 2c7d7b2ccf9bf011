package core

import (
	"sort"
	"strings"
)

// AllSourcesToken selects every source.
const AllSourcesToken = "all"

// ExpenseFilter selects expenses by source. A nil or empty set, or one
// containing AllSourcesToken, is the identity filter.
type ExpenseFilter struct {
	SourceIDs []string
}

// AllSources is the identity filter.
func AllSources() ExpenseFilter {
	return ExpenseFilter{SourceIDs: []string{AllSourcesToken}}
}

// ParseFilter parses "all" or a comma separated list of source ids.
func ParseFilter(s string) ExpenseFilter {
	var ids []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ExpenseFilter{SourceIDs: ids}
}

// IsAll reports whether f is the identity filter.
func (f ExpenseFilter) IsAll() bool {
	if len(f.SourceIDs) == 0 {
		return true
	}
	for _, id := range f.SourceIDs {
		if id == AllSourcesToken {
			return true
		}
	}
	return false
}

// Match reports whether e passes the filter.
func (f ExpenseFilter) Match(e Expense) bool {
	if f.IsAll() {
		return true
	}
	for _, id := range f.SourceIDs {
		if id == e.SourceID {
			return true
		}
	}
	return false
}

// Apply returns the matching expenses in their original order. The input
// slice is never modified.
func (f ExpenseFilter) Apply(expenses []Expense) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// SortNewestFirst orders expenses by descending id, which is creation order.
func SortNewestFirst(expenses []Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].ID > expenses[j].ID
	})
}

// Package voice turns spoken expense descriptions into expense drafts,
// through an LLM when one is configured and allowed, or through a
// deterministic keyword parser otherwise.
package voice

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"spendigo/internal/core"
)

const (
	// FallbackVendor is used when no vendor phrase is found.
	FallbackVendor = "Voice Entry"
	// FallbackConfidence marks a draft as a low-confidence heuristic.
	FallbackConfidence = 40
	FallbackReasoning  = "Basic voice text parsing with source and date detection"

	descriptionLimit = 50
)

// Result is an uncommitted draft produced from a transcript.
type Result struct {
	Amount      core.Money `json:"amount"`
	Vendor      string     `json:"vendor"`
	Date        core.Date  `json:"date"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	SourceID    string     `json:"sourceId"`
	Confidence  int        `json:"confidence"`
	Reasoning   string     `json:"reasoning"`
}

// Draft converts r into a ledger draft carrying voice provenance.
func (r Result) Draft(transcript string) core.ExpenseDraft {
	return core.ExpenseDraft{
		Amount:      r.Amount,
		Vendor:      r.Vendor,
		Date:        r.Date,
		Category:    core.ByName(r.Category),
		Description: r.Description,
		SourceID:    r.SourceID,
		Voice: &core.VoiceProvenance{
			Transcript: transcript,
			Confidence: r.Confidence,
			Reasoning:  r.Reasoning,
		},
	}
}

// Most specific first; the first match wins.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:spent|paid|cost|price|amount|bill).*?(\d+(?:\.\d{2})?)\s*(?:rupees|rs|inr|bucks)?`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d{2})?)\s*(?:rupees|rs|inr|bucks)`),
	regexp.MustCompile(`(?i)(?:rupees|rs|inr)\s*(\d+(?:\.\d{2})?)`),
	regexp.MustCompile(`(\d+(?:\.\d{2})?)`),
}

// digitGroup joins digit groups written with separators, as in 1,00,000.
var digitGroup = regexp.MustCompile(`(\d),(\d)`)

var vendorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:at|from|on)\s+([a-zA-Z][a-zA-Z\s&'.-]{2,30})`),
	regexp.MustCompile(`(?i)([a-zA-Z][a-zA-Z\s&'.-]{2,30})\s+(?:for|cost|paid)`),
}

var (
	daysAgoPattern = regexp.MustCompile(`(\d+)\s*days?\s*ago`)
	dmySlash       = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	dmyDash        = regexp.MustCompile(`(\d{1,2})-(\d{1,2})-(\d{4})`)
	ymdDash        = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
)

type keywordRule[T any] struct {
	keywords []string
	value    T
}

var sourceRules = []keywordRule[core.SourceType]{
	{[]string{"cash", "physical money", "notes"}, core.SourceCash},
	{[]string{"upi", "phonepe", "google pay", "paytm", "gpay", "phone pe"}, core.SourceUPI},
	{[]string{"bank", "card", "debit", "credit", "account"}, core.SourceBank},
}

var categoryRules = []keywordRule[string]{
	{[]string{"coffee", "restaurant", "food", "lunch", "dinner", "breakfast"}, "Food & Drink"},
	{[]string{"uber", "taxi", "bus", "transport", "metro", "auto"}, "Transportation"},
	{[]string{"amazon", "shop", "store", "bought", "purchase"}, "Shopping"},
	{[]string{"bill", "electricity", "water", "utility", "gas", "internet"}, "Utilities"},
	{[]string{"movie", "entertainment", "game", "concert"}, "Entertainment"},
	{[]string{"doctor", "medicine", "hospital", "health"}, "Healthcare"},
}

// ExtractBasic parses text with fixed keyword rules. It is total: any input,
// the empty string included, yields a Result with every field defaulted.
// sources is the registry in order and is only read to pick a source.
func ExtractBasic(text string, today core.Date, sources []core.PaymentSource) Result {
	lower := strings.ToLower(text)
	return Result{
		Amount:      extractAmount(lower),
		Vendor:      extractVendor(text),
		Date:        extractDate(text, lower, today),
		Category:    matchKeyword(lower, categoryRules, core.OtherCategory),
		Description: truncateRunes(text, descriptionLimit),
		SourceID:    detectSource(lower, sources),
		Confidence:  FallbackConfidence,
		Reasoning:   FallbackReasoning,
	}
}

func extractAmount(lower string) core.Money {
	lower = digitGroup.ReplaceAllString(lower, "$1$2")
	for _, p := range amountPatterns {
		m := p.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		amount, err := core.ParseAmount(m[1])
		if err != nil {
			return core.Money{}
		}
		return amount
	}
	return core.Money{}
}

func extractVendor(text string) string {
	for _, p := range vendorPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if v := trimVendor(m[1]); v != "" {
				return v
			}
		}
	}
	return FallbackVendor
}

// vendorTail lists connector words the greedy vendor phrase swallows.
var vendorTail = map[string]bool{
	"for": true, "cost": true, "paid": true, "via": true, "using": true,
	"with": true, "by": true, "on": true, "and": true, "rs": true, "inr": true,
}

func trimVendor(phrase string) string {
	words := strings.Fields(phrase)
	for len(words) > 0 && vendorTail[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// detectSource maps a payment keyword to the first active source of that
// type. Without a keyword it picks the active source with the highest
// balance, earliest in registry order on ties.
func detectSource(lower string, sources []core.PaymentSource) string {
	if t, ok := findKeyword(lower, sourceRules); ok {
		for _, s := range sources {
			if s.IsActive && s.Type == t {
				return s.ID
			}
		}
	}
	best := -1
	for i, s := range sources {
		if !s.IsActive {
			continue
		}
		if best < 0 || s.CurrentBalance.Paise > sources[best].CurrentBalance.Paise {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return sources[best].ID
}

func extractDate(text, lower string, today core.Date) core.Date {
	switch {
	case strings.Contains(lower, "yesterday"):
		return today.AddDays(-1)
	case strings.Contains(lower, "tomorrow"):
		return today.AddDays(1)
	case strings.Contains(lower, "today"), strings.Contains(lower, "just now"), strings.Contains(lower, "right now"):
		return today
	}

	date := today
	if m := daysAgoPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n <= 3650 {
			date = today.AddDays(-n)
		}
	}
	if m := dmySlash.FindStringSubmatch(text); m != nil {
		if d, ok := calendarDate(m[3], m[2], m[1]); ok {
			return d
		}
	} else if m := dmyDash.FindStringSubmatch(text); m != nil {
		if d, ok := calendarDate(m[3], m[2], m[1]); ok {
			return d
		}
	} else if m := ymdDash.FindStringSubmatch(text); m != nil {
		if d, ok := calendarDate(m[1], m[2], m[3]); ok {
			return d
		}
	}
	return date
}

// calendarDate rejects dates that do not exist, like 31/02/2025.
func calendarDate(year, month, day string) (core.Date, bool) {
	y, errY := strconv.Atoi(year)
	m, errM := strconv.Atoi(month)
	d, errD := strconv.Atoi(day)
	if errY != nil || errM != nil || errD != nil {
		return core.Date{}, false
	}
	date := core.NewDate(y, time.Month(m), d)
	if date.Year() != y || int(date.Month()) != m || date.Day() != d {
		return core.Date{}, false
	}
	return date, true
}

func findKeyword[T any](lower string, rules []keywordRule[T]) (T, bool) {
	for _, r := range rules {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.value, true
			}
		}
	}
	var zero T
	return zero, false
}

func matchKeyword[T any](lower string, rules []keywordRule[T], def T) T {
	if v, ok := findKeyword(lower, rules); ok {
		return v
	}
	return def
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

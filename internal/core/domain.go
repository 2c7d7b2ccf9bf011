package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage layout of calendar dates.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date with no time-of-day component, always UTC midnight.
	Date struct {
		time.Time
	}

	SourceType string

	TransactionType string

	// PaymentSource is a named bucket of money with its own balance.
	PaymentSource struct {
		ID             string     `json:"id"`
		Type           SourceType `json:"type"`
		Name           string     `json:"name"`
		Description    string     `json:"description,omitempty"`
		Color          string     `json:"color,omitempty"`
		IsActive       bool       `json:"isActive"`
		InitialBalance Money      `json:"initialBalance"`
		CurrentBalance Money      `json:"currentBalance"`
		AlertThreshold Money      `json:"alertThreshold"`
		CreatedAt      time.Time  `json:"createdAt"`
	}

	// VoiceProvenance records how a voice-sourced draft was produced. It is
	// informational and never used by balance math.
	VoiceProvenance struct {
		Transcript string `json:"voiceTranscript"`
		Confidence int    `json:"aiConfidenceScore"`
		Reasoning  string `json:"aiReasoning"`
	}

	// ExpenseDraft is an uncommitted expense candidate.
	ExpenseDraft struct {
		Amount      Money
		Vendor      string
		Date        Date
		Category    CategoryRef
		Description string
		SourceID    string
		Voice       *VoiceProvenance
	}

	// ExpensePatch carries the fields an edit changes. Nil fields are kept.
	ExpensePatch struct {
		Amount      *Money
		Vendor      *string
		Date        *Date
		Category    *CategoryRef
		Description *string
		SourceID    *string
	}

	Expense struct {
		ID                int64     `json:"id"`
		Amount            Money     `json:"amount"`
		Vendor            string    `json:"vendor"`
		Date              Date      `json:"date"`
		Category          string    `json:"category"`
		CategoryID        int64     `json:"categoryId,omitempty"`
		Description       string    `json:"description,omitempty"`
		SourceID          string    `json:"sourceId"`
		IsVoiceInput      bool      `json:"isVoiceInput"`
		VoiceTranscript   string    `json:"voiceTranscript,omitempty"`
		AIConfidenceScore int       `json:"aiConfidenceScore,omitempty"`
		AIReasoning       string    `json:"aiReasoning,omitempty"`
		CreatedAt         time.Time `json:"createdAt"`
	}

	// BalanceHistory is one append-only audit record of a balance change.
	BalanceHistory struct {
		ID              string          `json:"id"`
		UserID          string          `json:"userId"`
		SourceID        string          `json:"sourceId"`
		TransactionType TransactionType `json:"transactionType"`
		AmountChange    Money           `json:"amountChange"`
		BalanceBefore   Money           `json:"balanceBefore"`
		BalanceAfter    Money           `json:"balanceAfter"`
		ExpenseID       int64           `json:"expenseId,omitempty"`
		Timestamp       time.Time       `json:"timestamp"`
	}
)

const (
	SourceCash SourceType = "CASH"
	SourceBank SourceType = "BANK"
	SourceUPI  SourceType = "UPI"
)

const (
	TxExpense TransactionType = "EXPENSE"
	TxDeposit TransactionType = "DEPOSIT"
)

// NewDate creates a Date from year, month, day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// IsValid reports whether t is one of the known source kinds.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceCash, SourceBank, SourceUPI:
		return true
	}
	return false
}

// ParseSourceType accepts any casing of a known source kind.
func ParseSourceType(s string) (SourceType, error) {
	t := SourceType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidSource, s)
	}
	return t, nil
}

// IsVoice reports whether the draft came from the voice path.
func (d ExpenseDraft) IsVoice() bool {
	return d.Voice != nil
}

// NewExpense materialises a validated draft with a resolved category.
func NewExpense(id int64, d ExpenseDraft, cat Category, now time.Time) Expense {
	e := Expense{
		ID:          id,
		Amount:      d.Amount,
		Vendor:      strings.TrimSpace(d.Vendor),
		Date:        d.Date,
		Category:    cat.Name,
		CategoryID:  cat.ID,
		Description: d.Description,
		SourceID:    d.SourceID,
		CreatedAt:   now,
	}
	if d.Voice != nil {
		e.IsVoiceInput = true
		e.VoiceTranscript = d.Voice.Transcript
		e.AIConfidenceScore = d.Voice.Confidence
		e.AIReasoning = d.Voice.Reasoning
	}
	return e
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil && p.Vendor == nil && p.Date == nil &&
		p.Category == nil && p.Description == nil && p.SourceID == nil
}

// Draft overlays the patch onto e and returns the draft the edited expense
// must satisfy. The category is kept by id when e carries one.
func (p ExpensePatch) Draft(e Expense) ExpenseDraft {
	d := ExpenseDraft{
		Amount:      e.Amount,
		Vendor:      e.Vendor,
		Date:        e.Date,
		Category:    ByName(e.Category),
		Description: e.Description,
		SourceID:    e.SourceID,
	}
	if e.CategoryID != 0 {
		d.Category = ByID(e.CategoryID)
	}
	if p.Amount != nil {
		d.Amount = *p.Amount
	}
	if p.Vendor != nil {
		d.Vendor = *p.Vendor
	}
	if p.Date != nil {
		d.Date = *p.Date
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.SourceID != nil {
		d.SourceID = *p.SourceID
	}
	return d
}

// Apply returns e with the validated draft and resolved category written
// over it. Id, voice provenance and creation time are preserved.
func Apply(e Expense, d ExpenseDraft, cat Category) Expense {
	e.Amount = d.Amount
	e.Vendor = strings.TrimSpace(d.Vendor)
	e.Date = d.Date
	e.Category = cat.Name
	e.CategoryID = cat.ID
	e.Description = d.Description
	e.SourceID = d.SourceID
	return e
}

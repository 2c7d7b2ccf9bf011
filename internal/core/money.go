// Package core provides the domain types shared by the ledger, the voice
// extraction path and the transports.
//
// This file contains the fixed-point money type. Amounts are held as
// integer paise so repeated additions never drift.
package core

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (paise). Negative values are valid
// balances; expense and deposit amounts are always positive.
type Money struct {
	Paise int64
}

// maxRupees keeps Shift(2) inside int64.
var maxRupees = decimal.New(math.MaxInt64/100, 0)

// Rupees builds a Money from a whole rupee count.
func Rupees(r int64) Money {
	return Money{Paise: r * 100}
}

// groupedAmount matches an integer part written with Western (1,000,000)
// or Indian (10,00,000) thousands separators.
var groupedAmount = regexp.MustCompile(`^(?:\d{1,3}(?:,\d{3})+|\d{1,2}(?:,\d{2})*,\d{3})(?:\.\d+)?$`)

// ParseAmount converts a user supplied decimal string to Money.
//
// The decimal separator is a dot. Commas are only accepted as thousands
// separators and are dropped. The value is rounded half-up on the third
// fraction digit. Zero, negative and malformed amounts return
// ErrInvalidAmount.
//
//	ParseAmount("12.34")     -> 1234 paise
//	ParseAmount("12.345")    -> 1235 paise
//	ParseAmount("1,00,000")  -> 10000000 paise
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		if !groupedAmount.MatchString(s) {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	m, err := moneyFromDecimal(d)
	if err != nil {
		return Money{}, err
	}
	if m.Paise <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// MoneyFromFloat converts a float coming from an external source (LLM
// output, legacy snapshots). NaN and infinities become zero.
func MoneyFromFloat(f float64) Money {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}
	}
	m, err := moneyFromDecimal(decimal.NewFromFloat(f))
	if err != nil {
		return Money{}
	}
	return m
}

func moneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.Abs().GreaterThan(maxRupees) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Paise: d.Round(2).Shift(2).IntPart()}, nil
}

// Decimal returns the amount in rupees as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Paise, -2)
}

// Float returns the rupee value for display and charting only.
func (m Money) Float() float64 {
	return float64(m.Paise) / 100.0
}

func (m Money) Add(o Money) Money { return Money{Paise: m.Paise + o.Paise} }
func (m Money) Sub(o Money) Money { return Money{Paise: m.Paise - o.Paise} }
func (m Money) Neg() Money { return Money{Paise: -m.Paise} }
func (m Money) IsZero() bool { return m.Paise == 0 }
func (m Money) IsPositive() bool { return m.Paise > 0 }

// Validate reports whether m can be used as an expense or deposit amount.
func (m Money) Validate() error {
	if m.Paise <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number with two fraction digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = Money{}
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	v, err := moneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

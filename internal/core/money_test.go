package core

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,000", 100000, true},
		{"1,500.50", 150050, true},
		{"1,00,000", 10000000, true},
		{"12,34,567.89", 123456789, true},
		{"1,234,567", 123456700, true},
		{"1,23", 0, false},
		{"1,0000", 0, false},
		{",100", 0, false},
		{"1,000,00", 0, false},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.345", 1235, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Paise != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Paise, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %d", tc.in, got.Paise)
		}
	}
}

func TestMoneyFromFloat(t *testing.T) {
	cases := []struct {
		in  float64
		out int64
	}{
		{0, 0},
		{1234.5, 123450},
		{0.1 + 0.2, 30},
		{19.999, 2000},
		{-5.25, -525},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tc := range cases {
		if got := MoneyFromFloat(tc.in); got.Paise != tc.out {
			t.Errorf("MoneyFromFloat(%v) = %d, want %d", tc.in, got.Paise, tc.out)
		}
	}
}

func TestMoneyArithmeticDoesNotDrift(t *testing.T) {
	var m Money
	tenth := MoneyFromFloat(0.1)
	for i := 0; i < 1000; i++ {
		m = m.Add(tenth)
	}
	for i := 0; i < 1000; i++ {
		m = m.Sub(tenth)
	}
	if !m.IsZero() {
		t.Fatalf("expected exact zero, got %d paise", m.Paise)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{A: Money{Paise: 123450}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":1234.50}` {
		t.Fatalf("unexpected encoding %s", b)
	}

	for in, want := range map[string]int64{
		`500`:      50000,
		`"500.5"`:  50050,
		`12.345`:   1235,
		`-10`:      -1000,
		`null`:     0,
		`""`:       0,
	} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if m.Paise != want {
			t.Errorf("unmarshal %s = %d, want %d", in, m.Paise, want)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`"abc"`), &m); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
}

func TestFormatINR(t *testing.T) {
	cases := []struct {
		in   Money
		want string
	}{
		{Money{}, "₹0.00"},
		{Money{Paise: 5}, "₹0.05"},
		{Money{Paise: 123450}, "₹1,234.50"},
		{Money{Paise: 12345678}, "₹1,23,456.78"},
		{Money{Paise: 1234567890}, "₹1,23,45,678.90"},
		{Money{Paise: 99900}, "₹999.00"},
		{Money{Paise: -20000}, "-₹200.00"},
		{Money{Paise: -12345678}, "-₹1,23,456.78"},
		{Money{Paise: math.MinInt64}, "-₹92,23,37,20,36,85,47,758.08"},
	}
	for _, tc := range cases {
		if got := FormatINR(tc.in); got != tc.want {
			t.Errorf("FormatINR(%d) = %q, want %q", tc.in.Paise, got, tc.want)
		}
	}
}

func TestFormatINRFloat(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, ZeroINR},
		{math.NaN(), ZeroINR},
		{math.Inf(-1), ZeroINR},
		{1234.5, "₹1,234.50"},
		{0.1, "₹0.10"},
		{-42, "-₹42.00"},
	}
	for _, tc := range cases {
		if got := FormatINRFloat(tc.in); got != tc.want {
			t.Errorf("FormatINRFloat(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

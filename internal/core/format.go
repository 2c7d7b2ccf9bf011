package core

import (
	"math"
	"strconv"
	"strings"
)

// ZeroINR is what every zero or unrepresentable amount renders as.
const ZeroINR = "₹0.00"

// FormatINR renders m as Indian rupees with two fraction digits and
// Indian digit grouping (₹1,23,456.78). Negative balances keep their sign.
func FormatINR(m Money) string {
	if m.Paise == 0 {
		return ZeroINR
	}
	p := m.Paise
	neg := p < 0
	var abs uint64
	if neg {
		abs = uint64(-(p + 1)) + 1
	} else {
		abs = uint64(p)
	}
	whole := abs / 100
	frac := abs % 100

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("₹")
	b.WriteString(groupIndian(strconv.FormatUint(whole, 10)))
	b.WriteByte('.')
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatUint(frac, 10))
	return b.String()
}

// FormatINRFloat formats a float amount. NaN, infinities and zero all
// render as ZeroINR.
func FormatINRFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return ZeroINR
	}
	return FormatINR(MoneyFromFloat(f))
}

// groupIndian inserts separators after the last three digits and then
// every two digits (lakh/crore grouping).
func groupIndian(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	head, tail := digits[:n-3], digits[n-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}

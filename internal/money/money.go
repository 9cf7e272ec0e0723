// Package money parses and formats the loosely written amounts that appear
// in drafts and vendor replies.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses strings such as "10000", "$9,500.00", "EUR 1 200",
// "Rs. 5000" or "$12k". It returns false for anything that is not a
// non-negative number once a currency symbol or code, thousands separators
// and a k or m multiplier are removed.
func ParseAmount(s string) (float64, bool) {
	num := trimCurrency(strings.TrimSpace(s))
	if num == "" {
		return 0, false
	}
	mult := decimal.NewFromInt(1)
	if n := len(num); n > 1 && isDigit(num[n-2]) {
		if m, ok := multipliers[num[n-1]]; ok {
			mult = decimal.NewFromInt(m)
			num = num[:n-1]
		}
	}

	var b strings.Builder
	for _, r := range num {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',', r == ' ', r == '_', r == '\u00a0':
		default:
			return 0, false
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil || d.IsNegative() {
		return 0, false
	}
	f, _ := d.Mul(mult).Float64()
	return f, true
}

var multipliers = map[byte]int64{'k': 1_000, 'K': 1_000, 'm': 1_000_000, 'M': 1_000_000}

const currencyCutset = "$€£¥₹ \u00a0"

// trimCurrency drops a leading symbol or short code ("USD", "Rs.") and a
// trailing symbol or space separated code ("1200 USD").
func trimCurrency(s string) string {
	s = strings.TrimLeft(s, currencyCutset)
	if n := leadingLetters(s); n > 0 && n <= 3 {
		s = strings.TrimPrefix(s[n:], ".")
		s = strings.TrimLeft(s, currencyCutset)
	}
	s = strings.TrimRight(s, currencyCutset)
	if n := trailingLetters(s); n == 3 && n < len(s) && s[len(s)-n-1] == ' ' {
		s = strings.TrimRight(s[:len(s)-n], currencyCutset)
	}
	return s
}

func leadingLetters(s string) int {
	n := 0
	for n < len(s) && isLetter(s[n]) {
		n++
	}
	return n
}

func trailingLetters(s string) int {
	n := 0
	for n < len(s) && isLetter(s[len(s)-1-n]) {
		n++
	}
	return n
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Format renders an amount with two decimals and thousands separators.
func Format(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// Percent returns (value - base) / base * 100 computed in decimal
// arithmetic. base must be non-zero.
func Percent(value, base float64) float64 {
	v := decimal.NewFromFloat(value)
	b := decimal.NewFromFloat(base)
	f, _ := v.Sub(b).Div(b).Mul(decimal.NewFromInt(100)).Float64()
	return f
}

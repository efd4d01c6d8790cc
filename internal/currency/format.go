package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders amount with the currency symbol and its grouping style,
// e.g. "$12.346" for CLP or "US$1,234.50" for USD.
func Format(amount decimal.Decimal, code string) string {
	c := Lookup(code)
	fixed := amount.Abs().StringFixed(c.MinorUnits)

	intPart, fracPart := fixed, ""
	if i := strings.IndexByte(fixed, '.'); i >= 0 {
		intPart, fracPart = fixed[:i], fixed[i+1:]
	}

	thousands, decimalSep := ",", "."
	if c.CommaDecimal {
		thousands, decimalSep = ".", ","
	}

	var b strings.Builder
	if amount.IsNegative() && !amount.Round(c.MinorUnits).IsZero() {
		b.WriteByte('-')
	}
	b.WriteString(c.Symbol)
	b.WriteString(group(intPart, thousands))
	if fracPart != "" {
		b.WriteString(decimalSep)
		b.WriteString(fracPart)
	}
	return b.String()
}

func group(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Package currency converts and formats money amounts using exchange-rate tables.
package currency

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrUnknownCurrency is returned when a rate table lacks a code.
	ErrUnknownCurrency = errors.New("unknown currency")
	// ErrInvalidCode is returned for codes that are not three ASCII letters.
	ErrInvalidCode = errors.New("invalid currency code")
	// ErrInvalidRate is returned for zero or negative rates.
	ErrInvalidRate = errors.New("invalid exchange rate")
)

var codePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Currency describes display and rounding rules for an ISO 4217 code.
type Currency struct {
	Code       string
	Symbol     string
	MinorUnits int32
	// CommaDecimal selects "1.234,56" grouping instead of "1,234.56".
	CommaDecimal bool
}

var known = map[string]Currency{
	"ARS": {Code: "ARS", Symbol: "$", MinorUnits: 2, CommaDecimal: true},
	"BRL": {Code: "BRL", Symbol: "R$", MinorUnits: 2, CommaDecimal: true},
	"CAD": {Code: "CAD", Symbol: "CA$", MinorUnits: 2},
	"CLP": {Code: "CLP", Symbol: "$", MinorUnits: 0, CommaDecimal: true},
	"COP": {Code: "COP", Symbol: "$", MinorUnits: 0, CommaDecimal: true},
	"EUR": {Code: "EUR", Symbol: "€", MinorUnits: 2, CommaDecimal: true},
	"GBP": {Code: "GBP", Symbol: "£", MinorUnits: 2},
	"JPY": {Code: "JPY", Symbol: "¥", MinorUnits: 0},
	"MXN": {Code: "MXN", Symbol: "$", MinorUnits: 2},
	"PEN": {Code: "PEN", Symbol: "S/", MinorUnits: 2},
	"USD": {Code: "USD", Symbol: "US$", MinorUnits: 2},
	"UYU": {Code: "UYU", Symbol: "$U", MinorUnits: 2, CommaDecimal: true},
}

// NormalizeCode upper-cases and validates a currency code.
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !codePattern.MatchString(c) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return c, nil
}

// Lookup returns display rules for code. Codes without explicit rules get
// two minor units and the code itself as symbol.
func Lookup(code string) Currency {
	code = strings.ToUpper(strings.TrimSpace(code))
	if c, ok := known[code]; ok {
		return c
	}
	return Currency{Code: code, Symbol: code + " ", MinorUnits: 2}
}

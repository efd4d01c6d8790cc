package currency

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Rates is an exchange-rate table: one unit of Base buys Values[code] of code.
type Rates struct {
	Base      string                     `json:"base"`
	Values    map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"fetched_at"`
	Source    string                     `json:"source,omitempty"`
}

// Rate returns the rate for code relative to the base.
func (r Rates) Rate(code string) (decimal.Decimal, error) {
	if code == r.Base {
		return decimal.NewFromInt(1), nil
	}
	v, ok := r.Values[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s=%s", ErrInvalidRate, code, v)
	}
	return v, nil
}

// CrossRate returns how many units of to one unit of from buys.
func (r Rates) CrossRate(from, to string) (decimal.Decimal, error) {
	rf, err := r.Rate(from)
	if err != nil {
		return decimal.Zero, err
	}
	rt, err := r.Rate(to)
	if err != nil {
		return decimal.Zero, err
	}
	return rt.Div(rf), nil
}

// Rebase expresses the table relative to a different base.
func (r Rates) Rebase(base string) (Rates, error) {
	if base == r.Base {
		return r, nil
	}
	pivot, err := r.Rate(base)
	if err != nil {
		return Rates{}, err
	}
	values := make(map[string]decimal.Decimal, len(r.Values)+1)
	values[r.Base] = decimal.NewFromInt(1).Div(pivot)
	for code, v := range r.Values {
		if code == base {
			continue
		}
		values[code] = v.Div(pivot)
	}
	return Rates{Base: base, Values: values, FetchedAt: r.FetchedAt, Source: r.Source}, nil
}

// Convert converts amount from one currency to another, rounded to the
// target's minor units.
func Convert(amount decimal.Decimal, from, to string, rates Rates) (decimal.Decimal, error) {
	if from == to {
		return amount.Round(Lookup(to).MinorUnits), nil
	}
	rf, err := rates.Rate(from)
	if err != nil {
		return decimal.Zero, err
	}
	rt, err := rates.Rate(to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rt).Div(rf).Round(Lookup(to).MinorUnits), nil
}

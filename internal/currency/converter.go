package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Conversion is the result of converting an amount between two currencies.
type Conversion struct {
	Amount    decimal.Decimal `json:"amount"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	Result    decimal.Decimal `json:"result"`
	Formatted string          `json:"formatted"`
	RatesAt   time.Time       `json:"rates_at"`
}

// Converter converts amounts using rates from a Provider.
type Converter struct {
	provider Provider
}

func NewConverter(provider Provider) *Converter {
	return &Converter{provider: provider}
}

// Rates returns the current table for base.
func (c *Converter) Rates(ctx context.Context, base string) (Rates, error) {
	return c.provider.Latest(ctx, base)
}

// Convert looks up rates with from as the base and converts amount into to.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (Conversion, error) {
	from, err := NormalizeCode(from)
	if err != nil {
		return Conversion{}, err
	}
	to, err = NormalizeCode(to)
	if err != nil {
		return Conversion{}, err
	}

	rates, err := c.provider.Latest(ctx, from)
	if err != nil {
		return Conversion{}, fmt.Errorf("load rates for %s: %w", from, err)
	}
	rate, err := rates.CrossRate(from, to)
	if err != nil {
		return Conversion{}, err
	}
	result, err := Convert(amount, from, to, rates)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{
		Amount:    amount,
		From:      from,
		To:        to,
		Rate:      rate,
		Result:    result,
		Formatted: Format(result, to),
		RatesAt:   rates.FetchedAt,
	}, nil
}

package fx

import (
	"context"
	"fmt"
	"time"
)

// RateTable resolves the stored rate of a currency against the company base
// currency for a date. Implemented by the Postgres repository and by the
// in-memory table used in tests.
type RateTable interface {
	RateFor(ctx context.Context, companyID int64, currencyCode string, date time.Time) (float64, bool, error)
}

// MissingRateError signals no rate row exists for the requested key.
type MissingRateError struct {
	Currency string
	Date     time.Time
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("fx: no rate for %s on %s", e.Currency, e.Date.Format("2006-01-02"))
}

// Converter converts amounts between currencies through the company base
// currency. A stored rate is "target units per one base unit", so an amount
// in currency X becomes base via amount/rate(X) and base becomes Y via
// amount*rate(Y). The base currency itself always rates 1.
type Converter struct {
	table        RateTable
	baseCurrency map[int64]string
}

// NewConverter constructs a converter over the given rate table. bases maps
// company id to its base currency code.
func NewConverter(table RateTable, bases map[int64]string) *Converter {
	return &Converter{table: table, baseCurrency: bases}
}

// Convert converts amount from one currency to another for a company at a
// date. Converting between identical currencies is the identity, so round
// trips through the same date's table reproduce the input within floating
// tolerance.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string, companyID int64, date time.Time) (float64, error) {
	if from == to {
		return amount, nil
	}
	fromRate, err := c.rate(ctx, companyID, from, date)
	if err != nil {
		return 0, err
	}
	toRate, err := c.rate(ctx, companyID, to, date)
	if err != nil {
		return 0, err
	}
	return amount / fromRate * toRate, nil
}

// Rate returns target units of `to` per one unit of `from`.
func (c *Converter) Rate(ctx context.Context, from, to string, companyID int64, date time.Time) (float64, error) {
	return c.Convert(ctx, 1, from, to, companyID, date)
}

func (c *Converter) rate(ctx context.Context, companyID int64, code string, date time.Time) (float64, error) {
	if c.baseCurrency[companyID] == code {
		return 1, nil
	}
	rate, ok, err := c.table.RateFor(ctx, companyID, code, date)
	if err != nil {
		return 0, err
	}
	if !ok || rate == 0 {
		return 0, &MissingRateError{Currency: code, Date: date}
	}
	return rate, nil
}

// StaticTable is a fixed in-memory rate table keyed by currency code only,
// useful for tests and for holding one scrape result.
type StaticTable map[string]float64

// RateFor implements RateTable.
func (t StaticTable) RateFor(_ context.Context, _ int64, currencyCode string, _ time.Time) (float64, bool, error) {
	rate, ok := t[currencyCode]
	return rate, ok, nil
}

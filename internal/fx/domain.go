// Package fx owns exchange-rate resolution and dual-currency conversion.
package fx

import (
	"time"

	"golang.org/x/text/currency"
)

// ExchangeRate is one observed rate for a currency against the company base
// currency, keyed by (currency, date, company). Rates are written by the
// refresh job and only corrected same-day when the new value drifts beyond
// RateTolerance.
type ExchangeRate struct {
	ID           int64
	CurrencyCode string
	RateDate     time.Time
	Rate         float64
	CompanyID    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RateTolerance is the minimum delta that justifies correcting a stored
// same-day rate.
const RateTolerance = 0.0001

// Policy configures when scraped rates are persisted and under which dates.
type Policy struct {
	// BusinessDaysOnly suppresses weekend updates unless WeekendUsesMondayRate
	// also applies.
	BusinessDaysOnly bool
	// WeekendUsesMondayRate persists a weekend observation under both the
	// weekend date and the upcoming Monday. The source publishes Friday night
	// the rate that governs Monday.
	WeekendUsesMondayRate bool
}

// Company is the tenant configuration consumed by the refresh service.
type Company struct {
	ID           int64
	Name         string
	BaseCurrency string
	Provider     string
	Policy       Policy
	LastUpdate   *time.Time
	LastError    string
}

// ProviderBCV marks companies refreshed from the BCV scrape.
const ProviderBCV = "bcv"

// ValidCurrencyCode reports whether code is a well-formed ISO 4217 unit.
func ValidCurrencyCode(code string) bool {
	_, err := currency.ParseISO(code)
	return err == nil
}

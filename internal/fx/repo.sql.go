package fx

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for rates and company
// refresh configuration.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByProvider returns companies configured for the given rate provider.
func (r *Repository) ListByProvider(ctx context.Context, provider string) ([]Company, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, base_currency, provider, business_days_only, weekend_uses_monday_rate, last_rate_update, last_rate_error
FROM companies WHERE provider=$1 ORDER BY id`, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var companies []Company
	for rows.Next() {
		var c Company
		var lastUpdate *time.Time
		var lastError *string
		if err := rows.Scan(&c.ID, &c.Name, &c.BaseCurrency, &c.Provider, &c.Policy.BusinessDaysOnly, &c.Policy.WeekendUsesMondayRate, &lastUpdate, &lastError); err != nil {
			return nil, err
		}
		c.LastUpdate = lastUpdate
		if lastError != nil {
			c.LastError = *lastError
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return companies, nil
}

// SetRefreshStatus records the outcome of the last refresh for a company.
func (r *Repository) SetRefreshStatus(ctx context.Context, companyID int64, at time.Time, lastError string) error {
	var errValue *string
	if lastError != "" {
		errValue = &lastError
	}
	_, err := r.pool.Exec(ctx, `UPDATE companies SET last_rate_update=$2, last_rate_error=$3 WHERE id=$1`, companyID, at, errValue)
	return err
}

// ListCurrencies returns the active currency codes other than the company
// base currency.
func (r *Repository) ListCurrencies(ctx context.Context, companyID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.code FROM currencies c
WHERE c.active AND c.code <> (SELECT base_currency FROM companies WHERE id=$1) ORDER BY c.code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}

// BaseCurrencies maps every company id to its base currency code. Used to
// seed the Converter at startup.
func (r *Repository) BaseCurrencies(ctx context.Context) (map[int64]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, base_currency FROM companies`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bases := make(map[int64]string)
	for rows.Next() {
		var id int64
		var code string
		if err := rows.Scan(&id, &code); err != nil {
			return nil, err
		}
		bases[id] = code
	}
	return bases, rows.Err()
}

// Upsert inserts a rate row or corrects an existing same-day value when the
// delta exceeds tolerance. At most one row exists per (currency, date,
// company).
func (r *Repository) Upsert(ctx context.Context, rate ExchangeRate, tolerance float64) (created, updated bool, err error) {
	var existing float64
	err = r.pool.QueryRow(ctx, `SELECT rate FROM exchange_rates WHERE company_id=$1 AND currency_code=$2 AND rate_date=$3`,
		rate.CompanyID, rate.CurrencyCode, rate.RateDate).Scan(&existing)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		now := time.Now()
		_, err = r.pool.Exec(ctx, `INSERT INTO exchange_rates (company_id, currency_code, rate_date, rate, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`, rate.CompanyID, rate.CurrencyCode, rate.RateDate, rate.Rate, now)
		if err != nil {
			return false, false, err
		}
		return true, false, nil
	case err != nil:
		return false, false, err
	}

	if math.Abs(existing-rate.Rate) <= tolerance {
		return false, false, nil
	}
	_, err = r.pool.Exec(ctx, `UPDATE exchange_rates SET rate=$4, updated_at=$5 WHERE company_id=$1 AND currency_code=$2 AND rate_date=$3`,
		rate.CompanyID, rate.CurrencyCode, rate.RateDate, rate.Rate, time.Now())
	if err != nil {
		return false, false, err
	}
	return false, true, nil
}

// RateFor implements RateTable against the stored rows.
func (r *Repository) RateFor(ctx context.Context, companyID int64, currencyCode string, date time.Time) (float64, bool, error) {
	var rate float64
	err := r.pool.QueryRow(ctx, `SELECT rate FROM exchange_rates WHERE company_id=$1 AND currency_code=$2 AND rate_date<=$3
ORDER BY rate_date DESC LIMIT 1`, companyID, currencyCode, date).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rate, true, nil
}

// ListForDate returns the rates stored under one calendar date.
func (r *Repository) ListForDate(ctx context.Context, companyID int64, date time.Time) ([]ExchangeRate, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, currency_code, rate_date, rate, created_at, updated_at
FROM exchange_rates WHERE company_id=$1 AND rate_date=$2 ORDER BY currency_code`, companyID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRates(rows)
}

// Latest returns the newest stored rate per currency.
func (r *Repository) Latest(ctx context.Context, companyID int64) ([]ExchangeRate, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ON (currency_code) id, company_id, currency_code, rate_date, rate, created_at, updated_at
FROM exchange_rates WHERE company_id=$1 ORDER BY currency_code, rate_date DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRates(rows)
}

func scanRates(rows pgx.Rows) ([]ExchangeRate, error) {
	var rates []ExchangeRate
	for rows.Next() {
		var rate ExchangeRate
		if err := rows.Scan(&rate.ID, &rate.CompanyID, &rate.CurrencyCode, &rate.RateDate, &rate.Rate, &rate.CreatedAt, &rate.UpdatedAt); err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rates, nil
}

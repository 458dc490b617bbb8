package fx

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alm-erp/alm-erp/internal/fx/bcv"
)

// CompanyStore exposes tenant configuration for the refresh run.
type CompanyStore interface {
	ListByProvider(ctx context.Context, provider string) ([]Company, error)
	SetRefreshStatus(ctx context.Context, companyID int64, at time.Time, lastError string) error
}

// RateStore persists exchange rates and serves lookups.
type RateStore interface {
	RateTable
	Upsert(ctx context.Context, rate ExchangeRate, tolerance float64) (created, updated bool, err error)
	ListForDate(ctx context.Context, companyID int64, date time.Time) ([]ExchangeRate, error)
	Latest(ctx context.Context, companyID int64) ([]ExchangeRate, error)
	ListCurrencies(ctx context.Context, companyID int64) ([]string, error)
}

// RateSource produces one scrape of the external provider.
type RateSource interface {
	Fetch(ctx context.Context) (bcv.Result, error)
}

// RefreshOutcome reports one company's refresh result.
type RefreshOutcome struct {
	CompanyID   int64  `json:"company_id"`
	CompanyName string `json:"company_name"`
	Created     int    `json:"created"`
	Updated     int    `json:"updated"`
	Skipped     bool   `json:"skipped"`
	Error       string `json:"error,omitempty"`
}

// RefreshSummary aggregates a multi-company run. One company's failure never
// aborts the others; callers inspect the summary instead of an exception.
type RefreshSummary struct {
	Outcomes []RefreshOutcome `json:"outcomes"`
}

// Succeeded counts companies refreshed without error.
func (s RefreshSummary) Succeeded() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Error == "" && !o.Skipped {
			n++
		}
	}
	return n
}

// Failed counts companies whose refresh errored.
func (s RefreshSummary) Failed() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Error != "" {
			n++
		}
	}
	return n
}

// Service drives the periodic rate refresh and serves rate lookups.
type Service struct {
	companies CompanyStore
	rates     RateStore
	source    RateSource
	cache     *Cache
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds the refresh service.
func NewService(companies CompanyStore, rates RateStore, source RateSource, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		companies: companies,
		rates:     rates,
		source:    source,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// RefreshAll updates rates for every company configured with the BCV
// provider. The page is scraped at most once per run; each company derives
// its own rates from its base currency and persists them under every date
// the weekend policy resolves.
func (s *Service) RefreshAll(ctx context.Context) (RefreshSummary, error) {
	companies, err := s.companies.ListByProvider(ctx, ProviderBCV)
	if err != nil {
		return RefreshSummary{}, fmt.Errorf("fx: list companies: %w", err)
	}
	if len(companies) == 0 {
		s.logger.Warn("no companies configured for bcv provider")
		return RefreshSummary{}, nil
	}

	var (
		summary  RefreshSummary
		scraped  *bcv.Result
		fetchErr error
	)

	for _, company := range companies {
		outcome := RefreshOutcome{CompanyID: company.ID, CompanyName: company.Name}
		today := dateOnly(s.now())

		if !ShouldUpdateToday(today, company.Policy) {
			outcome.Skipped = true
			summary.Outcomes = append(summary.Outcomes, outcome)
			s.logger.Info("rate refresh skipped",
				slog.String("company", company.Name),
				slog.String("reason", "weekend without monday carry-forward"))
			continue
		}

		if scraped == nil && fetchErr == nil {
			res, err := s.source.Fetch(ctx)
			if err != nil {
				fetchErr = err
			} else {
				scraped = &res
			}
		}
		if fetchErr != nil {
			outcome.Error = fetchErr.Error()
			summary.Outcomes = append(summary.Outcomes, outcome)
			_ = s.companies.SetRefreshStatus(ctx, company.ID, s.now(), fetchErr.Error())
			continue
		}

		created, updated, err := s.applyScrape(ctx, company, *scraped, today)
		outcome.Created = created
		outcome.Updated = updated
		if err != nil {
			outcome.Error = err.Error()
			_ = s.companies.SetRefreshStatus(ctx, company.ID, s.now(), err.Error())
		} else {
			_ = s.companies.SetRefreshStatus(ctx, company.ID, s.now(), "")
			if s.cache != nil {
				_ = s.cache.Invalidate(ctx, company.ID)
			}
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	s.logger.Info("rate refresh finished",
		slog.Int("succeeded", summary.Succeeded()),
		slog.Int("failed", summary.Failed()),
		slog.Int("companies", len(companies)))
	return summary, nil
}

func (s *Service) applyScrape(ctx context.Context, company Company, res bcv.Result, today time.Time) (created, updated int, err error) {
	available, err := s.rates.ListCurrencies(ctx, company.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("fx: list currencies: %w", err)
	}

	derived := bcv.DeriveRates(company.BaseCurrency, res, available)
	if len(derived) == 0 {
		return 0, 0, fmt.Errorf("fx: no rates derivable for base currency %s", company.BaseCurrency)
	}

	dates := ResolveRateDates(today, company.Policy)

	codes := make([]string, 0, len(derived))
	for code := range derived {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if !ValidCurrencyCode(code) {
			s.logger.Warn("skipping non-ISO currency code", slog.String("code", code))
			continue
		}
		for _, date := range dates.Dates {
			wasCreated, wasUpdated, err := s.rates.Upsert(ctx, ExchangeRate{
				CurrencyCode: code,
				RateDate:     date,
				Rate:         derived[code],
				CompanyID:    company.ID,
			}, RateTolerance)
			if err != nil {
				return created, updated, fmt.Errorf("fx: upsert %s@%s: %w", code, date.Format("2006-01-02"), err)
			}
			if wasCreated {
				created++
			}
			if wasUpdated {
				updated++
			}
		}
		if len(dates.Dates) > 1 {
			s.logger.Info("monday rate carried to weekend",
				slog.String("currency", code),
				slog.String("company", company.Name))
		}
	}
	return created, updated, nil
}

// RatesAt lists the stored rates of a company for a given date.
func (s *Service) RatesAt(ctx context.Context, companyID int64, date time.Time) ([]ExchangeRate, error) {
	return s.rates.ListForDate(ctx, companyID, dateOnly(date))
}

// LatestRates lists the newest stored rate per currency, served through the
// Redis cache when one is configured.
func (s *Service) LatestRates(ctx context.Context, companyID int64) ([]ExchangeRate, error) {
	if s.cache == nil {
		return s.rates.Latest(ctx, companyID)
	}
	var rates []ExchangeRate
	err := s.cache.FetchJSON(ctx, companyID, &rates, func(ctx context.Context) (any, error) {
		return s.rates.Latest(ctx, companyID)
	})
	return rates, err
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

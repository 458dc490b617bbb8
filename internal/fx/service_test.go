package fx

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alm-erp/alm-erp/internal/fx/bcv"
)

type rateKey struct {
	company  int64
	currency string
	date     string
}

type memoryRateStore struct {
	rates      map[rateKey]float64
	currencies []string
}

func newMemoryRateStore(currencies ...string) *memoryRateStore {
	return &memoryRateStore{rates: make(map[rateKey]float64), currencies: currencies}
}

func (s *memoryRateStore) key(companyID int64, code string, date time.Time) rateKey {
	return rateKey{company: companyID, currency: code, date: date.Format("2006-01-02")}
}

func (s *memoryRateStore) Upsert(_ context.Context, rate ExchangeRate, tolerance float64) (bool, bool, error) {
	k := s.key(rate.CompanyID, rate.CurrencyCode, rate.RateDate)
	existing, ok := s.rates[k]
	if !ok {
		s.rates[k] = rate.Rate
		return true, false, nil
	}
	if math.Abs(existing-rate.Rate) <= tolerance {
		return false, false, nil
	}
	s.rates[k] = rate.Rate
	return false, true, nil
}

func (s *memoryRateStore) RateFor(_ context.Context, companyID int64, code string, date time.Time) (float64, bool, error) {
	rate, ok := s.rates[s.key(companyID, code, date)]
	return rate, ok, nil
}

func (s *memoryRateStore) ListForDate(ctx context.Context, companyID int64, date time.Time) ([]ExchangeRate, error) {
	var out []ExchangeRate
	for k, rate := range s.rates {
		if k.company == companyID && k.date == date.Format("2006-01-02") {
			out = append(out, ExchangeRate{CompanyID: companyID, CurrencyCode: k.currency, Rate: rate})
		}
	}
	return out, nil
}

func (s *memoryRateStore) Latest(ctx context.Context, companyID int64) ([]ExchangeRate, error) {
	return s.ListForDate(ctx, companyID, time.Now())
}

func (s *memoryRateStore) ListCurrencies(context.Context, int64) ([]string, error) {
	return s.currencies, nil
}

type memoryCompanyStore struct {
	companies []Company
	status    map[int64]string
}

func (s *memoryCompanyStore) ListByProvider(_ context.Context, provider string) ([]Company, error) {
	var out []Company
	for _, c := range s.companies {
		if c.Provider == provider {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memoryCompanyStore) SetRefreshStatus(_ context.Context, companyID int64, _ time.Time, lastError string) error {
	if s.status == nil {
		s.status = make(map[int64]string)
	}
	s.status[companyID] = lastError
	return nil
}

type stubSource struct {
	result bcv.Result
	err    error
	calls  int
}

func (s *stubSource) Fetch(context.Context) (bcv.Result, error) {
	s.calls++
	return s.result, s.err
}

func fixedService(companies *memoryCompanyStore, rates *memoryRateStore, source *stubSource, today time.Time) *Service {
	svc := NewService(companies, rates, source, nil, nil)
	svc.now = func() time.Time { return today }
	return svc
}

func vesCompany(id int64, policy Policy) Company {
	return Company{ID: id, Name: "ALM", BaseCurrency: "VES", Provider: ProviderBCV, Policy: policy}
}

func TestRefreshAllStoresInverseRates(t *testing.T) {
	companies := &memoryCompanyStore{companies: []Company{vesCompany(1, Policy{})}}
	rates := newMemoryRateStore("USD", "EUR")
	source := &stubSource{result: bcv.Result{USD: 36.5, EUR: 39.8}}
	wednesday := date(2025, time.June, 11)

	summary, err := fixedService(companies, rates, source, wednesday).RefreshAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded())
	require.Equal(t, 0, summary.Failed())
	require.Equal(t, 2, summary.Outcomes[0].Created)

	usd, ok, _ := rates.RateFor(context.Background(), 1, "USD", wednesday)
	require.True(t, ok)
	require.InDelta(t, 0.027397, usd, 1e-6)

	eur, ok, _ := rates.RateFor(context.Background(), 1, "EUR", wednesday)
	require.True(t, ok)
	require.InDelta(t, 0.025126, eur, 1e-6)
}

func TestRefreshAllWeekendWritesBothDates(t *testing.T) {
	policy := Policy{BusinessDaysOnly: true, WeekendUsesMondayRate: true}
	companies := &memoryCompanyStore{companies: []Company{vesCompany(1, policy)}}
	rates := newMemoryRateStore("USD")
	source := &stubSource{result: bcv.Result{USD: 36.5}}
	saturday := date(2025, time.June, 7)
	monday := date(2025, time.June, 9)

	summary, err := fixedService(companies, rates, source, saturday).RefreshAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Outcomes[0].Created)

	for _, d := range []time.Time{saturday, monday} {
		rate, ok, _ := rates.RateFor(context.Background(), 1, "USD", d)
		require.True(t, ok, "rate missing for %s", d.Format("2006-01-02"))
		require.InDelta(t, 1.0/36.5, rate, 1e-9)
	}
}

func TestRefreshAllSkipsWeekendWithoutCarryForward(t *testing.T) {
	policy := Policy{BusinessDaysOnly: true, WeekendUsesMondayRate: false}
	companies := &memoryCompanyStore{companies: []Company{vesCompany(1, policy)}}
	rates := newMemoryRateStore("USD")
	source := &stubSource{result: bcv.Result{USD: 36.5}}
	sunday := date(2025, time.June, 8)

	summary, err := fixedService(companies, rates, source, sunday).RefreshAll(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Outcomes[0].Skipped)
	require.Zero(t, source.calls, "scrape must not run when every company skips")
	require.Empty(t, rates.rates)
}

func TestRefreshAllIdempotentWithinTolerance(t *testing.T) {
	companies := &memoryCompanyStore{companies: []Company{vesCompany(1, Policy{})}}
	rates := newMemoryRateStore("USD")
	source := &stubSource{result: bcv.Result{USD: 36.5}}
	day := date(2025, time.June, 11)
	svc := fixedService(companies, rates, source, day)

	first, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Outcomes[0].Created)

	second, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Zero(t, second.Outcomes[0].Created)
	require.Zero(t, second.Outcomes[0].Updated)
}

func TestRefreshAllCorrectsSameDayDrift(t *testing.T) {
	companies := &memoryCompanyStore{companies: []Company{vesCompany(1, Policy{})}}
	rates := newMemoryRateStore("USD")
	source := &stubSource{result: bcv.Result{USD: 36.5}}
	day := date(2025, time.June, 11)
	svc := fixedService(companies, rates, source, day)

	_, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)

	source.result = bcv.Result{USD: 38.0}
	second, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, second.Outcomes[0].Updated)

	rate, _, _ := rates.RateFor(context.Background(), 1, "USD", day)
	require.InDelta(t, 1.0/38.0, rate, 1e-9)
}

func TestRefreshAllPartialSuccessAcrossCompanies(t *testing.T) {
	companies := &memoryCompanyStore{companies: []Company{
		vesCompany(1, Policy{}),
		{ID: 2, Name: "Branch", BaseCurrency: "GBP", Provider: ProviderBCV},
	}}
	rates := newMemoryRateStore("USD")
	source := &stubSource{result: bcv.Result{USD: 36.5}}
	day := date(2025, time.June, 11)

	summary, err := fixedService(companies, rates, source, day).RefreshAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded())
	require.Equal(t, 1, summary.Failed())
	require.Equal(t, 1, source.calls, "page scraped once per run")
	require.NotEmpty(t, companies.status[2])
	require.Empty(t, companies.status[1])
}

func TestRefreshAllSourceFailureRecordedPerCompany(t *testing.T) {
	companies := &memoryCompanyStore{companies: []Company{vesCompany(1, Policy{}), vesCompany(2, Policy{})}}
	rates := newMemoryRateStore("USD")
	source := &stubSource{err: errors.New("bcv: no rates found on page")}
	day := date(2025, time.June, 11)

	summary, err := fixedService(companies, rates, source, day).RefreshAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Failed())
	require.Equal(t, 1, source.calls, "failed scrape is not repeated within one run")
}

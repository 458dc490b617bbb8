package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alm-erp/alm-erp/internal/fx"
)

func vesConverter() *fx.Converter {
	return fx.NewConverter(fx.StaticTable{"USD": 1.0 / 36.5}, map[int64]string{1: "VES"})
}

func TestComputeCopiesThroughForUSDCompany(t *testing.T) {
	computer := NewAlternateComputer(vesConverter())
	line := MonetaryLine{Debit: 250, Credit: 0, CompanyCurrency: "USD", Date: time.Now()}

	require.NoError(t, computer.Compute(context.Background(), &line, 1))
	require.Equal(t, 250.0, line.DebitAlt)
	require.Zero(t, line.CreditAlt)
	require.Equal(t, 1.0, line.RateUsed)
}

func TestComputeConvertsDebitAndDerivesRate(t *testing.T) {
	computer := NewAlternateComputer(vesConverter())
	line := MonetaryLine{Debit: 365, CompanyCurrency: "VES", Date: time.Now()}

	require.NoError(t, computer.Compute(context.Background(), &line, 1))
	require.InDelta(t, 10, line.DebitAlt, 1e-9)
	require.Zero(t, line.CreditAlt)
	require.InDelta(t, 36.5, line.RateUsed, 1e-9)
}

func TestComputeConvertsCreditSide(t *testing.T) {
	computer := NewAlternateComputer(vesConverter())
	line := MonetaryLine{Credit: 73, CompanyCurrency: "VES", Date: time.Now()}

	require.NoError(t, computer.Compute(context.Background(), &line, 1))
	require.InDelta(t, 2, line.CreditAlt, 1e-9)
	require.InDelta(t, 36.5, line.RateUsed, 1e-9)
}

func TestComputeZeroLineFallsBackToTableRate(t *testing.T) {
	computer := NewAlternateComputer(vesConverter())
	line := MonetaryLine{CompanyCurrency: "VES", Date: time.Now()}

	require.NoError(t, computer.Compute(context.Background(), &line, 1))
	require.Zero(t, line.DebitAlt)
	require.Zero(t, line.CreditAlt)
	require.InDelta(t, 36.5, line.RateUsed, 1e-9)
}

func TestComputeMissingRateSurfaces(t *testing.T) {
	computer := NewAlternateComputer(fx.NewConverter(fx.StaticTable{}, map[int64]string{1: "VES"}))
	line := MonetaryLine{Debit: 10, CompanyCurrency: "VES", Date: time.Now()}

	err := computer.Compute(context.Background(), &line, 1)
	var missing *fx.MissingRateError
	require.ErrorAs(t, err, &missing)
}

func TestEffectiveDatePriority(t *testing.T) {
	invoice := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	lineDate := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	entry := time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)
	fallback := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)

	full := MonetaryLine{InvoiceDate: &invoice, Date: lineDate, EntryDate: &entry}
	require.Equal(t, invoice, full.EffectiveDate(fallback))

	noInvoice := MonetaryLine{Date: lineDate, EntryDate: &entry}
	require.Equal(t, lineDate, noInvoice.EffectiveDate(fallback))

	entryOnly := MonetaryLine{EntryDate: &entry}
	require.Equal(t, entry, entryOnly.EffectiveDate(fallback))

	require.Equal(t, fallback, MonetaryLine{}.EffectiveDate(fallback))
}

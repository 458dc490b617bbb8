package bcv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveRatesVESBaseInverts(t *testing.T) {
	res := Result{USD: 36.5, EUR: 39.8}
	got := DeriveRates("VES", res, []string{"USD", "EUR"})
	require.Len(t, got, 2)
	require.InDelta(t, 0.027397, got["USD"], 1e-6)
	require.InDelta(t, 0.025126, got["EUR"], 1e-6)
}

func TestDeriveRatesUSDBase(t *testing.T) {
	res := Result{USD: 36.5, EUR: 39.8}
	got := DeriveRates("USD", res, []string{"VES", "EUR"})
	require.InDelta(t, 36.5, got["VES"], 1e-9)
	require.InDelta(t, 39.8/36.5, got["EUR"], 1e-9)
}

func TestDeriveRatesRespectsAvailableList(t *testing.T) {
	res := Result{USD: 36.5, EUR: 39.8}
	got := DeriveRates("VES", res, []string{"USD"})
	require.Len(t, got, 1)
	require.Contains(t, got, "USD")
}

func TestDeriveRatesSkipsZeroQuotes(t *testing.T) {
	got := DeriveRates("VES", Result{USD: 36.5}, []string{"USD", "EUR"})
	require.Len(t, got, 1)
	require.NotContains(t, got, "EUR")
}

func TestDeriveRatesUnsupportedBase(t *testing.T) {
	got := DeriveRates("GBP", Result{USD: 36.5, EUR: 39.8}, []string{"USD", "EUR"})
	require.Empty(t, got)
}

func TestDeriveRatesLegacyVEFBase(t *testing.T) {
	got := DeriveRates("VEF", Result{USD: 36.5}, []string{"USD"})
	require.InDelta(t, 1.0/36.5, got["USD"], 1e-9)
}

package banking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alm-erp/alm-erp/internal/platform/fetch"
	"github.com/alm-erp/alm-erp/internal/shared"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(fetch.NewClient(fetch.Config{HTTPClient: srv.Client()}), srv.URL, "test-key", nil)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestTransactionsFollowsCursor(t *testing.T) {
	pages := map[string]transactionsResponse{
		"": {
			Transactions: []Transaction{{ID: "t1", AmountCents: 1050, TransactionDate: "2025-08-01"}},
			Pagination:   &pagination{HasMore: true, AfterID: "t1"},
		},
		"t1": {
			Transactions: []Transaction{{ID: "t2", AmountCents: -250, TransactionDate: "2025-08-02"}},
			Pagination:   &pagination{HasMore: false},
		},
	}
	var requests int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "2025-08-01", r.URL.Query().Get("start_date"))
		writeJSON(w, pages[r.URL.Query().Get("transactions_after_id")])
	}))

	from := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	got, err := client.Transactions(context.Background(), "acc-1", from, to)
	require.NoError(t, err)
	require.Equal(t, 2, requests)
	require.Len(t, got, 2)
	require.Equal(t, 10.50, got[0].Amount())
	require.Equal(t, -2.50, got[1].Amount())
}

func TestTransactionsStuckCursorStopsWithPartialResults(t *testing.T) {
	var requests int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		writeJSON(w, transactionsResponse{
			Transactions: []Transaction{{ID: fmt.Sprintf("t%d", requests), TransactionDate: "2025-08-01"}},
			Pagination:   &pagination{HasMore: true, AfterID: "stuck"},
		})
	}))

	got, err := client.Transactions(context.Background(), "acc-1", time.Time{}, time.Time{})
	require.ErrorIs(t, err, shared.ErrDataIntegrity)
	// First page advances to "stuck"; the second page returning the same
	// cursor is detected immediately. Exactly one extra request.
	require.Equal(t, 2, requests)
	require.Len(t, got, 2)
}

func TestTransactionsEmptyPageAfterFirstStops(t *testing.T) {
	var requests int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			writeJSON(w, transactionsResponse{
				Transactions: []Transaction{{ID: "t1", TransactionDate: "2025-08-01"}},
				Pagination:   &pagination{HasMore: true, AfterID: "t1"},
			})
			return
		}
		writeJSON(w, transactionsResponse{Pagination: &pagination{HasMore: true, AfterID: "t2"}})
	}))

	got, err := client.Transactions(context.Background(), "acc-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 2, requests)
}

func TestTransactionsMissingPaginationStops(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, transactionsResponse{Transactions: []Transaction{{ID: "t1", TransactionDate: "2025-08-01"}}})
	}))

	got, err := client.Transactions(context.Background(), "acc-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestTransactionsIterationCeiling(t *testing.T) {
	var requests int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		writeJSON(w, transactionsResponse{
			Transactions: []Transaction{{ID: fmt.Sprintf("t%d", requests), TransactionDate: "2025-08-01"}},
			Pagination:   &pagination{HasMore: true, AfterID: fmt.Sprintf("t%d", requests)},
		})
	}))

	got, err := client.Transactions(context.Background(), "acc-1", time.Time{}, time.Time{})
	require.ErrorIs(t, err, shared.ErrDataIntegrity)
	require.Equal(t, maxPageIterations, requests)
	require.Len(t, got, maxPageIterations)
}

func TestMissingAPIKeyIsConfigurationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the server without a key")
	}))
	t.Cleanup(srv.Close)
	client := NewClient(fetch.NewClient(fetch.Config{HTTPClient: srv.Client()}), srv.URL, "", nil)

	err := client.TestConnection(context.Background())
	require.ErrorIs(t, err, shared.ErrConfiguration)
}

func TestAccountsPagesThrough(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		switch page {
		case "1":
			writeJSON(w, accountsResponse{
				Accounts:   []Account{{ID: "a1", Name: "Main", Currency: "VES"}},
				Pagination: &pagination{TotalPages: 2},
			})
		default:
			writeJSON(w, accountsResponse{
				Accounts:   []Account{{ID: "a2", Name: "Savings", Currency: "USD"}},
				Pagination: &pagination{TotalPages: 2},
			})
		}
	}))

	accounts, err := client.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, "a1", accounts[0].ID)
	require.Equal(t, "a2", accounts[1].ID)
}

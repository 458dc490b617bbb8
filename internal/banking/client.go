package banking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/alm-erp/alm-erp/internal/platform/fetch"
	"github.com/alm-erp/alm-erp/internal/shared"
)

// DefaultBaseURL is the production Tesote API root.
const DefaultBaseURL = "https://equipo.tesote.com/api/v2"

// maxPageIterations bounds a single transaction pull. Reaching it means the
// caller should retry with a smaller date range.
const maxPageIterations = 100

// Client talks to the Tesote REST API through the retrying fetch client.
type Client struct {
	client  *fetch.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewClient constructs an API client. An empty baseURL falls back to
// DefaultBaseURL; the key is checked on first use so a half-configured
// deployment still boots.
func NewClient(client *fetch.Client, baseURL, apiKey string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{client: client, baseURL: baseURL, apiKey: apiKey, logger: logger}
}

type pagination struct {
	TotalPages int    `json:"total_pages"`
	HasMore    bool   `json:"has_more"`
	AfterID    string `json:"after_id"`
}

type accountsResponse struct {
	Accounts   []Account   `json:"accounts"`
	Pagination *pagination `json:"pagination"`
}

type transactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
	Pagination   *pagination   `json:"pagination"`
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, target any) error {
	if c.apiKey == "" {
		return fmt.Errorf("tesote api key not configured: %w", shared.ErrConfiguration)
	}
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("tesote: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("tesote: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("tesote: decode %s: %w", endpoint, err)
	}
	return nil
}

// TestConnection verifies the key against the status endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	return c.get(ctx, "/status", nil, &status)
}

// Accounts lists every account, following page-numbered pagination.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	page := 1
	for {
		query := url.Values{}
		query.Set("page", fmt.Sprint(page))
		query.Set("per_page", "50")

		var resp accountsResponse
		if err := c.get(ctx, "/accounts", query, &resp); err != nil {
			return accounts, err
		}
		accounts = append(accounts, resp.Accounts...)

		if resp.Pagination == nil {
			c.logger.Warn("tesote accounts response missing pagination, stopping")
			return accounts, nil
		}
		if page >= resp.Pagination.TotalPages {
			return accounts, nil
		}
		page++
	}
}

// Transactions pulls an account's movements for a date range, following the
// after-id cursor. It stops on an empty page after the first, a missing
// pagination block or has_more=false. A cursor that fails to advance stops
// the loop after one wasted iteration and surfaces a data-integrity error
// with the partial results; the iteration ceiling does the same.
func (c *Client) Transactions(ctx context.Context, accountID string, from, to time.Time) ([]Transaction, error) {
	var transactions []Transaction
	afterID := ""

	for iteration := 1; ; iteration++ {
		if iteration > maxPageIterations {
			return transactions, fmt.Errorf("tesote: transaction fetch exceeded %d pages, narrow the date range: %w",
				maxPageIterations, shared.ErrDataIntegrity)
		}

		query := url.Values{}
		query.Set("per_page", "100")
		if !from.IsZero() {
			query.Set("start_date", from.Format("2006-01-02"))
		}
		if !to.IsZero() {
			query.Set("end_date", to.Format("2006-01-02"))
		}
		if afterID != "" {
			query.Set("transactions_after_id", afterID)
		}

		var resp transactionsResponse
		if err := c.get(ctx, "/accounts/"+accountID+"/transactions", query, &resp); err != nil {
			return transactions, err
		}

		if len(resp.Transactions) == 0 && iteration > 1 {
			return transactions, nil
		}
		transactions = append(transactions, resp.Transactions...)
		c.logger.Debug("tesote page fetched",
			slog.String("account", accountID),
			slog.Int("iteration", iteration),
			slog.Int("total", len(transactions)))

		if resp.Pagination == nil {
			c.logger.Warn("tesote transactions response missing pagination, stopping",
				slog.String("account", accountID))
			return transactions, nil
		}
		if !resp.Pagination.HasMore {
			return transactions, nil
		}
		if resp.Pagination.AfterID == "" {
			c.logger.Warn("tesote pagination missing after_id, stopping",
				slog.String("account", accountID))
			return transactions, nil
		}
		if resp.Pagination.AfterID == afterID {
			return transactions, fmt.Errorf("tesote: pagination cursor %q not advancing for account %s: %w",
				afterID, accountID, shared.ErrDataIntegrity)
		}
		afterID = resp.Pagination.AfterID
	}
}

// Package fetch provides an HTTP client with bounded retries, exponential
// backoff and process-wide rate limiting for unreliable external sources.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/alm-erp/alm-erp/internal/shared"
)

// TimeoutError is returned when every attempt timed out.
type TimeoutError struct {
	Attempts int
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fetch: timeout after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TimeoutError) Unwrap() error { return shared.ErrTransientNetwork }

// ConnectionError is returned when every attempt failed to connect.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("fetch: connection failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return shared.ErrTransientNetwork }

// RateLimitError is returned when the source kept answering 429.
type RateLimitError struct {
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("fetch: rate limit exceeded after %d attempts", e.Attempts)
}

func (e *RateLimitError) Unwrap() error { return shared.ErrTransientNetwork }

// ServerError is returned when the source kept answering 5xx.
type ServerError struct {
	Attempts   int
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("fetch: server error %d after %d attempts", e.StatusCode, e.Attempts)
}

func (e *ServerError) Unwrap() error { return shared.ErrTransientNetwork }

// StatusError is returned for non-retryable HTTP statuses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: http status %d", e.StatusCode)
}

// Response wraps the final HTTP response with the total attempt count.
type Response struct {
	*http.Response
	Attempts int
}

// Config collects client dependencies. Zero values get sensible defaults.
type Config struct {
	HTTPClient *http.Client
	Limiter    *RateLimiter
	Clock      Clock
	MaxRetries int
	Logger     *slog.Logger
}

// Client issues HTTP requests with retry, backoff and rate limiting.
type Client struct {
	http       *http.Client
	limiter    *RateLimiter
	clock      Clock
	maxRetries int
	logger     *slog.Logger
}

// DefaultTimeout bounds a single attempt.
const DefaultTimeout = 30 * time.Second

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:       httpClient,
		limiter:    cfg.Limiter,
		clock:      clock,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Do performs the request, retrying transient failures up to MaxRetries times
// (MaxRetries+1 total attempts). Timeouts, connection failures and 5xx wait
// 2^n seconds between attempts; 429 honours a numeric Retry-After header and
// otherwise waits 5*2^n seconds. 401 and any other 4xx fail immediately
// without consuming a retry. Cancelling ctx aborts both requests and backoff
// sleeps.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	retries := 0
	attempts := 0

	for {
		attempts++

		if c.limiter != nil {
			if err := c.limiter.WaitIfNeeded(ctx); err != nil {
				return nil, err
			}
		}

		attempt := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("fetch: rewind body: %w", err)
			}
			attempt.Body = body
		}

		resp, err := c.http.Do(attempt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			retries++
			if isTimeout(err) {
				if retries > c.maxRetries {
					return nil, &TimeoutError{Attempts: attempts, Err: err}
				}
				if err := c.backoff(ctx, retries, backoffBase); err != nil {
					return nil, err
				}
				continue
			}
			if retries > c.maxRetries {
				return nil, &ConnectionError{Attempts: attempts, Err: err}
			}
			c.logger.Warn("fetch connection error, retrying",
				slog.Int("attempt", attempts),
				slog.Any("error", err))
			if err := c.backoff(ctx, retries, backoffBase); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			drain(resp)
			return nil, fmt.Errorf("fetch: unauthorized: %w", shared.ErrConfiguration)

		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := resp.Header.Get("Retry-After")
			drain(resp)
			retries++
			if retries > c.maxRetries {
				return nil, &RateLimitError{Attempts: attempts}
			}
			wait := rateLimitWait(retryAfter, retries)
			c.logger.Warn("fetch rate limited, backing off",
				slog.Int("attempt", attempts),
				slog.Duration("wait", wait))
			if err := c.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode >= 500:
			status := resp.StatusCode
			drain(resp)
			retries++
			if retries > c.maxRetries {
				return nil, &ServerError{Attempts: attempts, StatusCode: status}
			}
			c.logger.Warn("fetch server error, retrying",
				slog.Int("status", status),
				slog.Int("attempt", attempts))
			if err := c.backoff(ctx, retries, backoffBase); err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode >= 400:
			status := resp.StatusCode
			drain(resp)
			return nil, &StatusError{StatusCode: status}
		}

		if retries > 0 {
			c.logger.Info("fetch succeeded after retries",
				slog.Int("retries", retries),
				slog.Int("attempts", attempts))
		}
		return &Response{Response: resp, Attempts: attempts}, nil
	}
}

const backoffBase = time.Second

// backoff sleeps 2^n base units.
func (c *Client) backoff(ctx context.Context, n int, base time.Duration) error {
	return c.clock.Sleep(ctx, base*time.Duration(1<<n))
}

// rateLimitWait prefers a numeric Retry-After header, falling back to the
// longer 5*2^n backoff class reserved for rate limiting.
func rateLimitWait(retryAfter string, n int) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 5 * backoffBase * time.Duration(1<<n)
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

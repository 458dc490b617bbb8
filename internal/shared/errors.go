package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration indicates missing or invalid setup such as an absent
	// API key or account mapping. Surfaced immediately, never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransientNetwork indicates a timeout, connection failure, 5xx or 429
	// from an external source. Retried before being surfaced.
	ErrTransientNetwork = errors.New("transient network error")
	// ErrDataIntegrity indicates a duplicate unique key or a paging cursor
	// that stopped advancing. The operation stops early, keeping partial results.
	ErrDataIntegrity = errors.New("data integrity error")
	// ErrValidation indicates a business-rule violation. Never retried.
	ErrValidation = errors.New("validation error")
)

package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ImportKeyStore persists external identifiers of already imported records so
// re-running a sync with the same date range never creates duplicates.
type ImportKeyStore struct {
	pool *pgxpool.Pool
}

// NewImportKeyStore constructs the store.
func NewImportKeyStore(pool *pgxpool.Pool) *ImportKeyStore {
	return &ImportKeyStore{pool: pool}
}

// CheckAndInsert records key for module, failing with ErrDataIntegrity when the
// key was already imported.
func (s *ImportKeyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("import key store not initialised")
	}
	if key == "" {
		return errors.New("import key required")
	}
	if module == "" {
		return errors.New("import module required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO import_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, time.Now())
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok {
			if pgErr.Code == "23505" {
				return fmt.Errorf("import key %s: %w", key, ErrDataIntegrity)
			}
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention.
func (s *ImportKeyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM import_keys WHERE created_at < $1`, cutoff)
	return err
}

// Delete removes a key, typically used to roll back failed processing.
func (s *ImportKeyStore) Delete(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("import key required")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM import_keys WHERE key=$1`, key)
	return err
}

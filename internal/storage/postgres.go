package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore implements Store on a single key-value table. Expiry is a
// nullable column checked on every read, so reclaimed and merely-expired
// keys look the same to callers. Listing is keyset-paginated by key, which
// keeps cursors stable while rows are inserted or deleted concurrently.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a Store backed by the given database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	const op = "storage.PostgresStore.Get"

	var value string
	query := `SELECT value FROM short_urls
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`

	if err := s.db.GetContext(ctx, &value, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("%s: failed to get key: %w", op, err)
	}

	return value, nil
}

func (s *PostgresStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	const op = "storage.PostgresStore.Put"

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	query := `INSERT INTO short_urls(key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = $3`

	if _, err := s.db.ExecContext(ctx, query, key, value, expiresAt); err != nil {
		return fmt.Errorf("%s: failed to put key: %w", op, err)
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	const op = "storage.PostgresStore.Delete"

	query := `DELETE FROM short_urls WHERE key = $1`

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("%s: failed to delete key: %w", op, err)
	}

	return nil
}

func (s *PostgresStore) List(ctx context.Context, cursor string, limit int64) (ListResult, error) {
	const op = "storage.PostgresStore.List"

	var keys []string
	query := `SELECT key FROM short_urls
		WHERE key > $1 AND (expires_at IS NULL OR expires_at > now())
		ORDER BY key
		LIMIT $2`

	if err := s.db.SelectContext(ctx, &keys, query, cursor, limit); err != nil {
		return ListResult{}, fmt.Errorf("%s: failed to list keys: %w", op, err)
	}

	result := ListResult{
		Keys:     keys,
		Complete: int64(len(keys)) < limit,
	}
	if !result.Complete {
		result.Cursor = keys[len(keys)-1]
	}

	return result, nil
}

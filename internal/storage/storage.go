package storage

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when an attempt is made to retrieve
// a key that doesn't exist or has already expired.
var ErrKeyNotFound = errors.New("key not found")

// ListResult holds one page of keys from a Store listing.
type ListResult struct {
	// Keys are the keys found in this page, in backend iteration order.
	Keys []string
	// Cursor continues the listing from where this page stopped.
	// Only meaningful when Complete is false.
	Cursor string
	// Complete reports that the listing has reached the end of the keyspace.
	Complete bool
}

// Store is the durable key-value capability the registry is built on.
// Implementations map string keys to string values and may reclaim keys
// on their own once the put-time TTL elapses.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put stores value under key. A positive ttl asks the backend to
	// reclaim the key after that duration; ttl <= 0 means no expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns up to limit keys starting at cursor. An empty cursor
	// starts a new listing. Page sizes are a hint; backends may return
	// fewer keys than requested before the listing is complete.
	List(ctx context.Context, cursor string, limit int64) (ListResult, error)
}

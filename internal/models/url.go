package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// URLRecord represents a shortened URL and its associated metadata.
// The JSON form of the struct is the canonical store value, keyed by the
// short code. All timestamps are Unix milliseconds.
type URLRecord struct {
	// OriginalURL is the normalized absolute URL that the short code points to.
	OriginalURL string `json:"originalUrl"`
	// ShortCode is the 6-character identifier; also the store key. Immutable.
	ShortCode string `json:"shortCode"`
	// Description is free text used for substring search. May be empty.
	Description string `json:"description"`
	// CreatedAt is set once at creation. Immutable.
	CreatedAt int64 `json:"createdAt"`
	// RedirectCount is bumped on every successful redirect. Never decremented.
	RedirectCount int64 `json:"redirectCount"`
	// LastAccessed is absent until the first redirect.
	LastAccessed *int64 `json:"lastAccessed,omitempty"`
	// ExpiresAt is absent when the record never expires.
	ExpiresAt *int64 `json:"expiresAt,omitempty"`
	// Locked protects the record from single and bulk deletion.
	Locked bool `json:"locked"`
}

// Expired reports whether the record is logically dead at the given time.
func (r *URLRecord) Expired(now int64) bool {
	return r.ExpiresAt != nil && *r.ExpiresAt <= now
}

// TTL returns the store-native expiry hint for the record, or zero when the
// record never expires. The store TTL is a best-effort janitor; the
// authoritative gate is the Expired check on read.
func (r *URLRecord) TTL(now int64) time.Duration {
	if r.ExpiresAt == nil {
		return 0
	}
	return time.Duration(*r.ExpiresAt-now) * time.Millisecond
}

// Encode serializes the record into its store value form.
func (r *URLRecord) Encode() (string, error) {
	const op = "models.URLRecord.Encode"

	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal record: %w", op, err)
	}

	return string(data), nil
}

// DecodeURLRecord parses a store value back into a record. Missing optional
// fields take their defaults: zero redirect count, unlocked, no expiry.
func DecodeURLRecord(value string) (*URLRecord, error) {
	const op = "models.DecodeURLRecord"

	var rec URLRecord
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal record: %w", op, err)
	}

	return &rec, nil
}

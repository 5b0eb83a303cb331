package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	value    string
	deadline time.Time // zero means no expiry
}

// MemoryStore is an in-memory Store used by tests and dev mode.
// Listing is keyset-paginated over sorted keys, so pages are deterministic.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetNowFunc overrides the time source used for TTL checks in tests.
func (s *MemoryStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	now := s.now()
	s.mu.RUnlock()

	if !ok {
		return "", ErrKeyNotFound
	}
	if !entry.deadline.IsZero() && !entry.deadline.After(now) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", ErrKeyNotFound
	}

	return entry.value, nil
}

func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.deadline = s.now().Add(ttl)
	}
	s.entries[key] = entry

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	return nil
}

func (s *MemoryStore) List(_ context.Context, cursor string, limit int64) (ListResult, error) {
	s.mu.RLock()
	now := s.now()
	keys := make([]string, 0, len(s.entries))
	for key, entry := range s.entries {
		if !entry.deadline.IsZero() && !entry.deadline.After(now) {
			continue
		}
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	sort.Strings(keys)

	start := 0
	if cursor != "" {
		start = sort.SearchStrings(keys, cursor)
		// The cursor is the last key of the previous page; resume after it.
		if start < len(keys) && keys[start] == cursor {
			start++
		}
	}

	end := start + int(limit)
	if limit <= 0 || end > len(keys) {
		end = len(keys)
	}

	result := ListResult{
		Keys:     keys[start:end],
		Complete: end == len(keys),
	}
	if !result.Complete {
		result.Cursor = keys[end-1]
	}

	return result, nil
}

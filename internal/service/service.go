// Package service implements the URL registry: the orchestration of
// create, read, list, search, lock, delete, and redirect operations
// against the key-value store.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gearzhan/shortURL/internal/clock"
	"github.com/gearzhan/shortURL/internal/counter"
	"github.com/gearzhan/shortURL/internal/models"
	"github.com/gearzhan/shortURL/internal/shortcode"
	"github.com/gearzhan/shortURL/internal/storage"
)

var (
	// ErrMissingURL is returned when create is called without a URL.
	ErrMissingURL = errors.New("url is required")
	// ErrInvalidURL is returned when the submitted URL is not absolute.
	ErrInvalidURL = errors.New("invalid url")
	// ErrMissingQuery is returned when search is called without a query.
	ErrMissingQuery = errors.New("search query is required")
	// ErrMissingCode is returned when an operation requires a short code
	// and none was provided.
	ErrMissingCode = errors.New("short code is required")
	// ErrNotFound is returned when no live record exists for a short code.
	ErrNotFound = errors.New("short url not found")
	// ErrExpired is returned by redirect when the record's expiry has
	// passed. The record is purged before the error is returned.
	ErrExpired = errors.New("short url has expired")
	// ErrLocked is returned when delete targets a locked record.
	ErrLocked = errors.New("url is locked")
)

// Expiration directives accepted by Create.
const (
	ExpirePermanent = "permanent"
	Expire30Days    = "30days"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000

	// scanPageSize and maxScanKeys bound worst-case latency of search and
	// age-based pruning, not completeness.
	scanPageSize = 1000
	maxScanKeys  = 5000

	defaultPruneDays = 120

	fixedExpiry = 30 * 24 * time.Hour
	dayMillis   = int64(24 * time.Hour / time.Millisecond)
)

// CreateInput carries the caller-supplied fields for Create.
type CreateInput struct {
	URL            string
	Description    string
	ExpirationType string
}

// ListPage is one page of live records from List.
type ListPage struct {
	Records  []models.URLRecord
	Cursor   string
	Complete bool
}

// SearchResult holds the outcome of a description search.
type SearchResult struct {
	Records []models.URLRecord
	Query   string
	Total   int
	// ScanLimitHit reports that the scan cap truncated the search before
	// the store ran out of keys, so results may be incomplete.
	ScanLimitHit bool
}

// BulkResult counts the per-code outcomes of a bulk delete.
type BulkResult struct {
	Deleted       int `json:"deleted"`
	SkippedLocked int `json:"skippedLocked"`
	NotFound      int `json:"notFound"`
}

// Registry is the core of the shortener. All state lives in the store;
// the registry itself holds no mutable data, so one instance serves
// concurrent requests.
//
// The counter is optional: when nil, redirect counting is folded into the
// record with a read-modify-write (cheap but racy under concurrent
// redirects of one code); when set, counting is delegated to the per-code
// cell, which is atomic.
type Registry struct {
	store   storage.Store
	gen     *shortcode.Generator
	counter counter.Counter
	clock   clock.Clock
}

// NewRegistry creates a registry on the given store. cnt may be nil to
// embed redirect counts in records.
func NewRegistry(store storage.Store, gen *shortcode.Generator, cnt counter.Counter, clk clock.Clock) *Registry {
	return &Registry{
		store:   store,
		gen:     gen,
		counter: cnt,
		clock:   clk,
	}
}

// Create validates and normalizes the URL, allocates a short code, and
// persists the new record. The store receives a TTL hint when the record
// has a fixed expiry, so the backend can reclaim it as a backstop to the
// lazy purge on read.
func (r *Registry) Create(ctx context.Context, input CreateInput) (*models.URLRecord, error) {
	const op = "service.Registry.Create"

	rawURL := strings.TrimSpace(input.URL)
	if rawURL == "" {
		return nil, ErrMissingURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, ErrInvalidURL
	}

	code, err := r.gen.Allocate(ctx, r.store)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to allocate short code: %w", op, err)
	}

	now := r.clock.Now().UnixMilli()
	rec := &models.URLRecord{
		OriginalURL: parsed.String(),
		ShortCode:   code,
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   now,
	}
	if input.ExpirationType == Expire30Days {
		expiresAt := now + fixedExpiry.Milliseconds()
		rec.ExpiresAt = &expiresAt
	}

	if err := r.putRecord(ctx, rec, now); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

// List returns up to limit live records starting at cursor, newest first.
// Expired records are filtered out but not purged: listing stays read-only.
func (r *Registry) List(ctx context.Context, limit int64, cursor string) (*ListPage, error) {
	const op = "service.Registry.List"

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	res, err := r.store.List(ctx, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list keys: %w", op, err)
	}

	now := r.clock.Now().UnixMilli()
	records := make([]models.URLRecord, 0, len(res.Keys))
	for _, key := range res.Keys {
		rec, err := r.fetchLive(ctx, key, now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if rec == nil {
			continue
		}
		records = append(records, *rec)
	}

	sortByCreatedAtDesc(records)

	page := &ListPage{
		Records:  records,
		Complete: res.Complete,
	}
	if !res.Complete {
		page.Cursor = res.Cursor
	}

	return page, nil
}

// Search scans the store for live records whose description contains the
// query, case-insensitively. The scan walks pages of the keyspace and
// stops after a fixed number of keys; a truncated scan is flagged in the
// result rather than treated as an error.
func (r *Registry) Search(ctx context.Context, query string) (*SearchResult, error) {
	const op = "service.Registry.Search"

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrMissingQuery
	}
	needle := strings.ToLower(query)

	now := r.clock.Now().UnixMilli()
	result := &SearchResult{Query: query}

	var cursor string
	scanned := 0
	for {
		res, err := r.store.List(ctx, cursor, scanPageSize)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan keys: %w", op, err)
		}

		for _, key := range res.Keys {
			scanned++
			rec, err := r.fetchLive(ctx, key, now)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			if rec == nil {
				continue
			}
			if strings.Contains(strings.ToLower(rec.Description), needle) {
				result.Records = append(result.Records, *rec)
			}
		}

		if res.Complete {
			break
		}
		if scanned >= maxScanKeys {
			result.ScanLimitHit = true
			break
		}
		cursor = res.Cursor
	}

	sortByCreatedAtDesc(result.Records)
	result.Total = len(result.Records)

	return result, nil
}

// Stats returns the record for a short code. An expired record is purged
// and reported as not found, matching what a redirect would have done.
func (r *Registry) Stats(ctx context.Context, code string) (*models.URLRecord, error) {
	const op = "service.Registry.Stats"

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrMissingCode
	}

	rec, err := r.getRecord(ctx, code)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now().UnixMilli()
	if rec.Expired(now) {
		if err := r.purge(ctx, code); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, ErrNotFound
	}

	if r.counter != nil {
		hit, ok, err := r.counter.Stats(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read counter: %w", op, err)
		}
		if ok {
			rec.RedirectCount = hit.Count
			lastAccessed := hit.LastAccessed
			rec.LastAccessed = &lastAccessed
		}
	}

	return rec, nil
}

// Redirect resolves a short code to its original URL and counts the hit.
// This is the one read path that actively purges expired records: a
// redirect is the strongest signal the code is still being exercised, so
// the store is reconciled immediately.
func (r *Registry) Redirect(ctx context.Context, code string) (string, error) {
	const op = "service.Registry.Redirect"

	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrMissingCode
	}

	rec, err := r.getRecord(ctx, code)
	if err != nil {
		return "", err
	}

	now := r.clock.Now().UnixMilli()
	if rec.Expired(now) {
		if err := r.purge(ctx, code); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return "", ErrExpired
	}

	if r.counter != nil {
		if _, err := r.counter.Increment(ctx, code); err != nil {
			return "", fmt.Errorf("%s: failed to count redirect: %w", op, err)
		}
	} else {
		rec.RedirectCount++
		lastAccessed := now
		rec.LastAccessed = &lastAccessed
		if err := r.putRecord(ctx, rec, now); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	return rec.OriginalURL, nil
}

// SetLock sets the record's locked flag to the target state. Setting the
// flag to its current value is an idempotent no-op.
func (r *Registry) SetLock(ctx context.Context, code string, locked bool) (*models.URLRecord, error) {
	const op = "service.Registry.SetLock"

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrMissingCode
	}

	rec, err := r.getRecord(ctx, code)
	if err != nil {
		return nil, err
	}

	if rec.Locked == locked {
		return rec, nil
	}

	rec.Locked = locked
	now := r.clock.Now().UnixMilli()
	if err := r.putRecord(ctx, rec, now); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

// Delete removes the record for a short code unless it is locked.
func (r *Registry) Delete(ctx context.Context, code string) error {
	const op = "service.Registry.Delete"

	code = strings.TrimSpace(code)
	if code == "" {
		return ErrMissingCode
	}

	rec, err := r.getRecord(ctx, code)
	if err != nil {
		return err
	}

	if rec.Locked {
		return ErrLocked
	}

	if err := r.purge(ctx, code); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// BulkDelete removes records either by an explicit code list or, when the
// list is empty, by age threshold. The sweep is idempotent and not
// transactional: a failure partway leaves prior deletions committed, and
// re-running is safe.
func (r *Registry) BulkDelete(ctx context.Context, codes []string, olderThanDays int) (BulkResult, error) {
	if len(codes) > 0 {
		return r.bulkDeleteCodes(ctx, codes)
	}
	return r.bulkDeleteByAge(ctx, olderThanDays)
}

func (r *Registry) bulkDeleteCodes(ctx context.Context, codes []string) (BulkResult, error) {
	const op = "service.Registry.bulkDeleteCodes"

	var result BulkResult
	seen := make(map[string]struct{}, len(codes))

	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		rec, err := r.getRecord(ctx, code)
		if errors.Is(err, ErrNotFound) {
			result.NotFound++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("%s: %w", op, err)
		}

		if rec.Locked {
			result.SkippedLocked++
			continue
		}

		if err := r.purge(ctx, code); err != nil {
			return result, fmt.Errorf("%s: %w", op, err)
		}
		result.Deleted++
	}

	return result, nil
}

func (r *Registry) bulkDeleteByAge(ctx context.Context, olderThanDays int) (BulkResult, error) {
	const op = "service.Registry.bulkDeleteByAge"

	if olderThanDays <= 0 {
		olderThanDays = defaultPruneDays
	}
	cutoff := r.clock.Now().UnixMilli() - int64(olderThanDays)*dayMillis

	var result BulkResult
	var cursor string
	for {
		res, err := r.store.List(ctx, cursor, scanPageSize)
		if err != nil {
			return result, fmt.Errorf("%s: failed to list keys: %w", op, err)
		}

		for _, key := range res.Keys {
			rec, err := r.getRecord(ctx, key)
			if errors.Is(err, ErrNotFound) {
				result.NotFound++
				continue
			}
			if err != nil {
				return result, fmt.Errorf("%s: %w", op, err)
			}

			if rec.CreatedAt >= cutoff {
				continue
			}
			if rec.Locked {
				result.SkippedLocked++
				continue
			}

			if err := r.purge(ctx, key); err != nil {
				return result, fmt.Errorf("%s: %w", op, err)
			}
			result.Deleted++
		}

		if res.Complete {
			break
		}
		cursor = res.Cursor
	}

	return result, nil
}

// getRecord fetches and decodes one record, mapping store absence to
// ErrNotFound.
func (r *Registry) getRecord(ctx context.Context, code string) (*models.URLRecord, error) {
	const op = "service.Registry.getRecord"

	value, err := r.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: failed to get record: %w", op, err)
	}

	rec, err := models.DecodeURLRecord(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

// fetchLive fetches one record for a scan, returning nil for keys that
// are gone, undecodable, or expired. Scans filter dead records without
// purging them so listing stays cheap.
func (r *Registry) fetchLive(ctx context.Context, key string, now int64) (*models.URLRecord, error) {
	value, err := r.store.Get(ctx, key)
	if err != nil {
		// The key may have been deleted or reclaimed since it was listed.
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	rec, err := models.DecodeURLRecord(value)
	if err != nil {
		return nil, nil
	}
	if rec.Expired(now) {
		return nil, nil
	}

	return rec, nil
}

// putRecord encodes and persists a record, carrying the TTL hint derived
// from its expiry.
func (r *Registry) putRecord(ctx context.Context, rec *models.URLRecord, now int64) error {
	const op = "service.Registry.putRecord"

	value, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.store.Put(ctx, rec.ShortCode, value, rec.TTL(now)); err != nil {
		return fmt.Errorf("%s: failed to put record: %w", op, err)
	}

	return nil
}

// purge deletes a record and, in cell-counting mode, resets its counter
// so a recycled code starts from zero.
func (r *Registry) purge(ctx context.Context, code string) error {
	const op = "service.Registry.purge"

	if err := r.store.Delete(ctx, code); err != nil {
		return fmt.Errorf("%s: failed to delete record: %w", op, err)
	}

	if r.counter != nil {
		if err := r.counter.Reset(ctx, code); err != nil {
			return fmt.Errorf("%s: failed to reset counter: %w", op, err)
		}
	}

	return nil
}

func sortByCreatedAtDesc(records []models.URLRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt > records[j].CreatedAt
	})
}

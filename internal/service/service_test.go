package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearzhan/shortURL/internal/clock"
	"github.com/gearzhan/shortURL/internal/counter"
	"github.com/gearzhan/shortURL/internal/models"
	"github.com/gearzhan/shortURL/internal/shortcode"
	"github.com/gearzhan/shortURL/internal/storage"
)

var testBase = time.UnixMilli(1700000000000)

func newTestRegistry(cnt counter.Counter) (*Registry, *storage.MemoryStore, *clock.MockClock) {
	store := storage.NewMemoryStore()
	clk := clock.NewMockClock(testBase)
	return NewRegistry(store, shortcode.New(), cnt, clk), store, clk
}

func seedRecord(t *testing.T, store *storage.MemoryStore, rec *models.URLRecord) {
	t.Helper()

	value, err := rec.Encode()
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), rec.ShortCode, value, 0))
}

func TestRegistry_Create(t *testing.T) {
	registry, _, _ := newTestRegistry(nil)

	rec, err := registry.Create(context.Background(), CreateInput{
		URL:         "https://example.com/docs",
		Description: "  example docs  ",
	})
	require.NoError(t, err)

	assert.Regexp(t, `^[a-z0-9]{6}$`, rec.ShortCode)
	assert.Equal(t, "https://example.com/docs", rec.OriginalURL)
	assert.Equal(t, "example docs", rec.Description)
	assert.Equal(t, testBase.UnixMilli(), rec.CreatedAt)
	assert.Equal(t, int64(0), rec.RedirectCount)
	assert.Nil(t, rec.LastAccessed)
	assert.Nil(t, rec.ExpiresAt)
	assert.False(t, rec.Locked)
}

func TestRegistry_CreateMissingURL(t *testing.T) {
	registry, _, _ := newTestRegistry(nil)

	for _, url := range []string{"", "   "} {
		_, err := registry.Create(context.Background(), CreateInput{URL: url})
		assert.ErrorIs(t, err, ErrMissingURL)
	}
}

func TestRegistry_CreateInvalidURL(t *testing.T) {
	registry, _, _ := newTestRegistry(nil)

	for _, url := range []string{"not-a-valid-url", "/relative/path", "http://"} {
		_, err := registry.Create(context.Background(), CreateInput{URL: url})
		assert.ErrorIs(t, err, ErrInvalidURL, "url: %q", url)
	}
}

func TestRegistry_CreateNormalizesURL(t *testing.T) {
	registry, _, _ := newTestRegistry(nil)

	rec, err := registry.Create(context.Background(), CreateInput{
		URL: "HTTPS://example.com/a b",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a%20b", rec.OriginalURL)
}

func TestRegistry_CreateFixedExpiry(t *testing.T) {
	registry, _, _ := newTestRegistry(nil)

	rec, err := registry.Create(context.Background(), CreateInput{
		URL:            "https://example.com/",
		ExpirationType: Expire30Days,
	})
	require.NoError(t, err)

	require.NotNil(t, rec.ExpiresAt)
	assert.Equal(t, testBase.UnixMilli()+fixedExpiry.Milliseconds(), *rec.ExpiresAt)
}

func TestRegistry_StatsRoundTrip(t *testing.T) {
	registry, _, _ := newTestRegistry(nil)

	created, err := registry.Create(context.Background(), CreateInput{
		URL:         "https://example.com/",
		Description: "docs",
	})
	require.NoError(t, err)

	rec, err := registry.Stats(context.Background(), created.ShortCode)
	require.NoError(t, err)

	assert.Equal(t, created.OriginalURL, rec.OriginalURL)
	assert.Equal(t, created.Description, rec.Description)
	assert.Equal(t, created.CreatedAt, rec.CreatedAt)
	assert.Equal(t, int64(0), rec.RedirectCount)
	assert.Nil(t, rec.LastAccessed)
}

func TestRegistry_StatsMissingCode(t *testing.T) {
	registry, _, _ := newTestRegistry(nil)

	_, err := registry.Stats(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingCode)
}

func TestRegistry_StatsNotFound(t *testing.T) {
	registry, _, _ := newTestRegistry(nil)

	_, err := registry.Stats(context.Background(), "zzz999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_StatsExpiredPurges(t *testing.T) {
	registry, store, _ := newTestRegistry(nil)

	expiresAt := testBase.UnixMilli() - 1
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/",
		ShortCode:   "old123",
		CreatedAt:   testBase.UnixMilli() - 100000,
		ExpiresAt:   &expiresAt,
	})

	_, err := registry.Stats(context.Background(), "old123")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), "old123")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestRegistry_Redirect(t *testing.T) {
	registry, _, clk := newTestRegistry(nil)

	created, err := registry.Create(context.Background(), CreateInput{URL: "https://example.com/docs"})
	require.NoError(t, err)

	clk.Advance(time.Minute)

	target, err := registry.Redirect(context.Background(), created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/docs", target)

	rec, err := registry.Stats(context.Background(), created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.RedirectCount)
	require.NotNil(t, rec.LastAccessed)
	assert.Equal(t, testBase.Add(time.Minute).UnixMilli(), *rec.LastAccessed)
}

func TestRegistry_RedirectNotFound(t *testing.T) {
	registry, _, _ := newTestRegistry(nil)

	_, err := registry.Redirect(context.Background(), "zzz999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_RedirectExpiredPurges(t *testing.T) {
	registry, store, _ := newTestRegistry(nil)

	expiresAt := testBase.UnixMilli() - 1
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/",
		ShortCode:   "old123",
		CreatedAt:   testBase.UnixMilli() - 100000,
		ExpiresAt:   &expiresAt,
	})

	_, err := registry.Redirect(context.Background(), "old123")
	assert.ErrorIs(t, err, ErrExpired)

	_, err = store.Get(context.Background(), "old123")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestRegistry_RedirectCellMode(t *testing.T) {
	clk := clock.NewMockClock(testBase)
	cnt := counter.NewMemoryCounter(clk)
	store := storage.NewMemoryStore()
	registry := NewRegistry(store, shortcode.New(), cnt, clk)

	created, err := registry.Create(context.Background(), CreateInput{URL: "https://example.com/"})
	require.NoError(t, err)

	_, err = registry.Redirect(context.Background(), created.ShortCode)
	require.NoError(t, err)
	_, err = registry.Redirect(context.Background(), created.ShortCode)
	require.NoError(t, err)

	// The record value itself is untouched; counting lives in the cell.
	value, err := store.Get(context.Background(), created.ShortCode)
	require.NoError(t, err)
	stored, err := models.DecodeURLRecord(value)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.RedirectCount)

	// Stats overlays the cell's state onto the record view.
	rec, err := registry.Stats(context.Background(), created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.RedirectCount)
	require.NotNil(t, rec.LastAccessed)
	assert.Equal(t, testBase.UnixMilli(), *rec.LastAccessed)
}

func TestRegistry_SetLockIdempotent(t *testing.T) {
	registry, _, _ := newTestRegistry(nil)

	created, err := registry.Create(context.Background(), CreateInput{URL: "https://example.com/"})
	require.NoError(t, err)

	rec, err := registry.SetLock(context.Background(), created.ShortCode, true)
	require.NoError(t, err)
	assert.True(t, rec.Locked)

	rec, err = registry.SetLock(context.Background(), created.ShortCode, true)
	require.NoError(t, err)
	assert.True(t, rec.Locked)

	rec, err = registry.SetLock(context.Background(), created.ShortCode, false)
	require.NoError(t, err)
	assert.False(t, rec.Locked)
}

func TestRegistry_SetLockNotFound(t *testing.T) {
	registry, _, _ := newTestRegistry(nil)

	_, err := registry.SetLock(context.Background(), "zzz999", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_DeleteLocked(t *testing.T) {
	registry, store, _ := newTestRegistry(nil)

	created, err := registry.Create(context.Background(), CreateInput{URL: "https://example.com/"})
	require.NoError(t, err)

	_, err = registry.SetLock(context.Background(), created.ShortCode, true)
	require.NoError(t, err)

	err = registry.Delete(context.Background(), created.ShortCode)
	assert.ErrorIs(t, err, ErrLocked)

	_, err = store.Get(context.Background(), created.ShortCode)
	require.NoError(t, err, "locked record must survive delete")

	_, err = registry.SetLock(context.Background(), created.ShortCode, false)
	require.NoError(t, err)

	require.NoError(t, registry.Delete(context.Background(), created.ShortCode))

	_, err = store.Get(context.Background(), created.ShortCode)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestRegistry_DeleteResetsCounterCell(t *testing.T) {
	clk := clock.NewMockClock(testBase)
	cnt := counter.NewMemoryCounter(clk)
	store := storage.NewMemoryStore()
	registry := NewRegistry(store, shortcode.New(), cnt, clk)

	created, err := registry.Create(context.Background(), CreateInput{URL: "https://example.com/"})
	require.NoError(t, err)

	_, err = registry.Redirect(context.Background(), created.ShortCode)
	require.NoError(t, err)

	require.NoError(t, registry.Delete(context.Background(), created.ShortCode))

	_, ok, err := cnt.Stats(context.Background(), created.ShortCode)
	require.NoError(t, err)
	assert.False(t, ok, "deleting a record must clear its counter cell")
}

func TestRegistry_BulkDeleteByAge(t *testing.T) {
	registry, store, _ := newTestRegistry(nil)
	now := testBase.UnixMilli()

	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/a",
		ShortCode:   "aaa111",
		CreatedAt:   now - 130*dayMillis,
	})
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/b",
		ShortCode:   "bbb222",
		CreatedAt:   now - 140*dayMillis,
		Locked:      true,
	})
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/c",
		ShortCode:   "ccc333",
		CreatedAt:   now - 5*dayMillis,
	})

	result, err := registry.BulkDelete(context.Background(), nil, 120)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.SkippedLocked)
	assert.Equal(t, 0, result.NotFound)

	_, err = store.Get(context.Background(), "aaa111")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
	_, err = store.Get(context.Background(), "bbb222")
	assert.NoError(t, err)
	_, err = store.Get(context.Background(), "ccc333")
	assert.NoError(t, err)
}

func TestRegistry_BulkDeleteDefaultThreshold(t *testing.T) {
	registry, store, _ := newTestRegistry(nil)
	now := testBase.UnixMilli()

	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/a",
		ShortCode:   "aaa111",
		CreatedAt:   now - 130*dayMillis,
	})
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/c",
		ShortCode:   "ccc333",
		CreatedAt:   now - 5*dayMillis,
	})

	result, err := registry.BulkDelete(context.Background(), nil, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 0, result.SkippedLocked)
}

func TestRegistry_BulkDeleteCodes(t *testing.T) {
	registry, store, _ := newTestRegistry(nil)
	now := testBase.UnixMilli()

	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/x",
		ShortCode:   "xxx111",
		CreatedAt:   now,
	})
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/y",
		ShortCode:   "yyy222",
		CreatedAt:   now,
		Locked:      true,
	})

	// Duplicates are collapsed before processing.
	result, err := registry.BulkDelete(context.Background(), []string{"xxx111", "xxx111", "yyy222", "zzz999"}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.SkippedLocked)
	assert.Equal(t, 1, result.NotFound)
}

func TestRegistry_List(t *testing.T) {
	registry, store, _ := newTestRegistry(nil)
	now := testBase.UnixMilli()

	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/a",
		ShortCode:   "aaa111",
		CreatedAt:   now - 3000,
	})
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/b",
		ShortCode:   "bbb222",
		CreatedAt:   now - 1000,
	})
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/c",
		ShortCode:   "ccc333",
		CreatedAt:   now - 2000,
	})

	page, err := registry.List(context.Background(), 10, "")
	require.NoError(t, err)

	require.Len(t, page.Records, 3)
	assert.Equal(t, "bbb222", page.Records[0].ShortCode)
	assert.Equal(t, "ccc333", page.Records[1].ShortCode)
	assert.Equal(t, "aaa111", page.Records[2].ShortCode)
	assert.True(t, page.Complete)
	assert.Empty(t, page.Cursor)
}

func TestRegistry_ListSkipsExpired(t *testing.T) {
	registry, store, _ := newTestRegistry(nil)
	now := testBase.UnixMilli()

	expiresAt := now - 1
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/dead",
		ShortCode:   "ddd444",
		CreatedAt:   now - 100000,
		ExpiresAt:   &expiresAt,
	})
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/live",
		ShortCode:   "eee555",
		CreatedAt:   now,
	})

	page, err := registry.List(context.Background(), 10, "")
	require.NoError(t, err)

	require.Len(t, page.Records, 1)
	assert.Equal(t, "eee555", page.Records[0].ShortCode)

	// Listing filters expired records but never purges them.
	_, err = store.Get(context.Background(), "ddd444")
	assert.NoError(t, err)
}

func TestRegistry_ListPaginates(t *testing.T) {
	registry, store, _ := newTestRegistry(nil)
	now := testBase.UnixMilli()

	codes := []string{"aaa111", "bbb222", "ccc333", "ddd444", "eee555"}
	for i, code := range codes {
		seedRecord(t, store, &models.URLRecord{
			OriginalURL: "https://example.com/",
			ShortCode:   code,
			CreatedAt:   now - int64(i)*1000,
		})
	}

	collected := make(map[string]struct{})
	cursor := ""
	for {
		page, err := registry.List(context.Background(), 2, cursor)
		require.NoError(t, err)

		for _, rec := range page.Records {
			collected[rec.ShortCode] = struct{}{}
		}
		if page.Complete {
			break
		}
		require.NotEmpty(t, page.Cursor)
		cursor = page.Cursor
	}

	assert.Len(t, collected, len(codes))
}

func TestRegistry_SearchMissingQuery(t *testing.T) {
	registry, _, _ := newTestRegistry(nil)

	for _, q := range []string{"", "   "} {
		_, err := registry.Search(context.Background(), q)
		assert.ErrorIs(t, err, ErrMissingQuery)
	}
}

func TestRegistry_Search(t *testing.T) {
	registry, store, _ := newTestRegistry(nil)
	now := testBase.UnixMilli()

	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://github.com/example",
		ShortCode:   "aaa111",
		Description: "My GitHub Profile",
		CreatedAt:   now - 2000,
	})
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/blog",
		ShortCode:   "bbb222",
		Description: "personal blog",
		CreatedAt:   now - 1000,
	})

	expiresAt := now - 1
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://github.com/old",
		ShortCode:   "ccc333",
		Description: "old github mirror",
		CreatedAt:   now - 100000,
		ExpiresAt:   &expiresAt,
	})

	result, err := registry.Search(context.Background(), "github")
	require.NoError(t, err)

	assert.Equal(t, "github", result.Query)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "aaa111", result.Records[0].ShortCode)
	assert.False(t, result.ScanLimitHit)
}

func TestRegistry_SearchSortsNewestFirst(t *testing.T) {
	registry, store, _ := newTestRegistry(nil)
	now := testBase.UnixMilli()

	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/1",
		ShortCode:   "aaa111",
		Description: "team docs",
		CreatedAt:   now - 5000,
	})
	seedRecord(t, store, &models.URLRecord{
		OriginalURL: "https://example.com/2",
		ShortCode:   "bbb222",
		Description: "Team Docs v2",
		CreatedAt:   now - 1000,
	})

	result, err := registry.Search(context.Background(), "TEAM DOCS")
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.Equal(t, "bbb222", result.Records[0].ShortCode)
	assert.Equal(t, "aaa111", result.Records[1].ShortCode)
	assert.Equal(t, 2, result.Total)
}

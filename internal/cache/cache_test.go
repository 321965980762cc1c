package cache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DeafMist/manga-pulse/internal/cache"
	"github.com/DeafMist/manga-pulse/internal/kvstore"
	"github.com/DeafMist/manga-pulse/internal/models"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newCache(t *testing.T) (*cache.Cache, *kvstore.Store, *clock) {
	t.Helper()
	store, err := kvstore.Open(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return cache.New(store, time.Hour, nil, cache.WithClock(clk.now)), store, clk
}

func sampleRecords() []models.NewsRecord {
	return []models.NewsRecord{
		{ID: "news-1-0", Title: "One Piece chapitre 1120", Summary: "s", Tags: []string{"Shonen"}, Date: "Il y a 2h",
			Sources: []models.Source{{Title: "Source Directe", URI: "https://manga-news.com/a"}}},
		{ID: "news-1-1", Title: "Berserk reprend", Summary: "s", Tags: []string{"Seinen"}, Date: "Hier",
			Sources: []models.Source{{Title: "X / Twitter", URI: "https://x.com/post/1"}}, ImageURL: "https://img/1.png"},
	}
}

func TestSetThenGet(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newCache(t)

	_, ok := c.Get(ctx, "Shonen Jump & Co")
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "Shonen Jump & Co", sampleRecords()))

	got, ok := c.Get(ctx, "Shonen Jump & Co")
	require.True(t, ok)
	require.Equal(t, sampleRecords(), got)
}

func TestEntryExpiresAtTTL(t *testing.T) {
	ctx := context.Background()
	c, _, clk := newCache(t)

	require.NoError(t, c.Set(ctx, "À la une", sampleRecords()))

	clk.advance(59 * time.Minute)
	_, ok := c.Get(ctx, "À la une")
	require.True(t, ok)

	clk.advance(time.Minute)
	_, ok = c.Get(ctx, "À la une")
	require.False(t, ok)
}

func TestExpiredEntryIsNotPurged(t *testing.T) {
	ctx := context.Background()
	c, store, clk := newCache(t)

	require.NoError(t, c.Set(ctx, "Seinen / Adulte", sampleRecords()))
	clk.advance(2 * time.Hour)

	_, ok := c.Get(ctx, "Seinen / Adulte")
	require.False(t, ok)

	_, present, err := store.Get(ctx, cache.Key("Seinen / Adulte"))
	require.NoError(t, err)
	require.True(t, present)

	require.NoError(t, c.Set(ctx, "Seinen / Adulte", sampleRecords()[:1]))
	got, ok := c.Get(ctx, "Seinen / Adulte")
	require.True(t, ok)
	require.Len(t, got, 1)
}

func TestStoredFormat(t *testing.T) {
	ctx := context.Background()
	c, store, clk := newCache(t)

	require.NoError(t, c.Set(ctx, "Naruto", sampleRecords()[:1]))

	var entry models.CacheEntry
	ok, err := store.GetJSON(ctx, "cache_Naruto", &entry)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, clk.t.UnixMilli(), entry.Timestamp)
	require.Len(t, entry.Data, 1)
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newCache(t)

	require.NoError(t, store.Set(ctx, cache.Key("Naruto"), "not json"))
	_, ok := c.Get(ctx, "Naruto")
	require.False(t, ok)
}

func TestClearOnlyTouchesCacheEntries(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newCache(t)

	require.NoError(t, c.Set(ctx, "A", sampleRecords()))
	require.NoError(t, c.Set(ctx, "B", sampleRecords()))
	require.NoError(t, store.Set(ctx, "saved", "[]"))
	require.NoError(t, store.Set(ctx, "blacklist", `["x"]`))

	require.NoError(t, c.Clear(ctx))

	_, ok := c.Get(ctx, "A")
	require.False(t, ok)
	_, ok = c.Get(ctx, "B")
	require.False(t, ok)

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"saved", "blacklist"}, keys)
}

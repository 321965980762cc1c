// Package cache keeps fetched news per topic in the local store for a limited time.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeafMist/manga-pulse/internal/logger"
	"github.com/DeafMist/manga-pulse/internal/models"
)

// KeyPrefix namespaces cache entries inside the local store.
const KeyPrefix = "cache_"

// DefaultTTL is how long a cached topic stays valid.
const DefaultTTL = time.Hour

// Store is the subset of the local key-value store the cache needs.
type Store interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Cache is a time-boxed cache of news lists keyed by topic. Expiry is evaluated lazily on
// read; stale entries stay in the store until the next Set overwrites them.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   *slog.Logger
}

// Option customises a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache over store. A non-positive ttl falls back to DefaultTTL.
func New(store Store, ttl time.Duration, log *slog.Logger, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{store: store, ttl: ttl, now: time.Now, log: logger.OrDiscard(log)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the store key for topic. The topic string itself is the cache key.
func Key(topic string) string {
	return KeyPrefix + topic
}

// Get returns the cached records for topic. It reports false when nothing is cached,
// when the entry is older than the ttl, or when the entry cannot be read.
func (c *Cache) Get(ctx context.Context, topic string) ([]models.NewsRecord, bool) {
	var entry models.CacheEntry
	ok, err := c.store.GetJSON(ctx, Key(topic), &entry)
	if err != nil {
		c.log.Warn("read cache entry", slog.String("topic", topic), slog.Any("err", err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	age := c.now().Sub(time.UnixMilli(entry.Timestamp))
	if age >= c.ttl {
		c.log.Debug("cache entry expired", slog.String("topic", topic), slog.Duration("age", age))
		return nil, false
	}
	return entry.Data, true
}

// Set stores records for topic stamped with the current time.
func (c *Cache) Set(ctx context.Context, topic string, records []models.NewsRecord) error {
	entry := models.CacheEntry{Timestamp: c.now().UnixMilli(), Data: records}
	if err := c.store.SetJSON(ctx, Key(topic), entry); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Clear drops every cache entry. Favorites and the blacklist are left alone.
func (c *Cache) Clear(ctx context.Context) error {
	removed, err := c.store.DeletePrefix(ctx, KeyPrefix)
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	c.log.Info("cache cleared", slog.Int64("removed", removed))
	return nil
}

// Package dedupe remembers recently archived news so repeated fetches of the same story are
// indexed once.
package dedupe

import (
	"sync"
	"time"
)

type mark struct {
	key string
	at  time.Time
}

// Cache is a bounded set of content hashes that forgets entries after a ttl.
type Cache struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	queue    []mark
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		seen:     make(map[string]time.Time, capacity),
		queue:    make([]mark, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// IsSeen reports whether key was recorded inside the ttl window without recording it.
func (c *Cache) IsSeen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fresh(key, c.now())
}

// MarkSeen records key.
func (c *Cache) MarkSeen(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(key, c.now())
}

// Len returns the number of tracked keys, including ones that expired but were not yet evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) fresh(key string, now time.Time) bool {
	at, ok := c.seen[key]
	return ok && now.Sub(at) <= c.ttl
}

func (c *Cache) record(key string, now time.Time) {
	c.seen[key] = now
	c.queue = append(c.queue, mark{key: key, at: now})

	cutoff := now.Add(-c.ttl)
	for len(c.queue) > 0 && (len(c.seen) > c.capacity || c.queue[0].at.Before(cutoff)) {
		oldest := c.queue[0]
		c.queue = c.queue[1:]
		// a later MarkSeen for the same key leaves a newer timestamp behind; keep it
		if at, ok := c.seen[oldest.key]; ok && at.Equal(oldest.at) {
			delete(c.seen, oldest.key)
		}
	}
}

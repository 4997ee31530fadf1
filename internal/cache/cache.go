// Package cache provides a small TTL cache used in front of expensive
// aggregate queries and schema discovery. Invalidation is always an explicit
// method call by the owner of the cached data; a miss simply recomputes.
package cache

import (
	"sync"
	"time"
)

// entry holds one cached value with its expiry.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// TTL is a thread-safe cache whose entries expire after a fixed duration.
// Readers never block writers beyond map-lock granularity; expired entries
// are dropped lazily on read.
type TTL[V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]entry[V]

	// now is swappable for tests.
	now func() time.Time
}

// NewTTL creates a TTL cache with the given entry lifetime.
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		ttl:   ttl,
		items: make(map[string]entry[V]),
		now:   time.Now,
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock; another writer may have refreshed it.
		if cur, still := c.items[key]; still && cur.expired(c.now()) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with a fresh expiry.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate removes one key.
func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// InvalidateAll removes every entry.
func (c *TTL[V]) InvalidateAll() {
	c.mu.Lock()
	c.items = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// SetClock overrides the cache's time source. Tests only.
func (c *TTL[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

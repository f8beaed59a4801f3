// Package lookupcache provides a bounded, TTL-evicting in-process cache for
// short-lived units of work such as a single registry sync. It is an
// optimization only: callers must always be able to fall back to the store.
package lookupcache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize and DefaultTTL are used when New receives non-positive values.
const (
	DefaultSize = 512
	DefaultTTL  = 5 * time.Minute
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a string-keyed LRU with per-entry expiry. Expired entries are
// dropped lazily on read; no background goroutine is started. It is safe for
// concurrent use.
type Cache[V any] struct {
	lru *lru.Cache[string, entry[V]]
	ttl time.Duration
	now func() time.Time
}

// New creates a cache holding at most size entries, each for at most ttl.
func New[V any](size int, ttl time.Duration) *Cache[V] {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	// lru.New only fails for a non-positive size.
	l, _ := lru.New[string, entry[V]](size)
	return &Cache[V]{lru: l, ttl: ttl, now: time.Now}
}

// Get returns the value for key. Expired entries are misses.
func (c *Cache[V]) Get(key string) (V, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when full.
func (c *Cache[V]) Set(key string, value V) {
	c.lru.Add(key, entry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Delete removes a single entry.
func (c *Cache[V]) Delete(key string) {
	c.lru.Remove(key)
}

// Package cache provides a small in-memory TTL cache with an injectable clock.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TTL is an in-memory cache with TTL-based expiration. Entries are
// best-effort optimizations, never correctness-critical: concurrent
// populations race with last-writer-wins semantics, which is safe
// because population is idempotent for a given key.
type TTL[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[V]
	ttl     time.Duration
	clock   clockwork.Clock
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTL creates a cache whose entries expire ttl after Set.
func NewTTL[K comparable, V any](ttl time.Duration, clock clockwork.Clock) *TTL[K, V] {
	return &TTL[K, V]{
		entries: make(map[K]*entry[V]),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get retrieves a cached value if present and not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	// Expired entries are treated as misses. They are not deleted here
	// (read lock only); eviction happens periodically.
	if c.clock.Now().After(e.expiresAt) {
		return zero, false
	}

	return e.value, true
}

// Set stores a value with current timestamp + TTL.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry[V]{
		value:     value,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Invalidate explicitly removes a key from the cache.
func (c *TTL[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Size returns the current number of entries (including expired).
func (c *TTL[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// EvictExpired removes all expired entries and returns the count evicted.
// Prevents unbounded growth over time.
func (c *TTL[K, V]) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0

	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}

	return evicted
}

// StartEvictionTimer starts a background goroutine that periodically
// evicts expired entries. Returns a stop function to clean it up.
func (c *TTL[K, V]) StartEvictionTimer(interval time.Duration) func() {
	stop := make(chan struct{})
	ticker := c.clock.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				c.EvictExpired()
			case <-stop:
				return
			}
		}
	}()

	return func() { close(stop) }
}

package cache

import (
	"sync"
	"time"
)

// ttlEntry wraps a value with its expiry.
type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e ttlEntry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// TTL is a thread-safe cache whose entries expire after a fixed duration.
// Expired entries are dropped lazily on access and by Purge. Used for fetched
// integration field schemas, which are re-fetched on demand rather than
// diffed.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]ttlEntry[V]
	ttl     time.Duration
}

// NewTTL creates a TTL cache. A non-positive ttl defaults to five minutes.
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TTL[V]{
		entries: make(map[string]ttlEntry[V]),
		ttl:     ttl,
	}
}

// Get implements Cache. Expired entries read as absent.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.expired(time.Now()) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set implements Cache.
func (c *TTL[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.entries[key]
	c.entries[key] = ttlEntry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
	return !existed, nil
}

// Delete implements Cache.
func (c *TTL[V]) Delete(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.entries[key]
	delete(c.entries, key)
	return existed, nil
}

// Clear implements Cache.
func (c *TTL[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]ttlEntry[V])
	return nil
}

// Size implements Cache. Includes entries that have expired but not yet been
// purged.
func (c *TTL[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Purge removes all expired entries and returns how many were dropped.
func (c *TTL[V]) Purge() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

// Package cache provides small, thread-safe cache implementations used by
// the delivery pipeline: a Simple cache scoped to one pipeline invocation
// (replacing ambient per-request statics) and a TTL cache for fetched
// integration field schemas.
package cache

import (
	"sync"

	"github.com/extreme-creations/formie/errors"
)

// Cache is the interface shared by the cache implementations, parameterized
// by value type V for type safety.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the zero value and false when absent.
	Get(key string) (V, bool)

	// Set stores a value. Returns true if a new entry was created, false if updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of entries.
	Size() int
}

// Simple is a plain thread-safe cache with no eviction policy. Its intended
// lifecycle is one pipeline invocation: create it with the PipelineContext,
// drop it when the attempt finishes.
type Simple[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewSimple creates an empty Simple cache.
func NewSimple[V any]() *Simple[V] {
	return &Simple[V]{entries: make(map[string]V)}
}

// Get implements Cache.
func (c *Simple[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[key]
	return v, ok
}

// Set implements Cache.
func (c *Simple[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.entries[key]
	c.entries[key] = value
	return !existed, nil
}

// Delete implements Cache.
func (c *Simple[V]) Delete(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.entries[key]
	delete(c.entries, key)
	return existed, nil
}

// Clear implements Cache.
func (c *Simple[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]V)
	return nil
}

// Size implements Cache.
func (c *Simple[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// GetOrCompute returns the cached value for key, computing and storing it on
// a miss. The compute function runs outside the lock; concurrent callers may
// compute twice but only one result is kept.
func (c *Simple[V]) GetOrCompute(key string, compute func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	if _, err := c.Set(key, v); err != nil {
		var zero V
		return zero, err
	}

	return v, nil
}

// validateKey validates a cache key for basic requirements.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidFieldValue, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}

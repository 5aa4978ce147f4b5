package integration

import (
	"context"
	"time"

	"github.com/extreme-creations/formie/errors"
	"github.com/extreme-creations/formie/pkg/cache"
)

// FetchFields retrieves the external field schema for one integration.
// Fetches go over the network, so results are cached; the schema is treated
// as immutable between refreshes.
type FetchFields func(ctx context.Context, handle string) ([]Field, error)

// SchemaCache caches fetched integration field schemas with a TTL so mapping
// UIs and the resolver don't refetch per lookup.
type SchemaCache struct {
	fetch FetchFields
	cache *cache.TTL[[]Field]
}

// NewSchemaCache creates a schema cache. A zero ttl uses the cache default.
func NewSchemaCache(fetch FetchFields, ttl time.Duration) *SchemaCache {
	return &SchemaCache{
		fetch: fetch,
		cache: cache.NewTTL[[]Field](ttl),
	}
}

// Fields returns the field schema for handle, fetching on a cache miss.
// Fetch failures are not cached: the next call retries.
func (s *SchemaCache) Fields(ctx context.Context, handle string) ([]Field, error) {
	if fields, ok := s.cache.Get(handle); ok {
		return fields, nil
	}

	fields, err := s.fetch(ctx, handle)
	if err != nil {
		return nil, errors.WrapTransient(err, "SchemaCache", "Fields", handle)
	}

	if _, err := s.cache.Set(handle, fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Invalidate drops the cached schema for handle, forcing a refetch.
func (s *SchemaCache) Invalidate(handle string) {
	_, _ = s.cache.Delete(handle)
}

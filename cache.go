package rowlock

import (
	"context"
	"strconv"
	"time"
)

// Cache is the interface for caching query results. Implement it with
// your preferred store (Redis, Memcached, in-memory) and pass it to the
// reference engine to enable read-through caching.
type Cache interface {
	// Get retrieves a value. Returns nil, nil if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL. A zero TTL never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix. Write
	// operations use it to invalidate a resource's cached reads.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values.
	Clear(ctx context.Context) error
}

// CacheKey identifies a cached read result.
type CacheKey struct {
	Schema     string
	Table      string
	Statement  string
	ArgsDigest string
}

// Prefix returns the invalidation prefix shared by all cached reads of
// the key's table.
func (k CacheKey) Prefix() string {
	return k.Schema + ":" + k.Table + ":"
}

// String returns the full cache key.
func (k CacheKey) String() string {
	return k.Prefix() + strconv.Itoa(len(k.Statement)) + ":" + k.Statement + ":" + k.ArgsDigest
}

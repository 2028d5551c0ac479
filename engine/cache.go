package engine

import (
	"context"
	"encoding/hex"
	"hash/fnv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/rowlock/rowlock"
)

// resultCache is the read-through layer over a rowlock.Cache store.
// Concurrent misses for the same key collapse into one load; codec
// failures degrade to a plain database read.
type resultCache struct {
	store rowlock.Cache
	ttl   time.Duration
	group singleflight.Group
}

func newResultCache(store rowlock.Cache, ttl time.Duration) *resultCache {
	return &resultCache{store: store, ttl: ttl}
}

func (c *resultCache) fetch(ctx context.Context, key rowlock.CacheKey, load func() ([]rowlock.Row, error)) ([]rowlock.Row, error) {
	k := key.String()
	v, err, _ := c.group.Do(k, func() (any, error) {
		if raw, err := c.store.Get(ctx, k); err == nil && raw != nil {
			var rows []rowlock.Row
			if err := msgpack.Unmarshal(raw, &rows); err == nil {
				return rows, nil
			}
			// Undecodable entry, drop it and fall through to the load.
			_ = c.store.Delete(ctx, k)
		}
		rows, err := load()
		if err != nil {
			return nil, err
		}
		if raw, err := msgpack.Marshal(rows); err == nil {
			_ = c.store.Set(ctx, k, raw, c.ttl)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]rowlock.Row), nil
}

// invalidate drops every cached read of the given table.
func (c *resultCache) invalidate(ctx context.Context, schema, table string) {
	key := rowlock.CacheKey{Schema: schema, Table: table}
	_ = c.store.DeletePrefix(ctx, key.Prefix())
}

// digest fingerprints the bound arguments of a statement for use in
// cache keys.
func digest(args []any) string {
	if len(args) == 0 {
		return "-"
	}
	raw, err := msgpack.Marshal(args)
	if err != nil {
		return "!"
	}
	h := fnv.New64a()
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}

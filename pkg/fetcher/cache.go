package fetcher

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/sanonone/kektorgraph/pkg/core/types"
)

// CacheOptions configures the neighbor cache.
type CacheOptions struct {
	MaxItems int64
	TTL      time.Duration
}

// cachedSource memoizes Neighbors results. Writes made to the wrapped
// backend become visible once the entry expires.
type cachedSource struct {
	Source
	cache *ristretto.Cache[string, []types.Edge]
	ttl   time.Duration
}

// Cached wraps src with a bounded TTL cache keyed by (vertex, label, direction).
// Errors are never cached.
func Cached(src Source, opts CacheOptions) (Source, error) {
	if opts.MaxItems <= 0 {
		return src, nil
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []types.Edge]{
		NumCounters: opts.MaxItems * 10,
		MaxCost:     opts.MaxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &cachedSource{Source: src, cache: cache, ttl: opts.TTL}, nil
}

func (c *cachedSource) Neighbors(ctx context.Context, v types.VertexID, label string, dir types.Direction) ([]types.Edge, error) {
	key := string(v.AppendKey(nil)) + string(dir) + "\x00" + label
	if edges, ok := c.cache.Get(key); ok {
		return edges, nil
	}
	edges, err := c.Source.Neighbors(ctx, v, label, dir)
	if err != nil {
		return nil, err
	}
	c.cache.SetWithTTL(key, edges, 1, c.ttl)
	return edges, nil
}

func (c *cachedSource) Close() error {
	c.cache.Close()
	return c.Source.Close()
}

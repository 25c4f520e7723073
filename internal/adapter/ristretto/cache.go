// Package ristretto implements the cache port as an in-process L1 cache for
// graph search responses.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Strob0t/memorybridge/internal/port/cache"
)

var _ cache.Cache = (*Cache)(nil)

// avgEntryBytes is the expected size of a cached search response, used to
// size the admission counters.
const avgEntryBytes = 2048

// Cache is a size-bounded ristretto cache. Entries cost their byte length.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a cache holding at most maxSizeMB megabytes of values.
func New(maxSizeMB int) (*Cache, error) {
	maxCost := int64(maxSizeMB) << 20
	if maxCost <= 0 {
		maxCost = 1 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCost/avgEntryBytes*10, 1000),
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	return val, found, nil
}

// Set stores value for ttl. Sets are buffered; call Wait to make them
// visible immediately. ristretto may reject a set under memory pressure,
// which is not an error for a cache.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Wait blocks until buffered sets are applied.
func (c *Cache) Wait() { c.c.Wait() }

// Close releases the cache.
func (c *Cache) Close() { c.c.Close() }

// Package tiered implements a two-level (L1 + L2) cache adapter.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/memorybridge/internal/port/cache"
)

var _ cache.Cache = (*Cache)(nil)

// Cache combines an in-process L1 with an optional shared L2.
// Get checks L1 first, then L2, backfilling L1 on an L2 hit. Set and Delete
// write both levels. L2 is best effort: its errors are logged and the
// cache carries on with L1 alone.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache // nil = L1 only
	l1Expire time.Duration
}

// New creates a tiered cache. l2 may be nil. l1Expire bounds how long an
// L2 backfill lives in L1.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found || c.l2 == nil {
		return val, found, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "l2 cache get failed", "error", err)
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}
	_ = c.l1.Set(ctx, key, val, c.l1Expire)
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if c.l2 != nil {
		if err := c.l2.Set(ctx, key, value, ttl); err != nil {
			slog.WarnContext(ctx, "l2 cache set failed", "error", err)
		}
	}
	return nil
}

// Delete removes key from both levels. Unlike Get and Set it reports L2
// errors, since a stale L2 entry would be served again.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	if c.l2 == nil {
		return nil
	}
	return c.l2.Delete(ctx, key)
}

package gatewaycache

import (
	"time"

	"github.com/Strob0t/memorybridge/internal/port/cache"
)

// NewSearchesWithClock is NewSearches reading time from now.
func NewSearchesWithClock(c cache.Cache, ttl time.Duration, now func() time.Time) *Searches {
	return newSearches(c, ttl, now)
}

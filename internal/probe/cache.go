package probe

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jpalmerr/hostmap/internal/metrics"
)

// CachedLocator remembers successful lookups for a bounded time.
//
// Sampling is with replacement, so addresses recur; a cached answer saves a
// request against the service's quota. Failures are never cached.
type CachedLocator struct {
	next    Locator
	cache   *expirable.LRU[string, Location]
	metrics *metrics.Metrics
}

// NewCachedLocator wraps next with an LRU of size entries that expire after ttl.
func NewCachedLocator(next Locator, size int, ttl time.Duration, m *metrics.Metrics) *CachedLocator {
	return &CachedLocator{
		next:    next,
		cache:   expirable.NewLRU[string, Location](size, nil, ttl),
		metrics: m,
	}
}

// Locate returns a cached location for addr or asks the wrapped locator.
func (c *CachedLocator) Locate(ctx context.Context, addr string) (*Location, error) {
	if loc, ok := c.cache.Get(addr); ok {
		c.metrics.LookupCacheHit()
		return &loc, nil
	}

	loc, err := c.next.Locate(ctx, addr)
	if err != nil {
		return nil, err
	}
	c.cache.Add(addr, *loc)
	return loc, nil
}

// Len returns the number of cached entries.
func (c *CachedLocator) Len() int {
	return c.cache.Len()
}

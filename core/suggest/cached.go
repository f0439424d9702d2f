package suggest

import (
	"context"
	"time"

	"github.com/FocuswithJustin/memmap/core/memmap"
	"github.com/FocuswithJustin/memmap/internal/cache"
)

// DefaultCacheTTL is how long a suggestion is reused for the same region.
const DefaultCacheTTL = time.Hour

// purgeThreshold is the entry count above which expired entries are dropped.
const purgeThreshold = 1024

type cacheKey struct {
	name string
	typ  memmap.Type
}

// Cached reuses earlier suggestions for the same name and type.
// Placeholder answers are not cached, so a failed call is retried next time.
type Cached struct {
	next  Suggester
	cache *cache.TTLCache[cacheKey, string]
}

// NewCached wraps next with a cache whose entries live for ttl.
func NewCached(next Suggester, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{next: next, cache: cache.New[cacheKey, string](ttl)}
}

// Suggest implements Suggester.
func (c *Cached) Suggest(ctx context.Context, name string, t memmap.Type) string {
	key := cacheKey{name: name, typ: t}
	if s, ok := c.cache.Get(key); ok {
		return s
	}
	s := c.next.Suggest(ctx, name, t)
	if !IsPlaceholder(s) {
		c.cache.Set(key, s)
		if c.cache.Len() > purgeThreshold {
			c.cache.Purge()
		}
	}
	return s
}

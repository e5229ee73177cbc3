package pipeline

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/helixir/evidence-aggregation-service/internal/domain"
)

const (
	// DefaultCacheSize bounds the number of cached results.
	DefaultCacheSize = 256

	// DefaultCacheTTL is how long a cached result stays valid.
	DefaultCacheTTL = 15 * time.Minute
)

// resultCache memoizes whole pipeline runs for repeated identical queries.
// It sits in front of the pipeline as a pure key-to-Result lookup with a
// time-based expiry; correctness never depends on it.
type resultCache struct {
	lru *expirable.LRU[string, domain.Result]
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &resultCache{lru: expirable.NewLRU[string, domain.Result](size, nil, ttl)}
}

func cacheKey(rawQuery string, targetCount int) string {
	return fmt.Sprintf("%d|%s", targetCount, rawQuery)
}

func (c *resultCache) get(key string) (domain.Result, bool) {
	return c.lru.Get(key)
}

func (c *resultCache) put(key string, res domain.Result) {
	c.lru.Add(key, res)
}

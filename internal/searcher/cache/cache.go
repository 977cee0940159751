// Package cache is an optional Redis read-through cache for search results.
// Concurrent misses on the same key are collapsed with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/redis"
)

const keyPrefix = "search:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache storing entries in backend for ttl. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get looks up cached results. Backend failures are logged and reported as a
// miss.
func (c *QueryCache) Get(ctx context.Context, query string, limit int, generation uint64) ([]ranker.Result, bool) {
	key := BuildKey(query, limit, generation)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	var results []ranker.Result
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "query", query, "key", key)
	return results, true
}

func (c *QueryCache) Set(ctx context.Context, query string, limit int, generation uint64, results []ranker.Result) {
	key := BuildKey(query, limit, generation)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached results, or runs compute once per key across
// concurrent callers and caches what it returns. The bool reports a cache
// hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	generation uint64,
	compute func() ([]ranker.Result, error),
) ([]ranker.Result, bool, error) {
	if results, ok := c.Get(ctx, query, limit, generation); ok {
		return results, true, nil
	}
	key := BuildKey(query, limit, generation)
	val, err, _ := c.group.Do(key, func() (any, error) {
		results, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, limit, generation, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]ranker.Result), false, nil
}

// Invalidate drops every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Debug("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives the cache key from the query's normalised terms, so
// queries differing only in case, punctuation, stop words or term order share
// an entry. Repeated terms are kept because each occurrence scores.
func BuildKey(query string, limit int, generation uint64) string {
	terms := tokenizer.Tokenize(query)
	sort.Strings(terms)
	raw := fmt.Sprintf("%s|limit=%d|gen=%d", strings.Join(terms, ","), limit, generation)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

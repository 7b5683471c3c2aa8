package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/cortex-x/internal/pkg/model"
)

const (
	queryCachePrefix = "context_query:"
	queryCacheTTL    = 5 * time.Minute
)

// QueryCache memoizes assembled query results in redis, keyed per tenant.
// Every cache failure degrades to a miss; the cache is never on the error
// path of a query.
type QueryCache struct {
	redis *goredis.Client
	ttl   time.Duration
}

// NewQueryCache creates the cache. A nil client disables it.
func NewQueryCache(redis *goredis.Client) *QueryCache {
	return &QueryCache{redis: redis, ttl: queryCacheTTL}
}

// Key derives the cache key from everything that shapes the answer:
// query text, filters, retrieval mode, and block budget.
func (c *QueryCache) Key(tenantID, query string, filters *model.QueryFilters, mode model.RetrievalMode, topK int) string {
	payload, _ := json.Marshal(filters)
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x00%s\x00%s\x00%d", query, payload, mode, topK))
	return queryCachePrefix + tenantID + ":" + hex.EncodeToString(sum[:])[:16]
}

// Get returns the cached result for the key, or nil on miss.
func (c *QueryCache) Get(ctx context.Context, key string) *QueryResult {
	if c == nil || c.redis == nil {
		return nil
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("query cache read failed", "key", key, "error", err.Error())
		}
		return nil
	}
	var result QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("dropping corrupt query cache entry", "key", key, "error", err.Error())
		_ = c.redis.Del(ctx, key).Err()
		return nil
	}
	result.Cached = true
	return &result
}

// Set stores the result under the key.
func (c *QueryCache) Set(ctx context.Context, key string, result *QueryResult) {
	if c == nil || c.redis == nil || result == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("failed to marshal query result for cache", "error", err.Error())
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warnw("query cache write failed", "key", key, "error", err.Error())
	}
}

// Clear removes cached results, for one tenant or for all when tenantID is
// empty. SCAN keeps the sweep incremental on large keyspaces.
func (c *QueryCache) Clear(ctx context.Context, tenantID string) (int64, error) {
	if c == nil || c.redis == nil {
		return 0, nil
	}

	pattern := queryCachePrefix + "*"
	if tenantID != "" {
		pattern = queryCachePrefix + tenantID + ":*"
	}

	var removed int64
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !strings.HasPrefix(key, queryCachePrefix) {
			continue
		}
		if err := c.redis.Del(ctx, key).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, iter.Err()
}

package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
)

// CacheConfig configures the embedding cache.
type CacheConfig struct {
	// Enabled toggles caching.
	Enabled bool
	// TTL is the expiry for cached vectors. Embeddings are stable for a
	// given model and text, so a long TTL is safe.
	TTL time.Duration
	// KeyPrefix namespaces cache keys.
	KeyPrefix string
}

// DefaultCacheConfig returns the default embedding cache configuration.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled:   true,
		TTL:       24 * time.Hour,
		KeyPrefix: "emb:",
	}
}

// CachedProvider wraps a Provider with a Redis read-through cache. Cache
// failures degrade to the underlying provider and never fail a request.
type CachedProvider struct {
	provider Provider
	redis    *goredis.Client
	config   *CacheConfig
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider creates a caching wrapper around the given provider.
func NewCachedProvider(provider Provider, redis *goredis.Client, config *CacheConfig) *CachedProvider {
	if config == nil {
		config = DefaultCacheConfig()
	}
	return &CachedProvider{
		provider: provider,
		redis:    redis,
		config:   config,
	}
}

// cacheKey hashes model and text together so the same text embedded by two
// models never collides.
func (c *CachedProvider) cacheKey(model, text string) string {
	hash := sha256.Sum256([]byte(model + "\x00" + text))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Name returns the underlying provider name with a cache suffix.
func (c *CachedProvider) Name() string {
	return c.provider.Name() + "-cached"
}

// EmbedSingle generates an embedding for a single text, consulting the cache
// first.
func (c *CachedProvider) EmbedSingle(ctx context.Context, model string, text string) ([]float32, error) {
	if !c.config.Enabled || c.redis == nil {
		return c.provider.EmbedSingle(ctx, model, text)
	}

	key := c.cacheKey(model, text)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var embedding []float32
		if err := json.Unmarshal(data, &embedding); err == nil {
			return embedding, nil
		}
		// Corrupt entry, drop it.
		logger.Warnw("dropping corrupt cached embedding", "key", key, "error", err.Error())
		_ = c.redis.Del(ctx, key).Err()
	} else if err != goredis.Nil {
		logger.Warnw("embedding cache read failed, falling back to provider", "error", err.Error())
	}

	embedding, err := c.provider.EmbedSingle(ctx, model, text)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, embedding)
	return embedding, nil
}

// Embed generates embeddings for the given texts, consulting the cache per
// text and batching only the misses to the underlying provider.
func (c *CachedProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if !c.config.Enabled || c.redis == nil {
		return c.provider.Embed(ctx, model, texts)
	}

	embeddings := make([][]float32, len(texts))
	var missIndices []int
	var missTexts []string

	for i, text := range texts {
		key := c.cacheKey(model, text)
		data, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			var embedding []float32
			if err := json.Unmarshal(data, &embedding); err == nil {
				embeddings[i] = embedding
				continue
			}
			_ = c.redis.Del(ctx, key).Err()
		}
		missIndices = append(missIndices, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) > 0 {
		logger.Debugw("embedding cache misses", "model", model, "total", len(texts), "misses", len(missTexts))
		computed, err := c.provider.Embed(ctx, model, missTexts)
		if err != nil {
			return nil, err
		}
		for i, idx := range missIndices {
			embeddings[idx] = computed[i]
			c.store(ctx, c.cacheKey(model, missTexts[i]), computed[i])
		}
	}

	return embeddings, nil
}

func (c *CachedProvider) store(ctx context.Context, key string, embedding []float32) {
	data, err := json.Marshal(embedding)
	if err != nil {
		logger.Warnw("failed to marshal embedding for cache", "error", err.Error())
		return
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to cache embedding", "key", key, "error", err.Error())
	}
}

// ClearCache deletes all cached embeddings under the configured prefix.
func (c *CachedProvider) ClearCache(ctx context.Context) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cached embedding", "key", iter.Val(), "error", err.Error())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return err
	}

	logger.Infow("cleared embedding cache", "deleted", deleted)
	return nil
}

package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisCachePrefix = "discovery:"

// RedisCache is a ResultCache shared across server instances. Entries are
// JSON blobs written with SET EX; Redis handles expiry. Errors are logged and
// treated as misses so the cache can never fail a discovery.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisCache(client *redis.Client, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key CacheKey) (*CacheEntry, bool) {
	data, err := c.client.Get(ctx, redisCachePrefix+key.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("discovery cache read failed", "key", key.String(), "error", err)
		}
		return nil, false
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("discarding corrupt discovery cache entry", "key", key.String(), "error", err)
		return nil, false
	}
	if entry.Result == nil {
		return nil, false
	}
	return &entry, true
}

func (c *RedisCache) Put(ctx context.Context, key CacheKey, entry *CacheEntry, ttl time.Duration) {
	if entry == nil || ttl <= 0 {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("failed to encode discovery cache entry", "key", key.String(), "error", err)
		return
	}
	if err := c.client.Set(ctx, redisCachePrefix+key.String(), data, ttl).Err(); err != nil {
		c.logger.Warn("discovery cache write failed", "key", key.String(), "error", err)
	}
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/gema-feedback-dashboard/internal/models"
	"github.com/noah-isme/gema-feedback-dashboard/internal/observability"
)

// DefaultKeyPrefix namespaces dashboard entries in a shared Redis.
const DefaultKeyPrefix = "dashboard:submissions:"

// RedisCache shares cached collections between dashboard replicas.
type RedisCache struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	generation atomic.Uint64
	group      singleflight.Group
	logger     zerolog.Logger
}

// NewRedisCache builds a Redis backed cache. Empty prefix uses DefaultKeyPrefix
// and a non-positive ttl uses DefaultTTL.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) *RedisCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("component", "redis_cache").Logger(),
	}
}

func (c *RedisCache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) ([]models.SubmissionRecord, bool, error) {
	cacheKey := c.prefix + key

	cached, err := c.client.Get(ctx, cacheKey).Result()
	switch {
	case err == nil:
		var records []models.SubmissionRecord
		if unmarshalErr := json.Unmarshal([]byte(cached), &records); unmarshalErr == nil {
			observability.CacheRequests().WithLabelValues("redis", "hit").Inc()
			return cloneRecords(records), true, nil
		}
		c.logger.Warn().Str("key", cacheKey).Msg("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Msg("failed to read submissions cache")
	}
	observability.CacheRequests().WithLabelValues("redis", "miss").Inc()

	generation := c.generation.Load()
	records, err := shareFetch(ctx, &c.group, key, generation, func(fetchCtx context.Context) ([]models.SubmissionRecord, error) {
		records, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.store(fetchCtx, cacheKey, records, generation)
		return records, nil
	})
	if err != nil {
		return nil, false, err
	}

	return cloneRecords(records), false, nil
}

// store writes records unless the cache was invalidated after the fetch
// began. An invalidation racing the write removes the entry again.
func (c *RedisCache) store(ctx context.Context, cacheKey string, records []models.SubmissionRecord, generation uint64) {
	if c.generation.Load() != generation {
		c.logger.Debug().Str("key", cacheKey).Msg("discarding fetch started before invalidation")
		return
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store submissions cache")
		return
	}
	if c.generation.Load() != generation {
		if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to drop stale submissions cache")
		}
	}
}

func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	c.generation.Add(1)

	var cursor uint64
	dropped := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete cache keys: %w", err)
			}
			dropped += len(keys)
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	c.logger.Debug().Int("entries", dropped).Msg("cache invalidated")
	return nil
}

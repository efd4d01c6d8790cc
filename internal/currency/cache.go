package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/tenant_portal/internal/logging"
)

const cacheKeyPrefix = "fx:rates:"

// redisClient is the subset of *redis.Client the cache needs.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache caches rate tables in Redis in front of another provider. When
// both Redis and the provider fail it serves the last table it saw.
type RedisCache struct {
	client redisClient
	next   Provider
	ttl    time.Duration
	log    *logging.Logger

	mu        sync.RWMutex
	lastKnown map[string]Rates
}

// NewRedisCache wraps next with a Redis cache. A nil client disables Redis
// and leaves only the in-memory last-known fallback.
func NewRedisCache(client redisClient, next Provider, ttl time.Duration, log *logging.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = logging.Default("fx-cache")
	}
	return &RedisCache{
		client:    client,
		next:      next,
		ttl:       ttl,
		log:       log,
		lastKnown: make(map[string]Rates),
	}
}

func (c *RedisCache) Latest(ctx context.Context, base string) (Rates, error) {
	base, err := NormalizeCode(base)
	if err != nil {
		return Rates{}, err
	}
	if rates, ok := c.fromRedis(ctx, base); ok {
		return rates, nil
	}
	rates, err := c.Refresh(ctx, base)
	if err == nil {
		return rates, nil
	}

	c.mu.RLock()
	stale, ok := c.lastKnown[base]
	c.mu.RUnlock()
	if ok {
		c.log.WithContext(ctx).WithError(err).WithField("base", base).Warn("serving stale exchange rates")
		return stale, nil
	}
	return Rates{}, err
}

// Refresh bypasses the cache, fetches from the wrapped provider and stores the result.
func (c *RedisCache) Refresh(ctx context.Context, base string) (Rates, error) {
	rates, err := c.next.Latest(ctx, base)
	if err != nil {
		return Rates{}, err
	}

	c.mu.Lock()
	c.lastKnown[base] = rates
	c.mu.Unlock()

	if c.client != nil {
		payload, err := json.Marshal(rates)
		if err != nil {
			return rates, nil
		}
		if err := c.client.Set(ctx, cacheKeyPrefix+base, payload, c.ttl).Err(); err != nil {
			c.log.WithContext(ctx).WithError(err).WithField("base", base).Warn("cache exchange rates failed")
		}
	}
	return rates, nil
}

func (c *RedisCache) fromRedis(ctx context.Context, base string) (Rates, bool) {
	if c.client == nil {
		return Rates{}, false
	}
	raw, err := c.client.Get(ctx, cacheKeyPrefix+base).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithContext(ctx).WithError(err).WithField("base", base).Warn("read cached exchange rates failed")
		}
		return Rates{}, false
	}
	var rates Rates
	if err := json.Unmarshal(raw, &rates); err != nil {
		c.log.WithContext(ctx).WithError(fmt.Errorf("decode cached rates: %w", err)).Warn("discarding cached exchange rates")
		return Rates{}, false
	}
	return rates, true
}

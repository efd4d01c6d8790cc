package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/tenant_portal/internal/logging"
)

const cacheKeyPrefix = "tenant:site:"

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedDirectory fronts a Directory with Redis. Misses are not cached so a
// newly created tenant is visible immediately. Redis failures fall through
// to the wrapped directory.
type CachedDirectory struct {
	client redisClient
	next   Directory
	ttl    time.Duration
	log    *logging.Logger
}

func NewCachedDirectory(client redisClient, next Directory, ttl time.Duration, log *logging.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logging.Default("tenant-cache")
	}
	return &CachedDirectory{client: client, next: next, ttl: ttl, log: log}
}

func (c *CachedDirectory) Lookup(ctx context.Context, site string) (*Tenant, error) {
	site = NormalizeSite(site)
	key := cacheKeyPrefix + site

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var t Tenant
		if jsonErr := json.Unmarshal(raw, &t); jsonErr == nil {
			return &t, nil
		}
		c.log.WithContext(ctx).WithField("site", site).Warn("discarding undecodable cached tenant")
	case !errors.Is(err, redis.Nil):
		c.log.WithContext(ctx).WithError(err).WithField("site", site).Warn("tenant cache read failed")
	}

	t, err := c.next.Lookup(ctx, site)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(t); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.WithContext(ctx).WithError(err).WithField("site", site).Warn("tenant cache write failed")
		}
	}
	return t, nil
}

// Invalidate drops the cached entry for site.
func (c *CachedDirectory) Invalidate(ctx context.Context, site string) error {
	return c.client.Del(ctx, cacheKeyPrefix+NormalizeSite(site)).Err()
}

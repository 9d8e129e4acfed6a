package monitoring

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// RedisCache is a short-TTL QueryCache backed by Redis, so repeated
// context/metric fetches within one settling period don't re-hit the
// time-series backend. It is purely ambient infrastructure: construction
// fails soft (NewRedisCache never errors) and every method degrades to a
// cache miss on any Redis error.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisCache constructs a cache against the given Redis address (e.g.
// "localhost:6379") with the given TTL for cached query results.
func NewRedisCache(addr string, ttl time.Duration, log zerolog.Logger) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		log:    log,
	}
}

func (c *RedisCache) Get(ctx context.Context, query string) (float64, bool) {
	s, err := c.client.Get(ctx, cacheKey(query)).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug().Err(err).Msg("redis query cache miss (error)")
		}
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, query string, value float64) {
	if err := c.client.Set(ctx, cacheKey(query), strconv.FormatFloat(value, 'g', -1, 64), c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Msg("failed to populate redis query cache")
	}
}

func cacheKey(query string) string {
	return "drone:promql:" + query
}

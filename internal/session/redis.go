package session

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the remote session backend, mirroring the original
// implementation's deadpool_redis pool: Contains issues EXISTS, Set issues
// SET key "" EX ttl. go-redis manages its own connection pool internally,
// playing the role of the original's fixed-size pool.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache connects to redisURL (a standard redis:// connection
// string) and returns a Cache backed by it.
func NewRedisCache(logger *slog.Logger, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{
		client: redis.NewClient(opts),
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Contains implements Cache. Any pool or protocol error is treated as
// "not authenticated" — fail closed, per spec.md §4.6/§7.
func (c *RedisCache) Contains(ctx context.Context, circuitID uint32) bool {
	key := strconv.FormatUint(uint64(circuitID), 10)
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		c.logger.Error("redis EXISTS failed, blocking access for safety", "error", err, "circuit_id", circuitID)
		return false
	}
	return n > 0
}

// Set implements Cache. On error the write is logged and swallowed: the
// client simply gets re-challenged on its next subrequest.
func (c *RedisCache) Set(ctx context.Context, circuitID uint32) {
	key := strconv.FormatUint(uint64(circuitID), 10)
	if err := c.client.Set(ctx, key, "", c.ttl).Err(); err != nil {
		c.logger.Error("redis SET failed", "error", err, "circuit_id", circuitID)
	}
}

// Close implements Cache.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

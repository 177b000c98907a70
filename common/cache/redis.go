package cache

import (
	"context"
	"errors"
	"time"

	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/redis"
)

// RedisCache stores entries in Redis so that every server replica sees the same data
type RedisCache struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCache wraps an existing connection, closing it stays with the owner
func NewRedisCache(client *redis.Client, log *logger.Logger) *RedisCache {
	return &RedisCache{client: client, log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, key, value, ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Delete(ctx, key)
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Increment(ctx, key)
}

// Close is a no-op, the connection belongs to bootstrap
func (c *RedisCache) Close() error {
	return nil
}

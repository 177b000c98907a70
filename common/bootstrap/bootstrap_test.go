package bootstrap

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/duette-app/duette/common/cache"
	"github.com/duette-app/duette/common/config"
	"github.com/duette-app/duette/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{Name: "test", Port: 8080},
		Storage: config.StorageConfig{Backend: "memory"},
		Catalog: config.CatalogConfig{Backend: "memory"},
		Cache:   config.CacheConfig{Enabled: true},
		Queue:   config.QueueConfig{Type: "memory", BufferSize: 10},
	}
}

func TestSetupMemoryComponents(t *testing.T) {
	ctx := context.Background()
	c, err := Setup(ctx, "test", WithCustomConfig(memoryConfig()), WithCustomLogger(logger.Discard()))
	require.NoError(t, err)

	assert.Nil(t, c.DB)
	assert.Nil(t, c.Redis)
	assert.NotNil(t, c.Queue)
	assert.IsType(t, &cache.MemoryCache{}, c.Cache)
	assert.Nil(t, c.Telemetry)
	assert.NoError(t, c.Health(ctx))

	require.NoError(t, c.Shutdown(ctx))
	// cleanups run once
	require.NoError(t, c.Shutdown(ctx))
}

func TestSetupWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Host: mr.Host(), Port: mustPort(t, mr.Port())}

	ctx := context.Background()
	c, err := Setup(ctx, "test", WithCustomConfig(cfg), WithCustomLogger(logger.Discard()), WithoutQueue())
	require.NoError(t, err)
	defer c.Shutdown(ctx)

	assert.NotNil(t, c.Redis)
	assert.Nil(t, c.Queue)
	assert.IsType(t, &cache.RedisCache{}, c.Cache)
	assert.NoError(t, c.Health(ctx))
}

func TestSetupUnknownQueue(t *testing.T) {
	cfg := memoryConfig()
	cfg.Queue.Type = "kafka"

	_, err := Setup(context.Background(), "test", WithCustomConfig(cfg), WithCustomLogger(logger.Discard()))
	assert.ErrorContains(t, err, "unknown queue type")
}

func mustPort(t *testing.T, port string) int {
	n, err := strconv.Atoi(port)
	require.NoError(t, err)
	return n
}

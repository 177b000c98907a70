package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseCache(t *testing.T, c Cache) {
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "videos:1:", []byte(`[]`), time.Minute))
	val, ok, err := c.Get(ctx, "videos:1:")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`[]`), val)

	require.NoError(t, c.Delete(ctx, "videos:1:"))
	_, ok, _ = c.Get(ctx, "videos:1:")
	assert.False(t, ok)

	n, err := c.Incr(ctx, "videos:gen")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = c.Incr(ctx, "videos:gen")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(logger.Discard())
	defer c.Close()

	exerciseCache(t, c)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(logger.Discard())
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "memory", c.Stats()["type"])
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.Connect(context.Background(), mr.Addr(), "", 0, logger.Discard())
	require.NoError(t, err)
	defer client.Close()

	exerciseCache(t, NewRedisCache(client, logger.Discard()))
}

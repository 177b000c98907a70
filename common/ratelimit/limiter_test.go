package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/duette-app/duette/common/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, logger.Discard()), mr
}

func TestUserLimit(t *testing.T) {
	rl, _ := newLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := rl.CheckUserLimit(ctx, "alice", 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.EqualValues(t, i, res.CurrentCount)
	}

	res, err := rl.CheckUserLimit(ctx, "alice", 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.EqualValues(t, 3, res.Limit)
	assert.Positive(t, res.RetryAfterSeconds)

	// other users keep their own counter
	res, err = rl.CheckUserLimit(ctx, "bob", 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestWindowExpires(t *testing.T) {
	rl, mr := newLimiter(t)
	ctx := context.Background()

	res, err := rl.CheckGlobalLimit(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = rl.CheckGlobalLimit(ctx, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	mr.FastForward(WindowSeconds * time.Second)

	res, err = rl.CheckGlobalLimit(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestResetLimit(t *testing.T) {
	rl, _ := newLimiter(t)
	ctx := context.Background()

	_, err := rl.CheckUserLimit(ctx, "carol", 10)
	require.NoError(t, err)

	count, err := rl.GetCurrentCount(ctx, UserKey("carol"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.NoError(t, rl.ResetLimit(ctx, UserKey("carol")))
	count, err = rl.GetCurrentCount(ctx, UserKey("carol"))
	require.NoError(t, err)
	assert.Zero(t, count)
}

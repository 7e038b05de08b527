package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiterAllow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	limiter := NewRedisLimiter(client)

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "client-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d within the limit", i+1)
	}

	allowed, err := limiter.Allow(ctx, "client-1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "fourth request in the minute is rejected")

	// Another key has its own window.
	allowed, err = limiter.Allow(ctx, "client-2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	// Reset clears the window.
	require.NoError(t, limiter.Reset(ctx, "client-1"))
	allowed, err = limiter.Allow(ctx, "client-1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiterRemaining(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	limiter := NewRedisLimiter(client)

	_, err := limiter.Allow(ctx, "client-1", 5, time.Minute)
	require.NoError(t, err)
	_, err = limiter.Allow(ctx, "client-1", 5, time.Minute)
	require.NoError(t, err)

	remaining, err := limiter.Remaining(ctx, "client-1", 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), remaining)
}

func TestRedisLimiterZeroLimitDisablesCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLimiter(client)

	allowed, err := limiter.Allow(context.Background(), "client-1", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

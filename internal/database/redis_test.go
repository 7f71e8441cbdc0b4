package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiterWithoutClientAllows(t *testing.T) {
	var nilLimiter *RedisLimiter
	ok, err := nilLimiter.Allow(context.Background(), "messages:u1")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewRedisLimiter(nil, 10, time.Minute).Allow(context.Background(), "messages:u1")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	limiter := NewRedisLimiter(client, 2, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "messages:u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "messages:u1")
	require.NoError(t, err)
	assert.False(t, ok, "third message inside the window")

	// Other users have their own counter.
	ok, err = limiter.Allow(ctx, "messages:u2")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, time.Minute, mr.TTL("rate_limit:messages:u1"))

	mr.FastForward(time.Minute + time.Second)
	ok, err = limiter.Allow(ctx, "messages:u1")
	require.NoError(t, err)
	assert.True(t, ok, "window elapsed")
}

func TestRedisLimiterRepairsMissingTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	// A counter left behind without an expiry.
	require.NoError(t, mr.Set("rate_limit:messages:u1", "5"))

	ok, err := NewRedisLimiter(client, 2, time.Minute).Allow(context.Background(), "messages:u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("rate_limit:messages:u1"))
}

func TestRedisLimiterReportsErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	ok, err := NewRedisLimiter(client, 2, time.Minute).Allow(context.Background(), "messages:u1")
	assert.Error(t, err)
	assert.False(t, ok)
}

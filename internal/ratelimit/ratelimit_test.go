package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, limiter Limiter, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	for i := int64(1); i <= Auth.Limit; i++ {
		d, err := limiter.Allow(ctx, "10.0.0.1", Auth)
		require.NoError(t, err)
		require.True(t, d.Allowed, "attempt %d should be allowed", i)
		require.Equal(t, Auth.Limit-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "10.0.0.1", Auth)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Greater(t, d.RetryAfter, time.Duration(0))
	require.LessOrEqual(t, d.RetryAfter, Auth.Window)

	other, err := limiter.Allow(ctx, "10.0.0.2", Auth)
	require.NoError(t, err)
	require.True(t, other.Allowed, "keys must not share counters")

	email, err := limiter.Allow(ctx, "10.0.0.1", Email)
	require.NoError(t, err)
	require.True(t, email.Allowed, "policies must not share counters")

	advance(Auth.Window + time.Second)

	d, err = limiter.Allow(ctx, "10.0.0.1", Auth)
	require.NoError(t, err)
	require.True(t, d.Allowed, "window should reset after expiry")
}

func TestMemoryLimiter(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewMemory()
	limiter.now = func() time.Time { return now }

	exercise(t, limiter, func(d time.Duration) { now = now.Add(d) })
}

func TestRedisLimiter(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	exercise(t, NewRedis(client), srv.FastForward)
}

func TestRedisLimiterCountersAlwaysExpire(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	limiter := NewRedis(client)
	ctx := context.Background()

	for range 3 {
		_, err := limiter.Allow(ctx, "10.0.0.1", Email)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"ratelimit:email:10.0.0.1"}, srv.Keys())
	require.Equal(t, Email.Window, srv.TTL("ratelimit:email:10.0.0.1"))

	got, err := srv.Get("ratelimit:email:10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "3", got)
}

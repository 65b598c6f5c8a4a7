package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newSlidingWindow(t *testing.T) (SlidingWindow, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return SlidingWindow{Client: client, Prefix: "test:"}, mr, client
}

func TestSlidingWindowAdmitsUpToMax(t *testing.T) {
	limiter, mr, _ := newSlidingWindow(t)
	ctx := context.Background()
	window := 2 * time.Second

	for want := 1; want >= 0; want-- {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, 2)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, want, remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	// the key expires one window after the last admitted event
	mr.FastForward(window)
	allowed, _, _, err = limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestSlidingWindowResetFollowsOldestEvent(t *testing.T) {
	limiter, mr, _ := newSlidingWindow(t)

	before := time.Now()
	_, _, reset, err := limiter.Allow(context.Background(), "store:CA", time.Minute, 5)
	require.NoError(t, err)
	require.WithinRange(t, reset, before.Add(time.Minute-time.Second), time.Now().Add(time.Minute))

	ttl := mr.TTL("test:store:CA")
	require.Positive(t, ttl)
	require.LessOrEqual(t, ttl, time.Minute)
}

func TestSlidingWindowRejectionsDoNotConsumeBudget(t *testing.T) {
	limiter, _, client := newSlidingWindow(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, _, err := limiter.Allow(ctx, "k", time.Minute, 1)
		require.NoError(t, err)
	}
	members, err := client.ZCard(ctx, "test:k").Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, members)
}

func TestSlidingWindowWithoutClientAllows(t *testing.T) {
	allowed, remaining, _, err := SlidingWindow{}.Allow(context.Background(), "k", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 3, remaining)
}

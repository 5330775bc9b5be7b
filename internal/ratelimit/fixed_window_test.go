package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "")
	defer client.Close()

	l, err := NewFixedWindowLimiter(client, "test", 2, time.Minute)
	require.NoError(t, err)
	fixed := time.Date(2025, 1, 1, 12, 0, 5, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := l.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, ok)

	// Other keys have their own budget.
	ok, err = l.Allow(ctx, "user-2")
	require.NoError(t, err)
	require.True(t, ok)

	// The next window starts fresh.
	fixed = fixed.Add(time.Minute)
	ok, err = l.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFixedWindowLimiterRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "")
	defer client.Close()
	l, err := NewFixedWindowLimiter(client, "", 1, time.Minute)
	require.NoError(t, err)
	mr.Close()

	ok, err := l.Allow(context.Background(), "user-1")
	require.Error(t, err)
	require.False(t, ok)
}

func TestNewFixedWindowLimiterValidates(t *testing.T) {
	_, err := NewFixedWindowLimiter(nil, "", 1, time.Minute)
	require.Error(t, err)
	mr := miniredis.RunT(t)
	_, err = NewFixedWindowLimiter(NewRedisClient(mr.Addr(), ""), "", 0, time.Minute)
	require.Error(t, err)
}

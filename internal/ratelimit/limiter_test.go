package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisFixedWindow(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	l := NewRedisFixedWindow(client, "login", 2, time.Minute)

	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	// other keys have their own budget
	d, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	assert.True(t, mr.Exists("login:10.0.0.1"))
	mr.FastForward(61 * time.Second)

	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisFixedWindowPropagatesRedisErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisFixedWindow(db, "rl", 5, time.Minute)

	_, err := l.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryFixedWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryFixedWindow(3, 15*time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, _ := l.Allow(ctx, "ip")
	assert.False(t, d.Allowed)
	assert.Equal(t, 15*time.Minute, d.RetryAfter)

	now = now.Add(5 * time.Minute)
	d, _ = l.Allow(ctx, "ip")
	assert.False(t, d.Allowed)
	assert.Equal(t, 10*time.Minute, d.RetryAfter)

	now = now.Add(10 * time.Minute)
	d, _ = l.Allow(ctx, "ip")
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

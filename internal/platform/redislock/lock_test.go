package redislock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return s, rdb
}

func TestRedisLocker_Exclusive(t *testing.T) {
	s, rdb := newRedis(t)
	l := NewRedisLocker(rdb, "test:")
	ctx := context.Background()

	release, err := l.Acquire(ctx, "due", time.Minute)
	require.NoError(t, err)
	assert.True(t, s.Exists("test:due"))

	_, err = l.Acquire(ctx, "due", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, release(ctx))
	assert.False(t, s.Exists("test:due"))

	release2, err := l.Acquire(ctx, "due", time.Minute)
	require.NoError(t, err)
	require.NoError(t, release2(ctx))
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	s, rdb := newRedis(t)
	l := NewRedisLocker(rdb, "test:")
	ctx := context.Background()

	release, err := l.Acquire(ctx, "due", time.Second)
	require.NoError(t, err)

	// lock expires and another holder takes it
	s.FastForward(2 * time.Second)
	other, err := l.Acquire(ctx, "due", time.Minute)
	require.NoError(t, err)

	require.NoError(t, release(ctx))
	assert.True(t, s.Exists("test:due"))
	require.NoError(t, other(ctx))
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	release, err := l.Acquire(ctx, "due", time.Minute)
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "due", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
	require.NoError(t, release(ctx))
	_, err = l.Acquire(ctx, "due", time.Minute)
	assert.NoError(t, err)
}

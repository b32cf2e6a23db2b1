package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewRedisLocker(rdb, node), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "lock:sweep:fee-aging", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "lock:sweep:fee-aging", time.Minute)
	require.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, release(ctx))
	require.False(t, mr.Exists("lock:sweep:fee-aging"))

	_, err = locker.Acquire(ctx, "lock:sweep:fee-aging", time.Minute)
	require.NoError(t, err)
}

func TestReleaseDoesNotDropForeignLock(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "lock:sweep:suspension", time.Second)
	require.NoError(t, err)

	// expired and taken by someone else
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("lock:sweep:suspension", "other-owner"))

	require.NoError(t, release(ctx))
	val, err := mr.Get("lock:sweep:suspension")
	require.NoError(t, err)
	require.Equal(t, "other-owner", val)
}

package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, 30*time.Second, wait), mr
}

func TestRedisLockerSecondAcquireWaits(t *testing.T) {
	locker, mr := newRedisLocker(t, 2*time.Second)

	release, err := locker.Acquire(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("shipment-tracking:lock:order-1"))

	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	start := time.Now()
	again, err := locker.Acquire(context.Background(), "order-1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	again()
	assert.False(t, mr.Exists("shipment-tracking:lock:order-1"))
}

func TestRedisLockerTimesOut(t *testing.T) {
	locker, _ := newRedisLocker(t, 50*time.Millisecond)

	release, err := locker.Acquire(context.Background(), "order-1")
	require.NoError(t, err)
	defer release()

	other, err := locker.Acquire(context.Background(), "order-2")
	require.NoError(t, err)
	other()

	start := time.Now()
	_, err = locker.Acquire(context.Background(), "order-1")
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRedisLockerKeepsReplacedLock(t *testing.T) {
	locker, mr := newRedisLocker(t, 50*time.Millisecond)

	release, err := locker.Acquire(context.Background(), "order-1")
	require.NoError(t, err)

	// another replica took over after expiry
	require.NoError(t, mr.Set("shipment-tracking:lock:order-1", "other-owner"))
	release()

	got, err := mr.Get("shipment-tracking:lock:order-1")
	require.NoError(t, err)
	assert.Equal(t, "other-owner", got)
}

func TestRedisLockerHonoursContext(t *testing.T) {
	locker, _ := newRedisLocker(t, 5*time.Second)

	release, err := locker.Acquire(context.Background(), "order-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "order-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

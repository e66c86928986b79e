package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisSlotLocker_HoldsAndReleases(t *testing.T) {
	mr, client := newMiniredis(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)
	slotID := uuid.New()

	err := locker.WithSlotLock(context.Background(), slotID, func(ctx context.Context) error {
		assert.True(t, mr.Exists(slotLockKey(slotID)))

		inner := locker.WithSlotLock(ctx, slotID, func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		other := locker.WithSlotLock(ctx, uuid.New(), func(context.Context) error { return nil })
		assert.NoError(t, other)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(slotLockKey(slotID)))
}

func TestRedisSlotLocker_PropagatesErrorAndReleases(t *testing.T) {
	mr, client := newMiniredis(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)
	slotID := uuid.New()
	boom := errors.New("boom")

	err := locker.WithSlotLock(context.Background(), slotID, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(slotLockKey(slotID)))
}

func TestRedisSlotLocker_DoesNotReleaseForeignToken(t *testing.T) {
	mr, client := newMiniredis(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)
	slotID := uuid.New()

	err := locker.WithSlotLock(context.Background(), slotID, func(context.Context) error {
		// lock expired and was taken by someone else
		require.NoError(t, mr.Set(slotLockKey(slotID), "foreign"))
		return nil
	})
	require.NoError(t, err)

	val, err := mr.Get(slotLockKey(slotID))
	require.NoError(t, err)
	assert.Equal(t, "foreign", val)
}

func TestRedisSlotLocker_RedisDown(t *testing.T) {
	mr, client := newMiniredis(t)
	locker := NewRedisSlotLocker(client, time.Second)
	mr.Close()

	called := false
	err := locker.WithSlotLock(context.Background(), uuid.New(), func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	slotID := uuid.New()

	err := locker.WithSlotLock(context.Background(), slotID, func(ctx context.Context) error {
		assert.ErrorIs(t, locker.WithSlotLock(ctx, slotID, func(context.Context) error { return nil }), ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, locker.WithSlotLock(context.Background(), slotID, func(context.Context) error { return nil }))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	mr.Close()
	_, err = NewRedisClient(context.Background(), Options{Addr: mr.Addr()})
	assert.Error(t, err)
}

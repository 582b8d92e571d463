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

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, 5*time.Second), mr
}

func TestRedisSlotLockerRejectsContention(t *testing.T) {
	locker, mr := newTestLocker(t)
	pid := uuid.New()
	start := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	err := locker.WithSlotLock(ctx, pid, start, func(ctx context.Context) error {
		assert.True(t, mr.Exists(SlotKey(pid, start)))

		inner := locker.WithSlotLock(ctx, pid, start, func(context.Context) error {
			t.Fatal("nested lock must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		other := locker.WithSlotLock(ctx, pid, start.Add(time.Hour), func(context.Context) error { return nil })
		assert.NoError(t, other, "a different start is a different key")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(SlotKey(pid, start)), "lock released after fn")
}

func TestRedisSlotLockerReleasesOnError(t *testing.T) {
	locker, mr := newTestLocker(t)
	pid := uuid.New()
	start := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := locker.WithSlotLock(context.Background(), pid, start, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(SlotKey(pid, start)))
}

func TestRedisSlotLockerKeepsForeignToken(t *testing.T) {
	locker, mr := newTestLocker(t)
	pid := uuid.New()
	start := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	key := SlotKey(pid, start)

	err := locker.WithSlotLock(context.Background(), pid, start, func(context.Context) error {
		// simulate expiry and takeover by another holder
		require.NoError(t, mr.Set(key, "someone-else"))
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestLocalSlotLocker(t *testing.T) {
	locker := NewLocalSlotLocker()
	pid := uuid.New()
	start := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)

	err := locker.WithSlotLock(context.Background(), pid, start, func(ctx context.Context) error {
		return locker.WithSlotLock(ctx, pid, start, func(context.Context) error { return nil })
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	err = locker.WithSlotLock(context.Background(), pid, start, func(context.Context) error { return nil })
	assert.NoError(t, err)
}

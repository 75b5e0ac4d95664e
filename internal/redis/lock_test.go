package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestWithSlotLock_ReleasesAfterRun(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewRedisSlotLocker(rdb, 5*time.Second)
	key := SlotKey("s1", "Cardiología", time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))

	ran := false
	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists(key))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists(key))
}

func TestWithSlotLock_Contended(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewRedisSlotLocker(rdb, 5*time.Second)
	key := "lock:turno:s1:Cardiología:2026-10-19T12:00:00Z"

	require.NoError(t, mr.Set(key, "someone-else"))

	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	v, _ := mr.Get(key)
	assert.Equal(t, "someone-else", v, "a foreign lock is never released")
}

func TestWithSlotLock_WaitsForRelease(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewRedisSlotLocker(rdb, 5*time.Second, WithAcquireWait(2*time.Second))
	key := "lock:turno:s1:Cardiología:2026-10-19T12:00:00Z"

	require.NoError(t, mr.Set(key, "someone-else"))
	go func() {
		time.Sleep(100 * time.Millisecond)
		mr.Del(key)
	}()

	ran := false
	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithSlotLock_WaitGivesUp(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewRedisSlotLocker(rdb, 5*time.Second, WithAcquireWait(100*time.Millisecond))
	require.NoError(t, mr.Set("k", "someone-else"))

	err := locker.WithSlotLock(context.Background(), "k", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestWithSlotLock_PropagatesError(t *testing.T) {
	mr, rdb := newTestClient(t)
	locker := NewRedisSlotLocker(rdb, 5*time.Second)
	boom := errors.New("boom")

	err := locker.WithSlotLock(context.Background(), "k", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestSlotKey(t *testing.T) {
	loc := time.FixedZone("ART", -3*60*60)
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)
	assert.Equal(t, "lock:turno:s1:Clínica:2026-10-19T12:00:00Z", SlotKey("s1", "Clínica", start))
}

func TestRevocationList(t *testing.T) {
	mr, rdb := newTestClient(t)
	list := NewRevocationList(rdb)
	ctx := context.Background()

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Hour)
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "jti-2", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(revokedKey("jti-2")))
}

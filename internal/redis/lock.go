package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("slot lock not acquired")

// Locker guards the check-then-insert of a booking for one slot.
type Locker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// SlotKey names the lock of one specialist, specialty and start instant.
func SlotKey(specialistID, specialty string, start time.Time) string {
	return fmt.Sprintf("lock:turno:%s:%s:%s", specialistID, specialty, start.UTC().Format(time.RFC3339))
}

const retryInterval = 25 * time.Millisecond

type LockOption func(*redisSlotLocker)

// WithAcquireWait makes a contended acquire poll for up to d before giving up. The default is
// to fail immediately.
func WithAcquireWait(d time.Duration) LockOption {
	return func(l *redisSlotLocker) { l.wait = d }
}

type redisSlotLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisSlotLocker holds one key per slot for at most ttl. fn runs with a deadline of ttl so
// the work never outlives the key.
func NewRedisSlotLocker(client redis.UniversalClient, ttl time.Duration, opts ...LockOption) Locker {
	l := &redisSlotLocker{client: client, ttl: ttl}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()
	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release on a fresh context so a cancelled request still frees the key
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.release(relCtx, key, token)
	}()

	held, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(held)
}

func (l *redisSlotLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire slot lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Add(retryInterval).Before(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// compare-and-delete: a lock that expired and was taken by someone else stays theirs
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("calendar lock not acquired")
)

const (
	defaultAcquireWait  = 2 * time.Second
	defaultAcquireRetry = 50 * time.Millisecond
)

// VolunteerLocker guards a volunteer's calendar across every api-server and
// sync-worker process sharing the same Redis. A busy calendar is retried
// for a short while before the caller gets ErrLockNotAcquired.
type VolunteerLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

type LockOption func(*VolunteerLocker)

// WithAcquireWait bounds how long a caller waits for a busy calendar.
// Zero fails on the first attempt.
func WithAcquireWait(wait time.Duration) LockOption {
	return func(l *VolunteerLocker) { l.wait = wait }
}

func WithAcquireRetry(every time.Duration) LockOption {
	return func(l *VolunteerLocker) {
		if every > 0 {
			l.retry = every
		}
	}
}

func NewVolunteerLocker(client *redis.Client, ttl time.Duration, opts ...LockOption) *VolunteerLocker {
	l := &VolunteerLocker{
		client: client,
		ttl:    ttl,
		wait:   defaultAcquireWait,
		retry:  defaultAcquireRetry,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func calendarLockKey(volunteerID int64) string {
	return fmt.Sprintf("lock:calendar:%d", volunteerID)
}

// WithVolunteerLock runs fn while holding the volunteer's lock. fn's
// context ends when the lock expires, so a stalled batch cannot outlive it.
func (l *VolunteerLocker) WithVolunteerLock(ctx context.Context, volunteerID int64, fn func(ctx context.Context) error) error {
	key := calendarLockKey(volunteerID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

func (l *VolunteerLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire calendar lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Add(l.retry).Before(deadline) {
			return ErrLockNotAcquired
		}

		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// release deletes the key only while it still holds token, so a lock that
// expired and was taken by another process is left alone.
func (l *VolunteerLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release calendar lock: %w", err)
	}
	return nil
}

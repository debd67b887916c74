package availability

import (
	"context"
	"sync"
	"time"
)

// Locker serializes calendar operations per volunteer.
type Locker interface {
	WithVolunteerLock(ctx context.Context, volunteerID int64, fn func(ctx context.Context) error) error
}

// LocalLocker is enough when a single process owns the calendar cache.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[int64]chan struct{}
	ttl   time.Duration
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[int64]chan struct{})}
}

// WithTTL bounds how long fn may run while holding a lock, matching the
// expiry of the Redis lock.
func (l *LocalLocker) WithTTL(ttl time.Duration) *LocalLocker {
	l.ttl = ttl
	return l
}

func (l *LocalLocker) WithVolunteerLock(ctx context.Context, volunteerID int64, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	sem, ok := l.locks[volunteerID]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[volunteerID] = sem
	}
	l.mu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sem }()

	if l.ttl > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.ttl)
		defer cancel()
	}
	return fn(ctx)
}

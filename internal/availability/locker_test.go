package availability

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	t.Run("Serializes one volunteer", func(t *testing.T) {
		l := NewLocalLocker()
		var inside, peak atomic.Int32
		done := make(chan struct{})

		for i := 0; i < 8; i++ {
			go func() {
				_ = l.WithVolunteerLock(context.Background(), 7, func(context.Context) error {
					n := inside.Add(1)
					if n > peak.Load() {
						peak.Store(n)
					}
					time.Sleep(time.Millisecond)
					inside.Add(-1)
					return nil
				})
				done <- struct{}{}
			}()
		}
		for i := 0; i < 8; i++ {
			<-done
		}
		assert.Equal(t, int32(1), peak.Load())
	})

	t.Run("Waiting gives up with the caller's context", func(t *testing.T) {
		l := NewLocalLocker()
		held := make(chan struct{})
		release := make(chan struct{})
		go func() {
			_ = l.WithVolunteerLock(context.Background(), 7, func(context.Context) error {
				close(held)
				<-release
				return nil
			})
		}()
		<-held
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := l.WithVolunteerLock(ctx, 7, func(context.Context) error {
			t.Error("fn must not run without the lock")
			return nil
		})

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("TTL bounds fn", func(t *testing.T) {
		l := NewLocalLocker().WithTTL(20 * time.Millisecond)

		err := l.WithVolunteerLock(context.Background(), 7, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

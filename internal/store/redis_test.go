package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Auth lives until it expires", func(t *testing.T) {
		s, mr := newTestRedisStore(t)
		auth := Auth{
			SessionID: "s1",
			Token:     "tok",
			UserID:    7,
			UserType:  "voluntario",
			ExpiresAt: time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second),
		}
		require.NoError(t, s.SaveAuth(ctx, auth))

		require.True(t, mr.Exists("session:auth:s1"))
		ttl := mr.TTL("session:auth:s1")
		assert.Greater(t, ttl, 9*time.Minute)
		assert.LessOrEqual(t, ttl, 10*time.Minute)

		got, err := s.LoadAuth(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, auth.Token, got.Token)
		assert.Equal(t, auth.UserID, got.UserID)
		assert.True(t, auth.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("Auth without expiry uses the store ttl", func(t *testing.T) {
		s, mr := newTestRedisStore(t)
		require.NoError(t, s.SaveAuth(ctx, Auth{SessionID: "s2", Token: "tok", UserID: 55}))

		assert.Equal(t, time.Hour, mr.TTL("session:auth:s2"))
	})

	t.Run("Saving an expired auth clears it", func(t *testing.T) {
		s, mr := newTestRedisStore(t)
		require.NoError(t, mr.Set("session:auth:s3", `{"sessionId":"s3"}`))

		require.NoError(t, s.SaveAuth(ctx, Auth{SessionID: "s3", ExpiresAt: time.Now().Add(-time.Minute)}))

		assert.False(t, mr.Exists("session:auth:s3"))
		_, err := s.LoadAuth(ctx, "s3")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Availability is stored as JSON under the volunteer key", func(t *testing.T) {
		s, mr := newTestRedisStore(t)
		cache := AvailabilityCache{
			VolunteerID: 7,
			Days:        map[string][]string{"2025-06-01": {"09:00", "10:00"}},
			IDs:         map[string]int64{"2025-06-01|09:00": 11},
		}
		require.NoError(t, s.SaveAvailability(ctx, cache))

		raw, err := mr.Get("availability:7")
		require.NoError(t, err)
		var stored AvailabilityCache
		require.NoError(t, json.Unmarshal([]byte(raw), &stored))
		assert.Equal(t, cache.Days, stored.Days)

		got, err := s.LoadAvailability(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, cache.Days, got.Days)
		assert.Equal(t, cache.IDs, got.IDs)
	})

	t.Run("Profile round trip and missing rows", func(t *testing.T) {
		s, _ := newTestRedisStore(t)
		require.NoError(t, s.SaveProfile(ctx, Profile{UserID: 9, Name: "Ana", UserType: "assistido"}))

		got, err := s.LoadProfile(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.Name)

		_, err = s.LoadProfile(ctx, 10)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Corrupt rows are reported, not treated as missing", func(t *testing.T) {
		s, mr := newTestRedisStore(t)
		require.NoError(t, mr.Set("profile:9", "not json"))

		_, err := s.LoadProfile(ctx, 9)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("Writes are announced to subscribers", func(t *testing.T) {
		s, _ := newTestRedisStore(t)
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		changes, err := s.Subscribe(subCtx)
		require.NoError(t, err)

		require.NoError(t, s.ClearAuth(ctx, "s9"))

		select {
		case c := <-changes:
			assert.Equal(t, Change{Table: TableAuth, Key: "s9"}, c)
		case <-time.After(2 * time.Second):
			t.Fatal("no change received")
		}
	})
}

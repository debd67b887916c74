package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing rows report not found", func(t *testing.T) {
		s := NewMemoryStore()

		_, err := s.LoadAuth(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.LoadProfile(ctx, 1)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.LoadAvailability(ctx, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Availability is copied on the way in and out", func(t *testing.T) {
		s := NewMemoryStore()
		cache := AvailabilityCache{
			VolunteerID: 7,
			Days:        map[string][]string{"2025-06-01": {"09:00"}},
			IDs:         map[string]int64{"2025-06-01|09:00": 11},
		}
		require.NoError(t, s.SaveAvailability(ctx, cache))

		cache.Days["2025-06-01"][0] = "10:00"

		got, err := s.LoadAvailability(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00"}, got.Days["2025-06-01"])

		got.IDs["2025-06-01|09:00"] = 99
		again, err := s.LoadAvailability(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(11), again.IDs["2025-06-01|09:00"])
	})

	t.Run("Writes are announced to subscribers", func(t *testing.T) {
		s := NewMemoryStore()
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		changes, err := s.Subscribe(subCtx)
		require.NoError(t, err)

		require.NoError(t, s.SaveProfile(ctx, Profile{UserID: 5, Name: "Ana"}))
		require.NoError(t, s.SaveAvailability(ctx, AvailabilityCache{VolunteerID: 7}))

		assert.Equal(t, Change{Table: TableProfile, Key: "5"}, <-changes)
		assert.Equal(t, Change{Table: TableAvailability, Key: "7"}, <-changes)

		cancel()
		for range changes {
		}
	})
}

func TestSessionTokens(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tokens := NewSessionTokens(s)

	require.NoError(t, s.SaveAuth(ctx, Auth{SessionID: "abc", Token: "tok-1", UserID: 5, UserType: "assistido"}))

	t.Run("No session means anonymous", func(t *testing.T) {
		tok, err := tokens.Token(ctx)
		require.NoError(t, err)
		assert.Empty(t, tok)
	})

	t.Run("Resolves the bound session", func(t *testing.T) {
		tok, err := tokens.Token(WithSession(ctx, "abc"))
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
	})

	t.Run("Expired credentials are not sent", func(t *testing.T) {
		require.NoError(t, s.SaveAuth(ctx, Auth{SessionID: "old", Token: "tok-2", ExpiresAt: time.Now().Add(-time.Minute)}))
		tok, err := tokens.Token(WithSession(ctx, "old"))
		require.NoError(t, err)
		assert.Empty(t, tok)
	})

	t.Run("Invalidate clears only the bound session", func(t *testing.T) {
		require.NoError(t, s.SaveAuth(ctx, Auth{SessionID: "other", Token: "tok-3"}))

		require.NoError(t, tokens.Invalidate(WithSession(ctx, "abc")))

		_, err := s.LoadAuth(ctx, "abc")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.LoadAuth(ctx, "other")
		assert.NoError(t, err)
	})
}

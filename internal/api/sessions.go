package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/assistance-scheduling/internal/booking"
	"github.com/hackgods/assistance-scheduling/internal/store"
)

func createSessionHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		auth := store.Auth{
			SessionID: uuid.NewString(),
			Token:     req.Token,
			UserID:    req.UserID,
			UserType:  req.UserType,
		}
		if req.ExpiresAt != nil {
			if !req.ExpiresAt.After(time.Now()) {
				writeError(w, http.StatusBadRequest, "session_expired", "expiresAt is in the past")
				return
			}
			auth.ExpiresAt = *req.ExpiresAt
		}

		if err := s.SaveAuth(r.Context(), auth); err != nil {
			writeError(w, http.StatusInternalServerError, "store_error", err.Error())
			return
		}

		if req.Profile != nil {
			profile := *req.Profile
			profile.UserID = req.UserID
			profile.UserType = req.UserType
			profile.UpdatedAt = time.Now().UTC()
			if err := s.SaveProfile(r.Context(), profile); err != nil {
				writeError(w, http.StatusInternalServerError, "store_error", err.Error())
				return
			}
		}

		writeJSON(w, http.StatusCreated, SessionResponse{
			SessionID: auth.SessionID,
			UserID:    auth.UserID,
			UserType:  auth.UserType,
			ExpiresAt: req.ExpiresAt,
			Profile:   req.Profile,
		})
	}
}

func currentSessionHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, _ := AuthFromContext(r.Context())

		resp := SessionResponse{
			SessionID: auth.SessionID,
			UserID:    auth.UserID,
			UserType:  auth.UserType,
		}
		if !auth.ExpiresAt.IsZero() {
			resp.ExpiresAt = &auth.ExpiresAt
		}

		profile, err := s.LoadProfile(r.Context(), auth.UserID)
		switch {
		case err == nil:
			resp.Profile = profile
		case !errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusInternalServerError, "store_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func deleteSessionHandler(s store.Store, bookings *booking.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, _ := AuthFromContext(r.Context())

		if err := s.ClearAuth(r.Context(), auth.SessionID); err != nil {
			writeError(w, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
		bookings.DropSession(auth.SessionID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// WatchSessions closes the booking wizards of every session whose auth row
// disappears, whichever process removed it. It returns when ctx is done.
func WatchSessions(ctx context.Context, s store.Store, bookings *booking.Registry, log *zap.Logger) error {
	changes, err := s.Subscribe(ctx)
	if err != nil {
		return err
	}

	for c := range changes {
		if c.Table != store.TableAuth {
			continue
		}
		_, err := s.LoadAuth(ctx, c.Key)
		if !errors.Is(err, store.ErrNotFound) {
			continue
		}
		if n := bookings.DropSession(c.Key); n > 0 {
			log.Info("session ended, booking drafts discarded",
				zap.String("session_id", c.Key),
				zap.Int("count", n),
			)
		}
	}
	return nil
}

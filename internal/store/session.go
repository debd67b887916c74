package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type sessionKey struct{}

var ErrNoSession = errors.New("no session bound to context")

func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func SessionFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}

// SessionTokens resolves the bearer token of the session bound to the
// request context and clears it when the backend rejects it.
type SessionTokens struct {
	store Store
	now   func() time.Time
}

func NewSessionTokens(s Store) *SessionTokens {
	return &SessionTokens{store: s, now: time.Now}
}

func (t *SessionTokens) Token(ctx context.Context) (string, error) {
	sessionID, ok := SessionFromContext(ctx)
	if !ok {
		return "", nil
	}

	auth, err := t.store.LoadAuth(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load auth: %w", err)
	}
	if auth.Expired(t.now()) {
		return "", nil
	}
	return auth.Token, nil
}

func (t *SessionTokens) Invalidate(ctx context.Context) error {
	sessionID, ok := SessionFromContext(ctx)
	if !ok {
		return nil
	}
	return t.store.ClearAuth(ctx, sessionID)
}

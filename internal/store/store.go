// Package store holds the client-side state that used to live in ambient
// browser storage: session credentials, cached profiles and each
// volunteer's availability mirror. Every table is typed and every write is
// announced on a change feed so other processes can resynchronize.
package store

import (
	"context"
	"errors"
	"strconv"
	"time"
)

const (
	TableAuth         = "auth"
	TableProfile      = "profile"
	TableAvailability = "availability"
)

var ErrNotFound = errors.New("store: not found")

type Auth struct {
	SessionID string    `json:"sessionId"`
	Token     string    `json:"token"`
	UserID    int64     `json:"userId"`
	UserType  string    `json:"userType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (a Auth) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

type Profile struct {
	UserID     int64     `json:"userId"`
	Name       string    `json:"nome"`
	Email      string    `json:"email,omitempty"`
	UserType   string    `json:"userType"`
	Profession string    `json:"profissao,omitempty"`
	PhotoURL   string    `json:"fotoUrl,omitempty"`
	Address    string    `json:"endereco,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AvailabilityCache is the persisted form of a volunteer's calendar:
// day -> sorted "HH:mm" list, and "day|HH:mm" -> backend slot id.
type AvailabilityCache struct {
	VolunteerID int64               `json:"volunteerId"`
	Days        map[string][]string `json:"days"`
	IDs         map[string]int64    `json:"ids"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// Change announces that one row of one table was written or removed.
type Change struct {
	Table string `json:"table"`
	Key   string `json:"key"`
}

type Store interface {
	LoadAuth(ctx context.Context, sessionID string) (*Auth, error)
	SaveAuth(ctx context.Context, auth Auth) error
	ClearAuth(ctx context.Context, sessionID string) error

	LoadProfile(ctx context.Context, userID int64) (*Profile, error)
	SaveProfile(ctx context.Context, profile Profile) error

	LoadAvailability(ctx context.Context, volunteerID int64) (*AvailabilityCache, error)
	SaveAvailability(ctx context.Context, cache AvailabilityCache) error

	// Subscribe delivers changes until ctx is done; the channel is then closed.
	Subscribe(ctx context.Context) (<-chan Change, error)

	Ping(ctx context.Context) error
	Close() error
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

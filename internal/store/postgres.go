package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notifyChannel = "store_changes"

// PostgresStore persists the tables in Postgres and announces writes with
// pg_notify so every replica can LISTEN for them.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) LoadAuth(ctx context.Context, sessionID string) (*Auth, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT session_id, token, user_id, user_type, expires_at
		FROM session_auth
		WHERE session_id = $1
	`, sessionID)

	var a Auth
	var expiresAt *time.Time
	err := row.Scan(&a.SessionID, &a.Token, &a.UserID, &a.UserType, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select auth: %w", err)
	}
	if expiresAt != nil {
		a.ExpiresAt = *expiresAt
	}
	return &a, nil
}

func (p *PostgresStore) SaveAuth(ctx context.Context, auth Auth) error {
	var expiresAt *time.Time
	if !auth.ExpiresAt.IsZero() {
		expiresAt = &auth.ExpiresAt
	}

	return p.write(ctx, Change{Table: TableAuth, Key: auth.SessionID}, `
		INSERT INTO session_auth (session_id, token, user_id, user_type, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (session_id) DO UPDATE
		SET token = EXCLUDED.token,
		    user_id = EXCLUDED.user_id,
		    user_type = EXCLUDED.user_type,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
	`, auth.SessionID, auth.Token, auth.UserID, auth.UserType, expiresAt)
}

func (p *PostgresStore) ClearAuth(ctx context.Context, sessionID string) error {
	return p.write(ctx, Change{Table: TableAuth, Key: sessionID},
		`DELETE FROM session_auth WHERE session_id = $1`, sessionID)
}

func (p *PostgresStore) LoadProfile(ctx context.Context, userID int64) (*Profile, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT data
		FROM profiles
		WHERE user_id = $1
	`, userID)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select profile: %w", err)
	}

	var prof Profile
	if err := json.Unmarshal(raw, &prof); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &prof, nil
}

func (p *PostgresStore) SaveProfile(ctx context.Context, profile Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	return p.write(ctx, Change{Table: TableProfile, Key: idKey(profile.UserID)}, `
		INSERT INTO profiles (user_id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = NOW()
	`, profile.UserID, raw)
}

func (p *PostgresStore) LoadAvailability(ctx context.Context, volunteerID int64) (*AvailabilityCache, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT days, ids, updated_at
		FROM availability_cache
		WHERE volunteer_id = $1
	`, volunteerID)

	var days, ids []byte
	c := AvailabilityCache{VolunteerID: volunteerID}
	if err := row.Scan(&days, &ids, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select availability: %w", err)
	}
	if err := json.Unmarshal(days, &c.Days); err != nil {
		return nil, fmt.Errorf("decode availability days: %w", err)
	}
	if err := json.Unmarshal(ids, &c.IDs); err != nil {
		return nil, fmt.Errorf("decode availability ids: %w", err)
	}
	return &c, nil
}

func (p *PostgresStore) SaveAvailability(ctx context.Context, cache AvailabilityCache) error {
	days, err := json.Marshal(cache.Days)
	if err != nil {
		return fmt.Errorf("encode availability days: %w", err)
	}
	ids, err := json.Marshal(cache.IDs)
	if err != nil {
		return fmt.Errorf("encode availability ids: %w", err)
	}

	return p.write(ctx, Change{Table: TableAvailability, Key: idKey(cache.VolunteerID)}, `
		INSERT INTO availability_cache (volunteer_id, days, ids, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (volunteer_id) DO UPDATE
		SET days = EXCLUDED.days, ids = EXCLUDED.ids, updated_at = EXCLUDED.updated_at
	`, cache.VolunteerID, days, ids, cache.UpdatedAt)
}

func (p *PostgresStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	out := make(chan Change, subscriberBuffer)
	go func() {
		defer close(out)
		defer conn.Release()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				return
			}
			var c Change
			if err := json.Unmarshal([]byte(n.Payload), &c); err != nil {
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// write runs the statement and the notification in one transaction so
// listeners never see a change that was rolled back.
func (p *PostgresStore) write(ctx context.Context, c Change, sql string, args ...any) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s write: %w", c.Table, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("write %s: %w", c.Table, err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", c.Table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s write: %w", c.Table, err)
	}
	return nil
}

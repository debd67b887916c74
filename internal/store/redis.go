package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const changeChannel = "store:changes"

// RedisStore keeps each row as a JSON string under its own key and
// announces writes on a pub/sub channel.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func authKey(sessionID string) string { return "session:auth:" + sessionID }
func profileKey(userID int64) string  { return "profile:" + idKey(userID) }
func availabilityKey(id int64) string { return "availability:" + idKey(id) }

func (r *RedisStore) LoadAuth(ctx context.Context, sessionID string) (*Auth, error) {
	var a Auth
	if err := r.get(ctx, authKey(sessionID), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *RedisStore) SaveAuth(ctx context.Context, auth Auth) error {
	ttl := r.ttl
	if !auth.ExpiresAt.IsZero() {
		ttl = time.Until(auth.ExpiresAt)
		if ttl <= 0 {
			return r.ClearAuth(ctx, auth.SessionID)
		}
	}
	if err := r.set(ctx, authKey(auth.SessionID), auth, ttl); err != nil {
		return err
	}
	return r.publish(ctx, Change{Table: TableAuth, Key: auth.SessionID})
}

func (r *RedisStore) ClearAuth(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, authKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete auth: %w", err)
	}
	return r.publish(ctx, Change{Table: TableAuth, Key: sessionID})
}

func (r *RedisStore) LoadProfile(ctx context.Context, userID int64) (*Profile, error) {
	var p Profile
	if err := r.get(ctx, profileKey(userID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *RedisStore) SaveProfile(ctx context.Context, profile Profile) error {
	if err := r.set(ctx, profileKey(profile.UserID), profile, r.ttl); err != nil {
		return err
	}
	return r.publish(ctx, Change{Table: TableProfile, Key: idKey(profile.UserID)})
}

func (r *RedisStore) LoadAvailability(ctx context.Context, volunteerID int64) (*AvailabilityCache, error) {
	var c AvailabilityCache
	if err := r.get(ctx, availabilityKey(volunteerID), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *RedisStore) SaveAvailability(ctx context.Context, cache AvailabilityCache) error {
	if err := r.set(ctx, availabilityKey(cache.VolunteerID), cache, r.ttl); err != nil {
		return err
	}
	return r.publish(ctx, Change{Table: TableAvailability, Key: idKey(cache.VolunteerID)})
}

func (r *RedisStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	sub := r.client.Subscribe(ctx, changeChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", changeChannel, err)
	}

	out := make(chan Change, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) get(ctx context.Context, key string, out any) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) publish(ctx context.Context, c Change) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := r.client.Publish(ctx, changeChannel, raw).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

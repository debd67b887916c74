package store

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

// MemoryStore keeps every table in process. Subscribers that fall behind
// lose changes rather than block writers.
type MemoryStore struct {
	mu           sync.RWMutex
	auth         map[string]Auth
	profiles     map[int64]Profile
	availability map[int64]AvailabilityCache

	subMu sync.Mutex
	subs  map[chan Change]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auth:         make(map[string]Auth),
		profiles:     make(map[int64]Profile),
		availability: make(map[int64]AvailabilityCache),
		subs:         make(map[chan Change]struct{}),
	}
}

func (m *MemoryStore) LoadAuth(_ context.Context, sessionID string) (*Auth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.auth[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *MemoryStore) SaveAuth(_ context.Context, auth Auth) error {
	m.mu.Lock()
	m.auth[auth.SessionID] = auth
	m.mu.Unlock()
	m.publish(Change{Table: TableAuth, Key: auth.SessionID})
	return nil
}

func (m *MemoryStore) ClearAuth(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.auth, sessionID)
	m.mu.Unlock()
	m.publish(Change{Table: TableAuth, Key: sessionID})
	return nil
}

func (m *MemoryStore) LoadProfile(_ context.Context, userID int64) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) SaveProfile(_ context.Context, profile Profile) error {
	m.mu.Lock()
	m.profiles[profile.UserID] = profile
	m.mu.Unlock()
	m.publish(Change{Table: TableProfile, Key: idKey(profile.UserID)})
	return nil
}

func (m *MemoryStore) LoadAvailability(_ context.Context, volunteerID int64) (*AvailabilityCache, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.availability[volunteerID]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyAvailability(c)
	return &out, nil
}

func (m *MemoryStore) SaveAvailability(_ context.Context, cache AvailabilityCache) error {
	m.mu.Lock()
	m.availability[cache.VolunteerID] = copyAvailability(cache)
	m.mu.Unlock()
	m.publish(Change{Table: TableAvailability, Key: idKey(cache.VolunteerID)})
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, subscriberBuffer)

	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()

	go func() {
		<-ctx.Done()
		m.subMu.Lock()
		delete(m.subs, ch)
		m.subMu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) publish(c Change) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// copyAvailability detaches the maps so callers never share state with
// the store.
func copyAvailability(c AvailabilityCache) AvailabilityCache {
	out := AvailabilityCache{
		VolunteerID: c.VolunteerID,
		Days:        make(map[string][]string, len(c.Days)),
		IDs:         make(map[string]int64, len(c.IDs)),
		UpdatedAt:   c.UpdatedAt,
	}
	for day, times := range c.Days {
		out.Days[day] = append([]string(nil), times...)
	}
	for k, id := range c.IDs {
		out.IDs[k] = id
	}
	return out
}

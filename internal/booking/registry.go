package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrWizardNotFound = errors.New("wizard not found")

type entry struct {
	sessionID string
	wizard    *Wizard
}

// Registry holds the open wizards of every session. Drafts live only in
// memory and expire after idleTTL without activity.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry

	creator Creator
	times   TimeSource
	idleTTL time.Duration
	log     *zap.Logger
	now     func() time.Time
}

func NewRegistry(creator Creator, times TimeSource, idleTTL time.Duration, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]entry),
		creator: creator,
		times:   times,
		idleTTL: idleTTL,
		log:     log,
		now:     time.Now,
	}
}

func (r *Registry) Open(sessionID string, assistedID int64) *Wizard {
	w := NewWizard(uuid.NewString(), assistedID, r.creator, r.times)
	w.now = r.now
	w.touchedAt = r.now()

	r.mu.Lock()
	r.entries[w.id] = entry{sessionID: sessionID, wizard: w}
	r.mu.Unlock()
	return w
}

// Get returns the wizard only to the session that opened it.
func (r *Registry) Get(sessionID, id string) (*Wizard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.sessionID != sessionID {
		return nil, ErrWizardNotFound
	}
	return e.wizard, nil
}

func (r *Registry) Close(sessionID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.sessionID != sessionID {
		return ErrWizardNotFound
	}
	delete(r.entries, id)
	return nil
}

// DropSession discards every wizard of a session, e.g. on sign-out.
func (r *Registry) DropSession(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.sessionID == sessionID {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep removes wizards idle for longer than the TTL. Wizards with a
// submission in flight are kept.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.wizard.Snapshot().Submitting {
			continue
		}
		if e.wizard.idleSince().Before(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Info("expired booking drafts", zap.Int("count", n))
			}
		}
	}
}

package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
	"github.com/hackgods/assistance-scheduling/internal/backend"
	"github.com/hackgods/assistance-scheduling/internal/store"
)

// CacheStore is the part of store.Store the calendar needs.
type CacheStore interface {
	LoadAvailability(ctx context.Context, volunteerID int64) (*store.AvailabilityCache, error)
	SaveAvailability(ctx context.Context, cache store.AvailabilityCache) error
}

// Manager keeps each volunteer's cached calendar consistent with the
// backend. Mutating backend calls are issued one at a time and every
// operation runs under the volunteer's lock.
type Manager struct {
	repo   Repository
	cache  CacheStore
	locker Locker
	log    *zap.Logger
	now    func() time.Time
}

func NewManager(repo Repository, cache CacheStore, locker Locker, log *zap.Logger) *Manager {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		repo:   repo,
		cache:  cache,
		locker: locker,
		log:    log,
		now:    time.Now,
	}
}

func (m *Manager) loadCalendar(ctx context.Context, volunteerID int64) (*Calendar, bool, error) {
	c, err := m.cache.LoadAvailability(ctx, volunteerID)
	if errors.Is(err, store.ErrNotFound) {
		return NewCalendar(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load availability cache: %w", err)
	}
	return CalendarFromCache(c), true, nil
}

func (m *Manager) saveCalendar(ctx context.Context, volunteerID int64, cal *Calendar) error {
	if err := m.cache.SaveAvailability(ctx, cal.Cache(volunteerID, m.now())); err != nil {
		return fmt.Errorf("save availability cache: %w", err)
	}
	return nil
}

func (m *Manager) merge(cal *Calendar, volunteerID int64, records []SlotRecord) error {
	dups, err := cal.Merge(records)
	for _, d := range dups {
		m.log.Warn("duplicate slot in backend listing",
			zap.Int64("volunteer_id", volunteerID),
			zap.Int64("slot_id", d.ID),
			zap.String("data_horario", d.DataHorario),
		)
	}
	return err
}

// Load reads the cached calendar and the backend listing concurrently and
// merges the latter into the former. If only the backend is unreachable,
// the cached calendar is returned marked stale.
func (m *Manager) Load(ctx context.Context, volunteerID int64) (*View, error) {
	var view *View
	err := m.locker.WithVolunteerLock(ctx, volunteerID, func(ctx context.Context) error {
		var (
			cal     *Calendar
			cached  bool
			records []SlotRecord
			listErr error
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			cal, cached, err = m.loadCalendar(gctx, volunteerID)
			return err
		})
		g.Go(func() error {
			records, listErr = m.repo.ListSlots(gctx, volunteerID)
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}

		if listErr != nil {
			if !cached || !cacheFallback(listErr) {
				return listErr
			}
			m.log.Warn("serving cached availability",
				zap.Int64("volunteer_id", volunteerID),
				zap.Error(listErr),
			)
			view = &View{VolunteerID: volunteerID, Days: cal.Filter(Filter{}), Stale: true}
			return nil
		}

		if err := m.merge(cal, volunteerID, records); err != nil {
			return err
		}
		if err := m.saveCalendar(ctx, volunteerID, cal); err != nil {
			return err
		}
		view = &View{VolunteerID: volunteerID, Days: cal.Filter(Filter{})}
		return nil
	})
	return view, err
}

// cacheFallback reports whether a failed backend read may be answered from
// the cache. Only an unreachable backend qualifies; a rejection such as 401
// or 403 must reach the caller.
func cacheFallback(err error) bool {
	apiErr, ok := backend.AsAPIError(err)
	return ok && apiErr.Kind == backend.KindUnavailable
}

// Resync rebuilds the cached calendar from the backend listing alone.
func (m *Manager) Resync(ctx context.Context, volunteerID int64) (*View, error) {
	var view *View
	err := m.locker.WithVolunteerLock(ctx, volunteerID, func(ctx context.Context) error {
		records, err := m.repo.ListSlots(ctx, volunteerID)
		if err != nil {
			return err
		}
		cal := NewCalendar()
		if err := m.merge(cal, volunteerID, records); err != nil {
			return err
		}
		if err := m.saveCalendar(ctx, volunteerID, cal); err != nil {
			return err
		}
		view = &View{VolunteerID: volunteerID, Days: cal.Filter(Filter{})}
		return nil
	})
	return view, err
}

// View filters the cached calendar. A filter on a specific day first merges
// that day's available times from the backend into the cache.
func (m *Manager) View(ctx context.Context, volunteerID int64, f Filter) (*View, error) {
	if f.Day != "" && !backend.ValidDay(f.Day) {
		return nil, fmt.Errorf("%w: day %q", ErrInvalidSlot, f.Day)
	}

	var view *View
	err := m.locker.WithVolunteerLock(ctx, volunteerID, func(ctx context.Context) error {
		cal, _, err := m.loadCalendar(ctx, volunteerID)
		if err != nil {
			return err
		}

		stale := false
		if f.Day != "" {
			times, err := m.repo.AvailableTimes(ctx, volunteerID, f.Day)
			switch {
			case err != nil && !cacheFallback(err):
				return err
			case err != nil:
				m.log.Warn("day refetch failed",
					zap.Int64("volunteer_id", volunteerID),
					zap.String("day", f.Day),
					zap.Error(err),
				)
				stale = true
			case len(times) > 0:
				cal.MergeTimes(f.Day, times)
				if err := m.saveCalendar(ctx, volunteerID, cal); err != nil {
					return err
				}
			}
		}

		view = &View{VolunteerID: volunteerID, Days: cal.Filter(f), Stale: stale}
		return nil
	})
	return view, err
}

// AddSlot inserts the time locally, creates it on the backend and records
// the returned id. A failed create removes the local insert again.
func (m *Manager) AddSlot(ctx context.Context, volunteerID int64, day, clock string, modality appointment.Modality) (*Slot, error) {
	if !backend.ValidDay(day) || !backend.ValidClock(clock) {
		return nil, fmt.Errorf("%w: %q %q", ErrInvalidSlot, day, clock)
	}
	dateTime, err := backend.JoinDateTime(day, clock)
	if err != nil {
		return nil, err
	}

	var slot *Slot
	err = m.locker.WithVolunteerLock(ctx, volunteerID, func(ctx context.Context) error {
		cal, _, err := m.loadCalendar(ctx, volunteerID)
		if err != nil {
			return err
		}
		if cal.Has(day, clock) {
			return ErrSlotExists
		}

		hadDay := cal.HasDay(day)
		cal.Add(day, clock)
		if err := m.saveCalendar(ctx, volunteerID, cal); err != nil {
			return err
		}

		id, createErr := m.repo.CreateSlot(ctx, volunteerID, dateTime, modality)
		if createErr != nil {
			cal.RemoveTime(day, clock)
			if !hadDay {
				cal.DropDay(day)
			}
			if err := m.saveCalendar(ctx, volunteerID, cal); err != nil {
				m.log.Error("rollback of optimistic slot failed",
					zap.Int64("volunteer_id", volunteerID),
					zap.String("day", day),
					zap.String("time", clock),
					zap.Error(err),
				)
			}
			return createErr
		}

		cal.SetID(day, clock, id)
		if err := m.saveCalendar(ctx, volunteerID, cal); err != nil {
			return err
		}
		slot = &Slot{ID: id, Day: day, Time: clock, Modality: modality}
		return nil
	})
	return slot, err
}

// RemoveSlot deletes the slot on the backend when it has an id and only
// then drops it from the cache. An emptied day is kept.
func (m *Manager) RemoveSlot(ctx context.Context, volunteerID int64, day, clock string) error {
	return m.locker.WithVolunteerLock(ctx, volunteerID, func(ctx context.Context) error {
		cal, _, err := m.loadCalendar(ctx, volunteerID)
		if err != nil {
			return err
		}

		if id, ok := cal.ID(day, clock); ok {
			if err := m.repo.DeleteSlot(ctx, id); err != nil {
				return err
			}
		}

		cal.RemoveTime(day, clock)
		return m.saveCalendar(ctx, volunteerID, cal)
	})
}

// RemoveDay deletes every id-bearing slot of the day, one call at a time,
// and then drops the day. If any delete fails the day is rebuilt from the
// backend instead of dropped.
func (m *Manager) RemoveDay(ctx context.Context, volunteerID int64, day string) error {
	return m.locker.WithVolunteerLock(ctx, volunteerID, func(ctx context.Context) error {
		cal, _, err := m.loadCalendar(ctx, volunteerID)
		if err != nil {
			return err
		}

		remaining := cal.Slots(day)
		batch := &BatchError{VolunteerID: volunteerID, Day: day}
		for _, clock := range cal.Times(day) {
			id := remaining[clock]
			if id == 0 {
				delete(remaining, clock)
				continue
			}
			batch.Attempted++
			if err := m.repo.DeleteSlot(ctx, id); err != nil {
				batch.Failed = append(batch.Failed, FailedOp{Kind: OpDelete, Time: clock, ID: id, Err: err})
				continue
			}
			delete(remaining, clock)
		}

		if len(batch.Failed) == 0 {
			cal.DropDay(day)
			return m.saveCalendar(ctx, volunteerID, cal)
		}
		return m.settleFailedBatch(ctx, cal, batch, remaining)
	})
}

// EditDay turns the day's current times into desired with the fewest
// calls: paired removals and additions become in-place moves. An empty
// desired set drops the day.
func (m *Manager) EditDay(ctx context.Context, volunteerID int64, day string, desired []string, modality appointment.Modality) (Plan, error) {
	if !backend.ValidDay(day) {
		return Plan{}, fmt.Errorf("%w: day %q", ErrInvalidSlot, day)
	}
	for _, clock := range desired {
		if !backend.ValidClock(clock) {
			return Plan{}, fmt.Errorf("%w: time %q", ErrInvalidSlot, clock)
		}
	}

	var plan Plan
	err := m.locker.WithVolunteerLock(ctx, volunteerID, func(ctx context.Context) error {
		cal, _, err := m.loadCalendar(ctx, volunteerID)
		if err != nil {
			return err
		}

		plan = PlanEdit(cal.Times(day), desired)
		state := cal.Slots(day)
		batch := &BatchError{VolunteerID: volunteerID, Day: day, Attempted: plan.Calls()}

		for _, mv := range plan.Moves {
			id := state[mv.From]
			if err := m.move(ctx, volunteerID, day, mv, id, modality, state); err != nil {
				batch.Failed = append(batch.Failed, FailedOp{Kind: moveKind(id), Time: mv.To, ID: id, Err: err})
			}
		}
		for _, clock := range plan.Deletes {
			id := state[clock]
			if id != 0 {
				if err := m.repo.DeleteSlot(ctx, id); err != nil {
					batch.Failed = append(batch.Failed, FailedOp{Kind: OpDelete, Time: clock, ID: id, Err: err})
					continue
				}
			}
			delete(state, clock)
		}
		for _, clock := range plan.Creates {
			id, err := m.create(ctx, volunteerID, day, clock, modality)
			if err != nil {
				batch.Failed = append(batch.Failed, FailedOp{Kind: OpCreate, Time: clock, Err: err})
				continue
			}
			state[clock] = id
		}

		if len(batch.Failed) > 0 {
			return m.settleFailedBatch(ctx, cal, batch, state)
		}

		if len(state) == 0 {
			cal.DropDay(day)
		} else {
			cal.ReplaceDay(day, state)
		}
		return m.saveCalendar(ctx, volunteerID, cal)
	})
	return plan, err
}

// move updates the slot in place. A time with no backend id has nothing to
// update, so it is created instead.
func (m *Manager) move(ctx context.Context, volunteerID int64, day string, mv Move, id int64, modality appointment.Modality, state map[string]int64) error {
	if id == 0 {
		newID, err := m.create(ctx, volunteerID, day, mv.To, modality)
		if err != nil {
			return err
		}
		delete(state, mv.From)
		state[mv.To] = newID
		return nil
	}

	dateTime, err := backend.JoinDateTime(day, mv.To)
	if err != nil {
		return err
	}
	newID, err := m.repo.UpdateSlot(ctx, id, dateTime)
	if err != nil {
		return err
	}
	if newID == 0 {
		newID = id
	}
	delete(state, mv.From)
	state[mv.To] = newID
	return nil
}

func (m *Manager) create(ctx context.Context, volunteerID int64, day, clock string, modality appointment.Modality) (int64, error) {
	dateTime, err := backend.JoinDateTime(day, clock)
	if err != nil {
		return 0, err
	}
	return m.repo.CreateSlot(ctx, volunteerID, dateTime, modality)
}

func moveKind(id int64) OpKind {
	if id == 0 {
		return OpCreate
	}
	return OpUpdate
}

// settleFailedBatch rebuilds the day from the backend listing. When that
// listing is unavailable too, the day keeps the slots the successful calls
// left behind. The day key is never dropped here.
func (m *Manager) settleFailedBatch(ctx context.Context, cal *Calendar, batch *BatchError, local map[string]int64) error {
	log := m.log.With(zap.Int64("volunteer_id", batch.VolunteerID), zap.String("day", batch.Day))
	log.Warn("day batch partially failed",
		zap.Int("attempted", batch.Attempted),
		zap.Int("failed", len(batch.Failed)),
	)

	slots, err := m.daySlotsFromBackend(ctx, batch.VolunteerID, batch.Day)
	if err != nil {
		log.Warn("day reconciliation fetch failed", zap.Error(err))
		cal.ReplaceDay(batch.Day, local)
	} else {
		cal.ReplaceDay(batch.Day, slots)
		batch.Reconciled = true
	}

	if err := m.saveCalendar(ctx, batch.VolunteerID, cal); err != nil {
		return errors.Join(batch, err)
	}
	return batch
}

func (m *Manager) daySlotsFromBackend(ctx context.Context, volunteerID int64, day string) (map[string]int64, error) {
	records, err := m.repo.ListSlots(ctx, volunteerID)
	if err != nil {
		return nil, err
	}

	fresh := NewCalendar()
	if err := m.merge(fresh, volunteerID, records); err != nil {
		return nil, err
	}
	return fresh.Slots(day), nil
}

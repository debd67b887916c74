package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
	"github.com/hackgods/assistance-scheduling/internal/backend"
)

var (
	ErrSelectionRequired = errors.New("a selection is required before advancing")
	ErrIllegalTransition = errors.New("illegal wizard transition")
	ErrWrongStep         = errors.New("selection does not belong to the current step")
	ErrTimeUnavailable   = errors.New("time is not offered for the selected volunteer and date")
	ErrSubmitInFlight    = errors.New("submission already in progress")
	ErrWizardClosed      = errors.New("wizard already submitted")
	ErrInvalidSelection  = errors.New("invalid selection")
)

// Creator submits the finished draft.
type Creator interface {
	Create(ctx context.Context, assistedID int64, in appointment.CreateInput) (*appointment.Appointment, error)
}

// TimeSource lists the times a volunteer offers on one day.
type TimeSource interface {
	AvailableTimes(ctx context.Context, volunteerID int64, day string) ([]string, error)
}

// Wizard is one assisted user's pass through the booking steps. It is safe
// for concurrent use; Submit calls the creator at most once at a time.
type Wizard struct {
	mu sync.Mutex

	id         string
	assistedID int64
	creator    Creator
	times      TimeSource
	now        func() time.Time

	state      State
	draft      Draft
	offered    []string
	offeredFor string
	submitting bool
	result     *appointment.Appointment
	lastErr    string
	touchedAt  time.Time
}

func NewWizard(id string, assistedID int64, creator Creator, times TimeSource) *Wizard {
	w := &Wizard{
		id:         id,
		assistedID: assistedID,
		creator:    creator,
		times:      times,
		now:        time.Now,
		state:      ChooseSpecialist,
	}
	w.touchedAt = w.now()
	return w
}

func (w *Wizard) ID() string { return w.id }

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// mutable checks that the draft may change at step s and marks activity.
func (w *Wizard) mutable(s State) error {
	switch {
	case w.state == Submitted:
		return ErrWizardClosed
	case w.submitting:
		return ErrSubmitInFlight
	case w.state != s:
		return fmt.Errorf("%w: at %s", ErrWrongStep, w.state)
	}
	w.touchedAt = w.now()
	return nil
}

// SelectSpecialist picks the volunteer. Changing it clears the date and
// time, which were scoped to the previous volunteer.
func (w *Wizard) SelectSpecialist(volunteerID int64, specialtyID *int64) error {
	if volunteerID <= 0 {
		return fmt.Errorf("%w: volunteer %d", ErrInvalidSelection, volunteerID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutable(ChooseSpecialist); err != nil {
		return err
	}

	if w.draft.VolunteerID != volunteerID {
		w.draft.Date = ""
		w.draft.Time = ""
		w.offered, w.offeredFor = nil, ""
	}
	w.draft.VolunteerID = volunteerID
	w.draft.SpecialtyID = specialtyID
	return nil
}

// SelectDate picks the day. Changing it clears the time.
func (w *Wizard) SelectDate(day string) error {
	if !backend.ValidDay(day) {
		return fmt.Errorf("%w: day %q", ErrInvalidSelection, day)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutable(ChooseDate); err != nil {
		return err
	}

	if w.draft.Date != day {
		w.draft.Time = ""
	}
	w.draft.Date = day
	return nil
}

// OfferedTimes returns the times the selected volunteer offers on the
// selected date, fetching them once per (volunteer, date).
func (w *Wizard) OfferedTimes(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	volunteerID, day := w.draft.VolunteerID, w.draft.Date
	key := offeredKey(volunteerID, day)
	if w.offeredFor == key {
		out := slices.Clone(w.offered)
		w.mu.Unlock()
		return out, nil
	}
	w.mu.Unlock()

	if volunteerID == 0 || day == "" {
		return nil, ErrSelectionRequired
	}

	times, err := w.times.AvailableTimes(ctx, volunteerID, day)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if offeredKey(w.draft.VolunteerID, w.draft.Date) == key {
		w.offered, w.offeredFor = times, key
	}
	return slices.Clone(times), nil
}

func offeredKey(volunteerID int64, day string) string {
	return fmt.Sprintf("%d|%s", volunteerID, day)
}

// SelectTime accepts only a time offered for the chosen volunteer and date.
func (w *Wizard) SelectTime(ctx context.Context, clock string) error {
	if !backend.ValidClock(clock) {
		return fmt.Errorf("%w: time %q", ErrInvalidSelection, clock)
	}

	w.mu.Lock()
	if err := w.mutable(ChooseTime); err != nil {
		w.mu.Unlock()
		return err
	}
	key := offeredKey(w.draft.VolunteerID, w.draft.Date)
	w.mu.Unlock()

	offered, err := w.OfferedTimes(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(offered, clock) {
		return fmt.Errorf("%w: %s", ErrTimeUnavailable, clock)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutable(ChooseTime); err != nil {
		return err
	}
	// The offered list was fetched for key; a specialist or date changed
	// meanwhile voids it.
	if offeredKey(w.draft.VolunteerID, w.draft.Date) != key {
		return fmt.Errorf("%w: %s no longer matches the selected date", ErrTimeUnavailable, clock)
	}
	w.draft.Time = clock
	return nil
}

func (w *Wizard) SelectModality(m appointment.Modality, location string) error {
	if !m.Known() {
		return fmt.Errorf("%w: modality %q", ErrInvalidSelection, m)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutable(ChooseModality); err != nil {
		return err
	}
	w.draft.Modality = m
	w.draft.Location = location
	return nil
}

// SetNotes may be called at any step before submission.
func (w *Wizard) SetNotes(notes string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutable(w.state); err != nil {
		return err
	}
	w.draft.Notes = notes
	return nil
}

// Next advances one step when the current selection is present. On the
// confirmation step it submits.
func (w *Wizard) Next(ctx context.Context) (*appointment.Appointment, error) {
	w.mu.Lock()
	if w.state == Confirm {
		w.mu.Unlock()
		return w.Submit(ctx)
	}
	defer w.mu.Unlock()

	if err := w.mutable(w.state); err != nil {
		return nil, err
	}
	if !w.draft.selected(w.state) {
		return nil, fmt.Errorf("%w: %s", ErrSelectionRequired, w.state)
	}
	to, ok := next(w.state, EventNext)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, EventNext, w.state)
	}
	w.state = to
	w.lastErr = ""
	return nil, nil
}

// Back returns one step and keeps every selection.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.mutable(w.state); err != nil {
		return err
	}
	to, ok := next(w.state, EventBack)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrIllegalTransition, EventBack, w.state)
	}
	w.state = to
	return nil
}

// Submit sends the draft exactly once per attempt. A call made while
// another is pending fails with ErrSubmitInFlight without reaching the
// creator. On failure the wizard stays on Confirm with the draft intact.
func (w *Wizard) Submit(ctx context.Context) (*appointment.Appointment, error) {
	w.mu.Lock()
	if err := w.mutable(w.state); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	to, ok := next(w.state, EventSubmit)
	if !ok {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, EventSubmit, w.state)
	}
	if err := backend.Validator().Struct(w.draft); err != nil {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrSelectionRequired, err)
	}
	w.submitting = true
	in := w.draft.input()
	w.mu.Unlock()

	appt, err := w.creator.Create(ctx, w.assistedID, in)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	w.touchedAt = w.now()
	if err != nil {
		w.lastErr = err.Error()
		return nil, err
	}
	w.state = to
	w.result = appt
	w.lastErr = ""
	return appt, nil
}

func (w *Wizard) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.touchedAt
}

// Snapshot is the confirmation view of a wizard.
type Snapshot struct {
	ID           string                   `json:"id"`
	State        string                   `json:"estado"`
	Step         int                      `json:"passo"`
	Draft        Draft                    `json:"rascunho"`
	Submitting   bool                     `json:"enviando"`
	LastError    string                   `json:"erro,omitempty"`
	Appointment  *appointment.Appointment `json:"consulta,omitempty"`
	OfferedTimes []string                 `json:"horariosDisponiveis,omitempty"`
}

func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{
		ID:          w.id,
		State:       w.state.String(),
		Step:        w.state.Step(),
		Draft:       w.draft,
		Submitting:  w.submitting,
		LastError:   w.lastErr,
		Appointment: w.result,
	}
	if w.offeredFor == offeredKey(w.draft.VolunteerID, w.draft.Date) {
		s.OfferedTimes = slices.Clone(w.offered)
	}
	return s
}

package availability

import (
	"errors"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
)

var (
	ErrDeleteRejected = errors.New("backend refused to delete slot")
	ErrSlotExists     = errors.New("slot already offered at that time")
	ErrInvalidSlot    = errors.New("invalid day or time")
)

// SlotRecord is one availability row as the backend lists it.
type SlotRecord struct {
	ID          int64  `json:"id" validate:"required"`
	DataHorario string `json:"dataHorario" validate:"required,datetime_iso"`
}

// Slot is a (day, time) offer. ID is zero while the create call that
// will supply it is still outstanding.
type Slot struct {
	ID       int64                `json:"id,omitempty"`
	Day      string               `json:"dia"`
	Time     string               `json:"horario"`
	Modality appointment.Modality `json:"modalidade,omitempty"`
}

type DaySlots struct {
	Day   string `json:"dia"`
	Slots []Slot `json:"horarios"`
}

// View is what a volunteer sees of their calendar. Stale is set when the
// backend could not be reached and the view comes from the cache alone.
type View struct {
	VolunteerID int64      `json:"idVoluntario"`
	Days        []DaySlots `json:"dias"`
	Stale       bool       `json:"desatualizado"`
}

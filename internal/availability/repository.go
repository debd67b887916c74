package availability

import (
	"context"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
)

// Repository is the availability side of the clinic backend.
type Repository interface {
	ListSlots(ctx context.Context, volunteerID int64) ([]SlotRecord, error)
	CreateSlot(ctx context.Context, volunteerID int64, dateTime string, modality appointment.Modality) (int64, error)
	// UpdateSlot moves an existing slot in place and returns its id.
	UpdateSlot(ctx context.Context, id int64, dateTime string) (int64, error)
	DeleteSlot(ctx context.Context, id int64) error
	AvailableTimes(ctx context.Context, volunteerID int64, day string) ([]string, error)
}

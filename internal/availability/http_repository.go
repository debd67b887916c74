package availability

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
	"github.com/hackgods/assistance-scheduling/internal/backend"
)

const (
	pathSlots = "/disponibilidade"
	pathSlot  = "/disponibilidade/%d"
)

type HTTPRepository struct {
	client       *backend.Client
	appointments *appointment.HTTPRepository
}

func NewHTTPRepository(client *backend.Client) *HTTPRepository {
	return &HTTPRepository{
		client:       client,
		appointments: appointment.NewHTTPRepository(client),
	}
}

type createSlotRequest struct {
	DataHorario string               `json:"dataHorario"`
	VolunteerID int64                `json:"idVoluntario"`
	Modality    appointment.Modality `json:"modalidade"`
}

type updateSlotRequest struct {
	DataHorario string `json:"dataHorario"`
}

type idResponse struct {
	ID int64 `json:"id" validate:"required"`
}

func (r *HTTPRepository) ListSlots(ctx context.Context, volunteerID int64) ([]SlotRecord, error) {
	q := url.Values{"idVoluntario": []string{strconv.FormatInt(volunteerID, 10)}}

	var out []SlotRecord
	if err := r.client.Get(ctx, pathSlots, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *HTTPRepository) CreateSlot(ctx context.Context, volunteerID int64, dateTime string, modality appointment.Modality) (int64, error) {
	var out idResponse
	req := createSlotRequest{DataHorario: dateTime, VolunteerID: volunteerID, Modality: modality}
	if err := r.client.PostJSON(ctx, pathSlots, req, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (r *HTTPRepository) UpdateSlot(ctx context.Context, id int64, dateTime string) (int64, error) {
	var out idResponse
	if err := r.client.PatchJSON(ctx, fmt.Sprintf(pathSlot, id), updateSlotRequest{DataHorario: dateTime}, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// DeleteSlot treats a false answer from the backend as a failed delete.
func (r *HTTPRepository) DeleteSlot(ctx context.Context, id int64) error {
	var ok bool
	if err := r.client.Delete(ctx, fmt.Sprintf(pathSlot, id), &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete slot %d: %w", id, ErrDeleteRejected)
	}
	return nil
}

func (r *HTTPRepository) AvailableTimes(ctx context.Context, volunteerID int64, day string) ([]string, error) {
	return r.appointments.AvailableTimes(ctx, volunteerID, day)
}

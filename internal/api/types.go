package api

import (
	"time"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
	"github.com/hackgods/assistance-scheduling/internal/store"
)

type CreateSessionRequest struct {
	Token     string         `json:"token" validate:"required"`
	UserID    int64          `json:"userId" validate:"required,gt=0"`
	UserType  string         `json:"userType" validate:"required,oneof=voluntario assistido"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	Profile   *store.Profile `json:"profile,omitempty"`
}

type SessionResponse struct {
	SessionID string         `json:"sessionId"`
	UserID    int64          `json:"userId"`
	UserType  string         `json:"userType"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	Profile   *store.Profile `json:"profile,omitempty"`
}

type RatingRequest struct {
	Rating int `json:"avaliacao" validate:"min=1,max=5"`
}

type FeedbackRequest struct {
	Feedback string `json:"feedback" validate:"required,max=2000"`
}

type SpecialistRequest struct {
	VolunteerID int64  `json:"idVoluntario" validate:"required,gt=0"`
	SpecialtyID *int64 `json:"idEspecialidade,omitempty"`
}

type DateRequest struct {
	Date string `json:"data" validate:"required,day"`
}

type TimeRequest struct {
	Time string `json:"horario" validate:"required,clock"`
}

type ModalityRequest struct {
	Modality appointment.Modality `json:"modalidade" validate:"required,oneof=ONLINE PRESENCIAL"`
	Location string               `json:"local,omitempty"`
}

type NotesRequest struct {
	Notes string `json:"observacoes" validate:"max=1000"`
}

type AddSlotRequest struct {
	Time     string               `json:"horario" validate:"required,clock"`
	Modality appointment.Modality `json:"modalidade" validate:"required,oneof=ONLINE PRESENCIAL"`
}

type EditDayRequest struct {
	Times    []string             `json:"horarios" validate:"dive,clock"`
	Modality appointment.Modality `json:"modalidade" validate:"required,oneof=ONLINE PRESENCIAL"`
}

type TimesResponse struct {
	Times []string `json:"horarios"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	// Upstream is the backend status when the failure came from it:
	// an HTTP code, 0 when unreachable, -1 when unexpected.
	Upstream *int     `json:"upstream,omitempty"`
	Failed   []string `json:"failed,omitempty"`
}

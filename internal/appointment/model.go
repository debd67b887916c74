package appointment

import "strings"

// UserType selects the role-scoped backend endpoints.
type UserType string

const (
	UserVolunteer UserType = "voluntario"
	UserAssisted  UserType = "assistido"
)

func (u UserType) Valid() bool {
	return u == UserVolunteer || u == UserAssisted
}

func ParseUserType(raw string) (UserType, bool) {
	u := UserType(strings.ToLower(strings.TrimSpace(raw)))
	return u, u.Valid()
}

// Period is the window of a count query.
type Period string

const (
	PeriodDay   Period = "dia"
	PeriodWeek  Period = "semana"
	PeriodMonth Period = "mes"
)

func (p Period) Valid() bool {
	return p == PeriodDay || p == PeriodWeek || p == PeriodMonth
}

// Status is kept open so unknown backend values still decode.
type Status string

const (
	StatusScheduled Status = "AGENDADA"
	StatusCancelled Status = "CANCELADA"
	StatusCompleted Status = "REALIZADA"
)

// CanTransition reports whether the UI may move an appointment from s to
// next. Scheduled appointments end as cancelled or completed; nothing moves
// backwards. The backend remains the authority.
func (s Status) CanTransition(next Status) bool {
	return s == StatusScheduled && (next == StatusCancelled || next == StatusCompleted)
}

type Modality string

const (
	ModalityOnline   Modality = "ONLINE"
	ModalityInPerson Modality = "PRESENCIAL"
)

const (
	defaultOnlinePlace   = "Online"
	defaultInPersonPlace = "A combinar"
)

func (m Modality) Known() bool {
	return m == ModalityOnline || m == ModalityInPerson
}

type Specialty struct {
	ID   int64  `json:"id" validate:"required"`
	Name string `json:"nome"`
}

type UserRef struct {
	ID         int64  `json:"id"`
	Name       string `json:"nome"`
	Profession string `json:"profissao,omitempty"`
}

// Appointment is one consultation as the backend reports it.
type Appointment struct {
	ID          int64      `json:"id" validate:"required"`
	ScheduledAt string     `json:"horario" validate:"required,datetime_iso"`
	Status      Status     `json:"status" validate:"required"`
	Modality    Modality   `json:"modalidade" validate:"required"`
	Location    string     `json:"local"`
	Notes       *string    `json:"observacoes,omitempty"`
	Specialty   *Specialty `json:"especialidade,omitempty"`
	Volunteer   UserRef    `json:"voluntario"`
	Assisted    UserRef    `json:"assistido"`
	CreatedAt   *string    `json:"criadoEm,omitempty"`
	UpdatedAt   *string    `json:"atualizadoEm,omitempty"`
	Rating      *int       `json:"avaliacao,omitempty"`
	Feedback    *string    `json:"feedback,omitempty"`
}

// Upcoming is the denormalized view of the nearest future appointment.
type Upcoming struct {
	ID               int64    `json:"id" validate:"required"`
	ScheduledAt      string   `json:"horario" validate:"required,datetime_iso"`
	Modality         Modality `json:"modalidade"`
	Location         string   `json:"local"`
	CounterpartName  string   `json:"nome" validate:"required"`
	CounterpartTitle string   `json:"profissao"`
}

// Stats serializes with the keys the UI already renders.
type Stats struct {
	Today int `json:"hoje"`
	Week  int `json:"semana"`
	Month int `json:"mes"`
}

// Review combines the rating and the free text feedback of one appointment.
type Review struct {
	AppointmentID   int64   `json:"idConsulta" validate:"required"`
	ScheduledAt     string  `json:"horario"`
	CounterpartName string  `json:"nome"`
	Rating          *int    `json:"avaliacao,omitempty"`
	Feedback        *string `json:"feedback,omitempty"`
}

// CreateInput is what the booking wizard submits.
type CreateInput struct {
	VolunteerID int64    `json:"idVoluntario" validate:"required,gt=0"`
	Date        string   `json:"data" validate:"required,day"`
	Time        string   `json:"horario" validate:"required,clock"`
	Modality    Modality `json:"modalidade" validate:"required,oneof=ONLINE PRESENCIAL"`
	Notes       string   `json:"observacoes,omitempty"`
	SpecialtyID *int64   `json:"especialidade,omitempty"`
	Location    string   `json:"local,omitempty"`
}

func (in CreateInput) location() string {
	if in.Location != "" {
		return in.Location
	}
	if in.Modality == ModalityOnline {
		return defaultOnlinePlace
	}
	return defaultInPersonPlace
}

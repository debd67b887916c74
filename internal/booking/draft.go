package booking

import (
	"github.com/hackgods/assistance-scheduling/internal/appointment"
)

// Draft is the unsaved selection state of one wizard.
type Draft struct {
	VolunteerID int64                `json:"idVoluntario,omitempty" validate:"required"`
	SpecialtyID *int64               `json:"idEspecialidade,omitempty"`
	Date        string               `json:"data,omitempty" validate:"required,day"`
	Time        string               `json:"horario,omitempty" validate:"required,clock"`
	Modality    appointment.Modality `json:"modalidade,omitempty" validate:"required,oneof=ONLINE PRESENCIAL"`
	Notes       string               `json:"observacoes,omitempty" validate:"max=1000"`
	Location    string               `json:"local,omitempty"`
}

// selected reports whether the choice made at step s is present.
func (d Draft) selected(s State) bool {
	switch s {
	case ChooseSpecialist:
		return d.VolunteerID != 0
	case ChooseDate:
		return d.Date != ""
	case ChooseTime:
		return d.Time != ""
	case ChooseModality:
		return d.Modality != ""
	default:
		return true
	}
}

func (d Draft) input() appointment.CreateInput {
	return appointment.CreateInput{
		VolunteerID: d.VolunteerID,
		Date:        d.Date,
		Time:        d.Time,
		Modality:    d.Modality,
		Notes:       d.Notes,
		SpecialtyID: d.SpecialtyID,
		Location:    d.Location,
	}
}

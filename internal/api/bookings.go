package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
	"github.com/hackgods/assistance-scheduling/internal/booking"
)

type BookingSubmitted struct {
	Appointment *appointment.Appointment `json:"consulta"`
}

// withWizard resolves {id} to the caller's wizard.
func withWizard(reg *booking.Registry, fn func(w http.ResponseWriter, r *http.Request, wiz *booking.Wizard)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, _ := AuthFromContext(r.Context())
		wiz, err := reg.Get(auth.SessionID, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		fn(w, r, wiz)
	}
}

func openBookingHandler(reg *booking.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, _ := AuthFromContext(r.Context())
		if auth.UserType != string(appointment.UserAssisted) {
			writeError(w, http.StatusForbidden, "assisted_only", "only assisted users book appointments")
			return
		}

		wiz := reg.Open(auth.SessionID, auth.UserID)
		writeJSON(w, http.StatusCreated, wiz.Snapshot())
	}
}

func getBookingHandler(reg *booking.Registry) http.HandlerFunc {
	return withWizard(reg, func(w http.ResponseWriter, r *http.Request, wiz *booking.Wizard) {
		writeJSON(w, http.StatusOK, wiz.Snapshot())
	})
}

func bookingTimesHandler(reg *booking.Registry) http.HandlerFunc {
	return withWizard(reg, func(w http.ResponseWriter, r *http.Request, wiz *booking.Wizard) {
		times, err := nonNil(wiz.OfferedTimes(r.Context()))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, TimesResponse{Times: times})
	})
}

// selection decodes a request body, applies it and answers with the new
// snapshot.
func selection[T any](reg *booking.Registry, apply func(r *http.Request, wiz *booking.Wizard, req T) error) http.HandlerFunc {
	return withWizard(reg, func(w http.ResponseWriter, r *http.Request, wiz *booking.Wizard) {
		var req T
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := apply(r, wiz, req); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wiz.Snapshot())
	})
}

func selectSpecialistHandler(reg *booking.Registry) http.HandlerFunc {
	return selection(reg, func(_ *http.Request, wiz *booking.Wizard, req SpecialistRequest) error {
		return wiz.SelectSpecialist(req.VolunteerID, req.SpecialtyID)
	})
}

func selectDateHandler(reg *booking.Registry) http.HandlerFunc {
	return selection(reg, func(_ *http.Request, wiz *booking.Wizard, req DateRequest) error {
		return wiz.SelectDate(req.Date)
	})
}

func selectTimeHandler(reg *booking.Registry) http.HandlerFunc {
	return selection(reg, func(r *http.Request, wiz *booking.Wizard, req TimeRequest) error {
		return wiz.SelectTime(r.Context(), req.Time)
	})
}

func selectModalityHandler(reg *booking.Registry) http.HandlerFunc {
	return selection(reg, func(_ *http.Request, wiz *booking.Wizard, req ModalityRequest) error {
		return wiz.SelectModality(req.Modality, req.Location)
	})
}

func setNotesHandler(reg *booking.Registry) http.HandlerFunc {
	return selection(reg, func(_ *http.Request, wiz *booking.Wizard, req NotesRequest) error {
		return wiz.SetNotes(req.Notes)
	})
}

func backHandler(reg *booking.Registry) http.HandlerFunc {
	return withWizard(reg, func(w http.ResponseWriter, r *http.Request, wiz *booking.Wizard) {
		if err := wiz.Back(); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wiz.Snapshot())
	})
}

// advanceHandler serves both next and submit: on the confirmation step
// next submits, and a successful submission closes the wizard.
func advanceHandler(reg *booking.Registry, submit bool) http.HandlerFunc {
	return withWizard(reg, func(w http.ResponseWriter, r *http.Request, wiz *booking.Wizard) {
		var (
			appt *appointment.Appointment
			err  error
		)
		if submit {
			appt, err = wiz.Submit(r.Context())
		} else {
			appt, err = wiz.Next(r.Context())
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		if appt == nil {
			writeJSON(w, http.StatusOK, wiz.Snapshot())
			return
		}

		auth, _ := AuthFromContext(r.Context())
		_ = reg.Close(auth.SessionID, wiz.ID())
		writeJSON(w, http.StatusCreated, BookingSubmitted{Appointment: appt})
	})
}

func closeBookingHandler(reg *booking.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, _ := AuthFromContext(r.Context())
		if err := reg.Close(auth.SessionID, chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

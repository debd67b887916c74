package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
	"github.com/hackgods/assistance-scheduling/internal/availability"
)

// ownCalendar resolves {id} and only lets volunteers touch their own
// calendar.
func ownCalendar(w http.ResponseWriter, r *http.Request) (int64, bool) {
	volunteerID, ok := int64Param(w, r, "id")
	if !ok {
		return 0, false
	}
	auth, _ := AuthFromContext(r.Context())
	if auth.UserType != string(appointment.UserVolunteer) || auth.UserID != volunteerID {
		writeError(w, http.StatusForbidden, "not_calendar_owner", "volunteers may only manage their own calendar")
		return 0, false
	}
	return volunteerID, true
}

func calendarHandler(m *availability.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		volunteerID, ok := ownCalendar(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		f := availability.Filter{Month: q.Get("month"), Day: q.Get("day"), Time: q.Get("time")}

		var (
			view *availability.View
			err  error
		)
		if f == (availability.Filter{}) {
			view, err = m.Load(r.Context(), volunteerID)
		} else {
			view, err = m.View(r.Context(), volunteerID, f)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func addSlotHandler(m *availability.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		volunteerID, ok := ownCalendar(w, r)
		if !ok {
			return
		}
		var req AddSlotRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		slot, err := m.AddSlot(r.Context(), volunteerID, chi.URLParam(r, "day"), req.Time, req.Modality)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, slot)
	}
}

func removeSlotHandler(m *availability.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		volunteerID, ok := ownCalendar(w, r)
		if !ok {
			return
		}

		if err := m.RemoveSlot(r.Context(), volunteerID, chi.URLParam(r, "day"), chi.URLParam(r, "time")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func editDayHandler(m *availability.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		volunteerID, ok := ownCalendar(w, r)
		if !ok {
			return
		}
		var req EditDayRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		plan, err := m.EditDay(r.Context(), volunteerID, chi.URLParam(r, "day"), req.Times, req.Modality)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

func removeDayHandler(m *availability.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		volunteerID, ok := ownCalendar(w, r)
		if !ok {
			return
		}

		if err := m.RemoveDay(r.Context(), volunteerID, chi.URLParam(r, "day")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

package api

import (
	"net/http"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
	"github.com/hackgods/assistance-scheduling/internal/backend"
)

// userType takes ?user= when given, else the session's role.
func userType(w http.ResponseWriter, r *http.Request) (appointment.UserType, bool) {
	raw := r.URL.Query().Get("user")
	if raw == "" {
		auth, _ := AuthFromContext(r.Context())
		raw = auth.UserType
	}
	u, ok := appointment.ParseUserType(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_user_type", "user must be voluntario or assistido")
		return "", false
	}
	return u, true
}

func statsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := userType(w, r)
		if !ok {
			return
		}

		stats, err := svc.AllStats(r.Context(), u)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func listHandler(list func(r *http.Request, u appointment.UserType) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := userType(w, r)
		if !ok {
			return
		}

		items, err := list(r, u)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func upcomingHandler(svc *appointment.Service) http.HandlerFunc {
	return listHandler(func(r *http.Request, u appointment.UserType) (any, error) {
		return nonNil(svc.Upcoming3(r.Context(), u))
	})
}

func recentHandler(svc *appointment.Service) http.HandlerFunc {
	return listHandler(func(r *http.Request, u appointment.UserType) (any, error) {
		return nonNil(svc.Recent(r.Context(), u))
	})
}

func historyHandler(svc *appointment.Service) http.HandlerFunc {
	return listHandler(func(r *http.Request, u appointment.UserType) (any, error) {
		return nonNil(svc.History(r.Context(), u))
	})
}

func reviewsHandler(svc *appointment.Service) http.HandlerFunc {
	return listHandler(func(r *http.Request, u appointment.UserType) (any, error) {
		return nonNil(svc.Reviews(r.Context(), u))
	})
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](items []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func nextHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, _ := AuthFromContext(r.Context())

		next, err := svc.Next(r.Context(), auth.UserID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if next == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, next)
	}
}

func cancelHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StatusResponse{Status: string(appointment.StatusCancelled)})
	}
}

func ratingHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}
		var req RatingRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := svc.Rate(r.Context(), id, req.Rating); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func feedbackHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(w, r, "id")
		if !ok {
			return
		}
		var req FeedbackRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := svc.AddFeedback(r.Context(), id, req.Feedback); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func availableTimesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		volunteerID, ok := int64Param(w, r, "id")
		if !ok {
			return
		}
		day := r.URL.Query().Get("date")
		if !backend.ValidDay(day) {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		times, err := nonNil(svc.AvailableTimes(r.Context(), volunteerID, day))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, TimesResponse{Times: times})
	}
}

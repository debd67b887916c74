package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
	"github.com/hackgods/assistance-scheduling/internal/availability"
	"github.com/hackgods/assistance-scheduling/internal/backend"
	"github.com/hackgods/assistance-scheduling/internal/booking"
	redisclient "github.com/hackgods/assistance-scheduling/internal/redis"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// decodeJSON reads and validates a request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := backend.Validator().Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+name, fmt.Sprintf("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

// writeServiceError maps domain and backend failures to responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var batch *availability.BatchError
	var verrs validator.ValidationErrors

	switch {
	case errors.As(err, &batch):
		failed := make([]string, 0, len(batch.Failed))
		for _, f := range batch.Failed {
			failed = append(failed, fmt.Sprintf("%s %s", f.Kind, f.Time))
		}
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "batch_partially_failed",
			Details: batch.Error(),
			Failed:  failed,
		})
		return

	case errors.Is(err, booking.ErrWizardNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrSelectionRequired),
		errors.Is(err, booking.ErrInvalidSelection),
		errors.Is(err, booking.ErrTimeUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "invalid_selection", err.Error())
	case errors.Is(err, booking.ErrWrongStep),
		errors.Is(err, booking.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, booking.ErrSubmitInFlight):
		writeError(w, http.StatusConflict, "submit_in_flight", err.Error())
	case errors.Is(err, booking.ErrWizardClosed):
		writeError(w, http.StatusConflict, "booking_closed", err.Error())

	case errors.Is(err, availability.ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, "invalid_slot", err.Error())
	case errors.Is(err, availability.ErrSlotExists):
		writeError(w, http.StatusConflict, "slot_exists", err.Error())
	case errors.Is(err, availability.ErrDeleteRejected):
		writeError(w, http.StatusBadGateway, "delete_rejected", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "calendar_busy", "calendar is being edited, please retry shortly")

	case errors.Is(err, appointment.ErrInvalidUserType),
		errors.Is(err, appointment.ErrInvalidPeriod),
		errors.As(err, &verrs):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())

	default:
		writeBackendError(w, err)
	}
}

func writeBackendError(w http.ResponseWriter, err error) {
	apiErr, ok := backend.AsAPIError(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	upstream := apiErr.Status
	resp := ErrorResponse{Details: apiErr.Message, Upstream: &upstream}
	status := http.StatusBadGateway

	switch apiErr.Kind {
	case backend.KindServer:
		resp.Error = "backend_rejected"
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			status = apiErr.Status
		}
	case backend.KindUnavailable:
		resp.Error = "backend_unavailable"
		status = http.StatusServiceUnavailable
	case backend.KindSchema:
		resp.Error = "backend_schema_mismatch"
	default:
		resp.Error = "unexpected_error"
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, resp)
}

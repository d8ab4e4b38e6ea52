package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps the typed failure taxonomy onto HTTP. Conflicts that
// the client can recover from by re-querying slots come back 409; inputs
// that can never succeed come back 422; transient store trouble is 503 so
// callers know a backoff retry is safe.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrInvalidSchedule):
		writeError(w, http.StatusUnprocessableEntity, "invalid_schedule", err.Error())
	case errors.Is(err, booking.ErrInvalidWindow):
		writeError(w, http.StatusUnprocessableEntity, "invalid_window", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, booking.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, "already_terminal", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrPhysicianNotFound):
		writeError(w, http.StatusNotFound, "physician_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrWindowNotFound):
		writeError(w, http.StatusNotFound, "window_not_found", err.Error())
	case errors.Is(err, booking.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "appointment store is temporarily unavailable, retry with backoff")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

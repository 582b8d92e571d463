package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/availability"
	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps service errors onto HTTP statuses. Unknown errors are
// logged and reported without internals.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	switch {
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, availability.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, availability.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidBooking),
		errors.Is(err, availability.ErrInvalidDate),
		errors.Is(err, availability.ErrInvalidTimeOfDay),
		errors.Is(err, availability.ErrInvalidDayOfWeek),
		errors.Is(err, availability.ErrInvalidRange),
		errors.Is(err, availability.ErrInvalidRule):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		logger.Error("request failed", "error", err, "path", r.URL.Path, "request_id", GetRequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

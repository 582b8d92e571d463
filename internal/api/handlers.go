package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/availability"
	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

type appointmentHandlers struct {
	svc    AppointmentService
	logger *logging.Logger
}

func (h *appointmentHandlers) book(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
		return
	}
	date, err := availability.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}
	start, err := availability.ParseTimeOfDay(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
		return
	}
	slotMinutes, ok := granularityMinutes(w, req.Granularity)
	if !ok {
		return
	}

	p, _ := PrincipalFromContext(r.Context())
	if p.Role != RoleAdmin && !(p.Role == RolePatient && p.UserID == patientID) {
		writeError(w, http.StatusForbidden, "forbidden", "patients can only book for themselves")
		return
	}

	appt, err := h.svc.Book(r.Context(), appointment.BookRequest{
		PatientID:       patientID,
		ProviderID:      providerID,
		Date:            date,
		StartTime:       start,
		DurationMinutes: req.DurationMinutes,
		SlotMinutes:     slotMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

// loadVisible fetches the appointment named in the path if the caller is a party to it
func (h *appointmentHandlers) loadVisible(w http.ResponseWriter, r *http.Request) (*appointment.Appointment, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return nil, false
	}

	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return nil, false
	}

	p, _ := PrincipalFromContext(r.Context())
	if !canSeeAppointment(p, *appt) {
		// indistinguishable from a missing appointment
		writeError(w, http.StatusNotFound, "appointment_not_found", appointment.ErrAppointmentNotFound.Error())
		return nil, false
	}
	return appt, true
}

func (h *appointmentHandlers) get(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *appointmentHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	cancelled, err := h.svc.Cancel(r.Context(), appt.ID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*cancelled))
}

func (h *appointmentHandlers) join(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	updated, room, err := h.svc.JoinSession(r.Context(), appt.ID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, JoinSessionResponse{
		Appointment: toAppointmentResponse(*updated),
		RoomRef:     room.Ref,
		JoinURL:     room.JoinURL,
	})
}

func (h *appointmentHandlers) listByPatient(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())

	patientID := p.UserID
	if raw := r.URL.Query().Get("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		patientID = id
	}
	if p.Role != RoleAdmin && !(p.Role == RolePatient && p.UserID == patientID) {
		writeError(w, http.StatusForbidden, "forbidden", "patients can only list their own appointments")
		return
	}

	limit, err := intQuery(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}
	offset, err := intQuery(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_offset", err.Error())
		return
	}

	list, err := h.svc.ListByPatient(r.Context(), patientID, limit, offset)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(list))
}

func canSeeAppointment(p Principal, a appointment.Appointment) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RolePatient:
		return p.UserID == a.PatientID
	case RoleProvider:
		return p.UserID == a.ProviderID
	}
	return false
}

func canManageProvider(p Principal, providerID uuid.UUID) bool {
	return p.Role == RoleAdmin || (p.Role == RoleProvider && p.UserID == providerID)
}

func intQuery(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

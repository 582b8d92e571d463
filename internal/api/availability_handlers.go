package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/availability"
	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

type availabilityHandlers struct {
	manager      AvailabilityManager
	resolver     SlotResolver
	appointments AppointmentService
	logger       *logging.Logger
}

func providerIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// managedProvider parses the provider id and checks the caller may edit it
func managedProvider(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := providerIDParam(w, r)
	if !ok {
		return uuid.Nil, false
	}
	p, _ := PrincipalFromContext(r.Context())
	if !canManageProvider(p, id) {
		writeError(w, http.StatusForbidden, "forbidden", "only the provider can manage this schedule")
		return uuid.Nil, false
	}
	return id, true
}

// granularityMinutes parses an optional duration such as "30m"; empty yields zero
func granularityMinutes(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 || d%time.Minute != 0 {
		writeError(w, http.StatusBadRequest, "invalid_granularity", "granularity must be a positive whole number of minutes, e.g. 30m")
		return 0, false
	}
	return int(d / time.Minute), true
}

func (h *availabilityHandlers) getAvailability(w http.ResponseWriter, r *http.Request) {
	providerID, ok := providerIDParam(w, r)
	if !ok {
		return
	}

	date, err := availability.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	var opts []availability.ResolveOption
	minutes, ok := granularityMinutes(w, r.URL.Query().Get("granularity"))
	if !ok {
		return
	}
	if minutes > 0 {
		opts = append(opts, availability.WithSlotLength(time.Duration(minutes)*time.Minute))
	}

	res, err := h.resolver.Resolve(r.Context(), providerID, date, opts...)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	slots := res.Slots
	if slots == nil {
		slots = []availability.Slot{}
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		ProviderID: providerID,
		Date:       date.String(),
		Blocked:    res.Blocked,
		Slots:      slots,
	})
}

func (h *availabilityHandlers) listRules(w http.ResponseWriter, r *http.Request) {
	providerID, ok := managedProvider(w, r)
	if !ok {
		return
	}

	rules, err := h.manager.ListRules(r.Context(), providerID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	out := make([]RuleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *availabilityHandlers) createRule(w http.ResponseWriter, r *http.Request) {
	providerID, ok := managedProvider(w, r)
	if !ok {
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	day, err := availability.NewDayOfWeek(req.DayOfWeek)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	start, err := availability.ParseTimeOfDay(req.StartTime)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	end, err := availability.ParseTimeOfDay(req.EndTime)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	rule, err := h.manager.AddRule(r.Context(), providerID, day, start, end)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleResponse(*rule))
}

func (h *availabilityHandlers) deactivateRule(w http.ResponseWriter, r *http.Request) {
	providerID, ok := managedProvider(w, r)
	if !ok {
		return
	}
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_rule_id", "ruleID must be a valid UUID")
		return
	}

	rule, err := h.manager.DeactivateRule(r.Context(), providerID, ruleID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(*rule))
}

func (h *availabilityHandlers) blockDates(w http.ResponseWriter, r *http.Request) {
	providerID, ok := managedProvider(w, r)
	if !ok {
		return
	}

	var req BlockDatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	start, err := availability.ParseDate(req.StartDate)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	end, err := availability.ParseDate(req.EndDate)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	block, err := h.manager.BlockDates(r.Context(), providerID, start, end, req.Reason)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, BlockResponse{
		ID:         block.ID,
		ProviderID: block.ProviderID,
		StartDate:  block.Range.Start.String(),
		EndDate:    block.Range.End.String(),
		Reason:     block.Reason,
	})
}

func (h *availabilityHandlers) setOverride(w http.ResponseWriter, r *http.Request) {
	providerID, ok := managedProvider(w, r)
	if !ok {
		return
	}

	var req SlotOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	date, err := availability.ParseDate(req.Date)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	start, err := availability.ParseTimeOfDay(req.StartTime)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	end, err := availability.ParseTimeOfDay(req.EndTime)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}

	ov, err := h.manager.SetSlotOverride(r.Context(), providerID, date, start, end, available)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SlotOverrideResponse{
		ID:            ov.ID,
		ProviderID:    ov.ProviderID,
		Date:          ov.Date.String(),
		StartTime:     ov.Start.String(),
		EndTime:       ov.End.String(),
		Available:     ov.Available,
		AppointmentID: ov.AppointmentID,
	})
}

// listProviderAppointments takes an RFC 3339 from/to window
func (h *availabilityHandlers) listProviderAppointments(w http.ResponseWriter, r *http.Request) {
	providerID, ok := managedProvider(w, r)
	if !ok {
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC 3339")
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC 3339")
		return
	}

	list, err := h.appointments.ListByProvider(r.Context(), providerID, from, to)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(list))
}

package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hackgods/consultation-scheduling/internal/availability"
	"github.com/hackgods/consultation-scheduling/internal/conferencing"
	"github.com/hackgods/consultation-scheduling/internal/events"
	"github.com/hackgods/consultation-scheduling/internal/notify"
	"github.com/hackgods/consultation-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/consultation-scheduling/internal/redis"
	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

var tracer = otel.Tracer("scheduling.internal.appointment")

const (
	EventAppointmentScheduled     = "APPOINTMENT_SCHEDULED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentRoomCreated   = "APPOINTMENT_ROOM_CREATED"
)

const (
	maxCASAttempts  = 3
	maxLockAttempts = 3
	lockRetryDelay  = 25 * time.Millisecond
)

// RoomProvider is the conferencing collaborator
type RoomProvider interface {
	CreateOrGetRoom(ctx context.Context, appointmentID uuid.UUID) (conferencing.Room, error)
	JoinURL(ref string) string
}

// EventLedger dedupes redelivered external events
type EventLedger interface {
	AlreadyProcessed(ctx context.Context, source events.Source, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, source events.Source, eventID string) (bool, error)
}

type Service struct {
	repo     Store
	tx       Transactor
	resolver *availability.Resolver
	guard    *Guard
	locker   redisclient.Locker

	rooms           RoomProvider
	notifier        notify.Notifier
	ledger          EventLedger
	metrics         *metrics.SchedulingMetrics
	logger          *logging.Logger
	defaultDuration int
}

type Option func(*Service)

func WithRooms(rooms RoomProvider) Option {
	return func(s *Service) { s.rooms = rooms }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithEventLedger(l EventLedger) Option {
	return func(s *Service) { s.ledger = l }
}

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultDuration sets the minutes used when a booking omits its duration.
// Zero keeps the resolved slot length.
func WithDefaultDuration(minutes int) Option {
	return func(s *Service) {
		if minutes > 0 {
			s.defaultDuration = minutes
		}
	}
}

func NewService(repo Store, tx Transactor, resolver *availability.Resolver, locker redisclient.Locker, opts ...Option) *Service {
	if repo == nil || tx == nil || resolver == nil || locker == nil {
		panic("appointment: repo, transactor, resolver and locker are required")
	}
	s := &Service{
		repo:     repo,
		tx:       tx,
		resolver: resolver,
		guard:    NewGuard(resolver),
		locker:   locker,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book reserves a slot for a patient. The Redis lock only sheds concurrent
// attempts; the transaction and the partial unique index decide the winner.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.provider_id", req.ProviderID.String()),
		attribute.String("scheduling.date", req.Date.String()),
		attribute.String("scheduling.start", req.StartTime.String()),
	)

	started := time.Now()
	appt, err := s.book(ctx, req)
	s.metrics.ObserveBooking(bookingOutcome(err), time.Since(started).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("scheduling.appointment_id", appt.ID.String()))
	s.logger.Info("appointment scheduled", "appointment_id", appt.ID, "provider_id", appt.ProviderID, "scheduled_at", appt.ScheduledAt)
	return appt, nil
}

func (s *Service) book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if req.PatientID == uuid.Nil || req.ProviderID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient and provider are required", ErrInvalidBooking)
	}
	if req.DurationMinutes < 0 {
		return nil, fmt.Errorf("%w: duration must not be negative", ErrInvalidBooking)
	}
	if req.SlotMinutes < 0 {
		return nil, fmt.Errorf("%w: slot length must not be negative", ErrInvalidBooking)
	}
	if req.StartTime < 0 || req.StartTime >= 24*60 {
		return nil, fmt.Errorf("%w: start time out of range", ErrInvalidBooking)
	}

	if _, err := s.repo.GetPatient(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	start := req.Date.At(req.StartTime, s.resolver.Location())
	minutes := req.DurationMinutes
	if minutes == 0 {
		minutes = s.defaultDuration
	}

	var resolveOpts []availability.ResolveOption
	if req.SlotMinutes > 0 {
		resolveOpts = append(resolveOpts, availability.WithSlotLength(time.Duration(req.SlotMinutes)*time.Minute))
	}

	var created *Appointment

	err := s.withSlotLock(ctx, req.ProviderID, start, func(lockCtx context.Context) error {
		return s.tx.InTx(lockCtx, func(txCtx context.Context, stores Stores) error {
			// re-check inside the transaction so the decision and the write share a snapshot
			slot, ok, err := s.guard.Evaluate(txCtx, stores, req.ProviderID, slotFor(start, minutes), resolveOpts...)
			if err != nil {
				return err
			}
			if !ok {
				return ErrSlotUnavailable
			}

			appt, err := stores.Appointments.InsertAppointment(txCtx, Appointment{
				ID:              uuid.New(),
				PatientID:       req.PatientID,
				ProviderID:      req.ProviderID,
				ScheduledAt:     start.UTC(),
				DurationMinutes: int(slot.Duration() / time.Minute),
				Status:          StatusScheduled,
				Notes:           req.Notes,
			})
			if err != nil {
				return err
			}

			if _, err := stores.Ledger.ClaimSlotOverride(txCtx, req.ProviderID, req.Date, req.StartTime, appt.ID); err != nil {
				return fmt.Errorf("claim slot override: %w", err)
			}

			if err := s.logEvent(txCtx, stores.Appointments, appt.ID, EventAppointmentScheduled, map[string]any{
				"patient_id":       appt.PatientID.String(),
				"provider_id":      appt.ProviderID.String(),
				"scheduled_at":     appt.ScheduledAt,
				"duration_minutes": appt.DurationMinutes,
			}); err != nil {
				return err
			}

			created = appt
			return nil
		})
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	return created, nil
}

// withSlotLock retries briefly on contention; the holder may still fail and
// leave the slot free.
func (s *Service) withSlotLock(ctx context.Context, providerID uuid.UUID, start time.Time, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= maxLockAttempts; attempt++ {
		err = s.locker.WithSlotLock(ctx, providerID, start, fn)
		if !errors.Is(err, redisclient.ErrLockNotAcquired) || attempt == maxLockAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * lockRetryDelay):
		}
	}
	return err
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrInvalidBooking), errors.Is(err, ErrPatientNotFound), errors.Is(err, availability.ErrProviderNotFound):
		return "rejected"
	default:
		return "error"
	}
}

// Cancel is the user-initiated cancellation
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, _, err := s.transition(ctx, id, TriggerCancel)
	return appt, err
}

// transition applies trigger with compare-and-set, reloading after a lost race.
// applied is false for replays that were already in effect.
func (s *Service) transition(ctx context.Context, id uuid.UUID, trigger Trigger) (appt *Appointment, applied bool, err error) {
	ctx, span := tracer.Start(ctx, "appointment.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.appointment_id", id.String()),
		attribute.String("scheduling.trigger", string(trigger)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
	}()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var result *Appointment
		var from Status
		noop := false

		err = s.tx.InTx(ctx, func(txCtx context.Context, stores Stores) error {
			current, err := stores.Appointments.GetAppointment(txCtx, id)
			if err != nil {
				return err
			}
			to, isNoop, err := Next(current.Status, trigger)
			if err != nil {
				return err
			}
			if isNoop {
				noop = true
				result = current
				return nil
			}

			updated, err := stores.Appointments.UpdateStatus(txCtx, id, current.Status, to)
			if err != nil {
				return err
			}
			if to == StatusCancelled {
				if _, err := stores.Ledger.ReleaseSlotOverride(txCtx, id); err != nil {
					return fmt.Errorf("release slot override: %w", err)
				}
			}
			if err := s.logEvent(txCtx, stores.Appointments, id, EventAppointmentStatusChanged, map[string]any{
				"trigger": string(trigger),
				"from":    string(current.Status),
				"to":      string(to),
			}); err != nil {
				return err
			}
			from = current.Status
			result = updated
			return nil
		})

		switch {
		case errors.Is(err, errStaleStatus):
			s.logger.Debug("status changed concurrently, retrying", "appointment_id", id, "trigger", trigger, "attempt", attempt+1)
			continue
		case errors.Is(err, ErrInvalidTransition):
			s.metrics.ObserveTransition(string(trigger), "invalid")
			return nil, false, err
		case err != nil:
			s.metrics.ObserveTransition(string(trigger), "error")
			return nil, false, err
		case noop:
			s.metrics.ObserveTransition(string(trigger), "noop")
			return result, false, nil
		}

		s.metrics.ObserveTransition(string(trigger), "applied")
		s.logger.Info("appointment status changed", "appointment_id", id, "trigger", trigger, "from", from, "to", result.Status)
		if result.Status == StatusCancelled {
			s.notify(ctx, notify.KindAppointmentCancelled, *result)
		}
		return result, true, nil
	}

	s.metrics.ObserveTransition(string(trigger), "error")
	return nil, false, fmt.Errorf("%w: gave up after %d attempts", errStaleStatus, maxCASAttempts)
}

// HandlePaymentEvent applies a payment processor callback. Unknown
// appointments yield ErrExternalEventUnmatched; duplicates are no-ops.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev events.PaymentEvent) error {
	trigger := Trigger(ev.Type)
	switch trigger {
	case TriggerPaymentSucceeded, TriggerPaymentFailed, TriggerPaymentExpired, TriggerPaymentRefunded:
	default:
		s.metrics.ObserveExternalEvent(string(events.SourcePayments), "unknown_type")
		return fmt.Errorf("%w: unknown payment event type %q", ErrInvalidTransition, ev.Type)
	}
	return s.handleExternal(ctx, events.SourcePayments, ev.ID, ev.AppointmentID, trigger)
}

func (s *Service) HandleConferencingEvent(ctx context.Context, ev events.ConferencingEvent) error {
	trigger := Trigger(ev.Type)
	switch trigger {
	case TriggerSessionJoined, TriggerSessionEnded:
	default:
		s.metrics.ObserveExternalEvent(string(events.SourceConferencing), "unknown_type")
		return fmt.Errorf("%w: unknown conferencing event type %q", ErrInvalidTransition, ev.Type)
	}
	return s.handleExternal(ctx, events.SourceConferencing, ev.ID, ev.AppointmentID, trigger)
}

func (s *Service) handleExternal(ctx context.Context, source events.Source, eventID string, appointmentID uuid.UUID, trigger Trigger) error {
	logger := s.logger.With("source", source, "event_id", eventID, "appointment_id", appointmentID, "trigger", trigger)

	if s.ledger != nil && eventID != "" {
		seen, err := s.ledger.AlreadyProcessed(ctx, source, eventID)
		if err != nil {
			return err
		}
		if seen {
			logger.Debug("duplicate external event ignored")
			s.metrics.ObserveExternalEvent(string(source), "duplicate")
			return nil
		}
	}

	_, applied, err := s.transition(ctx, appointmentID, trigger)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			logger.Warn("external event does not match an appointment")
			s.metrics.ObserveExternalEvent(string(source), "unmatched")
			return fmt.Errorf("%w: %s", ErrExternalEventUnmatched, appointmentID)
		}
		s.metrics.ObserveExternalEvent(string(source), "rejected")
		return err
	}

	if s.ledger != nil && eventID != "" {
		if _, err := s.ledger.MarkProcessed(ctx, source, eventID); err != nil {
			logger.Error("failed to record processed event", "error", err)
		}
	}

	outcome := "applied"
	if !applied {
		outcome = "noop"
	}
	s.metrics.ObserveExternalEvent(string(source), outcome)
	return nil
}

// JoinSession returns the video room for a confirmed appointment, creating it
// on first use, and moves the appointment in progress.
func (s *Service) JoinSession(ctx context.Context, id uuid.UUID) (*Appointment, conferencing.Room, error) {
	if s.rooms == nil {
		return nil, conferencing.Room{}, errors.New("appointment: conferencing not configured")
	}

	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, conferencing.Room{}, err
	}
	if _, _, err := Next(appt.Status, TriggerSessionJoined); err != nil {
		return nil, conferencing.Room{}, err
	}

	room, err := s.roomFor(ctx, appt)
	if err != nil {
		return nil, conferencing.Room{}, err
	}

	updated, _, err := s.transition(ctx, id, TriggerSessionJoined)
	if err != nil {
		return nil, conferencing.Room{}, err
	}
	return updated, room, nil
}

// roomFor returns the stored room, or creates one and stores its ref.
// When a concurrent join stored a ref first, that ref wins.
func (s *Service) roomFor(ctx context.Context, appt *Appointment) (conferencing.Room, error) {
	if appt.VideoRoomRef != nil {
		return conferencing.Room{Ref: *appt.VideoRoomRef, JoinURL: s.rooms.JoinURL(*appt.VideoRoomRef)}, nil
	}

	room, err := s.rooms.CreateOrGetRoom(ctx, appt.ID)
	if err != nil {
		return conferencing.Room{}, fmt.Errorf("create room: %w", err)
	}

	stored, err := s.repo.SetVideoRoomRef(ctx, appt.ID, room.Ref)
	if err != nil {
		return conferencing.Room{}, fmt.Errorf("store room ref: %w", err)
	}
	if stored.VideoRoomRef != nil && *stored.VideoRoomRef != room.Ref {
		ref := *stored.VideoRoomRef
		return conferencing.Room{Ref: ref, JoinURL: s.rooms.JoinURL(ref)}, nil
	}

	if err := s.logEvent(ctx, s.repo, appt.ID, EventAppointmentRoomCreated, map[string]any{"room_ref": room.Ref}); err != nil {
		s.logger.Error("failed to insert event log", "error", err, "appointment_id", appt.ID)
	}
	return room, nil
}

// MarkNoShows moves confirmed appointments whose end has passed to no_show.
// Failures on one appointment do not stop the sweep.
func (s *Service) MarkNoShows(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "appointment.mark_no_shows")
	defer span.End()

	candidates, err := s.repo.ListNoShowCandidates(ctx, s.resolver.Now())
	if err != nil {
		return 0, fmt.Errorf("list no-show candidates: %w", err)
	}

	marked := 0
	var errs []error
	for _, appt := range candidates {
		_, applied, err := s.transition(ctx, appt.ID, TriggerNoShow)
		if err != nil {
			errs = append(errs, fmt.Errorf("appointment %s: %w", appt.ID, err))
			continue
		}
		if applied {
			marked++
			s.metrics.ObserveNoShow()
		}
	}

	span.SetAttributes(attribute.Int("scheduling.no_shows", marked))
	return marked, errors.Join(errs...)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListByPatient returns newest first
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

func (s *Service) ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: empty time window", ErrInvalidBooking)
	}
	appointments, err := s.repo.ListByProvider(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments by provider: %w", err)
	}
	return appointments, nil
}

func (s *Service) notify(ctx context.Context, kind notify.Kind, appt Appointment) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, notify.Notification{
		Kind:          kind,
		PatientID:     appt.PatientID,
		AppointmentID: appt.ID,
		ProviderID:    appt.ProviderID,
		ScheduledAt:   appt.ScheduledAt,
	})
	if err != nil {
		s.logger.Error("failed to send notification", "error", err, "kind", kind, "appointment_id", appt.ID)
	}
}

func (s *Service) logEvent(ctx context.Context, store Store, appointmentID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID
	return store.InsertEvent(ctx, EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	})
}

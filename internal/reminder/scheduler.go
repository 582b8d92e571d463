package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/conferencing"
	"github.com/hackgods/consultation-scheduling/internal/notify"
	"github.com/hackgods/consultation-scheduling/internal/observability/metrics"
	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

var tracer = otel.Tracer("scheduling.internal.reminder")

// Threshold is a reminder sent Lead before the appointment, matched within ±Window
type Threshold struct {
	Name   string
	Lead   time.Duration
	Window time.Duration
	Kind   notify.Kind
}

var DefaultThresholds = []Threshold{
	{Name: "24h", Lead: 24 * time.Hour, Window: 30 * time.Minute, Kind: notify.KindReminder24h},
	{Name: "1h", Lead: time.Hour, Window: 10 * time.Minute, Kind: notify.KindReminder1h},
}

type AppointmentSource interface {
	ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]appointment.Appointment, error)
}

type SweepResult struct {
	Dispatched int
	Skipped    int
	Failed     int
}

type Scheduler struct {
	source     AppointmentSource
	dispatches DispatchStore
	notifier   notify.Notifier
	thresholds []Threshold
	now        func() time.Time
	rooms      conferencing.RoomProvider
	metrics    *metrics.SchedulingMetrics
	logger     *logging.Logger
}

type Option func(*Scheduler)

func WithThresholds(th []Threshold) Option {
	return func(s *Scheduler) {
		if len(th) > 0 {
			s.thresholds = th
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithRooms adds the video join link to reminders
func WithRooms(rooms conferencing.RoomProvider) Option {
	return func(s *Scheduler) { s.rooms = rooms }
}

func NewScheduler(source AppointmentSource, dispatches DispatchStore, notifier notify.Notifier, logger *logging.Logger, opts ...Option) *Scheduler {
	if source == nil || dispatches == nil || notifier == nil {
		panic("reminder: source, dispatch store and notifier are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Scheduler{
		source:     source,
		dispatches: dispatches,
		notifier:   notifier,
		thresholds: DefaultThresholds,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep sends due reminders. Each (appointment, threshold) is claimed before
// sending so overlapping sweeps never notify twice; a failed send releases
// the claim for the next tick. One failure never aborts the sweep.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "reminder.sweep")
	defer span.End()

	now := s.now()
	var res SweepResult
	var errs []error

	for _, th := range s.thresholds {
		target := now.Add(th.Lead)
		due, err := s.source.ListConfirmedStartingBetween(ctx, target.Add(-th.Window), target.Add(th.Window))
		if err != nil {
			errs = append(errs, fmt.Errorf("list due for %s: %w", th.Name, err))
			continue
		}

		for _, appt := range due {
			outcome, err := s.dispatch(ctx, th, appt)
			s.metrics.ObserveReminder(th.Name, outcome)
			switch outcome {
			case "sent":
				res.Dispatched++
			case "skipped":
				res.Skipped++
			default:
				res.Failed++
				errs = append(errs, fmt.Errorf("appointment %s %s reminder: %w", appt.ID, th.Name, err))
			}
		}
	}

	span.SetAttributes(
		attribute.Int("scheduling.reminders_sent", res.Dispatched),
		attribute.Int("scheduling.reminders_failed", res.Failed),
	)
	if res.Dispatched > 0 || res.Failed > 0 {
		s.logger.Info("reminder sweep finished", "dispatched", res.Dispatched, "skipped", res.Skipped, "failed", res.Failed)
	}
	return res, errors.Join(errs...)
}

func (s *Scheduler) dispatch(ctx context.Context, th Threshold, appt appointment.Appointment) (string, error) {
	claimed, err := s.dispatches.Claim(ctx, appt.ID, th.Name)
	if err != nil {
		return "failed", err
	}
	if !claimed {
		return "skipped", nil
	}

	err = s.notifier.Notify(ctx, notify.Notification{
		Kind:          th.Kind,
		PatientID:     appt.PatientID,
		AppointmentID: appt.ID,
		ProviderID:    appt.ProviderID,
		ScheduledAt:   appt.ScheduledAt,
		JoinURL:       s.joinURL(ctx, appt),
	})
	if err == nil {
		return "sent", nil
	}

	if relErr := s.dispatches.Release(ctx, appt.ID, th.Name); relErr != nil {
		err = errors.Join(err, relErr)
	}
	s.logger.Warn("reminder send failed, will retry next sweep", "appointment_id", appt.ID, "threshold", th.Name, "error", err)
	return "failed", err
}

// joinURL prefers the stored room; a lookup failure sends the reminder without a link
func (s *Scheduler) joinURL(ctx context.Context, appt appointment.Appointment) string {
	if s.rooms == nil {
		return ""
	}
	if appt.VideoRoomRef != nil {
		return s.rooms.JoinURL(*appt.VideoRoomRef)
	}
	room, err := s.rooms.CreateOrGetRoom(ctx, appt.ID)
	if err != nil {
		s.logger.Warn("reminder sent without join link", "appointment_id", appt.ID, "error", err)
		return ""
	}
	return room.JoinURL
}

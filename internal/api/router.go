package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/availability"
	"github.com/hackgods/consultation-scheduling/internal/conferencing"
	"github.com/hackgods/consultation-scheduling/internal/events"
	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

type AppointmentService interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	JoinSession(ctx context.Context, id uuid.UUID) (*appointment.Appointment, conferencing.Room, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]appointment.Appointment, error)
}

type AvailabilityManager interface {
	AddRule(ctx context.Context, providerID uuid.UUID, day availability.DayOfWeek, start, end availability.TimeOfDay) (*availability.Rule, error)
	DeactivateRule(ctx context.Context, providerID, ruleID uuid.UUID) (*availability.Rule, error)
	ListRules(ctx context.Context, providerID uuid.UUID) ([]availability.Rule, error)
	BlockDates(ctx context.Context, providerID uuid.UUID, start, end availability.Date, reason string) (*availability.BlockedRange, error)
	SetSlotOverride(ctx context.Context, providerID uuid.UUID, date availability.Date, start, end availability.TimeOfDay, available bool) (*availability.SlotOverride, error)
}

type SlotResolver interface {
	Resolve(ctx context.Context, providerID uuid.UUID, date availability.Date, opts ...availability.ResolveOption) (availability.Result, error)
}

type RouterConfig struct {
	Appointments AppointmentService
	Availability AvailabilityManager
	Resolver     SlotResolver
	Events       events.Handler
	Checks       []DependencyCheck
	Gatherer     prometheus.Gatherer

	JWTSecret                 string
	PaymentWebhookSecret      string
	ConferencingWebhookSecret string

	Logger  *logging.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// signed by the sender, not by a user token
	webhooks := NewWebhookHandler(cfg.Events, cfg.PaymentWebhookSecret, cfg.ConferencingWebhookSecret, cfg.Logger)
	r.Post("/webhooks/payments", webhooks.Payments)
	r.Post("/webhooks/conferencing", webhooks.Conferencing)

	avail := &availabilityHandlers{manager: cfg.Availability, resolver: cfg.Resolver, appointments: cfg.Appointments, logger: cfg.Logger}
	appts := &appointmentHandlers{svc: cfg.Appointments, logger: cfg.Logger}

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.JWTSecret))

		r.Route("/providers/{id}", func(r chi.Router) {
			r.Get("/availability", avail.getAvailability)
			r.Get("/rules", avail.listRules)
			r.Post("/rules", avail.createRule)
			r.Post("/rules/{ruleID}/deactivate", avail.deactivateRule)
			r.Post("/blocks", avail.blockDates)
			r.Put("/overrides", avail.setOverride)
			r.Get("/appointments", avail.listProviderAppointments)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", appts.book)
			r.Get("/", appts.listByPatient)
			r.Get("/{id}", appts.get)
			r.Post("/{id}/cancel", appts.cancel)
			r.Post("/{id}/join", appts.join)
		})
	})

	return r
}

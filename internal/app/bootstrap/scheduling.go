package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/availability"
	"github.com/hackgods/consultation-scheduling/internal/conferencing"
	"github.com/hackgods/consultation-scheduling/internal/config"
	"github.com/hackgods/consultation-scheduling/internal/notify"
	"github.com/hackgods/consultation-scheduling/internal/observability/metrics"
	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

// Scheduling is the wired domain layer shared by the binaries
type Scheduling struct {
	Service  *appointment.Service
	Resolver *availability.Resolver
	Manager  *availability.Manager
	Notifier notify.Notifier
	Rooms    conferencing.RoomProvider
	Metrics  *metrics.SchedulingMetrics
}

func BuildScheduling(ctx context.Context, cfg config.Config, rt *Runtime, reg prometheus.Registerer, logger *logging.Logger) (*Scheduling, error) {
	if rt == nil {
		return nil, fmt.Errorf("bootstrap: runtime is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	notifier, err := BuildNotifier(ctx, cfg, rt.Appointments, logger)
	if err != nil {
		return nil, err
	}

	rooms, err := conferencing.NewURLRoomProvider(cfg.ConferencingBaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: conferencing: %w", err)
	}

	m := metrics.NewSchedulingMetrics(reg)
	resolver := availability.NewResolver(rt.Availability,
		availability.WithLocation(cfg.Timezone),
		availability.WithGranularity(cfg.SlotGranularity),
	)

	svc := appointment.NewService(rt.Appointments, rt.Appointments, resolver, rt.Locker,
		appointment.WithRooms(rooms),
		appointment.WithNotifier(notifier),
		appointment.WithEventLedger(rt.Processed),
		appointment.WithMetrics(m),
		appointment.WithLogger(logger),
		appointment.WithDefaultDuration(cfg.DefaultDurationMinutes),
	)

	return &Scheduling{
		Service:  svc,
		Resolver: resolver,
		Manager:  availability.NewManager(rt.Availability, logger),
		Notifier: notifier,
		Rooms:    rooms,
		Metrics:  m,
	}, nil
}

// BuildNotifier picks the email transport named by EMAIL_PROVIDER
func BuildNotifier(ctx context.Context, cfg config.Config, contacts notify.ContactDirectory, logger *logging.Logger) (notify.Notifier, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sg == nil {
			return nil, fmt.Errorf("bootstrap: EMAIL_PROVIDER=sendgrid needs SENDGRID_API_KEY")
		}
		sender = sg
	case "ses":
		awsCfg, err := config.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		sender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
	case "", "stub":
		logger.Warn("email provider is stub; notifications are only logged")
		sender = notify.NewStubEmailSender(logger)
	default:
		return nil, fmt.Errorf("bootstrap: unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}

	logger.Info("email notifier configured", "provider", cfg.EmailProvider)
	return notify.NewEmailNotifier(sender, contacts, cfg.Timezone, logger), nil
}

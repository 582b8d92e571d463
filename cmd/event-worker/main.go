package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/consultation-scheduling/internal/app/bootstrap"
	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/config"
	"github.com/hackgods/consultation-scheduling/internal/events"
	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

// event-worker applies payment and conferencing events delivered over SQS
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With("service", "event-worker")

	if cfg.EventsQueueURL == "" {
		logger.Error("event-worker requires EVENTS_QUEUE_URL")
		os.Exit(1)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer rt.Close(logger)

	sched, err := bootstrap.BuildScheduling(rootCtx, cfg, rt, prometheus.NewRegistry(), logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	awsCfg, err := config.LoadAWSConfig(rootCtx, cfg)
	if err != nil {
		logger.Error("failed to load aws config", "error", err)
		os.Exit(1)
	}
	queue := events.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.EventsQueueURL)

	consumer := events.NewConsumer(queue, sched.Service, logger,
		events.WithAckPolicy(appointment.Unprocessable),
	)

	logger.Info("event-worker consuming", "queue_url", cfg.EventsQueueURL)
	consumer.Run(rootCtx)
	logger.Info("event-worker stopped")
}

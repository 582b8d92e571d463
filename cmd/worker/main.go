package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/consultation-scheduling/internal/app/bootstrap"
	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/config"
	"github.com/hackgods/consultation-scheduling/internal/reminder"
	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

// worker runs the reminder sweep and the no-show sweep every WORKER_INTERVAL
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With("service", "worker")
	logger.Info("worker starting up", "env", cfg.Env, "interval", cfg.WorkerInterval)

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

	reminders := reminder.NewScheduler(rt.Appointments, rt.Dispatches, sched.Notifier, logger,
		reminder.WithMetrics(sched.Metrics),
		reminder.WithRooms(sched.Rooms),
	)

	// Run once at startup
	runOnce(rootCtx, reminders, sched.Service, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, reminders, sched.Service, logger)
		}
	}
}

func runOnce(ctx context.Context, reminders *reminder.Scheduler, svc *appointment.Service, logger *logging.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()
	res, err := reminders.Sweep(runCtx)
	if err != nil {
		logger.Error("reminder sweep had failures", "error", err)
	}

	marked, err := svc.MarkNoShows(runCtx)
	if err != nil {
		logger.Error("no-show sweep had failures", "error", err)
	}

	logger.Info("worker run complete",
		"reminders_sent", res.Dispatched,
		"reminders_failed", res.Failed,
		"no_shows", marked,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

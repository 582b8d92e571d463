package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/consultation-scheduling/internal/api"
	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/availability"
	"github.com/hackgods/consultation-scheduling/internal/config"
	"github.com/hackgods/consultation-scheduling/internal/db"
	"github.com/hackgods/consultation-scheduling/internal/events"
	"github.com/hackgods/consultation-scheduling/internal/notify"
	redisclient "github.com/hackgods/consultation-scheduling/internal/redis"
	"github.com/hackgods/consultation-scheduling/internal/reminder"
	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

// AppointmentRepository is what both the Postgres and in-memory repositories provide
type AppointmentRepository interface {
	appointment.Store
	appointment.Transactor
	notify.ContactDirectory
}

var (
	_ AppointmentRepository = (*appointment.PgRepository)(nil)
	_ AppointmentRepository = (*appointment.MemoryRepository)(nil)
)

// Runtime holds the storage and coordination backends picked from config
type Runtime struct {
	Appointments AppointmentRepository
	Availability availability.Repository
	Dispatches   reminder.DispatchStore
	Processed    appointment.EventLedger
	Locker       redisclient.Locker
	Checks       []api.DependencyCheck

	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// Open connects Postgres and Redis, or builds the in-memory backends when
// USE_MEMORY_STORE is set. The caller owns Close.
func Open(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.Default()
	}

	if cfg.UseMemoryStore {
		logger.Warn("using in-memory store; data is lost on restart")
		avail := availability.NewMemoryStore()
		return &Runtime{
			Appointments: appointment.NewMemoryRepository(avail),
			Availability: avail,
			Dispatches:   reminder.NewMemoryDispatchStore(),
			Processed:    events.NewMemoryProcessedStore(),
			Locker:       redisclient.NewLocalSlotLocker(),
		}, nil
	}

	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
	cancelPg()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: postgres: %w", err)
	}
	logger.Info("connected to postgres")

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: redis: %w", err)
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr)

	return &Runtime{
		Appointments: appointment.NewPgRepository(pool),
		Availability: availability.NewPgStore(pool),
		Dispatches:   reminder.NewPgDispatchStore(pool),
		Processed:    events.NewProcessedStore(pool),
		Locker:       redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		Checks: []api.DependencyCheck{
			{Name: "postgres", Ping: db.Ping(pool), Critical: true},
			{Name: "redis", Ping: redisclient.Ping(rdb)},
		},
		Pool:  pool,
		Redis: rdb,
	}, nil
}

func (rt *Runtime) Close(logger *logging.Logger) {
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil && logger != nil {
			logger.Warn("error closing redis", "error", err)
		}
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}

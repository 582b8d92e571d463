package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/hackgods/consultation-scheduling/internal/availability"
	"github.com/hackgods/consultation-scheduling/internal/db"
	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// weekday windows every seeded provider works
var weeklyWindows = []struct{ start, end availability.TimeOfDay }{
	{9 * 60, 12 * 60},
	{13 * 60, 17 * 60},
}

func main() {
	_ = godotenv.Load()
	providers := flag.Int("providers", 100, "providers to create")
	patients := flag.Int("patients", 9000, "patients to create")
	flag.Parse()

	logger := logging.New(os.Getenv("LOG_LEVEL")).With("service", "seed")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.PoolOptions{})
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	faker := gofakeit.New(0)

	if err := seedProviders(context.Background(), pool, faker, *providers, logger); err != nil {
		logger.Error("seed providers", "error", err)
		os.Exit(1)
	}
	if err := seedPatients(context.Background(), pool, faker, *patients, logger); err != nil {
		logger.Error("seed patients", "error", err)
		os.Exit(1)
	}

	logger.Info("seed complete")
}

// seedProviders creates approved providers with Monday-Friday rules in one transaction
func seedProviders(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger *logging.Logger) error {
	logger.Info("seeding providers", "count", count)

	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		rules := availability.NewPgStore(tx)

		for i := 0; i < count; i++ {
			id := uuid.New()

			// a quarter of providers book in 30 minute slots
			var slotMinutes *int
			if faker.Number(1, 4) == 1 {
				m := 30
				slotMinutes = &m
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO providers (id, name, specialty, consultation_price_cents, approved, slot_minutes, created_at, updated_at)
				VALUES ($1, $2, $3, $4, true, $5, now(), now())
			`, id, "Dr. "+faker.Name(), specialties[faker.Number(0, len(specialties)-1)], int64(faker.Number(50, 300))*100, slotMinutes)
			if err != nil {
				return fmt.Errorf("insert provider: %w", err)
			}

			for day := availability.Monday; day <= availability.Friday; day++ {
				for _, w := range weeklyWindows {
					rule, err := availability.NewRule(id, day, w.start, w.end)
					if err != nil {
						return err
					}
					if _, err := rules.InsertRule(ctx, rule); err != nil {
						return fmt.Errorf("insert rule: %w", err)
					}
				}
			}
		}

		logger.Info("providers seeded", "count", count)
		return nil
	})
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger *logging.Logger) error {
	logger.Info("seeding patients", "count", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				_, err := tx.Exec(ctx, `
					INSERT INTO patients (id, name, email, created_at, updated_at)
					VALUES ($1, $2, $3, now(), now())
				`, uuid.New(), faker.Name(), faker.Email())
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		logger.Info("patients seeded", "done", end, "total", count)
	}

	return nil
}

package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/consultation-scheduling/internal/db"
)

type PgStore struct {
	q db.Querier
}

// NewPgStore works over a pool or a transaction
func NewPgStore(q db.Querier) *PgStore {
	if q == nil {
		panic("availability: querier required")
	}
	return &PgStore{q: q}
}

// Helpers

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var slotMinutes *int

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Specialty,
		&p.ConsultationPriceCents,
		&p.Approved,
		&slotMinutes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	p.SlotMinutes = slotMinutes
	return &p, nil
}

func scanRule(row pgx.Row) (*Rule, error) {
	var r Rule
	var day, start, end int

	err := row.Scan(
		&r.ID,
		&r.ProviderID,
		&day,
		&start,
		&end,
		&r.Active,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	r.Day = DayOfWeek(day)
	r.Start = TimeOfDay(start)
	r.End = TimeOfDay(end)
	return &r, nil
}

func scanBlockedRange(row pgx.Row) (*BlockedRange, error) {
	var b BlockedRange
	var start, end time.Time

	if err := row.Scan(&b.ID, &b.ProviderID, &start, &end, &b.Reason, &b.CreatedAt); err != nil {
		return nil, err
	}

	b.Range = DateRange{Start: DateOf(start), End: DateOf(end)}
	return &b, nil
}

func scanSlotOverride(row pgx.Row) (*SlotOverride, error) {
	var ov SlotOverride
	var date time.Time
	var start, end int

	err := row.Scan(
		&ov.ID,
		&ov.ProviderID,
		&date,
		&start,
		&end,
		&ov.Available,
		&ov.AppointmentID,
	)
	if err != nil {
		return nil, err
	}

	ov.Date = DateOf(date)
	ov.Start = TimeOfDay(start)
	ov.End = TimeOfDay(end)
	return &ov, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Store

func (s *PgStore) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, name, specialty, consultation_price_cents, approved, slot_minutes, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (s *PgStore) ListBlockedRanges(ctx context.Context, providerID uuid.UUID, date Date) ([]BlockedRange, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, provider_id, start_date, end_date, reason, created_at
		FROM blocked_date_ranges
		WHERE provider_id = $1
		  AND start_date <= $2
		  AND end_date >= $2
	`, providerID, date.Time())
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBlockedRange)
}

func (s *PgStore) ListSlotOverrides(ctx context.Context, providerID uuid.UUID, date Date) ([]SlotOverride, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, provider_id, slot_date, start_minute, end_minute, is_available, appointment_id
		FROM slot_overrides
		WHERE provider_id = $1
		  AND slot_date = $2
		ORDER BY start_minute
	`, providerID, date.Time())
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSlotOverride)
}

func (s *PgStore) ListActiveRules(ctx context.Context, providerID uuid.UUID, day DayOfWeek) ([]Rule, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, provider_id, day_of_week, start_minute, end_minute, active, created_at, updated_at
		FROM availability_rules
		WHERE provider_id = $1
		  AND day_of_week = $2
		  AND active
		ORDER BY start_minute
	`, providerID, int(day))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRule)
}

// SlotLedger

func (s *PgStore) ClaimSlotOverride(ctx context.Context, providerID uuid.UUID, date Date, start TimeOfDay, appointmentID uuid.UUID) (bool, error) {
	ct, err := s.q.Exec(ctx, `
		UPDATE slot_overrides
		SET is_available = false,
		    appointment_id = $4,
		    updated_at = now()
		WHERE provider_id = $1
		  AND slot_date = $2
		  AND start_minute = $3
		  AND is_available
	`, providerID, date.Time(), int(start), appointmentID)
	if err != nil {
		return false, fmt.Errorf("claim slot override: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *PgStore) ReleaseSlotOverride(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	ct, err := s.q.Exec(ctx, `
		UPDATE slot_overrides
		SET is_available = true,
		    appointment_id = NULL,
		    updated_at = now()
		WHERE appointment_id = $1
	`, appointmentID)
	if err != nil {
		return false, fmt.Errorf("release slot override: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Provider-side writes

func (s *PgStore) ListRules(ctx context.Context, providerID uuid.UUID) ([]Rule, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, provider_id, day_of_week, start_minute, end_minute, active, created_at, updated_at
		FROM availability_rules
		WHERE provider_id = $1
		ORDER BY day_of_week, start_minute
	`, providerID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRule)
}

func (s *PgStore) InsertRule(ctx context.Context, rule Rule) (*Rule, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO availability_rules (id, provider_id, day_of_week, start_minute, end_minute, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, provider_id, day_of_week, start_minute, end_minute, active, created_at, updated_at
	`, rule.ID, rule.ProviderID, int(rule.Day), int(rule.Start), int(rule.End), rule.Active)
	return scanRule(row)
}

func (s *PgStore) DeactivateRule(ctx context.Context, providerID, ruleID uuid.UUID) (*Rule, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE availability_rules
		SET active = false,
		    updated_at = now()
		WHERE id = $1
		  AND provider_id = $2
		RETURNING id, provider_id, day_of_week, start_minute, end_minute, active, created_at, updated_at
	`, ruleID, providerID)
	return scanRule(row)
}

func (s *PgStore) InsertBlockedRange(ctx context.Context, block BlockedRange) (*BlockedRange, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO blocked_date_ranges (id, provider_id, start_date, end_date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, provider_id, start_date, end_date, reason, created_at
	`, block.ID, block.ProviderID, block.Range.Start.Time(), block.Range.End.Time(), block.Reason)
	return scanBlockedRange(row)
}

// UpsertSlotOverride leaves appointment_id alone so a consumed slot stays linked
func (s *PgStore) UpsertSlotOverride(ctx context.Context, ov SlotOverride) (*SlotOverride, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO slot_overrides (id, provider_id, slot_date, start_minute, end_minute, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (provider_id, slot_date, start_minute) DO UPDATE
		SET end_minute = EXCLUDED.end_minute,
		    is_available = EXCLUDED.is_available AND slot_overrides.appointment_id IS NULL,
		    updated_at = now()
		RETURNING id, provider_id, slot_date, start_minute, end_minute, is_available, appointment_id
	`, ov.ID, ov.ProviderID, ov.Date.Time(), int(ov.Start), int(ov.End), ov.Available)
	return scanSlotOverride(row)
}

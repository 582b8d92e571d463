package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgStoreGetProvider(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgStore(mock)
	pid := uuid.New()
	now := time.Now().UTC()
	slotMinutes := 30

	mock.ExpectQuery("SELECT id, name, specialty").WithArgs(pid).WillReturnRows(
		pgxmock.NewRows([]string{"id", "name", "specialty", "consultation_price_cents", "approved", "slot_minutes", "created_at", "updated_at"}).
			AddRow(pid, "Dr. Lima", "Cardiology", int64(25000), true, &slotMinutes, now, now),
	)
	p, err := store.GetProvider(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", p.Specialty)
	require.NotNil(t, p.SlotMinutes)
	assert.Equal(t, 30, *p.SlotMinutes)

	missing := uuid.New()
	mock.ExpectQuery("SELECT id, name, specialty").WithArgs(missing).WillReturnError(pgx.ErrNoRows)
	_, err = store.GetProvider(context.Background(), missing)
	assert.ErrorIs(t, err, ErrProviderNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreListActiveRules(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgStore(mock)
	pid := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("FROM availability_rules").WithArgs(pid, int(Monday)).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "day_of_week", "start_minute", "end_minute", "active", "created_at", "updated_at"}).
			AddRow(uuid.New(), pid, 1, 480, 720, true, now, now),
	)

	rules, err := store.ListActiveRules(context.Background(), pid, Monday)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, Monday, rules[0].Day)
	assert.Equal(t, TimeOfDay(480), rules[0].Start)
	assert.Equal(t, TimeOfDay(720), rules[0].End)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreOverridesAndBlocks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgStore(mock)
	pid := uuid.New()
	day := monday.Time()

	mock.ExpectQuery("FROM blocked_date_ranges").WithArgs(pid, day).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "start_date", "end_date", "reason", "created_at"}).
			AddRow(uuid.New(), pid, day.AddDate(0, 0, -1), day.AddDate(0, 0, 1), "leave", time.Now()),
	)
	blocks, err := store.ListBlockedRanges(context.Background(), pid, monday)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].Range.Contains(monday))

	var taken *uuid.UUID
	mock.ExpectQuery("FROM slot_overrides").WithArgs(pid, day).WillReturnRows(
		pgxmock.NewRows([]string{"id", "provider_id", "slot_date", "start_minute", "end_minute", "is_available", "appointment_id"}).
			AddRow(uuid.New(), pid, day, 540, 570, true, taken),
	)
	ovs, err := store.ListSlotOverrides(context.Background(), pid, monday)
	require.NoError(t, err)
	require.Len(t, ovs, 1)
	assert.Equal(t, monday, ovs[0].Date)
	assert.Nil(t, ovs[0].AppointmentID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreClaimAndRelease(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgStore(mock)
	pid := uuid.New()
	apptID := uuid.New()

	mock.ExpectExec("UPDATE slot_overrides").WithArgs(pid, monday.Time(), 540, apptID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	claimed, err := store.ClaimSlotOverride(context.Background(), pid, monday, 540, apptID)
	require.NoError(t, err)
	assert.True(t, claimed)

	mock.ExpectExec("UPDATE slot_overrides").WithArgs(apptID).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	released, err := store.ReleaseSlotOverride(context.Background(), apptID)
	require.NoError(t, err)
	assert.False(t, released)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreDeactivateRuleNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgStore(mock)
	ruleID, pid := uuid.New(), uuid.New()

	mock.ExpectQuery("UPDATE availability_rules").WithArgs(ruleID, pid).WillReturnError(pgx.ErrNoRows)
	_, err = store.DeactivateRule(context.Background(), pid, ruleID)
	assert.ErrorIs(t, err, ErrRuleNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

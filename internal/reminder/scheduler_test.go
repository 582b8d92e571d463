package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/consultation-scheduling/internal/appointment"
	"github.com/hackgods/consultation-scheduling/internal/conferencing"
	"github.com/hackgods/consultation-scheduling/internal/notify"
)

var sweepNow = time.Date(2030, 1, 6, 9, 0, 0, 0, time.UTC)

type staticSource struct {
	appts []appointment.Appointment
}

func (s staticSource) ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	for _, a := range s.appts {
		if !a.ScheduledAt.Before(from) && !a.ScheduledAt.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

type flakyNotifier struct {
	mu     sync.Mutex
	sent   []notify.Notification
	failOn map[uuid.UUID]bool
}

func (n *flakyNotifier) Notify(ctx context.Context, note notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOn[note.AppointmentID] {
		return errors.New("provider rejected message")
	}
	n.sent = append(n.sent, note)
	return nil
}

func confirmedAt(t time.Time) appointment.Appointment {
	return appointment.Appointment{ID: uuid.New(), PatientID: uuid.New(), ScheduledAt: t, DurationMinutes: 60, Status: appointment.StatusConfirmed}
}

func TestSweepSendsEachThresholdOnce(t *testing.T) {
	tomorrow := confirmedAt(sweepNow.Add(24*time.Hour + 20*time.Minute))
	soon := confirmedAt(sweepNow.Add(time.Hour - 5*time.Minute))
	outside := confirmedAt(sweepNow.Add(3 * time.Hour))

	n := &flakyNotifier{}
	s := NewScheduler(staticSource{[]appointment.Appointment{tomorrow, soon, outside}}, NewMemoryDispatchStore(), n, nil,
		WithClock(func() time.Time { return sweepNow }))

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Dispatched: 2}, res)
	require.Len(t, n.sent, 2)

	kinds := map[uuid.UUID]notify.Kind{}
	for _, note := range n.sent {
		kinds[note.AppointmentID] = note.Kind
	}
	assert.Equal(t, notify.KindReminder24h, kinds[tomorrow.ID])
	assert.Equal(t, notify.KindReminder1h, kinds[soon.ID])

	res, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Skipped: 2}, res, "overlapping sweeps never resend")
	assert.Len(t, n.sent, 2)
}

func TestSweepIsolatesFailuresAndRetries(t *testing.T) {
	ok := confirmedAt(sweepNow.Add(time.Hour))
	bad := confirmedAt(sweepNow.Add(time.Hour + 5*time.Minute))

	n := &flakyNotifier{failOn: map[uuid.UUID]bool{bad.ID: true}}
	s := NewScheduler(staticSource{[]appointment.Appointment{ok, bad}}, NewMemoryDispatchStore(), n, nil,
		WithClock(func() time.Time { return sweepNow }))

	res, err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad.ID.String())
	assert.Equal(t, SweepResult{Dispatched: 1, Failed: 1}, res)

	n.failOn = nil
	res, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Dispatched: 1, Skipped: 1}, res, "released claim is retried")
}

func TestSweepConcurrentSchedulersShareClaims(t *testing.T) {
	appt := confirmedAt(sweepNow.Add(24 * time.Hour))
	store := NewMemoryDispatchStore()
	n := &flakyNotifier{}
	src := staticSource{[]appointment.Appointment{appt}}
	clock := WithClock(func() time.Time { return sweepNow })

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = NewScheduler(src, store, n, nil, clock).Sweep(context.Background())
		}()
	}
	wg.Wait()
	assert.Len(t, n.sent, 1)
}

func TestSweepAddsJoinLinks(t *testing.T) {
	rooms, err := conferencing.NewURLRoomProvider("https://meet.example.com")
	require.NoError(t, err)

	fresh := confirmedAt(sweepNow.Add(time.Hour))
	joined := confirmedAt(sweepNow.Add(24 * time.Hour))
	ref := "room-already-open"
	joined.VideoRoomRef = &ref

	n := &flakyNotifier{}
	s := NewScheduler(staticSource{[]appointment.Appointment{fresh, joined}}, NewMemoryDispatchStore(), n, nil,
		WithClock(func() time.Time { return sweepNow }), WithRooms(rooms))

	_, err = s.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, n.sent, 2)

	links := map[uuid.UUID]string{}
	for _, note := range n.sent {
		links[note.AppointmentID] = note.JoinURL
	}
	assert.Equal(t, "https://meet.example.com/"+conferencing.RoomRef(fresh.ID), links[fresh.ID])
	assert.Equal(t, "https://meet.example.com/room-already-open", links[joined.ID])
}

func TestPgDispatchStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgDispatchStore(mock)
	id := uuid.New()
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO reminder_dispatches").WithArgs(id, "24h").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	claimed, err := store.Claim(ctx, id, "24h")
	require.NoError(t, err)
	assert.True(t, claimed)

	mock.ExpectExec("INSERT INTO reminder_dispatches").WithArgs(id, "24h").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	claimed, err = store.Claim(ctx, id, "24h")
	require.NoError(t, err)
	assert.False(t, claimed)

	mock.ExpectExec("DELETE FROM reminder_dispatches").WithArgs(id, "24h").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, store.Release(ctx, id, "24h"))

	require.NoError(t, mock.ExpectationsWereMet())
}

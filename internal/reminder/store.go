package reminder

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/db"
)

// DispatchStore records which reminders went out. Claim is the at-most-once gate.
type DispatchStore interface {
	Claim(ctx context.Context, appointmentID uuid.UUID, threshold string) (bool, error)
	Release(ctx context.Context, appointmentID uuid.UUID, threshold string) error
}

type PgDispatchStore struct {
	q db.Querier
}

func NewPgDispatchStore(q db.Querier) *PgDispatchStore {
	if q == nil {
		panic("reminder: querier required")
	}
	return &PgDispatchStore{q: q}
}

// Claim inserts the dispatch row, returning false if another sweep already owns it.
func (s *PgDispatchStore) Claim(ctx context.Context, appointmentID uuid.UUID, threshold string) (bool, error) {
	ct, err := s.q.Exec(ctx, `
		INSERT INTO reminder_dispatches (appointment_id, threshold, dispatched_at)
		VALUES ($1, $2, now())
		ON CONFLICT DO NOTHING
	`, appointmentID, threshold)
	if err != nil {
		return false, fmt.Errorf("reminder: claim dispatch: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *PgDispatchStore) Release(ctx context.Context, appointmentID uuid.UUID, threshold string) error {
	_, err := s.q.Exec(ctx, `
		DELETE FROM reminder_dispatches
		WHERE appointment_id = $1 AND threshold = $2
	`, appointmentID, threshold)
	if err != nil {
		return fmt.Errorf("reminder: release dispatch: %w", err)
	}
	return nil
}

type dispatchKey struct {
	appointmentID uuid.UUID
	threshold     string
}

type MemoryDispatchStore struct {
	mu      sync.Mutex
	claimed map[dispatchKey]struct{}
}

func NewMemoryDispatchStore() *MemoryDispatchStore {
	return &MemoryDispatchStore{claimed: make(map[dispatchKey]struct{})}
}

func (s *MemoryDispatchStore) Claim(ctx context.Context, appointmentID uuid.UUID, threshold string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := dispatchKey{appointmentID, threshold}
	if _, ok := s.claimed[k]; ok {
		return false, nil
	}
	s.claimed[k] = struct{}{}
	return true, nil
}

func (s *MemoryDispatchStore) Release(ctx context.Context, appointmentID uuid.UUID, threshold string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed, dispatchKey{appointmentID, threshold})
	return nil
}

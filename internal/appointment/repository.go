package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/availability"
)

// Store contains the appointment persistence needed by the service.
type Store interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks
	ExistsActiveAt(ctx context.Context, providerID uuid.UUID, scheduledAt time.Time) (bool, error)

	// Creation and updates. InsertAppointment maps a duplicate active slot to ErrSlotUnavailable.
	InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	// SetVideoRoomRef stores ref only when none is set and returns the stored row either way
	SetVideoRoomRef(ctx context.Context, id uuid.UUID, ref string) (*Appointment, error)

	// Listing
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// Sweeps
	ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)
	ListNoShowCandidates(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Stores are the transaction-bound views handed to a Transactor callback
type Stores struct {
	Appointments Store
	Availability availability.Store
	Ledger       availability.SlotLedger
}

// Transactor runs fn atomically; returning an error rolls everything back
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/availability"
	"github.com/hackgods/consultation-scheduling/internal/notify"
)

// MemoryRepository keeps appointments in process. Transactions are serialized
// and not rolled back, which is enough for demos and service tests.
type MemoryRepository struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	patients     map[uuid.UUID]Patient
	appointments map[uuid.UUID]Appointment
	events       []EventLog

	Availability *availability.MemoryStore
}

func NewMemoryRepository(avail *availability.MemoryStore) *MemoryRepository {
	if avail == nil {
		avail = availability.NewMemoryStore()
	}
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		appointments: make(map[uuid.UUID]Appointment),
		Availability: avail,
	}
}

func (m *MemoryRepository) PutPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
	}
	m.patients[p.ID] = p
}

// Events returns a copy of the audit log
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]EventLog(nil), m.events...)
}

func (m *MemoryRepository) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, Stores{Appointments: m, Availability: m.Availability, Ledger: m.Availability})
}

func (m *MemoryRepository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) LookupContact(ctx context.Context, patientID uuid.UUID) (notify.Contact, error) {
	p, err := m.GetPatient(ctx, patientID)
	if err != nil {
		return notify.Contact{}, err
	}
	return patientContact(p)
}

func (m *MemoryRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) ExistsActiveAt(ctx context.Context, providerID uuid.UUID, scheduledAt time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.heldLocked(providerID, scheduledAt, Status.Active), nil
}

func (m *MemoryRepository) heldLocked(providerID uuid.UUID, scheduledAt time.Time, holds func(Status) bool) bool {
	for _, a := range m.appointments {
		if a.ProviderID == providerID && a.ScheduledAt.Equal(scheduledAt) && holds(a.Status) {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// mirrors the partial unique index on (provider_id, scheduled_at)
	if m.heldLocked(a.ProviderID, a.ScheduledAt, func(s Status) bool { return s != StatusCancelled }) {
		return nil, ErrSlotUnavailable
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	m.appointments[a.ID] = a
	return &a, nil
}

func (m *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, errStaleStatus
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	return &a, nil
}

func (m *MemoryRepository) SetVideoRoomRef(ctx context.Context, id uuid.UUID, ref string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.VideoRoomRef == nil {
		a.VideoRoomRef = &ref
		a.UpdatedAt = time.Now()
		m.appointments[id] = a
	}
	return &a, nil
}

func (m *MemoryRepository) filter(keep func(Appointment) bool) []Appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Appointment
	for _, a := range m.appointments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

func (m *MemoryRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	all := m.filter(func(a Appointment) bool { return a.PatientID == patientID })
	// newest first, same as the pg query
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	return m.filter(func(a Appointment) bool {
		return a.ProviderID == providerID && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to)
	}), nil
}

func (m *MemoryRepository) ListConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	return m.filter(func(a Appointment) bool {
		return a.Status == StatusConfirmed && !a.ScheduledAt.Before(from) && !a.ScheduledAt.After(to)
	}), nil
}

func (m *MemoryRepository) ListNoShowCandidates(ctx context.Context, now time.Time) ([]Appointment, error) {
	return m.filter(func(a Appointment) bool {
		return a.Status == StatusConfirmed && a.EndsAt().Before(now)
	}), nil
}

func (m *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	m.events = append(m.events, ev)
	return nil
}

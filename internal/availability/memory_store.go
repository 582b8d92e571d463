package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Repository for local runs and tests
type MemoryStore struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]Provider
	rules     map[uuid.UUID]Rule
	blocks    []BlockedRange
	overrides map[uuid.UUID]SlotOverride
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		providers: make(map[uuid.UUID]Provider),
		rules:     make(map[uuid.UUID]Rule),
		overrides: make(map[uuid.UUID]SlotOverride),
	}
}

func (s *MemoryStore) PutProvider(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
	}
	s.providers[p.ID] = p
}

func (s *MemoryStore) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListBlockedRanges(ctx context.Context, providerID uuid.UUID, date Date) ([]BlockedRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []BlockedRange
	for _, b := range s.blocks {
		if b.ProviderID == providerID && b.Range.Contains(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListSlotOverrides(ctx context.Context, providerID uuid.UUID, date Date) ([]SlotOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SlotOverride
	for _, ov := range s.overrides {
		if ov.ProviderID == providerID && ov.Date == date {
			out = append(out, ov)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func (s *MemoryStore) ListActiveRules(ctx context.Context, providerID uuid.UUID, day DayOfWeek) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Rule
	for _, r := range s.rules {
		if r.ProviderID == providerID && r.Day == day && r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func (s *MemoryStore) ClaimSlotOverride(ctx context.Context, providerID uuid.UUID, date Date, start TimeOfDay, appointmentID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ov := range s.overrides {
		if ov.ProviderID == providerID && ov.Date == date && ov.Start == start && ov.Available {
			apptID := appointmentID
			ov.Available = false
			ov.AppointmentID = &apptID
			s.overrides[id] = ov
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ReleaseSlotOverride(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	released := false
	for id, ov := range s.overrides {
		if ov.AppointmentID != nil && *ov.AppointmentID == appointmentID {
			ov.Available = true
			ov.AppointmentID = nil
			s.overrides[id] = ov
			released = true
		}
	}
	return released, nil
}

func (s *MemoryStore) ListRules(ctx context.Context, providerID uuid.UUID) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Rule
	for _, r := range s.rules {
		if r.ProviderID == providerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (s *MemoryStore) InsertRule(ctx context.Context, rule Rule) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	rule.CreatedAt, rule.UpdatedAt = now, now
	s.rules[rule.ID] = rule
	return &rule, nil
}

func (s *MemoryStore) DeactivateRule(ctx context.Context, providerID, ruleID uuid.UUID) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[ruleID]
	if !ok || r.ProviderID != providerID {
		return nil, ErrRuleNotFound
	}
	r.Active = false
	r.UpdatedAt = time.Now()
	s.rules[ruleID] = r
	return &r, nil
}

func (s *MemoryStore) InsertBlockedRange(ctx context.Context, block BlockedRange) (*BlockedRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	block.CreatedAt = time.Now()
	s.blocks = append(s.blocks, block)
	return &block, nil
}

func (s *MemoryStore) UpsertSlotOverride(ctx context.Context, ov SlotOverride) (*SlotOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.overrides {
		if existing.ProviderID == ov.ProviderID && existing.Date == ov.Date && existing.Start == ov.Start {
			existing.End = ov.End
			existing.Available = ov.Available && existing.AppointmentID == nil
			s.overrides[id] = existing
			return &existing, nil
		}
	}
	s.overrides[ov.ID] = ov
	return &ov, nil
}

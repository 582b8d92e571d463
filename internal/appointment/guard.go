package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/availability"
)

// Guard decides whether a candidate interval can be booked. It reads only
// from the stores it is given so callers can bind it to a transaction.
type Guard struct {
	resolver *availability.Resolver
}

func NewGuard(resolver *availability.Resolver) *Guard {
	if resolver == nil {
		panic("appointment: resolver required")
	}
	return &Guard{resolver: resolver}
}

// Evaluate resolves the slot starting at candidate.Start. A zero-length
// candidate takes the resolved slot's length. The returned slot is the
// candidate interval that would be booked. opts must match the ones the
// slot was advertised with.
func (g *Guard) Evaluate(ctx context.Context, stores Stores, providerID uuid.UUID, candidate availability.Slot, opts ...availability.ResolveOption) (availability.Slot, bool, error) {
	start := candidate.Start.In(g.resolver.Location())
	date := availability.DateOf(start)

	res, err := g.resolver.WithStore(stores.Availability).Resolve(ctx, providerID, date, opts...)
	if err != nil {
		return availability.Slot{}, false, fmt.Errorf("resolve availability: %w", err)
	}

	var match *availability.Slot
	for i := range res.Slots {
		if res.Slots[i].Start.Equal(start) {
			match = &res.Slots[i]
			break
		}
	}
	if match == nil {
		return availability.Slot{}, false, nil
	}

	if candidate.End.IsZero() || !candidate.End.After(candidate.Start) {
		candidate.End = start.Add(match.Duration())
	}
	if candidate.End.After(match.End) {
		return candidate, false, nil
	}

	taken, err := stores.Appointments.ExistsActiveAt(ctx, providerID, start)
	if err != nil {
		return availability.Slot{}, false, fmt.Errorf("check active appointment: %w", err)
	}
	return candidate, !taken, nil
}

func (g *Guard) IsBookable(ctx context.Context, stores Stores, providerID uuid.UUID, candidate availability.Slot, opts ...availability.ResolveOption) (bool, error) {
	_, ok, err := g.Evaluate(ctx, stores, providerID, candidate, opts...)
	return ok, err
}

func slotFor(start time.Time, minutes int) availability.Slot {
	s := availability.Slot{Start: start}
	if minutes > 0 {
		s.End = start.Add(time.Duration(minutes) * time.Minute)
	}
	return s
}

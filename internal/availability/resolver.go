package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("scheduling.internal.availability")

// DefaultGranularity is the rule-derived slot length when nothing else is configured.
// Curated overrides carry their own bounds and ignore it.
const DefaultGranularity = time.Hour

type Resolver struct {
	store       Store
	loc         *time.Location
	granularity time.Duration
	now         func() time.Time
}

type ResolverOption func(*Resolver)

func WithLocation(loc *time.Location) ResolverOption {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func WithGranularity(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.granularity = d
		}
	}
}

func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:       store,
		loc:         time.UTC,
		granularity: DefaultGranularity,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithStore returns a copy of r reading from store, typically a transaction
func (r *Resolver) WithStore(store Store) *Resolver {
	cp := *r
	cp.store = store
	return &cp
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

func (r *Resolver) Now() time.Time {
	return r.now().In(r.loc)
}

type resolveParams struct {
	granularity time.Duration
}

type ResolveOption func(*resolveParams)

// WithSlotLength overrides the granularity for one call
func WithSlotLength(d time.Duration) ResolveOption {
	return func(p *resolveParams) {
		p.granularity = d
	}
}

// Resolve computes the bookable slots for a provider on date.
// Blocked ranges win over everything, then per-date overrides, then weekly rules.
func (r *Resolver) Resolve(ctx context.Context, providerID uuid.UUID, date Date, opts ...ResolveOption) (Result, error) {
	ctx, span := tracer.Start(ctx, "availability.resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.provider_id", providerID.String()),
		attribute.String("scheduling.date", date.String()),
	)

	var params resolveParams
	for _, opt := range opts {
		opt(&params)
	}

	provider, err := r.store.GetProvider(ctx, providerID)
	if err != nil {
		return Result{}, err
	}

	blocks, err := r.store.ListBlockedRanges(ctx, providerID, date)
	if err != nil {
		return Result{}, fmt.Errorf("list blocked ranges: %w", err)
	}
	for _, b := range blocks {
		if b.Range.Contains(date) {
			return Result{Slots: []Slot{}, Blocked: true}, nil
		}
	}
	if !provider.Approved {
		return Result{Slots: []Slot{}}, nil
	}

	overrides, err := r.store.ListSlotOverrides(ctx, providerID, date)
	if err != nil {
		return Result{}, fmt.Errorf("list slot overrides: %w", err)
	}

	var slots []Slot
	if len(overrides) > 0 {
		slots = r.fromOverrides(date, overrides)
	} else {
		rules, err := r.store.ListActiveRules(ctx, providerID, date.Weekday())
		if err != nil {
			return Result{}, fmt.Errorf("list availability rules: %w", err)
		}
		slots = r.fromRules(date, rules, r.slotLength(provider, params))
	}

	now := r.now()
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Start.After(now) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})

	span.SetAttributes(attribute.Int("scheduling.slot_count", len(out)))
	return Result{Slots: out}, nil
}

func (r *Resolver) slotLength(p *Provider, params resolveParams) time.Duration {
	if params.granularity > 0 {
		return params.granularity
	}
	if p.SlotMinutes != nil && *p.SlotMinutes > 0 {
		return time.Duration(*p.SlotMinutes) * time.Minute
	}
	return r.granularity
}

func (r *Resolver) fromOverrides(date Date, overrides []SlotOverride) []Slot {
	slots := make([]Slot, 0, len(overrides))
	for _, ov := range overrides {
		if !ov.Available {
			continue
		}
		slots = append(slots, Slot{
			Start: date.At(ov.Start, r.loc),
			End:   date.At(ov.End, r.loc),
		})
	}
	return slots
}

// fromRules steps through each rule; a trailing remainder shorter than step is dropped.
// Overlapping rules produce overlapping slots.
func (r *Resolver) fromRules(date Date, rules []Rule, step time.Duration) []Slot {
	stepMin := TimeOfDay(step / time.Minute)
	if stepMin <= 0 {
		return nil
	}

	var slots []Slot
	for _, rule := range rules {
		if !rule.Active || rule.Day != date.Weekday() {
			continue
		}
		for start := rule.Start; start+stepMin <= rule.End; start += stepMin {
			slots = append(slots, Slot{
				Start: date.At(start, r.loc),
				End:   date.At(start+stepMin, r.loc),
			})
		}
	}
	return slots
}

package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2030-01-07 is a Monday
var monday = Date{Year: 2030, Month: time.January, Day: 7}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestStore(t *testing.T) (*MemoryStore, uuid.UUID) {
	t.Helper()
	store := NewMemoryStore()
	pid := uuid.New()
	store.PutProvider(Provider{ID: pid, Name: "Dr. Lima", Specialty: "Cardiology", Approved: true})
	return store, pid
}

func addRule(t *testing.T, store *MemoryStore, pid uuid.UUID, day DayOfWeek, start, end string) {
	t.Helper()
	s, err := ParseTimeOfDay(start)
	require.NoError(t, err)
	e, err := ParseTimeOfDay(end)
	require.NoError(t, err)
	rule, err := NewRule(pid, day, s, e)
	require.NoError(t, err)
	_, err = store.InsertRule(context.Background(), rule)
	require.NoError(t, err)
}

func slotStarts(res Result) []string {
	out := make([]string, 0, len(res.Slots))
	for _, s := range res.Slots {
		out = append(out, s.Start.Format("15:04"))
	}
	return out
}

func TestResolveFromWeeklyRule(t *testing.T) {
	store, pid := newTestStore(t)
	addRule(t, store, pid, Monday, "08:00", "12:00")

	r := NewResolver(store, WithClock(fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))))
	res, err := r.Resolve(context.Background(), pid, monday)
	require.NoError(t, err)

	assert.False(t, res.Blocked)
	assert.Equal(t, []string{"08:00", "09:00", "10:00", "11:00"}, slotStarts(res))
	for _, s := range res.Slots {
		assert.Equal(t, time.Hour, s.Duration())
	}
}

func TestResolveGranularityPrecedence(t *testing.T) {
	store, pid := newTestStore(t)
	addRule(t, store, pid, Monday, "08:00", "10:00")
	clock := WithClock(fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	r := NewResolver(store, clock, WithGranularity(30*time.Minute))
	res, err := r.Resolve(ctx, pid, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "08:30", "09:00", "09:30"}, slotStarts(res))

	fortyFive := 45
	p, _ := store.GetProvider(ctx, pid)
	p.SlotMinutes = &fortyFive
	store.PutProvider(*p)

	res, err = r.Resolve(ctx, pid, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "08:45"}, slotStarts(res), "provider setting beats config, trailing remainder dropped")

	res, err = r.Resolve(ctx, pid, monday, WithSlotLength(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "09:00"}, slotStarts(res), "per-call setting beats provider")
}

func TestResolveOverlappingRulesAreNotMerged(t *testing.T) {
	store, pid := newTestStore(t)
	addRule(t, store, pid, Monday, "08:00", "10:00")
	addRule(t, store, pid, Monday, "09:00", "11:00")

	r := NewResolver(store, WithClock(fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))))
	res, err := r.Resolve(context.Background(), pid, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "09:00", "09:00", "10:00"}, slotStarts(res))
}

func TestResolveIgnoresInactiveAndOtherWeekdays(t *testing.T) {
	store, pid := newTestStore(t)
	addRule(t, store, pid, Tuesday, "08:00", "12:00")
	addRule(t, store, pid, Monday, "14:00", "16:00")
	ctx := context.Background()

	rules, err := store.ListRules(ctx, pid)
	require.NoError(t, err)
	for _, rule := range rules {
		if rule.Day == Monday {
			_, err := store.DeactivateRule(ctx, pid, rule.ID)
			require.NoError(t, err)
		}
	}

	r := NewResolver(store, WithClock(fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))))
	res, err := r.Resolve(ctx, pid, monday)
	require.NoError(t, err)
	assert.False(t, res.Blocked)
	assert.Empty(t, res.Slots)
}

func TestResolveBlockedDatesDominate(t *testing.T) {
	store, pid := newTestStore(t)
	ctx := context.Background()
	addRule(t, store, pid, Monday, "08:00", "12:00")
	_, err := store.UpsertSlotOverride(ctx, SlotOverride{ID: uuid.New(), ProviderID: pid, Date: monday, Start: 600, End: 630, Available: true})
	require.NoError(t, err)

	dr, err := NewDateRange(monday.AddDays(-2), monday)
	require.NoError(t, err)
	_, err = store.InsertBlockedRange(ctx, BlockedRange{ID: uuid.New(), ProviderID: pid, Range: dr, Reason: "vacation"})
	require.NoError(t, err)

	r := NewResolver(store, WithClock(fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))))
	res, err := r.Resolve(ctx, pid, monday)
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Empty(t, res.Slots)

	next, err := r.Resolve(ctx, pid, monday.AddDays(7))
	require.NoError(t, err)
	assert.False(t, next.Blocked)
	assert.Len(t, next.Slots, 4)
}

func TestResolveOverridesReplaceRules(t *testing.T) {
	store, pid := newTestStore(t)
	ctx := context.Background()
	addRule(t, store, pid, Monday, "08:00", "12:00")

	for _, ov := range []SlotOverride{
		{ID: uuid.New(), ProviderID: pid, Date: monday, Start: 14 * 60, End: 14*60 + 30, Available: true},
		{ID: uuid.New(), ProviderID: pid, Date: monday, Start: 13 * 60, End: 13*60 + 30, Available: true},
		{ID: uuid.New(), ProviderID: pid, Date: monday, Start: 15 * 60, End: 15*60 + 30, Available: false},
	} {
		_, err := store.UpsertSlotOverride(ctx, ov)
		require.NoError(t, err)
	}

	r := NewResolver(store, WithClock(fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))))
	res, err := r.Resolve(ctx, pid, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"13:00", "14:00"}, slotStarts(res))
	assert.Equal(t, 30*time.Minute, res.Slots[0].Duration())
}

func TestResolveAllOverridesTakenYieldsEmpty(t *testing.T) {
	store, pid := newTestStore(t)
	ctx := context.Background()
	addRule(t, store, pid, Monday, "08:00", "12:00")
	_, err := store.UpsertSlotOverride(ctx, SlotOverride{ID: uuid.New(), ProviderID: pid, Date: monday, Start: 600, End: 660, Available: false})
	require.NoError(t, err)

	r := NewResolver(store, WithClock(fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))))
	res, err := r.Resolve(ctx, pid, monday)
	require.NoError(t, err)
	assert.Empty(t, res.Slots, "rule-derived slots must not leak in when overrides exist")
}

func TestResolveDropsStartedSlotsToday(t *testing.T) {
	store, pid := newTestStore(t)
	addRule(t, store, pid, Monday, "08:00", "12:00")

	now := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	r := NewResolver(store, WithClock(fixedClock(now)))
	res, err := r.Resolve(context.Background(), pid, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00"}, slotStarts(res), "a slot starting exactly now is excluded")

	past, err := r.Resolve(context.Background(), pid, monday.AddDays(-7))
	require.NoError(t, err)
	assert.Empty(t, past.Slots)
}

func TestResolveUsesLocation(t *testing.T) {
	store, pid := newTestStore(t)
	addRule(t, store, pid, Monday, "08:00", "09:00")

	loc := time.FixedZone("BRT", -3*60*60)
	r := NewResolver(store, WithLocation(loc), WithClock(fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))))
	res, err := r.Resolve(context.Background(), pid, monday)
	require.NoError(t, err)
	require.Len(t, res.Slots, 1)
	assert.True(t, res.Slots[0].Start.Equal(time.Date(2030, 1, 7, 11, 0, 0, 0, time.UTC)))
}

func TestResolveUnknownProvider(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store)
	_, err := r.Resolve(context.Background(), uuid.New(), monday)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestResolveUnapprovedProviderIsEmpty(t *testing.T) {
	store := NewMemoryStore()
	pid := uuid.New()
	store.PutProvider(Provider{ID: pid, Approved: false})
	addRule(t, store, pid, Monday, "08:00", "12:00")

	r := NewResolver(store, WithClock(fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))))
	res, err := r.Resolve(context.Background(), pid, monday)
	require.NoError(t, err)
	assert.False(t, res.Blocked)
	assert.Empty(t, res.Slots)
}

func TestResolveBlockedUnapprovedProviderReportsBlocked(t *testing.T) {
	store := NewMemoryStore()
	pid := uuid.New()
	store.PutProvider(Provider{ID: pid, Approved: false})
	dr, err := NewDateRange(monday, monday)
	require.NoError(t, err)
	_, err = store.InsertBlockedRange(context.Background(), BlockedRange{ID: uuid.New(), ProviderID: pid, Range: dr, Reason: "leave"})
	require.NoError(t, err)

	r := NewResolver(store, WithClock(fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))))
	res, err := r.Resolve(context.Background(), pid, monday)
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Empty(t, res.Slots)
}

func TestResolveRuleSlotsOnDSTDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	store, pid := newTestStore(t)
	// 2030-03-10 is a Sunday and the US spring-forward date
	addRule(t, store, pid, Sunday, "08:00", "10:00")

	r := NewResolver(store, WithLocation(ny), WithClock(fixedClock(time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC))))
	res, err := r.Resolve(context.Background(), pid, Date{Year: 2030, Month: time.March, Day: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "09:00"}, slotStarts(res))
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) ListSlotOverrides(ctx context.Context, providerID uuid.UUID, date Date) ([]SlotOverride, error) {
	return nil, errors.New("connection reset")
}

func TestResolveWithStoreSwapsBackend(t *testing.T) {
	store, pid := newTestStore(t)
	r := NewResolver(store)

	_, err := r.WithStore(failingStore{store}).Resolve(context.Background(), pid, monday)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list slot overrides")

	_, err = r.Resolve(context.Background(), pid, monday)
	require.NoError(t, err, "original resolver keeps its store")
}

package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRuleLifecycle(t *testing.T) {
	store, pid := newTestStore(t)
	m := NewManager(store, nil)
	ctx := context.Background()

	rule, err := m.AddRule(ctx, pid, Monday, 8*60, 12*60)
	require.NoError(t, err)
	assert.True(t, rule.Active)

	_, err = m.AddRule(ctx, pid, Monday, 12*60, 8*60)
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = m.AddRule(ctx, uuid.New(), Monday, 8*60, 12*60)
	assert.ErrorIs(t, err, ErrProviderNotFound)

	deactivated, err := m.DeactivateRule(ctx, pid, rule.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	rules, err := m.ListRules(ctx, pid)
	require.NoError(t, err)
	require.Len(t, rules, 1, "deactivated rules are kept")
	assert.False(t, rules[0].Active)

	_, err = m.DeactivateRule(ctx, uuid.New(), rule.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestManagerBlockDates(t *testing.T) {
	store, pid := newTestStore(t)
	m := NewManager(store, nil)
	ctx := context.Background()

	block, err := m.BlockDates(ctx, pid, monday, monday.AddDays(4), "conference")
	require.NoError(t, err)
	assert.Equal(t, "conference", block.Reason)

	_, err = m.BlockDates(ctx, pid, monday, monday.AddDays(-1), "")
	assert.ErrorIs(t, err, ErrInvalidRange)

	r := NewResolver(store, WithClock(fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))))
	res, err := r.Resolve(ctx, pid, monday.AddDays(2))
	require.NoError(t, err)
	assert.True(t, res.Blocked)
}

func TestManagerSetSlotOverride(t *testing.T) {
	store, pid := newTestStore(t)
	m := NewManager(store, nil)
	ctx := context.Background()

	ov, err := m.SetSlotOverride(ctx, pid, monday, 9*60, 9*60+30, true)
	require.NoError(t, err)
	assert.True(t, ov.Available)

	_, err = m.SetSlotOverride(ctx, pid, monday, 10*60, 9*60, true)
	assert.ErrorIs(t, err, ErrInvalidRule)

	claimed, err := store.ClaimSlotOverride(ctx, pid, monday, 9*60, uuid.New())
	require.NoError(t, err)
	require.True(t, claimed)

	again, err := m.SetSlotOverride(ctx, pid, monday, 9*60, 10*60, true)
	require.NoError(t, err)
	assert.False(t, again.Available, "a consumed override cannot be reopened by an edit")
	assert.Equal(t, TimeOfDay(10*60), again.End)
}

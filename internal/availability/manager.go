package availability

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

// Manager handles provider-side edits to availability
type Manager struct {
	repo   Repository
	logger *logging.Logger
}

func NewManager(repo Repository, logger *logging.Logger) *Manager {
	if repo == nil {
		panic("availability: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{repo: repo, logger: logger}
}

func (m *Manager) AddRule(ctx context.Context, providerID uuid.UUID, day DayOfWeek, start, end TimeOfDay) (*Rule, error) {
	if _, err := m.repo.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}

	rule, err := NewRule(providerID, day, start, end)
	if err != nil {
		return nil, err
	}

	created, err := m.repo.InsertRule(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("insert rule: %w", err)
	}

	m.logger.Info("availability rule added",
		"provider_id", providerID,
		"rule_id", created.ID,
		"day", day.String(),
		"start", start.String(),
		"end", end.String(),
	)
	return created, nil
}

func (m *Manager) DeactivateRule(ctx context.Context, providerID, ruleID uuid.UUID) (*Rule, error) {
	rule, err := m.repo.DeactivateRule(ctx, providerID, ruleID)
	if err != nil {
		return nil, err
	}
	m.logger.Info("availability rule deactivated", "provider_id", providerID, "rule_id", ruleID)
	return rule, nil
}

func (m *Manager) ListRules(ctx context.Context, providerID uuid.UUID) ([]Rule, error) {
	if _, err := m.repo.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}
	return m.repo.ListRules(ctx, providerID)
}

func (m *Manager) BlockDates(ctx context.Context, providerID uuid.UUID, start, end Date, reason string) (*BlockedRange, error) {
	if _, err := m.repo.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}

	dr, err := NewDateRange(start, end)
	if err != nil {
		return nil, err
	}

	block, err := m.repo.InsertBlockedRange(ctx, BlockedRange{
		ID:         uuid.New(),
		ProviderID: providerID,
		Range:      dr,
		Reason:     reason,
	})
	if err != nil {
		return nil, fmt.Errorf("insert blocked range: %w", err)
	}

	m.logger.Info("dates blocked", "provider_id", providerID, "start", start.String(), "end", end.String())
	return block, nil
}

// SetSlotOverride creates or replaces the curated slot starting at start on date
func (m *Manager) SetSlotOverride(ctx context.Context, providerID uuid.UUID, date Date, start, end TimeOfDay, available bool) (*SlotOverride, error) {
	if _, err := m.repo.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}
	if start >= end || end > endOfDay {
		return nil, fmt.Errorf("%w: %s-%s", ErrInvalidRule, start, end)
	}

	ov, err := m.repo.UpsertSlotOverride(ctx, SlotOverride{
		ID:         uuid.New(),
		ProviderID: providerID,
		Date:       date,
		Start:      start,
		End:        end,
		Available:  available,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert slot override: %w", err)
	}
	return ov, nil
}

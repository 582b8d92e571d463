package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrRuleNotFound     = errors.New("availability rule not found")
)

// Store is the read side the resolver needs. Implementations may be bound to
// a transaction so resolution sees the same snapshot as the booking write.
type Store interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error)

	// ListBlockedRanges returns only the ranges covering date
	ListBlockedRanges(ctx context.Context, providerID uuid.UUID, date Date) ([]BlockedRange, error)
	ListSlotOverrides(ctx context.Context, providerID uuid.UUID, date Date) ([]SlotOverride, error)

	// ListActiveRules returns active rules for one weekday
	ListActiveRules(ctx context.Context, providerID uuid.UUID, day DayOfWeek) ([]Rule, error)
}

// SlotLedger records which override a booking consumed
type SlotLedger interface {
	ClaimSlotOverride(ctx context.Context, providerID uuid.UUID, date Date, start TimeOfDay, appointmentID uuid.UUID) (bool, error)
	ReleaseSlotOverride(ctx context.Context, appointmentID uuid.UUID) (bool, error)
}

// Repository adds the provider-facing writes
type Repository interface {
	Store
	SlotLedger

	ListRules(ctx context.Context, providerID uuid.UUID) ([]Rule, error)
	InsertRule(ctx context.Context, rule Rule) (*Rule, error)
	DeactivateRule(ctx context.Context, providerID, ruleID uuid.UUID) (*Rule, error)
	InsertBlockedRange(ctx context.Context, block BlockedRange) (*BlockedRange, error)
	UpsertSlotOverride(ctx context.Context, ov SlotOverride) (*SlotOverride, error)
}

package appointment

import (
	"fmt"
	"slices"
)

type Trigger string

const (
	TriggerPaymentSucceeded Trigger = "payment_succeeded"
	TriggerPaymentFailed    Trigger = "payment_failed"
	TriggerPaymentExpired   Trigger = "payment_expired"
	TriggerPaymentRefunded  Trigger = "payment_refunded"
	TriggerCancel           Trigger = "cancel"
	TriggerSessionJoined    Trigger = "session_joined"
	TriggerSessionEnded     Trigger = "session_ended"
	TriggerNoShow           Trigger = "no_show"
)

type transition struct {
	from []Status
	to   Status
	// statuses where the trigger already took effect and replays are ignored
	noop []Status
}

var transitions = map[Trigger]transition{
	TriggerPaymentSucceeded: {
		from: []Status{StatusScheduled},
		to:   StatusConfirmed,
		noop: []Status{StatusConfirmed, StatusInProgress, StatusCompleted},
	},
	TriggerPaymentFailed: {
		from: []Status{StatusScheduled, StatusConfirmed},
		to:   StatusCancelled,
		noop: []Status{StatusCancelled},
	},
	TriggerPaymentExpired: {
		from: []Status{StatusScheduled, StatusConfirmed},
		to:   StatusCancelled,
		noop: []Status{StatusCancelled},
	},
	TriggerPaymentRefunded: {
		from: []Status{StatusScheduled, StatusConfirmed},
		to:   StatusCancelled,
		noop: []Status{StatusCancelled},
	},
	TriggerCancel: {
		from: []Status{StatusScheduled, StatusConfirmed},
		to:   StatusCancelled,
	},
	TriggerSessionJoined: {
		from: []Status{StatusConfirmed},
		to:   StatusInProgress,
		noop: []Status{StatusInProgress},
	},
	TriggerSessionEnded: {
		from: []Status{StatusInProgress},
		to:   StatusCompleted,
		noop: []Status{StatusCompleted},
	},
	TriggerNoShow: {
		from: []Status{StatusConfirmed},
		to:   StatusNoShow,
		noop: []Status{StatusNoShow},
	},
}

// Next returns the status trigger moves current to. noop is true when the
// trigger was already applied and nothing should be written.
func Next(current Status, trigger Trigger) (to Status, noop bool, err error) {
	t, ok := transitions[trigger]
	if !ok {
		return current, false, fmt.Errorf("%w: unknown trigger %q", ErrInvalidTransition, trigger)
	}
	if slices.Contains(t.from, current) {
		return t.to, false, nil
	}
	if slices.Contains(t.noop, current) {
		return current, true, nil
	}
	return current, false, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, trigger, current)
}

package appointment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTransitions(t *testing.T) {
	cases := []struct {
		from    Status
		trigger Trigger
		to      Status
		noop    bool
		invalid bool
	}{
		{StatusScheduled, TriggerPaymentSucceeded, StatusConfirmed, false, false},
		{StatusConfirmed, TriggerPaymentSucceeded, StatusConfirmed, true, false},
		{StatusInProgress, TriggerPaymentSucceeded, StatusInProgress, true, false},
		{StatusCompleted, TriggerPaymentSucceeded, StatusCompleted, true, false},
		{StatusCancelled, TriggerPaymentSucceeded, StatusCancelled, false, true},

		{StatusScheduled, TriggerPaymentFailed, StatusCancelled, false, false},
		{StatusConfirmed, TriggerPaymentExpired, StatusCancelled, false, false},
		{StatusConfirmed, TriggerPaymentRefunded, StatusCancelled, false, false},
		{StatusCancelled, TriggerPaymentRefunded, StatusCancelled, true, false},
		{StatusInProgress, TriggerPaymentFailed, StatusInProgress, false, true},

		{StatusScheduled, TriggerCancel, StatusCancelled, false, false},
		{StatusConfirmed, TriggerCancel, StatusCancelled, false, false},
		{StatusCancelled, TriggerCancel, StatusCancelled, false, true},
		{StatusInProgress, TriggerCancel, StatusInProgress, false, true},

		{StatusConfirmed, TriggerSessionJoined, StatusInProgress, false, false},
		{StatusInProgress, TriggerSessionJoined, StatusInProgress, true, false},
		{StatusScheduled, TriggerSessionJoined, StatusScheduled, false, true},

		{StatusInProgress, TriggerSessionEnded, StatusCompleted, false, false},
		{StatusCompleted, TriggerSessionEnded, StatusCompleted, true, false},
		{StatusConfirmed, TriggerSessionEnded, StatusConfirmed, false, true},

		{StatusConfirmed, TriggerNoShow, StatusNoShow, false, false},
		{StatusNoShow, TriggerNoShow, StatusNoShow, true, false},
		{StatusScheduled, TriggerNoShow, StatusScheduled, false, true},
	}

	for _, c := range cases {
		t.Run(string(c.from)+"/"+string(c.trigger), func(t *testing.T) {
			to, noop, err := Next(c.from, c.trigger)
			if c.invalid {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.to, to)
			assert.Equal(t, c.noop, noop)
		})
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	triggers := []Trigger{TriggerPaymentSucceeded, TriggerPaymentFailed, TriggerCancel, TriggerSessionJoined, TriggerSessionEnded, TriggerNoShow}
	for _, status := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		assert.True(t, status.Terminal())
		assert.False(t, status.Active())
		for _, trig := range triggers {
			to, _, err := Next(status, trig)
			if err == nil {
				assert.Equal(t, status, to, "%s on %s must not leave a terminal state", trig, status)
			}
		}
	}
}

func TestNextUnknownTrigger(t *testing.T) {
	_, _, err := Next(StatusScheduled, "reschedule")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUnprocessable(t *testing.T) {
	assert.True(t, Unprocessable(fmt.Errorf("event e1: %w", ErrExternalEventUnmatched)))
	assert.True(t, Unprocessable(ErrInvalidTransition))
	assert.False(t, Unprocessable(errors.New("connection reset")))
	assert.False(t, Unprocessable(nil))
}

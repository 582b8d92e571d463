package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Source string

const (
	SourcePayments     Source = "payments"
	SourceConferencing Source = "conferencing"
)

var ErrUnknownSource = errors.New("events: unknown source")

// PaymentEvent is sent by the payment processor. Type is one of
// payment_succeeded, payment_failed, payment_expired, payment_refunded.
type PaymentEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ConferencingEvent reports session_joined or session_ended
type ConferencingEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	RoomRef       string    `json:"room_ref,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Handler interface {
	HandlePaymentEvent(ctx context.Context, ev PaymentEvent) error
	HandleConferencingEvent(ctx context.Context, ev ConferencingEvent) error
}

// Envelope is the queue message shape
type Envelope struct {
	Source Source          `json:"source"`
	Event  json.RawMessage `json:"event"`
}

// Dispatch decodes env and routes it to h
func Dispatch(ctx context.Context, h Handler, env Envelope) error {
	switch env.Source {
	case SourcePayments:
		var ev PaymentEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return fmt.Errorf("events: decode payment event: %w", err)
		}
		return h.HandlePaymentEvent(ctx, ev)
	case SourceConferencing:
		var ev ConferencingEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return fmt.Errorf("events: decode conferencing event: %w", err)
		}
		return h.HandleConferencingEvent(ctx, ev)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, env.Source)
	}
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hackgods/consultation-scheduling/pkg/logging"
)

const (
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

type Queue interface {
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Consumer pulls envelopes off a queue and dispatches them to a Handler.
// Messages are deleted when handling succeeds or the error is acknowledged
// by the ack policy; everything else is left for redelivery.
type Consumer struct {
	queue     Queue
	handler   Handler
	logger    *logging.Logger
	ack       func(error) bool
	batchSize int
	waitSecs  int
}

type ConsumerOption func(*Consumer)

// WithAckPolicy marks handler errors that should still delete the message
func WithAckPolicy(ack func(error) bool) ConsumerOption {
	return func(c *Consumer) {
		if ack != nil {
			c.ack = ack
		}
	}
}

func WithReceiveBatchSize(size int) ConsumerOption {
	return func(c *Consumer) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		c.batchSize = size
	}
}

func WithReceiveWaitSeconds(seconds int) ConsumerOption {
	return func(c *Consumer) {
		if seconds >= 0 {
			c.waitSecs = seconds
		}
	}
}

func NewConsumer(queue Queue, handler Handler, logger *logging.Logger, opts ...ConsumerOption) *Consumer {
	if queue == nil || handler == nil {
		panic("events: queue and handler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Consumer{
		queue:     queue,
		handler:   handler,
		logger:    logger,
		ack:       func(error) bool { return false },
		batchSize: maxReceiveBatchSize,
		waitSecs:  20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("event consumer stopping")
			return
		default:
		}

		messages, err := c.queue.Receive(ctx, c.batchSize, c.waitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("failed to receive events", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			c.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage processes one message and reports whether it was deleted
func (c *Consumer) HandleMessage(ctx context.Context, msg Message) bool {
	var env Envelope
	if err := json.Unmarshal([]byte(msg.Body), &env); err != nil {
		c.logger.Error("failed to decode event envelope", "error", err, "msg_id", msg.ID)
		c.delete(ctx, msg.ReceiptHandle)
		return true
	}

	err := Dispatch(ctx, c.handler, env)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownSource):
		c.logger.Warn("dropping event from unknown source", "source", env.Source, "msg_id", msg.ID)
	case c.ack(err):
		c.logger.Warn("event acknowledged without effect", "error", err, "source", env.Source, "msg_id", msg.ID)
	default:
		c.logger.Error("event handling failed, leaving for redelivery", "error", err, "source", env.Source, "msg_id", msg.ID)
		return false
	}

	c.delete(ctx, msg.ReceiptHandle)
	return true
}

func (c *Consumer) delete(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := c.queue.Delete(deleteCtx, receiptHandle); err != nil {
		c.logger.Error("failed to delete event message", "error", err)
	}
}

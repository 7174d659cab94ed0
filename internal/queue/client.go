package queue

import (
	"context"
	"fmt"
)

// Client publishes workflow events to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// BodyHandler consumes one encoded message, the same body an SQS consumer
// would receive.
type BodyHandler func(ctx context.Context, body string) error

// Loopback delivers events in-process. It stands in for SQS when no queue
// URL is configured so local runs still record audit events.
type Loopback struct {
	Handle BodyHandler
}

func (l *Loopback) Send(ctx context.Context, msg Message) error {
	if l == nil || l.Handle == nil {
		return nil
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode loopback message: %w", err)
	}
	if err := l.Handle(ctx, string(payload)); err != nil {
		return fmt.Errorf("loopback %s: %w", msg.Type, err)
	}
	return nil
}

var _ Client = (*Loopback)(nil)

package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"tender-evaluator/internal/queue"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrUnrecoverable marks messages that will never process; the worker deletes them.
var ErrUnrecoverable = errors.New("unrecoverable message")

var knownTypes = map[string]struct{}{
	queue.EventEvaluationCompleted: {},
	queue.EventEvaluationFailed:    {},
	queue.EventExportCreated:       {},
}

// ParseMessage decodes and validates a queue body.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, fmt.Errorf("%w: empty body", ErrUnrecoverable)
	}
	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, fmt.Errorf("%w: decode: %v", ErrUnrecoverable, err)
	}
	if strings.TrimSpace(msg.ID) == "" {
		return msg, meta, fmt.Errorf("%w: missing id", ErrUnrecoverable)
	}
	if _, ok := knownTypes[msg.Type]; !ok {
		return msg, meta, fmt.Errorf("%w: unknown type %q", ErrUnrecoverable, msg.Type)
	}
	if strings.TrimSpace(msg.UserID) == "" {
		return msg, meta, fmt.Errorf("%w: missing user", ErrUnrecoverable)
	}
	return msg, meta, nil
}

// Processor turns queue bodies into recorded events.
type Processor struct {
	Repo Repo
	Now  func() time.Time
}

// Handle records one message body. Duplicates are not an error.
func (p *Processor) Handle(ctx context.Context, body string) (queue.Message, bool, error) {
	msg, _, err := ParseMessage(body)
	if err != nil {
		return msg, false, err
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	occurred, err := time.Parse(time.RFC3339, msg.EnqueuedAt)
	if err != nil {
		occurred = now()
	}
	created, err := p.Repo.Record(ctx, Event{
		ID:           msg.ID,
		Type:         msg.Type,
		UserID:       msg.UserID,
		TenderID:     msg.TenderID,
		EvaluationID: msg.EvaluationID,
		Payload:      []byte(body),
		OccurredAt:   occurred.UTC(),
		RecordedAt:   now().UTC(),
	})
	if err != nil {
		return msg, false, fmt.Errorf("record event %s: %w", msg.ID, err)
	}
	return msg, created, nil
}

// Package audit records workflow events consumed from the queue.
package audit

import (
	"encoding/json"
	"time"
)

// Event is one recorded workflow event.
type Event struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	UserID       string          `json:"userId"`
	TenderID     int64           `json:"tenderId,omitempty"`
	EvaluationID string          `json:"evaluationId,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	OccurredAt   time.Time       `json:"occurredAt"`
	RecordedAt   time.Time       `json:"recordedAt"`
}

// Filter narrows List. Zero fields are ignored.
type Filter struct {
	UserID   string
	TenderID int64
	Limit    int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	default:
		return f.Limit
	}
}

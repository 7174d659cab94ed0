package queue

import "encoding/json"

const (
	EventEvaluationCompleted = "evaluation.completed"
	EventEvaluationFailed    = "evaluation.failed"
	EventExportCreated       = "export.created"
)

// Message is a workflow event sent to downstream consumers. ID is unique per
// event so consumers can drop redeliveries.
type Message struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	UserID       string `json:"userId"`
	TenderID     int64  `json:"tenderId,omitempty"`
	EvaluationID string `json:"evaluationId,omitempty"`
	VendorCount  int    `json:"vendorCount,omitempty"`
	ResultCount  int    `json:"resultCount,omitempty"`
	Format       string `json:"format,omitempty"`
	StorageKey   string `json:"storageKey,omitempty"`
	Error        string `json:"error,omitempty"`
	EnqueuedAt   string `json:"enqueuedAt"`
	Version      int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

package queue

import (
	"reflect"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		ID:           "5f8c1f4e-8d0b-4a5b-9d57-0c6c2b1b7a11",
		Type:         EventEvaluationCompleted,
		UserID:       "alice",
		TenderID:     7,
		EvaluationID: "eval-123",
		VendorCount:  2,
		ResultCount:  2,
		EnqueuedAt:   "2026-01-30T22:00:00Z",
		Version:      1,
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}

	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

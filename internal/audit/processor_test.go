package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"tender-evaluator/internal/queue"
)

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	b, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(b)
}

func TestParseMessageRejects(t *testing.T) {
	valid := queue.Message{ID: "e1", Type: queue.EventExportCreated, UserID: "user-1"}
	tests := []struct {
		name string
		body string
	}{
		{"empty", "   "},
		{"bad json", "{bad-json"},
		{"missing id", encode(t, queue.Message{Type: queue.EventExportCreated, UserID: "user-1"})},
		{"unknown type", encode(t, queue.Message{ID: "e1", Type: "ocr.started", UserID: "user-1"})},
		{"missing user", encode(t, queue.Message{ID: "e1", Type: queue.EventExportCreated})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := ParseMessage(tc.body); !errors.Is(err, ErrUnrecoverable) {
				t.Fatalf("expected ErrUnrecoverable, got %v", err)
			}
		})
	}
	if _, meta, err := ParseMessage(encode(t, valid)); err != nil || meta.BodySHA == "" {
		t.Fatalf("expected valid message to parse, err=%v meta=%+v", err, meta)
	}
}

func TestProcessorRecordsOnce(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := &Processor{Repo: repo, Now: func() time.Time { return now }}
	body := encode(t, queue.Message{
		ID:           "evt-1",
		Type:         queue.EventEvaluationCompleted,
		UserID:       "user-1",
		TenderID:     1,
		EvaluationID: "eval-9",
		EnqueuedAt:   "2024-05-01T09:45:00Z",
		Version:      1,
	})

	_, created, err := p.Handle(context.Background(), body)
	if err != nil || !created {
		t.Fatalf("first handle: created=%v err=%v", created, err)
	}
	_, created, err = p.Handle(context.Background(), body)
	if err != nil || created {
		t.Fatalf("redelivery: created=%v err=%v", created, err)
	}

	events, _ := repo.List(context.Background(), Filter{TenderID: 1})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.EvaluationID != "eval-9" || !e.OccurredAt.Equal(time.Date(2024, 5, 1, 9, 45, 0, 0, time.UTC)) || !e.RecordedAt.Equal(now) {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestMemoryRepoListFiltersAndOrders(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, e := range []Event{
		{ID: "a", UserID: "user-1", TenderID: 1},
		{ID: "b", UserID: "user-1", TenderID: 2},
		{ID: "c", UserID: "user-2", TenderID: 1},
		{ID: "d", UserID: "user-1", TenderID: 1},
	} {
		e.OccurredAt = base.Add(time.Duration(i) * time.Minute)
		_, _ = repo.Record(context.Background(), e)
	}
	got, _ := repo.List(context.Background(), Filter{UserID: "user-1", TenderID: 1})
	if len(got) != 2 || got[0].ID != "d" || got[1].ID != "a" {
		t.Fatalf("unexpected events %+v", got)
	}
	got, _ = repo.List(context.Background(), Filter{Limit: 1})
	if len(got) != 1 || got[0].ID != "d" {
		t.Fatalf("expected newest single event, got %+v", got)
	}
}

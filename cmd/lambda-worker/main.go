package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"tender-evaluator/internal/audit"
	"tender-evaluator/internal/shared/config"
	"tender-evaluator/internal/shared/metrics"
	"tender-evaluator/internal/shared/storage/db"
	"tender-evaluator/internal/shared/telemetry"
)

var (
	initOnce sync.Once
	initErr  error
	proc     *audit.Processor
)

// initProcessor reuses one pool across warm invocations. Migrations are owned
// by cmd/migrate, not by the Lambda.
func initProcessor() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	telemetry.SetService("tender-audit-lambda")
	if cfg.DatabaseURL == "" {
		initErr = errors.New("DATABASE_URL is required")
		return
	}
	sqlDB, err := db.ConnectWithRetry(context.Background(), cfg.DatabaseURL, db.OptionsFor(db.ProfileLambda), 3, 200*time.Millisecond)
	if err != nil {
		initErr = err
		return
	}
	proc = &audit.Processor{Repo: &audit.PGRepo{DB: sqlDB}}
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initProcessor)
	if initErr != nil {
		log.Printf("init error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, proc, event), nil
}

// processBatch reports only storage failures back to SQS. Malformed records
// are dropped so they do not cycle until the DLQ.
func processBatch(ctx context.Context, p *audit.Processor, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncEventsReceived()
		msg, created, err := p.Handle(ctx, record.Body)
		fields := map[string]any{"sqs_message_id": record.MessageId, "event_id": msg.ID, "event_type": msg.Type}
		switch {
		case errors.Is(err, audit.ErrUnrecoverable):
			fields["error"] = err.Error()
			telemetry.Error("lambda.event.unrecoverable", fields)
			metrics.IncEventsUnrecoverable()
		case err != nil:
			fields["error"] = err.Error()
			telemetry.Error("lambda.event.failed", fields)
			metrics.IncEventsFailed()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		default:
			fields["duplicate"] = !created
			telemetry.Info("lambda.event.recorded", fields)
			if created {
				metrics.IncEventsRecorded()
			}
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}

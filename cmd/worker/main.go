package main

// Consume workflow events from SQS into the audit store:
//   TE_SQS_QUEUE_URL=... DATABASE_URL=... go run ./cmd/worker

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"

	"tender-evaluator/internal/audit"
	"tender-evaluator/internal/queue"
	"tender-evaluator/internal/shared/config"
	"tender-evaluator/internal/shared/metrics"
	"tender-evaluator/internal/shared/storage/db"
	"tender-evaluator/internal/shared/telemetry"
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// eventHandler records one queue body. It is satisfied by *audit.Processor.
type eventHandler interface {
	Handle(ctx context.Context, body string) (queue.Message, bool, error)
}

type consumer struct {
	client      sqsAPI
	queueURL    string
	handler     eventHandler
	visibility  int32
	waitSeconds int32
	concurrency int
	// drain bounds how long a batch in flight at shutdown may keep running.
	drain time.Duration
}

func main() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	telemetry.SetService("tender-audit-worker")

	queueURL := strings.TrimSpace(cfg.SQSQueueURL)
	if queueURL == "" {
		log.Fatal("TE_SQS_QUEUE_URL is required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	region := cfg.AWSRegion
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	var repo audit.Repo = audit.NewMemoryRepo()
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.ConnectWithRetry(ctx, cfg.DatabaseURL, db.OptionsFor(db.ProfileWorker), 5, 500*time.Millisecond)
		if err != nil {
			log.Fatalf("connect database: %v", err)
		}
		defer sqlDB.Close()
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
		repo = &audit.PGRepo{DB: sqlDB}
	} else {
		telemetry.Warn("worker.memory_repo", map[string]any{"reason": "DATABASE_URL empty"})
	}

	c := &consumer{
		client:      sqs.NewFromConfig(awsCfg),
		queueURL:    queueURL,
		handler:     &audit.Processor{Repo: repo},
		visibility:  int32(envInt("TE_SQS_VISIBILITY_TIMEOUT_SECONDS", 60)),
		waitSeconds: 20,
		concurrency: envInt("TE_WORKER_CONCURRENCY", 4),
		drain:       time.Duration(envInt("TE_SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
	}
	telemetry.Info("worker.started", map[string]any{
		"queue_url":   queueURL,
		"concurrency": c.concurrency,
		"visibility":  c.visibility,
	})
	c.run(ctx)
	telemetry.Info("worker.stopped", nil)
}

// run long-polls until ctx is cancelled. Receive errors are logged and the
// loop backs off briefly.
func (c *consumer) run(ctx context.Context) {
	for ctx.Err() == nil {
		if _, err := c.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			telemetry.Warn("worker.receive_failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// pollOnce receives one batch, records it with bounded concurrency and
// acknowledges everything that should not be redelivered in one call.
func (c *consumer) pollOnce(ctx context.Context) (int, error) {
	resp, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     c.waitSeconds,
		VisibilityTimeout:   c.visibility,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Messages) == 0 {
		return 0, nil
	}

	// A batch already pulled off the queue finishes even if shutdown starts.
	work, cancel := context.WithTimeout(context.WithoutCancel(ctx), max(c.drain, time.Second))
	defer cancel()

	var (
		mu   sync.Mutex
		done []sqstypes.Message
	)
	var g errgroup.Group
	g.SetLimit(max(c.concurrency, 1))
	for _, msg := range resp.Messages {
		metrics.IncEventsReceived()
		g.Go(func() error {
			if c.process(work, msg) {
				mu.Lock()
				done = append(done, msg)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	c.ack(work, done)
	return len(resp.Messages), nil
}

// process reports whether msg is finished with: recorded, a duplicate, or
// malformed. Storage failures return false so SQS redelivers.
func (c *consumer) process(ctx context.Context, msg sqstypes.Message) bool {
	body := aws.ToString(msg.Body)
	decoded, created, err := c.handler.Handle(ctx, body)
	fields := logFields(msg, decoded)
	switch {
	case errors.Is(err, audit.ErrUnrecoverable):
		meta := audit.ComputeMeta(body)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.event.unrecoverable", fields)
		metrics.IncEventsUnrecoverable()
		return true
	case err != nil:
		fields["error"] = err.Error()
		telemetry.Error("worker.event.failed", fields)
		metrics.IncEventsFailed()
		return false
	}
	fields["duplicate"] = !created
	telemetry.Info("worker.event.recorded", fields)
	if created {
		metrics.IncEventsRecorded()
	}
	return true
}

func (c *consumer) ack(ctx context.Context, msgs []sqstypes.Message) {
	entries := make([]sqstypes.DeleteMessageBatchRequestEntry, 0, len(msgs))
	for _, m := range msgs {
		if aws.ToString(m.ReceiptHandle) == "" {
			continue
		}
		entries = append(entries, sqstypes.DeleteMessageBatchRequestEntry{
			Id:            m.MessageId,
			ReceiptHandle: m.ReceiptHandle,
		})
	}
	if len(entries) == 0 {
		return
	}
	out, err := c.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(c.queueURL),
		Entries:  entries,
	})
	if err != nil {
		telemetry.Error("worker.event.delete_failed", map[string]any{"count": len(entries), "error": err.Error()})
		return
	}
	for _, f := range out.Failed {
		telemetry.Error("worker.event.delete_failed", map[string]any{
			"sqs_message_id": aws.ToString(f.Id),
			"code":           aws.ToString(f.Code),
			"error":          aws.ToString(f.Message),
		})
	}
}

func logFields(msg sqstypes.Message, decoded queue.Message) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if decoded.ID != "" {
		fields["event_id"] = decoded.ID
	}
	if decoded.Type != "" {
		fields["event_type"] = decoded.Type
	}
	if decoded.TenderID != 0 {
		fields["tender_id"] = decoded.TenderID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	n, _ := strconv.Atoi(msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)])
	return n
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

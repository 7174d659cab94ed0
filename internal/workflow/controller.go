// Package workflow implements the tender evaluation workflow: tender and
// vendor selection, OCR extraction with polling, AI evaluation and export.
package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tender-evaluator/internal/queue"
	"tender-evaluator/internal/shared/telemetry"
	"tender-evaluator/internal/tenderapi"
)

// API is the subset of the tender backend the workflow calls.
type API interface {
	ListTendersWithAttachments(ctx context.Context, filter tenderapi.TenderFilter) ([]tenderapi.Tender, error)
	ListTenderVendors(ctx context.Context, tenderID int64) ([]tenderapi.Vendor, error)
	ListVendorDocuments(ctx context.Context, vendorID int64) ([]tenderapi.Document, error)
	ListVendorOCRResults(ctx context.Context, vendorID int64) ([]tenderapi.OCRResult, error)
	StartOCR(ctx context.Context, documentID int64) error
	OCRStatus(ctx context.Context, documentID int64) (tenderapi.OCRJobStatus, error)
	ListCriteria(ctx context.Context) ([]tenderapi.Criterion, error)
	RunEvaluation(ctx context.Context, req tenderapi.EvaluationRequest) (tenderapi.EvaluationResponse, error)
	ExportEvaluation(ctx context.Context, evaluationID, format string) (tenderapi.ExportResponse, error)
}

// Archiver copies a finished export into durable storage.
type Archiver interface {
	Archive(ctx context.Context, userID, downloadURL, fileName string) (storageKey string, sizeBytes int64, err error)
}

// Options tunes polling and fan-out.
type Options struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	BatchPause      time.Duration
	FanOut          int
}

// DefaultOptions polls every 3s for up to 60 attempts and pauses 1s between batch documents.
func DefaultOptions() Options {
	return Options{
		PollInterval:    3 * time.Second,
		MaxPollAttempts: 60,
		BatchPause:      time.Second,
		FanOut:          8,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.MaxPollAttempts <= 0 {
		o.MaxPollAttempts = def.MaxPollAttempts
	}
	if o.BatchPause < 0 {
		o.BatchPause = 0
	}
	if o.FanOut <= 0 {
		o.FanOut = def.FanOut
	}
	return o
}

// Deps wires a Controller. API is required; the rest are optional.
type Deps struct {
	API      API
	Clock    Clock
	Archiver Archiver
	Events   queue.Client
	UserID   string
	Options  Options
}

// Controller owns one user's workflow state. All state is guarded by mu and
// network calls are made without holding it.
type Controller struct {
	api      API
	clock    Clock
	archiver Archiver
	events   queue.Client
	userID   string
	opts     Options

	mu      sync.Mutex
	state   State
	notices []Notice
	// tenderGen changes whenever the tender selection is replaced or reset;
	// responses captured under an older value are dropped.
	tenderGen uint64
	inflight  map[int64]struct{}
	completed map[int64]Document
}

// NewController builds a controller in the SelectingTender stage.
func NewController(d Deps) *Controller {
	clock := d.Clock
	if clock == nil {
		clock = SystemClock()
	}
	c := &Controller{
		api:      d.API,
		clock:    clock,
		archiver: d.Archiver,
		events:   d.Events,
		userID:   d.UserID,
		opts:     d.Options.withDefaults(),
	}
	c.state = State{Stage: StageSelectingTender}
	c.clearSelectionLocked()
	return c
}

// UserID returns the owner of this controller.
func (c *Controller) UserID() string { return c.userID }

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// DrainNotices returns and clears queued notices.
func (c *Controller) DrainNotices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.notices
	c.notices = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

// ResetEvaluation returns to tender selection, keeping loaded tenders and
// criteria. Criteria selection goes back to all active criteria.
func (c *Controller) ResetEvaluation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state.Stage
	c.tenderGen++
	c.clearSelectionLocked()
	c.state.SelectedTenderID = 0
	c.state.SelectedCriteriaIDs = activeCriteriaIDs(c.state.Criteria)
	c.setStageLocked(StageSelectingTender)
	telemetry.Info("workflow.reset", map[string]any{
		"user_id":           c.userID,
		"status_transition": string(prev) + "->" + string(StageSelectingTender),
	})
}

// clearSelectionLocked drops everything derived from the selected tender.
func (c *Controller) clearSelectionLocked() {
	c.state.Vendors = []Vendor{}
	c.state.SelectedVendorIDs = []int64{}
	c.state.Documents = map[int64][]Document{}
	c.state.Results = []EvaluationResult{}
	c.state.EvaluationID = ""
	c.state.LastExport = nil
	c.state.ProcessingOCR = false
	c.state.Evaluating = false
	c.state.Progress = OCRProgress{}
	c.state.Loading.Vendors = false
	c.state.Loading.Documents = false
	c.inflight = map[int64]struct{}{}
	c.completed = map[int64]Document{}
}

func (c *Controller) setStageLocked(next Stage) {
	if c.state.Stage == next {
		return
	}
	telemetry.Info("workflow.stage", map[string]any{
		"user_id":           c.userID,
		"tender_id":         c.state.SelectedTenderID,
		"status_transition": string(c.state.Stage) + "->" + string(next),
	})
	c.state.Stage = next
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.tenderGen
}

func (c *Controller) publish(ctx context.Context, msg queue.Message) {
	if c.events == nil {
		return
	}
	msg.ID = uuid.NewString()
	msg.UserID = c.userID
	msg.EnqueuedAt = c.clock.Now().UTC().Format(time.RFC3339)
	msg.Version = 1
	if err := c.events.Send(ctx, msg); err != nil {
		telemetry.Warn("workflow.event.publish_failed", map[string]any{
			"user_id": c.userID,
			"type":    msg.Type,
			"error":   err.Error(),
		})
	}
}

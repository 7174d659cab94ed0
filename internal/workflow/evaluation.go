package workflow

import (
	"context"
	"fmt"

	"tender-evaluator/internal/queue"
	"tender-evaluator/internal/shared/metrics"
	"tender-evaluator/internal/shared/telemetry"
	"tender-evaluator/internal/tenderapi"
)

type evalRun struct {
	gen     uint64
	req     tenderapi.EvaluationRequest
	started int64
}

// RunEvaluation scores the named vendors against the named criteria using the
// OCR text gathered in the extraction stage. On failure the workflow returns to
// extraction with no partial results.
func (c *Controller) RunEvaluation(ctx context.Context, in EvaluationInput) error {
	run, err := c.beginEvaluation(in)
	if err != nil {
		return err
	}
	return c.executeEvaluation(ctx, run)
}

// StartEvaluation is RunEvaluation with the backend call on a background goroutine.
func (c *Controller) StartEvaluation(ctx context.Context, in EvaluationInput) error {
	run, err := c.beginEvaluation(in)
	if err != nil {
		return err
	}
	go func() { _ = c.executeEvaluation(ctx, run) }()
	return nil
}

// SelectionInput is the EvaluationInput for the current selection.
func (c *Controller) SelectionInput() EvaluationInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return EvaluationInput{
		TenderID:    c.state.SelectedTenderID,
		VendorIDs:   cloneSlice(c.state.SelectedVendorIDs),
		CriteriaIDs: cloneSlice(c.state.SelectedCriteriaIDs),
	}
}

func (c *Controller) beginEvaluation(in EvaluationInput) (evalRun, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Evaluating {
		return evalRun{}, c.rejectLocked("An evaluation is already running")
	}
	switch c.state.Stage {
	case StageExtractingText, StageResults:
	default:
		return evalRun{}, c.rejectLocked("Complete text extraction before running the evaluation")
	}
	if in.TenderID == 0 || in.TenderID != c.state.SelectedTenderID {
		return evalRun{}, c.rejectLocked("Evaluation must target the selected tender")
	}
	if len(in.VendorIDs) == 0 || len(in.CriteriaIDs) == 0 {
		return evalRun{}, c.rejectLocked("Please select at least one vendor and criteria")
	}
	for _, id := range in.VendorIDs {
		if !containsID(c.state.SelectedVendorIDs, id) {
			return evalRun{}, c.rejectLocked("Vendor %d is not selected", id)
		}
	}
	req, ready := buildEvaluationRequest(c.state, in)
	if !ready || !selectionReady(c.state) {
		return evalRun{}, c.rejectLocked("Please complete OCR processing for all documents first")
	}
	c.state.Evaluating = true
	c.state.Results = []EvaluationResult{}
	c.state.EvaluationID = ""
	c.setStageLocked(StageEvaluating)
	return evalRun{gen: c.tenderGen, req: req, started: c.clock.Now().UnixMilli()}, nil
}

func (c *Controller) executeEvaluation(ctx context.Context, run evalRun) error {
	metrics.IncEvaluationRun()
	resp, err := c.api.RunEvaluation(ctx, run.req)
	elapsed := c.clock.Now().UnixMilli() - run.started
	metrics.ObserveEvaluationDurationMs(float64(elapsed))

	c.mu.Lock()
	if run.gen != c.tenderGen {
		c.mu.Unlock()
		return nil
	}
	c.state.Evaluating = false
	if err != nil {
		metrics.IncEvaluationFailed()
		telemetry.Error("evaluation.failed", map[string]any{
			"user_id":     c.userID,
			"tender_id":   run.req.TenderID,
			"duration_ms": elapsed,
			"error":       err.Error(),
		})
		c.state.Results = []EvaluationResult{}
		c.setStageLocked(StageExtractingText)
		c.noticeLocked(NoticeError, "Failed to complete AI evaluation")
		c.mu.Unlock()
		c.publish(ctx, queue.Message{Type: queue.EventEvaluationFailed, TenderID: run.req.TenderID, VendorCount: len(run.req.VendorIDs), Error: err.Error()})
		return fmt.Errorf("run evaluation: %w", err)
	}

	c.state.Results = toResults(resp.Results)
	c.state.EvaluationID = resp.EvaluationID
	c.setStageLocked(StageResults)
	for _, fv := range resp.FailedVendors {
		name := fv.VendorName
		if name == "" {
			name = fmt.Sprintf("vendor %d", fv.VendorID)
		}
		c.noticeLocked(NoticeWarning, "Evaluation failed for %s: %s", name, fv.Error)
	}
	c.noticeLocked(NoticeSuccess, "AI evaluation completed")
	telemetry.Info("evaluation.completed", map[string]any{
		"user_id":       c.userID,
		"tender_id":     run.req.TenderID,
		"evaluation_id": resp.EvaluationID,
		"results":       len(resp.Results),
		"failed":        len(resp.FailedVendors),
		"duration_ms":   elapsed,
	})
	c.mu.Unlock()

	c.publish(ctx, queue.Message{
		Type:         queue.EventEvaluationCompleted,
		TenderID:     run.req.TenderID,
		EvaluationID: resp.EvaluationID,
		VendorCount:  len(run.req.VendorIDs),
		ResultCount:  len(resp.Results),
	})
	return nil
}

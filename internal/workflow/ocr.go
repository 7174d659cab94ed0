package workflow

import (
	"context"
	"time"

	"tender-evaluator/internal/shared/metrics"
	"tender-evaluator/internal/shared/telemetry"
	"tender-evaluator/internal/tenderapi"
)

// pollJob is the state of one document's status polling.
type pollJob struct {
	documentID  int64
	attempt     int
	maxAttempts int
	interval    time.Duration
}

func (j *pollJob) exhausted() bool { return j.attempt >= j.maxAttempts }

// ocrRun is an OCR job that passed the lock check in beginOCR.
type ocrRun struct {
	documentID int64
	name       string
	gen        uint64
	// attach means the backend already reported the job running, so no start
	// request is sent and the run only observes it.
	attach  bool
	started time.Time
}

// RunOCR extracts text from one document and blocks until the job reaches a
// terminal status or the poll budget runs out. Documents already completed or
// already being observed are left alone.
func (c *Controller) RunOCR(ctx context.Context, documentID int64) (OCRStatus, error) {
	run, status, err := c.beginOCR(documentID)
	if err != nil || run == nil {
		return status, err
	}
	return c.executeOCR(ctx, *run), nil
}

// StartOCR is RunOCR with the job observed on a background goroutine. The
// returned status is the one right after the lock check.
func (c *Controller) StartOCR(ctx context.Context, documentID int64) (OCRStatus, error) {
	run, status, err := c.beginOCR(documentID)
	if err != nil || run == nil {
		return status, err
	}
	go c.executeOCR(ctx, *run)
	return OCRProcessing, nil
}

// beginOCR is the check-and-set on the processing lock. A nil run with a nil
// error means there is nothing to do.
func (c *Controller) beginOCR(documentID int64) (*ocrRun, OCRStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Stage != StageExtractingText {
		return nil, "", c.rejectLocked("OCR is only available during text extraction")
	}
	doc := c.state.document(documentID)
	if doc == nil {
		return nil, "", c.rejectLocked("Document %d is not loaded", documentID)
	}
	if doc.OCRStatus == OCRCompleted {
		return nil, OCRCompleted, nil
	}
	if _, running := c.inflight[documentID]; running {
		return nil, OCRProcessing, nil
	}

	prev := doc.OCRStatus
	run := &ocrRun{
		documentID: documentID,
		name:       doc.Name,
		gen:        c.tenderGen,
		attach:     prev == OCRProcessing,
		started:    c.clock.Now(),
	}
	doc.OCRStatus = OCRProcessing
	doc.ErrorMessage = ""
	c.inflight[documentID] = struct{}{}
	metrics.IncOCRStarted()
	telemetry.Info("ocr.status", map[string]any{
		"user_id":           c.userID,
		"document_id":       documentID,
		"status_transition": string(prev) + "->" + string(OCRProcessing),
		"attach":            run.attach,
	})
	return run, OCRProcessing, nil
}

func (c *Controller) executeOCR(ctx context.Context, run ocrRun) OCRStatus {
	if !c.current(run.gen) {
		return OCRProcessing
	}
	if !run.attach {
		err := c.api.StartOCR(ctx, run.documentID)
		switch {
		case err == nil:
		case tenderapi.IsConflict(err):
			c.notice(NoticeInfo, "OCR already in progress for %s", run.name)
		default:
			telemetry.Error("ocr.start_failed", map[string]any{
				"user_id":     c.userID,
				"document_id": run.documentID,
				"error":       err.Error(),
			})
			if c.finishOCR(run, OCRFailed, tenderapi.OCRJobStatus{ErrorMessage: err.Error()}) {
				c.notice(NoticeError, "Failed to process %s", run.name)
			}
			return OCRFailed
		}
	}
	return c.pollOCR(ctx, run)
}

func (c *Controller) pollOCR(ctx context.Context, run ocrRun) OCRStatus {
	job := &pollJob{
		documentID:  run.documentID,
		maxAttempts: c.opts.MaxPollAttempts,
		interval:    c.opts.PollInterval,
	}
	for {
		if !c.current(run.gen) {
			return OCRProcessing
		}
		job.attempt++
		metrics.IncOCRPoll()
		st, err := c.api.OCRStatus(ctx, job.documentID)
		telemetry.Debug("ocr.poll", map[string]any{
			"user_id":     c.userID,
			"document_id": job.documentID,
			"attempt":     job.attempt,
			"status":      st.Status,
		})
		if err != nil {
			if ctx.Err() != nil {
				c.abandonOCR(run)
				return OCRProcessing
			}
			telemetry.Warn("ocr.poll.error", map[string]any{
				"user_id":     c.userID,
				"document_id": job.documentID,
				"attempt":     job.attempt,
				"error":       err.Error(),
			})
			if job.exhausted() {
				if c.finishOCR(run, OCRFailed, tenderapi.OCRJobStatus{ErrorMessage: "status polling failed: " + err.Error()}) {
					c.notice(NoticeError, "OCR failed for %s", run.name)
				}
				return OCRFailed
			}
		} else {
			switch liveStatus(st.Status) {
			case OCRCompleted:
				if c.finishOCR(run, OCRCompleted, st) {
					c.notice(NoticeSuccess, "OCR completed for %s", run.name)
				}
				return OCRCompleted
			case OCRFailed:
				if c.finishOCR(run, OCRFailed, st) {
					c.notice(NoticeError, "OCR failed for %s", run.name)
				}
				return OCRFailed
			default:
				if job.exhausted() {
					metrics.IncOCRTimedOut()
					if c.finishOCR(run, OCRFailed, tenderapi.OCRJobStatus{ErrorMessage: "timed out waiting for OCR"}) {
						c.notice(NoticeError, "OCR timed out for %s", run.name)
					}
					return OCRFailed
				}
			}
		}
		if err := c.clock.Sleep(ctx, job.interval); err != nil {
			c.abandonOCR(run)
			return OCRProcessing
		}
	}
}

// finishOCR applies a terminal status. It reports false when the tender
// changed since the run began, in which case nothing is written.
func (c *Controller) finishOCR(run ocrRun, status OCRStatus, st tenderapi.OCRJobStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if run.gen != c.tenderGen {
		return false
	}
	delete(c.inflight, run.documentID)

	elapsed := c.clock.Now().Sub(run.started)
	metrics.ObserveOCRDurationMs(float64(elapsed.Milliseconds()))
	if status == OCRCompleted {
		metrics.IncOCRCompleted()
	} else {
		metrics.IncOCRFailed()
	}
	telemetry.Info("ocr.status", map[string]any{
		"user_id":           c.userID,
		"document_id":       run.documentID,
		"status_transition": string(OCRProcessing) + "->" + string(status),
		"duration_ms":       elapsed.Milliseconds(),
		"error_message":     st.ErrorMessage,
	})

	var conf *float64
	if status == OCRCompleted {
		v := st.Confidence
		conf = &v
	}
	doc := c.state.document(run.documentID)
	if doc == nil {
		// Vendor was deselected while the job ran; keep the text for a later reload.
		if status == OCRCompleted {
			c.completed[run.documentID] = Document{ID: run.documentID, OCRStatus: OCRCompleted, OCRText: st.OCRText, Confidence: conf}
		}
		return true
	}
	doc.OCRStatus = status
	if status == OCRCompleted {
		doc.OCRText = st.OCRText
		doc.Confidence = conf
		doc.ErrorMessage = ""
		c.completed[run.documentID] = *doc
	} else {
		doc.ErrorMessage = st.ErrorMessage
	}
	return true
}

// abandonOCR stops observing without a verdict. The document stays processing
// and a later RunOCR re-attaches to the server job.
func (c *Controller) abandonOCR(run ocrRun) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if run.gen == c.tenderGen {
		delete(c.inflight, run.documentID)
	}
	telemetry.Warn("ocr.observation_stopped", map[string]any{
		"user_id":     c.userID,
		"document_id": run.documentID,
	})
}

// batchRun is a batch that passed the single-batch check.
type batchRun struct {
	gen  uint64
	refs []docRef
}

// RunOCRForAllPending runs OCR for every pending document, one at a time,
// pausing between documents. Failures never stop the batch.
func (c *Controller) RunOCRForAllPending(ctx context.Context) (BatchSummary, error) {
	run, err := c.beginBatch()
	if err != nil || run == nil {
		return BatchSummary{}, err
	}
	return c.executeBatch(ctx, *run), nil
}

// StartOCRForAllPending is RunOCRForAllPending on a background goroutine.
func (c *Controller) StartOCRForAllPending(ctx context.Context) (int, error) {
	run, err := c.beginBatch()
	if err != nil || run == nil {
		return 0, err
	}
	go c.executeBatch(ctx, *run)
	return len(run.refs), nil
}

func (c *Controller) beginBatch() (*batchRun, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Stage != StageExtractingText {
		return nil, c.rejectLocked("OCR is only available during text extraction")
	}
	if c.state.ProcessingOCR {
		return nil, c.rejectLocked("OCR batch is already running")
	}
	refs := pendingDocuments(c.state)
	if len(refs) == 0 {
		c.noticeLocked(NoticeInfo, "No pending documents to process")
		return nil, nil
	}
	c.state.ProcessingOCR = true
	c.state.Progress = OCRProgress{Total: len(refs)}
	c.noticeLocked(NoticeInfo, "Starting OCR for %d documents", len(refs))
	return &batchRun{gen: c.tenderGen, refs: refs}, nil
}

func (c *Controller) executeBatch(ctx context.Context, run batchRun) BatchSummary {
	summary := BatchSummary{Total: len(run.refs)}
	for i, ref := range run.refs {
		if !c.setProgress(run.gen, OCRProgress{Processed: i, Total: len(run.refs), Current: ref.Name}) {
			break
		}
		r, _, err := c.beginOCR(ref.DocumentID)
		switch {
		case err != nil || r == nil:
			summary.Skipped++
		default:
			switch c.executeOCR(ctx, *r) {
			case OCRCompleted:
				summary.Completed++
			case OCRFailed:
				summary.Failed++
			default:
				summary.Skipped++
			}
		}
		if !c.setProgress(run.gen, OCRProgress{Processed: i + 1, Total: len(run.refs), Current: ref.Name}) {
			break
		}
		c.notice(NoticeInfo, "Processed %d/%d: %s", i+1, len(run.refs), ref.Name)
		if i < len(run.refs)-1 {
			if err := c.clock.Sleep(ctx, c.opts.BatchPause); err != nil {
				break
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if run.gen != c.tenderGen {
		return summary
	}
	c.state.ProcessingOCR = false
	c.state.Progress = OCRProgress{}
	c.noticeLocked(NoticeSuccess, "OCR processing finished: %d completed, %d failed", summary.Completed, summary.Failed)
	telemetry.Info("ocr.batch.finished", map[string]any{
		"user_id":   c.userID,
		"total":     summary.Total,
		"completed": summary.Completed,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	})
	return summary
}

func (c *Controller) setProgress(gen uint64, p OCRProgress) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.tenderGen {
		return false
	}
	c.state.Progress = p
	return true
}

package workflow

import (
	"context"
	"fmt"
	"strings"

	"tender-evaluator/internal/queue"
	"tender-evaluator/internal/shared/metrics"
	"tender-evaluator/internal/shared/telemetry"
)

const combinedEvaluationID = "combined"

var exportExtensions = map[string]string{
	"pdf":   "pdf",
	"excel": "xlsx",
	"xlsx":  "xlsx",
	"csv":   "csv",
}

// ExportResults asks the backend to render the results. A returned download
// URL is archived to the object store when an Archiver is configured.
func (c *Controller) ExportResults(ctx context.Context, format string) (ExportRecord, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "pdf"
	}

	c.mu.Lock()
	if len(c.state.Results) == 0 {
		err := c.rejectLocked("No results to export")
		c.mu.Unlock()
		return ExportRecord{}, err
	}
	ext, ok := exportExtensions[format]
	if !ok {
		err := c.rejectLocked("Unsupported export format %q", format)
		c.mu.Unlock()
		return ExportRecord{}, err
	}
	gen := c.tenderGen
	tenderID := c.state.SelectedTenderID
	evaluationID := c.state.EvaluationID
	if evaluationID == "" {
		evaluationID = combinedEvaluationID
	}
	c.mu.Unlock()

	resp, err := c.api.ExportEvaluation(ctx, evaluationID, format)
	if err != nil {
		metrics.IncExport(false)
		telemetry.Error("export.failed", map[string]any{
			"user_id":       c.userID,
			"evaluation_id": evaluationID,
			"format":        format,
			"error":         err.Error(),
		})
		c.notice(NoticeError, "Failed to export results")
		return ExportRecord{}, fmt.Errorf("export results: %w", err)
	}

	record := ExportRecord{Format: format, DownloadURL: resp.DownloadURL, At: c.clock.Now().UTC()}
	level, message := NoticeInfo, "Export initiated, the file will be available shortly"
	if resp.DownloadURL != "" {
		level, message = NoticeSuccess, "Export ready for download"
		if c.archiver != nil {
			fileName := fmt.Sprintf("evaluation-results-%s.%s", record.At.Format("2006-01-02"), ext)
			key, size, aerr := c.archiver.Archive(ctx, c.userID, resp.DownloadURL, fileName)
			if aerr != nil {
				telemetry.Warn("export.archive_failed", map[string]any{
					"user_id":       c.userID,
					"evaluation_id": evaluationID,
					"error":         aerr.Error(),
				})
				level, message = NoticeWarning, "Export is ready but could not be archived"
			} else {
				record.StorageKey = key
				record.SizeBytes = size
				message = "Export downloaded successfully"
			}
		}
	}
	metrics.IncExport(record.StorageKey != "")

	c.mu.Lock()
	if gen == c.tenderGen {
		rec := record
		c.state.LastExport = &rec
	}
	c.noticeLocked(level, "%s", message)
	c.mu.Unlock()

	c.publish(ctx, queue.Message{
		Type:         queue.EventExportCreated,
		TenderID:     tenderID,
		EvaluationID: evaluationID,
		Format:       format,
		StorageKey:   record.StorageKey,
	})
	return record, nil
}

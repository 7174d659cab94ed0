package workflow

import (
	"context"

	"tender-evaluator/internal/shared/telemetry"
	"tender-evaluator/internal/tenderapi"
)

type vendorDocs struct {
	docs    []tenderapi.Document
	results []tenderapi.OCRResult
}

// ProceedToExtraction loads each selected vendor's documents merged with the
// vendor's recorded OCR results, and moves to the extraction stage.
func (c *Controller) ProceedToExtraction(ctx context.Context) error {
	c.mu.Lock()
	switch c.state.Stage {
	case StageSelectingVendors, StageExtractingText:
	default:
		err := c.rejectLocked("Select a tender and vendors first")
		c.mu.Unlock()
		return err
	}
	if len(c.state.SelectedVendorIDs) == 0 {
		err := c.rejectLocked("Please select at least one vendor")
		c.mu.Unlock()
		return err
	}
	gen := c.tenderGen
	selected := cloneSlice(c.state.SelectedVendorIDs)
	names := make(map[int64]string, len(selected))
	for _, id := range selected {
		if v, ok := c.state.vendor(id); ok {
			names[id] = v.Name
		}
	}
	c.state.Loading.Documents = true
	c.setStageLocked(StageExtractingText)
	c.mu.Unlock()

	fetched := make(map[int64]vendorDocs, len(selected))
	var failedVendors []string
	for _, vendorID := range selected {
		docs, err := c.api.ListVendorDocuments(ctx, vendorID)
		if err != nil {
			telemetry.Warn("workflow.documents.load_failed", map[string]any{
				"user_id":   c.userID,
				"vendor_id": vendorID,
				"error":     err.Error(),
			})
			failedVendors = append(failedVendors, names[vendorID])
			fetched[vendorID] = vendorDocs{}
			continue
		}
		results, err := c.api.ListVendorOCRResults(ctx, vendorID)
		if err != nil {
			// No recorded results just means every document starts pending.
			telemetry.Warn("workflow.ocr_results.load_failed", map[string]any{
				"user_id":   c.userID,
				"vendor_id": vendorID,
				"error":     err.Error(),
			})
			results = nil
		}
		fetched[vendorID] = vendorDocs{docs: docs, results: results}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.tenderGen {
		return nil
	}
	documents := make(map[int64][]Document, len(selected))
	for _, vendorID := range selected {
		f := fetched[vendorID]
		documents[vendorID] = mergeDocuments(vendorID, f.docs, f.results, c.completed, c.inflight)
	}
	c.state.Documents = documents
	c.state.Loading.Documents = false
	for _, name := range failedVendors {
		c.noticeLocked(NoticeWarning, "Failed to load documents for %s", name)
	}
	return nil
}

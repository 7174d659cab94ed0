package workflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tender-evaluator/internal/shared/telemetry"
	"tender-evaluator/internal/tenderapi"
)

// LoadTenders fetches tenders with attachments and their vendor counts. A
// failing vendor count degrades that tender to zero vendors.
func (c *Controller) LoadTenders(ctx context.Context) error {
	c.mu.Lock()
	c.state.Loading.Tenders = true
	c.mu.Unlock()

	raw, err := c.api.ListTendersWithAttachments(ctx, tenderapi.TenderFilter{})
	if err != nil {
		telemetry.Error("workflow.tenders.load_failed", map[string]any{"user_id": c.userID, "error": err.Error()})
		c.mu.Lock()
		c.state.Loading.Tenders = false
		c.state.Tenders = []Tender{}
		c.noticeLocked(NoticeError, "Failed to load tenders")
		c.mu.Unlock()
		return fmt.Errorf("load tenders: %w", err)
	}

	counts := make([]int, len(raw))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.FanOut)
	for i, t := range raw {
		g.Go(func() error {
			vendors, err := c.api.ListTenderVendors(gctx, t.ID)
			if err != nil {
				telemetry.Warn("workflow.tender.vendor_count_failed", map[string]any{
					"user_id":   c.userID,
					"tender_id": t.ID,
					"error":     err.Error(),
				})
				return nil
			}
			counts[i] = len(vendors)
			return nil
		})
	}
	_ = g.Wait()

	tenders := make([]Tender, 0, len(raw))
	for i, t := range raw {
		tenders = append(tenders, toTender(t, counts[i]))
	}

	c.mu.Lock()
	c.state.Tenders = tenders
	c.state.Loading.Tenders = false
	c.mu.Unlock()
	return nil
}

// LoadCriteria fetches criteria, keeps active ones and selects them all.
func (c *Controller) LoadCriteria(ctx context.Context) error {
	c.mu.Lock()
	c.state.Loading.Criteria = true
	c.mu.Unlock()

	raw, err := c.api.ListCriteria(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Loading.Criteria = false
	if err != nil {
		telemetry.Error("workflow.criteria.load_failed", map[string]any{"user_id": c.userID, "error": err.Error()})
		c.state.Criteria = []Criterion{}
		c.state.SelectedCriteriaIDs = []int64{}
		c.noticeLocked(NoticeError, "Failed to load evaluation criteria")
		return fmt.Errorf("load criteria: %w", err)
	}
	c.state.Criteria = toCriteria(raw)
	c.state.SelectedCriteriaIDs = activeCriteriaIDs(c.state.Criteria)
	return nil
}

// SelectTender replaces the current tender and loads its vendors. Tenders
// without attachments are refused.
func (c *Controller) SelectTender(ctx context.Context, tenderID int64) error {
	c.mu.Lock()
	t, ok := c.state.tender(tenderID)
	if !ok {
		err := c.rejectLocked("Tender %d is not available", tenderID)
		c.mu.Unlock()
		return err
	}
	if !t.HasAttachments {
		err := c.rejectLocked("No documents uploaded for tender %q", t.Title)
		c.mu.Unlock()
		return err
	}
	c.tenderGen++
	gen := c.tenderGen
	c.clearSelectionLocked()
	c.state.SelectedTenderID = tenderID
	c.state.Loading.Vendors = true
	c.setStageLocked(StageSelectingVendors)
	c.mu.Unlock()

	vendors, err := c.loadVendors(ctx, tenderID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.tenderGen {
		return nil
	}
	c.state.Loading.Vendors = false
	if err != nil {
		telemetry.Error("workflow.vendors.load_failed", map[string]any{
			"user_id":   c.userID,
			"tender_id": tenderID,
			"error":     err.Error(),
		})
		c.state.Vendors = []Vendor{}
		c.noticeLocked(NoticeError, "Failed to load vendors")
		return fmt.Errorf("load vendors: %w", err)
	}
	c.state.Vendors = vendors
	return nil
}

// loadVendors fetches vendors then checks each one's documents concurrently.
// A vendor whose document check fails is treated as having none.
func (c *Controller) loadVendors(ctx context.Context, tenderID int64) ([]Vendor, error) {
	raw, err := c.api.ListTenderVendors(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	counts := make([]int, len(raw))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.FanOut)
	for i, v := range raw {
		g.Go(func() error {
			docs, err := c.api.ListVendorDocuments(gctx, v.ID)
			if err != nil {
				telemetry.Warn("workflow.vendor.documents_check_failed", map[string]any{
					"user_id":   c.userID,
					"vendor_id": v.ID,
					"error":     err.Error(),
				})
				return nil
			}
			counts[i] = len(docs)
			return nil
		})
	}
	_ = g.Wait()

	vendors := make([]Vendor, 0, len(raw))
	for i, v := range raw {
		vendors = append(vendors, toVendor(tenderID, v, counts[i]))
	}
	return vendors, nil
}

// ToggleVendor adds or removes a vendor from the selection. Vendors without
// documents cannot be selected.
func (c *Controller) ToggleVendor(vendorID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Stage != StageSelectingVendors {
		return c.rejectLocked("Vendor selection is only possible before text extraction")
	}
	v, ok := c.state.vendor(vendorID)
	if !ok {
		return c.rejectLocked("Vendor %d is not part of this tender", vendorID)
	}
	if !v.DocumentsUploaded {
		return c.rejectLocked("%s has no documents uploaded", v.Name)
	}
	selected := make(map[int64]bool, len(c.state.SelectedVendorIDs)+1)
	for _, id := range c.state.SelectedVendorIDs {
		selected[id] = true
	}
	selected[vendorID] = !selected[vendorID]
	c.state.SelectedVendorIDs = orderedSelection(c.state.Vendors, selected)
	return nil
}

// SelectAllAvailable selects exactly the vendors that have documents.
func (c *Controller) SelectAllAvailable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Stage != StageSelectingVendors {
		return c.rejectLocked("Vendor selection is only possible before text extraction")
	}
	selected := make(map[int64]bool, len(c.state.Vendors))
	for _, v := range c.state.Vendors {
		if v.DocumentsUploaded {
			selected[v.ID] = true
		}
	}
	c.state.SelectedVendorIDs = orderedSelection(c.state.Vendors, selected)
	if len(c.state.SelectedVendorIDs) == 0 {
		c.noticeLocked(NoticeWarning, "No vendors with documents are available")
	}
	return nil
}

// ToggleCriterion adds or removes a criterion from the selection.
func (c *Controller) ToggleCriterion(criterionID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Evaluating {
		return c.rejectLocked("Criteria cannot change while an evaluation is running")
	}
	found := false
	for _, cr := range c.state.Criteria {
		if cr.ID == criterionID {
			found = true
			break
		}
	}
	if !found {
		return c.rejectLocked("Criterion %d is not available", criterionID)
	}
	out := make([]int64, 0, len(c.state.SelectedCriteriaIDs)+1)
	removed := false
	for _, id := range c.state.SelectedCriteriaIDs {
		if id == criterionID {
			removed = true
			continue
		}
		out = append(out, id)
	}
	if !removed {
		out = append(out, criterionID)
	}
	c.state.SelectedCriteriaIDs = out
	return nil
}

// SelectAllCriteria selects every loaded criterion.
func (c *Controller) SelectAllCriteria() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Evaluating {
		return c.rejectLocked("Criteria cannot change while an evaluation is running")
	}
	c.state.SelectedCriteriaIDs = activeCriteriaIDs(c.state.Criteria)
	return nil
}

// BackToVendorSelection reopens vendor selection for the current tender.
// Running OCR jobs keep being observed and completed work is kept.
func (c *Controller) BackToVendorSelection() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state.Stage {
	case StageExtractingText, StageResults:
	default:
		return c.rejectLocked("Vendor selection cannot be reopened from this step")
	}
	if c.state.ProcessingOCR {
		return c.rejectLocked("Wait for the OCR batch to finish before changing vendors")
	}
	c.state.Results = []EvaluationResult{}
	c.state.EvaluationID = ""
	c.setStageLocked(StageSelectingVendors)
	return nil
}

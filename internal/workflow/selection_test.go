package workflow

import (
	"context"
	"errors"
	"testing"

	"tender-evaluator/internal/tenderapi"
)

func TestLoadTendersCountsVendors(t *testing.T) {
	f := newFixture(t)
	f.api.vendors[2] = []tenderapi.Vendor{{ID: 20, VendorName: "Seat Co"}}
	f.api.vendorsErr[2] = errors.New("boom")

	if err := f.ctrl.LoadTenders(context.Background()); err != nil {
		t.Fatalf("load tenders: %v", err)
	}
	s := f.ctrl.Snapshot()
	if len(s.Tenders) != 2 {
		t.Fatalf("expected 2 tenders, got %d", len(s.Tenders))
	}
	if s.Tenders[0].VendorCount != 3 {
		t.Fatalf("expected 3 vendors for tender 1, got %d", s.Tenders[0].VendorCount)
	}
	if s.Tenders[1].VendorCount != 0 {
		t.Fatalf("expected failed count to degrade to 0, got %d", s.Tenders[1].VendorCount)
	}
	if s.Tenders[0].Status != TenderOpen {
		t.Fatalf("expected status Open, got %q", s.Tenders[0].Status)
	}
	if s.Loading.Tenders {
		t.Fatalf("expected loading flag cleared")
	}
}

func TestLoadTendersFailure(t *testing.T) {
	f := newFixture(t)
	f.api.tendersErr = &tenderapi.StatusError{Code: 500, Message: "down"}

	if err := f.ctrl.LoadTenders(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	s := f.ctrl.Snapshot()
	if len(s.Tenders) != 0 {
		t.Fatalf("expected empty tenders, got %d", len(s.Tenders))
	}
	if !hasNotice(f.ctrl.DrainNotices(), NoticeError, "Failed to load tenders") {
		t.Fatalf("expected failure notice")
	}
}

func TestLoadCriteriaKeepsActive(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.LoadCriteria(context.Background()); err != nil {
		t.Fatalf("load criteria: %v", err)
	}
	s := f.ctrl.Snapshot()
	if len(s.Criteria) != 2 {
		t.Fatalf("expected 2 active criteria, got %d", len(s.Criteria))
	}
	if len(s.SelectedCriteriaIDs) != 2 || s.SelectedCriteriaIDs[0] != 1 || s.SelectedCriteriaIDs[1] != 2 {
		t.Fatalf("expected all active criteria selected, got %v", s.SelectedCriteriaIDs)
	}
}

func TestSelectTenderWithoutAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.ctrl.LoadTenders(ctx); err != nil {
		t.Fatalf("load tenders: %v", err)
	}

	err := f.ctrl.SelectTender(ctx, 2)
	if !isRejected(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	s := f.ctrl.Snapshot()
	if s.Stage != StageSelectingTender {
		t.Fatalf("expected stage unchanged, got %q", s.Stage)
	}
	if s.SelectedTenderID != 0 {
		t.Fatalf("expected no tender selected, got %d", s.SelectedTenderID)
	}
	if !hasNotice(f.ctrl.DrainNotices(), NoticeError, "No documents uploaded") {
		t.Fatalf("expected no-documents notice")
	}
}

func TestSelectTenderLoadsVendors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.api.docsErr[11] = errors.New("timeout")
	if err := f.ctrl.LoadTenders(ctx); err != nil {
		t.Fatalf("load tenders: %v", err)
	}
	if err := f.ctrl.SelectTender(ctx, 1); err != nil {
		t.Fatalf("select tender: %v", err)
	}

	s := f.ctrl.Snapshot()
	if s.Stage != StageSelectingVendors {
		t.Fatalf("expected selecting_vendors, got %q", s.Stage)
	}
	want := map[int64]bool{10: true, 11: false, 12: false}
	for _, v := range s.Vendors {
		if v.DocumentsUploaded != want[v.ID] {
			t.Fatalf("vendor %d: expected documentsUploaded=%v", v.ID, want[v.ID])
		}
		if v.TenderID != 1 {
			t.Fatalf("vendor %d: expected tender 1, got %d", v.ID, v.TenderID)
		}
	}
	if s.Vendors[0].DocumentCount != 2 {
		t.Fatalf("expected 2 documents for Acme, got %d", s.Vendors[0].DocumentCount)
	}
}

func TestToggleVendor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.ctrl.LoadTenders(ctx); err != nil {
		t.Fatalf("load tenders: %v", err)
	}
	if err := f.ctrl.SelectTender(ctx, 1); err != nil {
		t.Fatalf("select tender: %v", err)
	}

	if err := f.ctrl.ToggleVendor(12); !isRejected(err) {
		t.Fatalf("expected vendor without documents rejected, got %v", err)
	}
	if !hasNotice(f.ctrl.DrainNotices(), NoticeError, "Gamma Works has no documents uploaded") {
		t.Fatalf("expected no-documents notice")
	}

	if err := f.ctrl.ToggleVendor(11); err != nil {
		t.Fatalf("toggle 11: %v", err)
	}
	if err := f.ctrl.ToggleVendor(10); err != nil {
		t.Fatalf("toggle 10: %v", err)
	}
	s := f.ctrl.Snapshot()
	if len(s.SelectedVendorIDs) != 2 || s.SelectedVendorIDs[0] != 10 || s.SelectedVendorIDs[1] != 11 {
		t.Fatalf("expected selection in vendor order, got %v", s.SelectedVendorIDs)
	}

	if err := f.ctrl.ToggleVendor(10); err != nil {
		t.Fatalf("toggle 10 off: %v", err)
	}
	s = f.ctrl.Snapshot()
	if len(s.SelectedVendorIDs) != 1 || s.SelectedVendorIDs[0] != 11 {
		t.Fatalf("expected [11], got %v", s.SelectedVendorIDs)
	}
}

func TestSelectAllAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.ctrl.LoadTenders(ctx); err != nil {
		t.Fatalf("load tenders: %v", err)
	}
	if err := f.ctrl.SelectTender(ctx, 1); err != nil {
		t.Fatalf("select tender: %v", err)
	}
	if err := f.ctrl.SelectAllAvailable(); err != nil {
		t.Fatalf("select all: %v", err)
	}
	s := f.ctrl.Snapshot()
	if len(s.SelectedVendorIDs) != 2 || s.SelectedVendorIDs[0] != 10 || s.SelectedVendorIDs[1] != 11 {
		t.Fatalf("expected vendors with documents, got %v", s.SelectedVendorIDs)
	}
}

func TestToggleVendorOutsideSelection(t *testing.T) {
	f := newFixture(t)
	f.toExtraction(t)
	if err := f.ctrl.ToggleVendor(10); !isRejected(err) {
		t.Fatalf("expected rejection during extraction, got %v", err)
	}
}

func TestToggleCriterion(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.LoadCriteria(context.Background()); err != nil {
		t.Fatalf("load criteria: %v", err)
	}
	if err := f.ctrl.ToggleCriterion(1); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if got := f.ctrl.Snapshot().SelectedCriteriaIDs; len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected [2], got %v", got)
	}
	if err := f.ctrl.ToggleCriterion(3); !isRejected(err) {
		t.Fatalf("expected inactive criterion rejected, got %v", err)
	}
	if err := f.ctrl.SelectAllCriteria(); err != nil {
		t.Fatalf("select all: %v", err)
	}
	if got := f.ctrl.Snapshot().SelectedCriteriaIDs; len(got) != 2 {
		t.Fatalf("expected 2 criteria, got %v", got)
	}
}

func TestResetKeepsCatalog(t *testing.T) {
	f := newFixture(t)
	f.toExtraction(t)
	if err := f.ctrl.ToggleCriterion(2); err != nil {
		t.Fatalf("toggle criterion: %v", err)
	}

	f.ctrl.ResetEvaluation()

	s := f.ctrl.Snapshot()
	if s.Stage != StageSelectingTender {
		t.Fatalf("expected selecting_tender, got %q", s.Stage)
	}
	if len(s.Tenders) != 2 || len(s.Criteria) != 2 {
		t.Fatalf("expected tenders and criteria kept, got %d/%d", len(s.Tenders), len(s.Criteria))
	}
	if s.SelectedTenderID != 0 || len(s.SelectedVendorIDs) != 0 || len(s.Documents) != 0 {
		t.Fatalf("expected selection cleared: %+v", s)
	}
	if len(s.SelectedCriteriaIDs) != 2 {
		t.Fatalf("expected criteria reselected, got %v", s.SelectedCriteriaIDs)
	}
}

func TestBackToVendorSelection(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.BackToVendorSelection(); !isRejected(err) {
		t.Fatalf("expected rejection before extraction, got %v", err)
	}
	f.toExtraction(t)
	if err := f.ctrl.BackToVendorSelection(); err != nil {
		t.Fatalf("back: %v", err)
	}
	s := f.ctrl.Snapshot()
	if s.Stage != StageSelectingVendors {
		t.Fatalf("expected selecting_vendors, got %q", s.Stage)
	}
	if len(s.SelectedVendorIDs) != 2 {
		t.Fatalf("expected selection kept, got %v", s.SelectedVendorIDs)
	}
}

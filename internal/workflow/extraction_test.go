package workflow

import (
	"context"
	"errors"
	"testing"

	"tender-evaluator/internal/tenderapi"
)

func TestProceedToExtractionRequiresVendors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.ctrl.LoadTenders(ctx); err != nil {
		t.Fatalf("load tenders: %v", err)
	}
	if err := f.ctrl.SelectTender(ctx, 1); err != nil {
		t.Fatalf("select tender: %v", err)
	}
	if err := f.ctrl.ProceedToExtraction(ctx); !isRejected(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if !hasNotice(f.ctrl.DrainNotices(), NoticeError, "Please select at least one vendor") {
		t.Fatalf("expected selection notice")
	}
	if got := f.ctrl.Snapshot().Stage; got != StageSelectingVendors {
		t.Fatalf("expected stage unchanged, got %q", got)
	}
}

func TestProceedToExtractionMergesResults(t *testing.T) {
	f := newFixture(t)
	f.api.results[10] = []tenderapi.OCRResult{
		{DocumentID: 100, Status: "corrected", OCRText: "raw", CorrectedText: "fixed", Confidence: 0.8},
		{DocumentID: 101, Status: "failed"},
	}
	f.api.resultsErr[11] = errors.New("not found")

	f.toExtraction(t)

	s := f.ctrl.Snapshot()
	if s.Stage != StageExtractingText {
		t.Fatalf("expected extracting_text, got %q", s.Stage)
	}
	d := docStatus(t, s, 100)
	if d.OCRStatus != OCRCompleted || d.OCRText != "fixed" {
		t.Fatalf("expected corrected text, got %+v", d)
	}
	if d.Confidence == nil || *d.Confidence != 0.8 {
		t.Fatalf("expected confidence 0.8, got %v", d.Confidence)
	}
	if got := docStatus(t, s, 101).OCRStatus; got != OCRFailed {
		t.Fatalf("expected failed, got %q", got)
	}
	if got := docStatus(t, s, 110).OCRStatus; got != OCRPending {
		t.Fatalf("expected pending when results fail to load, got %q", got)
	}
	if s.Loading.Documents {
		t.Fatalf("expected documents loading flag cleared")
	}
}

func TestProceedToExtractionDocumentFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.ctrl.LoadTenders(ctx); err != nil {
		t.Fatalf("load tenders: %v", err)
	}
	if err := f.ctrl.SelectTender(ctx, 1); err != nil {
		t.Fatalf("select tender: %v", err)
	}
	if err := f.ctrl.SelectAllAvailable(); err != nil {
		t.Fatalf("select vendors: %v", err)
	}
	f.api.mu.Lock()
	f.api.docsErr[11] = errors.New("gateway timeout")
	f.api.mu.Unlock()

	if err := f.ctrl.ProceedToExtraction(ctx); err != nil {
		t.Fatalf("proceed: %v", err)
	}
	s := f.ctrl.Snapshot()
	if docs, ok := s.Documents[11]; !ok || len(docs) != 0 {
		t.Fatalf("expected empty document list for vendor 11, got %v", docs)
	}
	if len(s.Documents[10]) != 2 {
		t.Fatalf("expected vendor 10 documents loaded, got %d", len(s.Documents[10]))
	}
	if !hasNotice(f.ctrl.DrainNotices(), NoticeWarning, "Failed to load documents for Beta Roads") {
		t.Fatalf("expected warning for vendor 11")
	}
}

func TestReentryKeepsSessionResults(t *testing.T) {
	f := newFixture(t)
	f.toExtraction(t)
	ctx := context.Background()

	if _, err := f.ctrl.RunOCR(ctx, 100); err != nil {
		t.Fatalf("run ocr: %v", err)
	}
	if err := f.ctrl.BackToVendorSelection(); err != nil {
		t.Fatalf("back: %v", err)
	}
	if err := f.ctrl.ProceedToExtraction(ctx); err != nil {
		t.Fatalf("proceed: %v", err)
	}

	d := docStatus(t, f.ctrl.Snapshot(), 100)
	if d.OCRStatus != OCRCompleted || d.OCRText != "text of 100" {
		t.Fatalf("expected session result to survive reload, got %+v", d)
	}
}

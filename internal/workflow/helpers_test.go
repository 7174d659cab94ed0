package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tender-evaluator/internal/queue"
	"tender-evaluator/internal/tenderapi"
)

type fakeAPI struct {
	mu sync.Mutex

	tenders    []tenderapi.Tender
	tendersErr error
	vendors    map[int64][]tenderapi.Vendor
	vendorsErr map[int64]error
	docs       map[int64][]tenderapi.Document
	docsErr    map[int64]error
	results    map[int64][]tenderapi.OCRResult
	resultsErr map[int64]error
	criteria   []tenderapi.Criterion
	startErr   map[int64]error
	// status answers a poll; attempt counts from 1 per document.
	status    func(documentID int64, attempt int) (tenderapi.OCRJobStatus, error)
	evalResp  tenderapi.EvaluationResponse
	evalErr   error
	evalGate  chan struct{}
	exportRes tenderapi.ExportResponse
	exportErr error

	startCalls  []int64
	statusCalls map[int64]int
	evalReqs    []tenderapi.EvaluationRequest
	exportCalls []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		tenders: []tenderapi.Tender{
			{ID: 1, Title: "Road resurfacing", Status: "Open", HasAttachments: true, AttachmentCount: 3},
			{ID: 2, Title: "Office chairs", Status: "Draft"},
		},
		vendors: map[int64][]tenderapi.Vendor{
			1: {
				{ID: 10, VendorName: "Acme Paving"},
				{ID: 11, VendorName: "Beta Roads"},
				{ID: 12, VendorName: "Gamma Works"},
			},
		},
		vendorsErr: map[int64]error{},
		docs: map[int64][]tenderapi.Document{
			10: {
				{ID: 100, OriginalFilename: "acme-technical.pdf"},
				{ID: 101, OriginalFilename: "acme-financial.pdf"},
			},
			11: {
				{ID: 110, OriginalFilename: "beta-proposal.pdf"},
			},
		},
		docsErr:    map[int64]error{},
		results:    map[int64][]tenderapi.OCRResult{},
		resultsErr: map[int64]error{},
		criteria: []tenderapi.Criterion{
			{ID: 1, Name: "Price", Weightage: 40, MaxScore: 100, Category: "financial", IsActive: true},
			{ID: 2, Name: "Experience", Weightage: 60, MaxScore: 100, Category: "technical", IsActive: true},
			{ID: 3, Name: "Legacy", Weightage: 10, MaxScore: 100, Category: "technical"},
		},
		startErr:    map[int64]error{},
		statusCalls: map[int64]int{},
	}
}

func (f *fakeAPI) ListTendersWithAttachments(ctx context.Context, filter tenderapi.TenderFilter) ([]tenderapi.Tender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tendersErr != nil {
		return nil, f.tendersErr
	}
	return append([]tenderapi.Tender(nil), f.tenders...), nil
}

func (f *fakeAPI) ListTenderVendors(ctx context.Context, tenderID int64) ([]tenderapi.Vendor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.vendorsErr[tenderID]; err != nil {
		return nil, err
	}
	return append([]tenderapi.Vendor(nil), f.vendors[tenderID]...), nil
}

func (f *fakeAPI) ListVendorDocuments(ctx context.Context, vendorID int64) ([]tenderapi.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.docsErr[vendorID]; err != nil {
		return nil, err
	}
	return append([]tenderapi.Document(nil), f.docs[vendorID]...), nil
}

func (f *fakeAPI) ListVendorOCRResults(ctx context.Context, vendorID int64) ([]tenderapi.OCRResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.resultsErr[vendorID]; err != nil {
		return nil, err
	}
	return append([]tenderapi.OCRResult(nil), f.results[vendorID]...), nil
}

func (f *fakeAPI) StartOCR(ctx context.Context, documentID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls = append(f.startCalls, documentID)
	return f.startErr[documentID]
}

func (f *fakeAPI) OCRStatus(ctx context.Context, documentID int64) (tenderapi.OCRJobStatus, error) {
	f.mu.Lock()
	f.statusCalls[documentID]++
	attempt := f.statusCalls[documentID]
	fn := f.status
	f.mu.Unlock()
	if fn == nil {
		return completedStatus(documentID), nil
	}
	return fn(documentID, attempt)
}

func (f *fakeAPI) ListCriteria(ctx context.Context) ([]tenderapi.Criterion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tenderapi.Criterion(nil), f.criteria...), nil
}

func (f *fakeAPI) RunEvaluation(ctx context.Context, req tenderapi.EvaluationRequest) (tenderapi.EvaluationResponse, error) {
	if f.evalGate != nil {
		<-f.evalGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalReqs = append(f.evalReqs, req)
	return f.evalResp, f.evalErr
}

func (f *fakeAPI) ExportEvaluation(ctx context.Context, evaluationID, format string) (tenderapi.ExportResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exportCalls = append(f.exportCalls, evaluationID+":"+format)
	return f.exportRes, f.exportErr
}

func (f *fakeAPI) starts() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.startCalls...)
}

func (f *fakeAPI) polls(documentID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[documentID]
}

func completedStatus(documentID int64) tenderapi.OCRJobStatus {
	return tenderapi.OCRJobStatus{
		DocumentID: documentID,
		Status:     "completed",
		OCRText:    fmt.Sprintf("text of %d", documentID),
		Confidence: 0.9,
	}
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

func (f *fakeClock) slept() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

type fakeEvents struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (f *fakeEvents) Send(ctx context.Context, msg queue.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakeEvents) sent() []queue.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.Message(nil), f.msgs...)
}

type fakeArchiver struct {
	calls []string
	err   error
}

func (f *fakeArchiver) Archive(ctx context.Context, userID, downloadURL, fileName string) (string, int64, error) {
	f.calls = append(f.calls, fileName)
	if f.err != nil {
		return "", 0, f.err
	}
	return "exports/" + userID + "/" + fileName, 2048, nil
}

type fixture struct {
	api    *fakeAPI
	clock  *fakeClock
	events *fakeEvents
	ctrl   *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{api: newFakeAPI(), clock: newFakeClock(), events: &fakeEvents{}}
	f.ctrl = NewController(Deps{
		API:    f.api,
		Clock:  f.clock,
		Events: f.events,
		UserID: "user-1",
		Options: Options{
			PollInterval:    3 * time.Second,
			MaxPollAttempts: 60,
			BatchPause:      time.Second,
			FanOut:          4,
		},
	})
	return f
}

// toExtraction drives the controller to the extraction stage with every
// vendor that has documents selected.
func (f *fixture) toExtraction(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := f.ctrl.LoadTenders(ctx); err != nil {
		t.Fatalf("load tenders: %v", err)
	}
	if err := f.ctrl.LoadCriteria(ctx); err != nil {
		t.Fatalf("load criteria: %v", err)
	}
	if err := f.ctrl.SelectTender(ctx, 1); err != nil {
		t.Fatalf("select tender: %v", err)
	}
	if err := f.ctrl.SelectAllAvailable(); err != nil {
		t.Fatalf("select vendors: %v", err)
	}
	if err := f.ctrl.ProceedToExtraction(ctx); err != nil {
		t.Fatalf("proceed to extraction: %v", err)
	}
	f.ctrl.DrainNotices()
}

func docStatus(t *testing.T, s State, documentID int64) Document {
	t.Helper()
	for _, docs := range s.Documents {
		for _, d := range docs {
			if d.ID == documentID {
				return d
			}
		}
	}
	t.Fatalf("document %d not in state", documentID)
	return Document{}
}

func hasNotice(notices []Notice, level NoticeLevel, substr string) bool {
	for _, n := range notices {
		if n.Level == level && strings.Contains(n.Message, substr) {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func isRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

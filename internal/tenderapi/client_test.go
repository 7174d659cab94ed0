package tenderapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *MutableToken) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tok := NewMutableToken("token-1")
	return NewClient(srv.URL, tok, 5*time.Second), tok
}

func TestClientSendsBearerAndDecodesTenders(t *testing.T) {
	t.Parallel()
	var gotAuth, gotPath, gotQuery string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[{"id":7,"tender":"Road works","status":"open","has_attachments":true,"attachment_count":3}]`))
	})

	tenders, err := client.ListTendersWithAttachments(context.Background(), TenderFilter{Status: "open"})
	if err != nil {
		t.Fatalf("ListTendersWithAttachments: %v", err)
	}
	if gotAuth != "Bearer token-1" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotPath != "/api/v1/auth/tenders-with-attachments" || gotQuery != "status=open" {
		t.Fatalf("unexpected request %s?%s", gotPath, gotQuery)
	}
	if len(tenders) != 1 || tenders[0].Title != "Road works" || !tenders[0].HasAttachments || tenders[0].AttachmentCount != 3 {
		t.Fatalf("unexpected tenders: %+v", tenders)
	}
}

func TestMutableTokenSwapAppliesToNextRequest(t *testing.T) {
	t.Parallel()
	var seen []string
	client, tok := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	if err := client.Verify(context.Background()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	tok.Set("token-2")
	if err := client.Verify(context.Background()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(seen) != 2 || seen[0] != "Bearer token-1" || seen[1] != "Bearer token-2" {
		t.Fatalf("unexpected auth headers: %v", seen)
	}
}

func TestStartOCRConflictIsClassified(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/auth/documents/42/ocr-process" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"OCR already in progress"}`))
	})

	err := client.StartOCR(context.Background(), 42)
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Message != "OCR already in progress" {
		t.Fatalf("unexpected status error: %#v", err)
	}
	if IsTransient(err) {
		t.Fatalf("409 must not be transient")
	}
}

func TestOCRStatusDecodes(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"document_id":42,"status":"completed","ocr_text":"hello","confidence":0.93}`))
	})
	st, err := client.OCRStatus(context.Background(), 42)
	if err != nil {
		t.Fatalf("OCRStatus: %v", err)
	}
	if st.Status != "completed" || st.OCRText != "hello" || st.Confidence != 0.93 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestVendorEndpointsUnwrapEnvelopes(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/tenders/7/vendors":
			_, _ = w.Write([]byte(`{"vendors":[{"id":1,"vendor_name":"Acme","contact_person_email":"a@acme.test","mapping_id":11}]}`))
		case "/api/v1/auth/vendors/1/documents":
			_, _ = w.Write([]byte(`{"documents":[{"id":100,"original_filename":"bid.pdf","file_size":2048}]}`))
		case "/api/v1/auth/vendors/1/ocr-results":
			_, _ = w.Write([]byte(`{"vendor_id":1,"total_documents":1,"ocr_results":[{"document_id":100,"status":"corrected","ocr_text":"raw","corrected_text":"fixed","confidence":0.8}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	vendors, err := client.ListTenderVendors(ctx, 7)
	if err != nil || len(vendors) != 1 || vendors[0].VendorName != "Acme" || vendors[0].MappingID != 11 {
		t.Fatalf("vendors: %+v err=%v", vendors, err)
	}
	docs, err := client.ListVendorDocuments(ctx, 1)
	if err != nil || len(docs) != 1 || docs[0].OriginalFilename != "bid.pdf" {
		t.Fatalf("documents: %+v err=%v", docs, err)
	}
	results, err := client.ListVendorOCRResults(ctx, 1)
	if err != nil || len(results) != 1 || results[0].CorrectedText != "fixed" {
		t.Fatalf("ocr results: %+v err=%v", results, err)
	}
}

func TestRunEvaluationSendsPayloadAndRejectsFailedStatus(t *testing.T) {
	t.Parallel()
	var got EvaluationRequest
	fail := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		if fail {
			_, _ = w.Write([]byte(`{"evaluation_id":"e1","status":"failed","error":"model offline","results":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"evaluation_id":"e1","status":"completed","results":[{"vendor_id":1,"vendor_name":"Acme","overall_score":72.5,"qualification_status":"Qualified","rating":"GOOD","criteria_scores":{"Experience":{"score":80,"weightage":40,"category":"Technical","reasoning":"ok","criterion_id":3}}}],"failed_vendors":[]}`))
	})

	req := EvaluationRequest{
		TenderID:    7,
		VendorIDs:   []int64{1},
		CriteriaIDs: []int64{3},
		DocumentsData: []VendorDocuments{{
			VendorID:  1,
			Documents: []DocumentText{{DocumentID: 100, OCRText: "text", Confidence: 0.9}},
		}},
	}
	resp, err := client.RunEvaluation(context.Background(), req)
	if err != nil {
		t.Fatalf("RunEvaluation: %v", err)
	}
	if got.TenderID != 7 || len(got.DocumentsData) != 1 || got.DocumentsData[0].Documents[0].OCRText != "text" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if resp.EvaluationID != "e1" || len(resp.Results) != 1 || resp.Results[0].CriteriaScores["Experience"].CriterionID != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	fail = true
	if _, err := client.RunEvaluation(context.Background(), req); err == nil || !strings.Contains(err.Error(), "model offline") {
		t.Fatalf("expected failed status error, got %v", err)
	}
}

type countingTransport struct {
	base  http.RoundTripper
	calls int
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls++
	return c.base.RoundTrip(r)
}

func TestWithHTTPClientReplacesTransport(t *testing.T) {
	t.Parallel()
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	rt := &countingTransport{base: http.DefaultTransport}
	client := NewClient(srv.URL, StaticToken("ignored"), time.Second, WithHTTPClient(&http.Client{Transport: rt}))
	if _, err := client.ListTendersWithAttachments(context.Background(), TenderFilter{}); err != nil {
		t.Fatalf("ListTendersWithAttachments: %v", err)
	}
	if rt.calls != 1 {
		t.Fatalf("expected the injected transport to carry 1 request, got %d", rt.calls)
	}
	if gotAuth != "" {
		t.Fatalf("injected client must not gain auth, got %q", gotAuth)
	}

	// A nil client keeps the default one.
	if c := NewClient(srv.URL, nil, time.Second, WithHTTPClient(nil)); c.httpClient == nil || c.httpClient.Timeout != time.Second {
		t.Fatalf("expected default client to survive a nil option")
	}
}

func TestLoginWithoutTokenFails(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not send a bearer token")
		}
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, time.Second)
	if _, err := client.Login(context.Background(), "alice", "pw"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestUploadVendorDocumentsMultipart(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		files := r.MultipartForm.File["files"]
		if len(files) != 2 || files[1].Filename != "b.txt" {
			t.Errorf("unexpected files: %+v", files)
		}
		_, _ = w.Write([]byte(`{"documents":[{"id":1},{"id":2}]}`))
	})

	docs, err := client.UploadVendorDocuments(context.Background(), 5, []UploadFile{
		{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		{Name: "b.txt", Data: []byte("hello")},
	})
	if err != nil || len(docs) != 2 {
		t.Fatalf("upload: %+v err=%v", docs, err)
	}
}

func TestDownloadResolvesRelativeURL(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/exports/9/download" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") == "" {
			t.Errorf("same-host download should carry the bearer token")
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-export"))
	})

	body, ct, err := client.Download(context.Background(), "/api/v1/auth/exports/9/download")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "%PDF-export" || ct != "application/pdf" {
		t.Fatalf("unexpected download %q %q", data, ct)
	}

	if _, _, err := client.Download(context.Background(), "ftp://example.test/x"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &StatusError{Code: 502}, true},
		{"not found", &StatusError{Code: 404}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"reset", errors.New("read tcp: connection reset by peer"), true},
		{"other", errors.New("boom"), false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	IncOCRStarted()
	IncOCRTimedOut()
	ObserveOCRDurationMs(2500)

	out := Render()
	for _, want := range []string{
		"# TYPE ocr_jobs_started_total counter",
		"ocr_jobs_timed_out_total",
		"# TYPE ocr_job_duration_ms histogram",
		`ocr_job_duration_ms_bucket{le="3000"}`,
		`ocr_job_duration_ms_bucket{le="+Inf"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestHistogramCumulativeBuckets(t *testing.T) {
	h := &histogram{name: "test_ms", help: "test", bounds: []float64{10, 100}, counts: make([]uint64, 3)}
	h.Observe(5)
	h.Observe(10)
	h.Observe(50)
	h.Observe(500)

	var buf bytes.Buffer
	h.write(&buf)
	out := buf.String()
	for _, want := range []string{
		`test_ms_bucket{le="10"} 2`,
		`test_ms_bucket{le="100"} 3`,
		`test_ms_bucket{le="+Inf"} 4`,
		"test_ms_sum 565",
		"test_ms_count 4",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("histogram missing %q:\n%s", want, out)
		}
	}
}

func TestRegisterGauge(t *testing.T) {
	live := 2.0
	RegisterGauge("workflow_sessions_active", "Live per-user workflow controllers", func() float64 { return live })
	if !strings.Contains(Render(), "workflow_sessions_active 2\n") {
		t.Fatalf("gauge missing from render")
	}
	live = 5
	if !strings.Contains(Render(), "workflow_sessions_active 5\n") {
		t.Fatalf("gauge not read at scrape time")
	}
}

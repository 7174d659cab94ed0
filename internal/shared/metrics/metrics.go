// Package metrics exposes process counters in the Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

type counter struct {
	name, help string
	v          atomic.Uint64
}

type gauge struct {
	name, help string
	read       func() float64
}

var (
	mu         sync.RWMutex
	counters   []*counter
	gauges     = map[string]gauge{}
	histograms []*histogram
)

func newCounter(name, help string) *counter {
	c := &counter{name: name, help: help}
	counters = append(counters, c)
	return c
}

var (
	ocrStarted   = newCounter("ocr_jobs_started_total", "OCR jobs started or attached")
	ocrCompleted = newCounter("ocr_jobs_completed_total", "OCR jobs completed")
	ocrFailed    = newCounter("ocr_jobs_failed_total", "OCR jobs failed")
	ocrTimedOut  = newCounter("ocr_jobs_timed_out_total", "OCR jobs abandoned after the poll budget")
	ocrPolls     = newCounter("ocr_polls_total", "OCR status polls issued")

	evalRuns    = newCounter("evaluation_runs_total", "Evaluation runs requested")
	evalFailed  = newCounter("evaluation_runs_failed_total", "Evaluation runs failed")
	exports     = newCounter("exports_total", "Export requests")
	exportsKept = newCounter("exports_archived_total", "Exports archived to the object store")

	eventsReceived      = newCounter("workflow_events_received_total", "Workflow events received by the worker")
	eventsRecorded      = newCounter("workflow_events_recorded_total", "Workflow events recorded")
	eventsFailed        = newCounter("workflow_events_failed_total", "Workflow events that failed processing")
	eventsUnrecoverable = newCounter("workflow_events_unrecoverable_total", "Malformed workflow events deleted")

	httpPanics = newCounter("http_panics_total", "Handler panics recovered")

	ocrJobDuration     = newHistogram("ocr_job_duration_ms", "OCR job duration in milliseconds", 1000, 3000, 10000, 30000, 60000, 120000, 180000)
	evaluationDuration = newHistogram("evaluation_duration_ms", "Evaluation duration in milliseconds", 1000, 5000, 15000, 30000, 60000, 120000, 300000)
)

// IncOCRStarted counts OCR jobs this service began observing.
func IncOCRStarted() { ocrStarted.v.Add(1) }

func IncOCRCompleted() { ocrCompleted.v.Add(1) }

// IncOCRFailed includes timeouts.
func IncOCRFailed() { ocrFailed.v.Add(1) }

func IncOCRTimedOut() { ocrTimedOut.v.Add(1) }

func IncOCRPoll() { ocrPolls.v.Add(1) }

func IncEvaluationRun() { evalRuns.v.Add(1) }

func IncEvaluationFailed() { evalFailed.v.Add(1) }

// IncExport counts export requests; archived reports whether the file was stored.
func IncExport(archived bool) {
	exports.v.Add(1)
	if archived {
		exportsKept.v.Add(1)
	}
}

func IncEventsReceived() { eventsReceived.v.Add(1) }

func IncEventsRecorded() { eventsRecorded.v.Add(1) }

func IncEventsFailed() { eventsFailed.v.Add(1) }

func IncEventsUnrecoverable() { eventsUnrecoverable.v.Add(1) }

func IncHTTPPanic() { httpPanics.v.Add(1) }

func ObserveOCRDurationMs(value float64) { ocrJobDuration.Observe(max(value, 0)) }

func ObserveEvaluationDurationMs(value float64) { evaluationDuration.Observe(max(value, 0)) }

// RegisterGauge exposes a value read at scrape time, such as the number of
// live workflow sessions. Registering a name again replaces the reader.
func RegisterGauge(name, help string, read func() float64) {
	mu.Lock()
	gauges[name] = gauge{name: name, help: help, read: read}
	mu.Unlock()
}

// Handler serves the text exposition format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.Status(http.StatusOK)
		Write(c.Writer)
	}
}

// Render returns the exposition text.
func Render() string {
	var b strings.Builder
	Write(&b)
	return b.String()
}

// Write emits counters, then gauges sorted by name, then histograms.
func Write(w io.Writer) {
	mu.RLock()
	defer mu.RUnlock()
	for _, c := range counters {
		header(w, c.name, c.help, "counter")
		fmt.Fprintf(w, "%s %d\n", c.name, c.v.Load())
	}
	names := make([]string, 0, len(gauges))
	for n := range gauges {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		g := gauges[n]
		header(w, g.name, g.help, "gauge")
		fmt.Fprintf(w, "%s %s\n", g.name, formatFloat(g.read()))
	}
	for _, h := range histograms {
		h.write(w)
	}
}

type histogram struct {
	name, help string
	mu         sync.Mutex
	bounds     []float64
	counts     []uint64 // per bucket, not cumulative; last slot is +Inf
	sum        float64
}

func newHistogram(name, help string, bounds ...float64) *histogram {
	h := &histogram{name: name, help: help, bounds: bounds, counts: make([]uint64, len(bounds)+1)}
	histograms = append(histograms, h)
	return h
}

func (h *histogram) Observe(value float64) {
	i := sort.SearchFloat64s(h.bounds, value)
	h.mu.Lock()
	h.counts[i]++
	h.sum += value
	h.mu.Unlock()
}

func (h *histogram) write(w io.Writer) {
	h.mu.Lock()
	counts := append([]uint64(nil), h.counts...)
	sum := h.sum
	h.mu.Unlock()

	header(w, h.name, h.help, "histogram")
	var cumulative uint64
	for i, bound := range h.bounds {
		cumulative += counts[i]
		fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", h.name, formatFloat(bound), cumulative)
	}
	cumulative += counts[len(h.bounds)]
	fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", h.name, cumulative)
	fmt.Fprintf(w, "%s_sum %s\n", h.name, formatFloat(sum))
	fmt.Fprintf(w, "%s_count %d\n", h.name, cumulative)
}

func header(w io.Writer, name, help, kind string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	underwriteStartedTotal   atomic.Uint64
	underwriteCompletedTotal atomic.Uint64
	underwriteFailedTotal    atomic.Uint64
	uploadsTotal             atomic.Uint64
	uploadedFilesTotal       atomic.Uint64

	stepFailures     = newLabeledCounter()
	classifications  = newLabeledCounter()
	creditDecisions  = newLabeledCounter()
	underwriteTiming = newHistogram([]float64{1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000})
)

// IncUnderwriteStarted increments the started counter.
func IncUnderwriteStarted() {
	underwriteStartedTotal.Add(1)
}

// IncUnderwriteCompleted increments the completed counter.
func IncUnderwriteCompleted() {
	underwriteCompletedTotal.Add(1)
}

// IncUnderwriteFailed increments the failed counter.
func IncUnderwriteFailed() {
	underwriteFailedTotal.Add(1)
}

// IncUpload records one upload request carrying files PDFs.
func IncUpload(files int) {
	uploadsTotal.Add(1)
	if files > 0 {
		uploadedFilesTotal.Add(uint64(files))
	}
}

// IncStepFailure counts a failed analysis step.
func IncStepFailure(step string) {
	stepFailures.Inc(step)
}

// IncClassification counts a classification outcome by document type.
func IncClassification(documentType string) {
	classifications.Inc(documentType)
}

// IncCreditDecision counts a credit recommendation by approval decision.
func IncCreditDecision(decision string) {
	creditDecisions.Inc(decision)
}

// ObserveUnderwriteDurationMs records an underwriting duration in milliseconds.
func ObserveUnderwriteDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	underwriteTiming.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "underwrite_started_total", "Total underwriting runs started", underwriteStartedTotal.Load())
	writeCounter(&buf, "underwrite_completed_total", "Total underwriting runs completed", underwriteCompletedTotal.Load())
	writeCounter(&buf, "underwrite_failed_total", "Total underwriting runs failed", underwriteFailedTotal.Load())
	writeCounter(&buf, "uploads_total", "Total upload requests", uploadsTotal.Load())
	writeCounter(&buf, "uploaded_files_total", "Total PDF files accepted", uploadedFilesTotal.Load())
	writeLabeled(&buf, "analysis_step_failures_total", "Analysis step failures by step", "step", stepFailures.Snapshot())
	writeLabeled(&buf, "document_classifications_total", "Document classifications by type", "document_type", classifications.Snapshot())
	writeLabeled(&buf, "credit_decisions_total", "Credit recommendations by decision", "decision", creditDecisions.Snapshot())
	writeHistogram(&buf, "underwrite_duration_ms", "Underwriting duration in milliseconds", underwriteTiming.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]uint64)}
}

func (l *labeledCounter) Inc(label string) {
	if label == "" {
		label = "unknown"
	}
	l.mu.Lock()
	l.values[label]++
	l.mu.Unlock()
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value into the first bucket whose bound is >= value.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeled(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the elapsed milliseconds since start.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

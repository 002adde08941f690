// Package metrics provides lightweight, lock-minimal performance counters
// for the PDF anonymizer service.
//
// Counters use sync/atomic so the request path incurs no mutex contention.
// Latency statistics use a single mutex per pipeline stage; they are updated
// at most once per request.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds all runtime counters for a running anonymizer instance.
type Metrics struct {
	// Request counters
	RequestsTotal       atomic.Int64
	RequestsSucceeded   atomic.Int64
	RequestsFailed      atomic.Int64
	RequestsCopyThrough atomic.Int64 // succeeded with an empty target set

	// Error counters by pipeline origin
	ErrorsUpload     atomic.Int64
	ErrorsExtraction atomic.Int64
	ErrorsDetection  atomic.Int64
	ErrorsRedaction  atomic.Int64

	// Pipeline volume
	PagesExtracted  atomic.Int64
	EntitiesFound   atomic.Int64 // model-based detections after allow-list filter
	PatternsFound   atomic.Int64 // regex NRIC matches
	TargetsRedacted atomic.Int64 // unique strings handed to the redactor
	MarksApplied    atomic.Int64 // rectangles stamped across all pages

	// Detection cache effectiveness
	DetectionCacheHits   atomic.Int64
	DetectionCacheMisses atomic.Int64

	// Output sweeper
	OutputsSwept atomic.Int64

	// Latency statistics per stage (mutex-guarded float accumulators)
	extractMu   sync.Mutex
	extractStat latencyStats

	detectMu   sync.Mutex
	detectStat latencyStats

	redactMu   sync.Mutex
	redactStat latencyStats

	requestMu   sync.Mutex
	requestStat latencyStats

	startTime time.Time
}

// New returns a new Metrics with the start time recorded.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordExtractLatency records the duration of one extraction pass.
func (m *Metrics) RecordExtractLatency(d time.Duration) {
	m.extractMu.Lock()
	m.extractStat.record(float64(d.Microseconds()) / 1000.0)
	m.extractMu.Unlock()
}

// RecordDetectLatency records the duration of one combined detection pass.
func (m *Metrics) RecordDetectLatency(d time.Duration) {
	m.detectMu.Lock()
	m.detectStat.record(float64(d.Microseconds()) / 1000.0)
	m.detectMu.Unlock()
}

// RecordRedactLatency records the duration of one redaction pass.
func (m *Metrics) RecordRedactLatency(d time.Duration) {
	m.redactMu.Lock()
	m.redactStat.record(float64(d.Microseconds()) / 1000.0)
	m.redactMu.Unlock()
}

// RecordRequestLatency records one full request, upload to response.
func (m *Metrics) RecordRequestLatency(d time.Duration) {
	m.requestMu.Lock()
	m.requestStat.record(float64(d.Microseconds()) / 1000.0)
	m.requestMu.Unlock()
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON encoding.
func (m *Metrics) Snapshot() Snapshot {
	m.extractMu.Lock()
	extract := m.extractStat.snapshot()
	m.extractMu.Unlock()

	m.detectMu.Lock()
	detect := m.detectStat.snapshot()
	m.detectMu.Unlock()

	m.redactMu.Lock()
	redact := m.redactStat.snapshot()
	m.redactMu.Unlock()

	m.requestMu.Lock()
	request := m.requestStat.snapshot()
	m.requestMu.Unlock()

	return Snapshot{
		Requests: RequestSnapshot{
			Total:       m.RequestsTotal.Load(),
			Succeeded:   m.RequestsSucceeded.Load(),
			Failed:      m.RequestsFailed.Load(),
			CopyThrough: m.RequestsCopyThrough.Load(),
		},
		Errors: ErrorSnapshot{
			Upload:     m.ErrorsUpload.Load(),
			Extraction: m.ErrorsExtraction.Load(),
			Detection:  m.ErrorsDetection.Load(),
			Redaction:  m.ErrorsRedaction.Load(),
		},
		Pipeline: PipelineSnapshot{
			PagesExtracted:  m.PagesExtracted.Load(),
			EntitiesFound:   m.EntitiesFound.Load(),
			PatternsFound:   m.PatternsFound.Load(),
			TargetsRedacted: m.TargetsRedacted.Load(),
			MarksApplied:    m.MarksApplied.Load(),
			CacheHits:       m.DetectionCacheHits.Load(),
			CacheMisses:     m.DetectionCacheMisses.Load(),
			OutputsSwept:    m.OutputsSwept.Load(),
		},
		Latency: LatencyGroup{
			ExtractionMs: extract,
			DetectionMs:  detect,
			RedactionMs:  redact,
			RequestMs:    request,
		},
		UptimeSecs: time.Since(m.startTime).Seconds(),
	}
}

// --- JSON-serialisable snapshot types ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Requests   RequestSnapshot  `json:"requests"`
	Errors     ErrorSnapshot    `json:"errors"`
	Pipeline   PipelineSnapshot `json:"pipeline"`
	Latency    LatencyGroup     `json:"latency"`
	UptimeSecs float64          `json:"uptimeSecs"`
}

// RequestSnapshot holds request-level counters.
type RequestSnapshot struct {
	Total       int64 `json:"total"`
	Succeeded   int64 `json:"succeeded"`
	Failed      int64 `json:"failed"`
	CopyThrough int64 `json:"copyThrough"`
}

// ErrorSnapshot holds error counters by pipeline origin.
type ErrorSnapshot struct {
	Upload     int64 `json:"upload"`
	Extraction int64 `json:"extraction"`
	Detection  int64 `json:"detection"`
	Redaction  int64 `json:"redaction"`
}

// PipelineSnapshot holds pipeline volume counters.
type PipelineSnapshot struct {
	PagesExtracted  int64 `json:"pagesExtracted"`
	EntitiesFound   int64 `json:"entitiesFound"`
	PatternsFound   int64 `json:"patternsFound"`
	TargetsRedacted int64 `json:"targetsRedacted"`
	MarksApplied    int64 `json:"marksApplied"`
	CacheHits       int64 `json:"detectionCacheHits"`
	CacheMisses     int64 `json:"detectionCacheMisses"`
	OutputsSwept    int64 `json:"outputsSwept"`
}

// LatencyGroup groups the per-stage latency dimensions.
type LatencyGroup struct {
	ExtractionMs LatencySnapshot `json:"extractionMs"`
	DetectionMs  LatencySnapshot `json:"detectionMs"`
	RedactionMs  LatencySnapshot `json:"redactionMs"`
	RequestMs    LatencySnapshot `json:"requestMs"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

// --- internal accumulator ---

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}

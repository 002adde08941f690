// Package server exposes the PDF anonymization pipeline over HTTP.
//
// Endpoints:
//
//	GET  /          greeting, useful as a liveness probe
//	POST /anonymize multipart upload ("file") -> redacted PDF stream
//	GET  /status    service readiness and configuration summary
//	GET  /metrics   runtime counters and latency statistics
//
// Pipeline failures are reported as HTTP 200 with a JSON error body so the
// browser client can read them without tripping fetch error handling.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/cheezycoding/Anonymizer/internal/config"
	"github.com/cheezycoding/Anonymizer/internal/detector"
	"github.com/cheezycoding/Anonymizer/internal/logger"
	"github.com/cheezycoding/Anonymizer/internal/metrics"
)

// TextExtractor pulls plain text out of a PDF on disk.
type TextExtractor interface {
	Extract(path string) (string, bool)
}

// EntityFinder runs model-based NER over document text.
type EntityFinder interface {
	DetectEntities(ctx context.Context, text string) ([]string, error)
}

// PDFRedactor blacks out target strings in a PDF on disk.
type PDFRedactor interface {
	Redact(inPath, outPath string, targets []string) error
}

// Server wires the anonymization pipeline into HTTP handlers.
type Server struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	log     *logger.Logger

	extract TextExtractor
	detect  EntityFinder
	redact  PDFRedactor

	// validate rejects uploads that are not well-formed PDFs before the
	// pipeline runs. Overridable in tests.
	validate func(path string) error
}

// New returns a Server around the given pipeline stages.
func New(cfg *config.Config, m *metrics.Metrics, ex TextExtractor, det EntityFinder, red PDFRedactor) *Server {
	return &Server{
		cfg:     cfg,
		metrics: m,
		log:     logger.New("SERVER", cfg.LogLevel),
		extract: ex,
		detect:  det,
		redact:  red,
		validate: func(path string) error {
			return api.ValidateFile(path, nil)
		},
	}
}

// Handler returns the full HTTP handler with CORS and panic recovery applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("POST /anonymize", s.handleAnonymize)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	return s.recoverPanics(corsMiddleware(s.cfg.AllowedOrigin, mux))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]string{"message": "PDF anonymizer is running"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status":     "ok",
		"model":      s.cfg.OllamaModel,
		"uptimeSecs": s.metrics.Snapshot().UptimeSecs,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.metrics.Snapshot())
}

// handleAnonymize runs the full pipeline for one uploaded PDF:
// save upload, validate, extract text, detect PII, redact, stream result.
// The input temp file is always removed; the output stays on disk for the
// sweeper so interrupted downloads can be retried by the client.
func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	s.metrics.RequestsTotal.Add(1)
	start := time.Now()

	requestID := uuid.NewString()
	rl := s.log.WithRequest(requestID[:8])

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadMB)<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.metrics.ErrorsUpload.Add(1)
		s.fail(w, rl, "read_upload", fmt.Sprintf("missing or oversized upload: %v", err),
			"no PDF file in request")
		return
	}
	defer file.Close() //nolint:errcheck // read-only handle

	inPath := filepath.Join(s.cfg.TempDir, requestID+"_input.pdf")
	outPath := filepath.Join(s.cfg.TempDir, requestID+"_output_redacted.pdf")

	if err := saveUpload(file, inPath); err != nil {
		s.metrics.ErrorsUpload.Add(1)
		s.fail(w, rl, "save_upload", err.Error(), "could not store uploaded file")
		return
	}
	// The input contains unredacted PII; never leave it behind.
	defer os.Remove(inPath) //nolint:errcheck // best-effort cleanup

	if err := s.validate(inPath); err != nil {
		s.metrics.ErrorsUpload.Add(1)
		s.fail(w, rl, "validate_upload", fmt.Sprintf("%s: %v", header.Filename, err),
			"uploaded file is not a valid PDF")
		return
	}
	rl.Infof("upload_saved", "%s (%d bytes)", header.Filename, header.Size)

	extractStart := time.Now()
	text, ok := s.extract.Extract(inPath)
	s.metrics.RecordExtractLatency(time.Since(extractStart))
	if !ok {
		// No text means no detections, which means copy-through below.
		// An image-only scan comes back unredacted rather than rejected.
		s.metrics.ErrorsExtraction.Add(1)
		rl.Warn("extract_text", "no extractable text, proceeding with empty target set")
		text = ""
	}

	detectStart := time.Now()
	entities, err := s.detect.DetectEntities(r.Context(), text)
	if err != nil {
		s.metrics.RecordDetectLatency(time.Since(detectStart))
		s.metrics.ErrorsDetection.Add(1)
		s.fail(w, rl, "detect_entities", err.Error(), "PII detection failed")
		return
	}
	patterns := detector.DetectNRIC(text)
	s.metrics.RecordDetectLatency(time.Since(detectStart))
	s.metrics.EntitiesFound.Add(int64(len(entities)))
	s.metrics.PatternsFound.Add(int64(len(patterns)))

	targets := detector.Combine(entities, patterns)
	rl.Infof("detect_done", "%d entities + %d patterns -> %d targets",
		len(entities), len(patterns), len(targets))

	redactStart := time.Now()
	err = s.redact.Redact(inPath, outPath, targets)
	s.metrics.RecordRedactLatency(time.Since(redactStart))
	if err != nil {
		s.metrics.ErrorsRedaction.Add(1)
		s.fail(w, rl, "apply_redactions", err.Error(), "could not redact PDF")
		return
	}
	if len(targets) == 0 {
		s.metrics.RequestsCopyThrough.Add(1)
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "redacted_"+filepath.Base(header.Filename)))
	http.ServeFile(w, r, outPath)

	s.metrics.RequestsSucceeded.Add(1)
	s.metrics.RecordRequestLatency(time.Since(start))
	rl.Infof("request_done", "%s in %v", header.Filename, time.Since(start).Round(time.Millisecond))
}

// fail logs the detailed cause and sends the client-facing message as an
// HTTP 200 JSON error body.
func (s *Server) fail(w http.ResponseWriter, rl *logger.Logger, action, detail, clientMsg string) {
	s.metrics.RequestsFailed.Add(1)
	rl.Errorf(action, "%s", detail)
	writeJSON(w, map[string]string{"error": clientMsg})
}

// recoverPanics turns handler panics into a JSON error response.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.metrics.RequestsFailed.Add(1)
				s.log.Errorf("panic", "%s %s: %v", r.Method, r.URL.Path, rec)
				writeJSON(w, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func saveUpload(file multipart.File, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()     //nolint:errcheck // already failing
		os.Remove(path) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write temp file: %w", err)
	}
	return out.Close()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck // headers already sent, nothing left to do
}

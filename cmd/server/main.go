// Command server is the PDF anonymization HTTP backend.
//
// It accepts a PDF upload, extracts its text, detects PII with a local Ollama
// model plus an NRIC pattern match, blacks out every detection on the rendered
// pages, and streams the redacted PDF back.
//
// The server refuses to start if the configured Ollama model is not available:
// without a model every document would come back untouched and look
// anonymized. Set SKIP_MODEL_CHECK=true to serve anyway (pattern matching
// still works).
//
// Usage:
//
//	# Defaults: port 8000, Ollama on localhost:11434
//	./server
//
//	# Custom model and port
//	PORT=9000 OLLAMA_MODEL=llama3.1:8b ./server
//
//	# Persistent detection cache
//	DETECTION_CACHE_PATH=detections.db ./server
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/unidoc/unipdf/v3/common/license"
	"golang.org/x/net/netutil"

	"github.com/cheezycoding/Anonymizer/internal/config"
	"github.com/cheezycoding/Anonymizer/internal/detector"
	"github.com/cheezycoding/Anonymizer/internal/extractor"
	"github.com/cheezycoding/Anonymizer/internal/metrics"
	"github.com/cheezycoding/Anonymizer/internal/redactor"
	"github.com/cheezycoding/Anonymizer/internal/server"
)

func main() {
	cfg := config.Load()

	if key := os.Getenv("UNIDOC_LICENSE_API_KEY"); key != "" {
		if err := license.SetMeteredKey(key); err != nil {
			log.Fatalf("[SERVER] Fatal: unipdf license: %v", err)
		}
	}

	printBanner(cfg)

	if err := os.MkdirAll(cfg.TempDir, 0o700); err != nil {
		log.Fatalf("[SERVER] Fatal: create temp dir %s: %v", cfg.TempDir, err)
	}

	cache, err := detector.NewDetectionCache(cfg.DetectionCachePath, cfg.DetectionCacheSize)
	if err != nil {
		log.Fatalf("[SERVER] Fatal: detection cache: %v", err)
	}
	defer cache.Close() //nolint:errcheck // process exit

	m := metrics.New()
	ner := detector.NewEntityDetector(cfg.OllamaEndpoint, cfg.OllamaModel,
		cfg.DetectTimeoutSecs, cache, m, cfg.LogLevel)

	probeModel(ner)

	srv := server.New(cfg, m,
		extractor.New(m, cfg.LogLevel),
		ner,
		redactor.New(m, cfg.LogLevel),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.NewSweeper(cfg.TempDir, cfg.OutputTTLSecs, m, cfg.LogLevel).Run(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("[SERVER] Fatal: listen on %s: %v", addr, err)
	}
	if cfg.MaxConns > 0 {
		// Model inference holds a request open start to finish; cap the
		// connections instead of letting them pile up.
		ln = netutil.LimitListener(ln, cfg.MaxConns)
	}
	log.Printf("[SERVER] Listening on %s", addr)

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := httpSrv.Serve(ln); err != nil {
		log.Fatalf("[SERVER] Fatal: %v", err)
	}
}

// probeModel verifies the configured model is pulled and reachable. A missing
// model is fatal unless SKIP_MODEL_CHECK=true.
func probeModel(ner *detector.EntityDetector) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ner.Ready(ctx); err != nil {
		if os.Getenv("SKIP_MODEL_CHECK") == "true" {
			log.Printf("[SERVER] Warning: %v (SKIP_MODEL_CHECK set, serving anyway)", err)
			return
		}
		log.Fatalf("[SERVER] Fatal: %v\nSet SKIP_MODEL_CHECK=true to serve without the model.", err)
	}
	log.Printf("[SERVER] Model check passed")
}

func printBanner(cfg *config.Config) {
	cachePath := cfg.DetectionCachePath
	if cachePath == "" {
		cachePath = "(in-memory)"
	}

	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║          PDF Anonymizer Backend  (Go)                ║
╚══════════════════════════════════════════════════════╝
  Listen          : %s:%d
  Allowed origin  : %s
  Ollama endpoint : %s
  Ollama model    : %s
  Detection cache : %s
  Max upload      : %d MB

  Anonymize a document:
    curl -F file=@statement.pdf http://localhost:%d/anonymize -o redacted.pdf

  Check status:
    curl http://localhost:%d/status
`, cfg.BindAddress, cfg.Port,
		cfg.AllowedOrigin,
		cfg.OllamaEndpoint, cfg.OllamaModel,
		cachePath, cfg.MaxUploadMB,
		cfg.Port, cfg.Port)
}

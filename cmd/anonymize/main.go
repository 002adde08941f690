// Command anonymize redacts a single PDF from the command line, without the
// HTTP server. Useful for scripting and for smoke-testing a model setup.
//
// Usage:
//
//	# Defaults: sample.pdf -> sample_redacted.pdf
//	./anonymize
//
//	# Explicit paths
//	./anonymize -in statement.pdf -out clean.pdf
//
//	# Skip the model, regex detection only
//	./anonymize -in statement.pdf -no-model
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/unidoc/unipdf/v3/common/license"

	"github.com/cheezycoding/Anonymizer/internal/config"
	"github.com/cheezycoding/Anonymizer/internal/detector"
	"github.com/cheezycoding/Anonymizer/internal/extractor"
	"github.com/cheezycoding/Anonymizer/internal/redactor"
)

func main() {
	cfg := config.Load()

	inPath := flag.String("in", "sample.pdf", "input PDF")
	outPath := flag.String("out", "", "output PDF (default <in>_redacted.pdf)")
	endpoint := flag.String("endpoint", cfg.OllamaEndpoint, "Ollama endpoint")
	model := flag.String("model", cfg.OllamaModel, "Ollama model")
	noModel := flag.Bool("no-model", false, "skip model detection, patterns only")
	flag.Parse()

	if *outPath == "" {
		*outPath = defaultOutput(*inPath)
	}

	if key := os.Getenv("UNIDOC_LICENSE_API_KEY"); key != "" {
		if err := license.SetMeteredKey(key); err != nil {
			log.Fatalf("[ANONYMIZE] Fatal: unipdf license: %v", err)
		}
	}

	if err := run(cfg, *inPath, *outPath, *endpoint, *model, *noModel); err != nil {
		log.Fatalf("[ANONYMIZE] Fatal: %v", err)
	}
	fmt.Printf("Redacted %s -> %s\n", *inPath, *outPath)
}

func run(cfg *config.Config, inPath, outPath, endpoint, model string, noModel bool) error {
	ctx := context.Background()

	ex := extractor.New(nil, cfg.LogLevel)
	text, ok := ex.Extract(inPath)
	if !ok {
		// No text means no detections; the output becomes an unredacted copy.
		log.Printf("[ANONYMIZE] no extractable text in %s, nothing to redact", inPath)
		text = ""
	}

	var entities []string
	if !noModel && text != "" {
		ner := detector.NewEntityDetector(endpoint, model, cfg.DetectTimeoutSecs, nil, nil, cfg.LogLevel)
		if err := ner.Ready(ctx); err != nil {
			return fmt.Errorf("model check: %w (use -no-model for patterns only)", err)
		}
		found, err := ner.DetectEntities(ctx, text)
		if err != nil {
			return fmt.Errorf("detect entities: %w", err)
		}
		entities = found
	}

	targets := detector.Combine(entities, detector.DetectNRIC(text))
	log.Printf("[ANONYMIZE] %d targets to redact", len(targets))

	return redactor.New(nil, cfg.LogLevel).Redact(inPath, outPath, targets)
}

// defaultOutput turns "dir/name.pdf" into "dir/name_redacted.pdf".
func defaultOutput(inPath string) string {
	const ext = ".pdf"
	base := inPath
	if len(base) > len(ext) && base[len(base)-len(ext):] == ext {
		base = base[:len(base)-len(ext)]
	}
	return base + "_redacted" + ext
}

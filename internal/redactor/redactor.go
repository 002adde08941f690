// Package redactor blacks out target strings in PDF documents.
//
// Each target string is re-located on every page through glyph-level text
// marks, and an opaque black rectangle is stamped over each occupied text
// line. With an empty target set the input is copied through byte for byte.
package redactor

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/unidoc/unipdf/v3/creator"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/cheezycoding/Anonymizer/internal/logger"
	"github.com/cheezycoding/Anonymizer/internal/metrics"
)

// Redactor stamps opaque bars over target strings in PDF files.
type Redactor struct {
	searcher Searcher
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// New returns a Redactor using the glyph-mark Searcher.
func New(m *metrics.Metrics, logLevel string) *Redactor {
	return NewWithSearcher(NewSearcher(), m, logLevel)
}

// NewWithSearcher returns a Redactor with a caller-supplied Searcher.
func NewWithSearcher(s Searcher, m *metrics.Metrics, logLevel string) *Redactor {
	return &Redactor{searcher: s, metrics: m, log: logger.New("REDACT", logLevel)}
}

// Redact reads the PDF at inPath, blacks out every occurrence of every
// non-empty target string, and writes the result to outPath.
//
// An empty target set copies the input through unchanged. Targets that occur
// nowhere in the document are not an error. A missing input file is.
func (r *Redactor) Redact(inPath, outPath string, targets []string) error {
	if _, err := os.Stat(inPath); err != nil {
		return fmt.Errorf("input not found at %s", inPath)
	}

	live := targets[:0:0]
	for _, t := range targets {
		if t != "" {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		r.log.Info("apply_redactions", "no targets, copying input through")
		return copyFile(inPath, outPath)
	}

	start := time.Now()
	applied, pages, err := r.redactAll(inPath, outPath, live)
	if err != nil {
		return err
	}

	// Recompress and drop unreferenced objects left behind by the rewrite.
	if err := api.OptimizeFile(outPath, "", nil); err != nil {
		r.log.Warnf("optimize", "%s: %v", outPath, err)
	}

	if r.metrics != nil {
		r.metrics.TargetsRedacted.Add(int64(len(live)))
		r.metrics.MarksApplied.Add(int64(applied))
	}
	r.log.Infof("apply_redactions", "%d bars across %d pages for %d targets in %v",
		applied, pages, len(live), time.Since(start).Round(time.Millisecond))
	return nil
}

// redactAll rebuilds the document page by page, stamping a black bar over
// each located occurrence. Returns the number of bars applied and pages seen.
func (r *Redactor) redactAll(inPath, outPath string, targets []string) (applied, pages int, err error) {
	f, err := os.Open(inPath)
	if err != nil {
		return 0, 0, fmt.Errorf("open input: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	reader, err := model.NewPdfReader(f)
	if err != nil {
		return 0, 0, fmt.Errorf("parse input: %w", err)
	}

	encrypted, err := reader.IsEncrypted()
	if err != nil {
		return 0, 0, fmt.Errorf("parse input: %w", err)
	}
	if encrypted {
		ok, err := reader.Decrypt([]byte(""))
		if err != nil || !ok {
			return 0, 0, fmt.Errorf("input is password protected")
		}
	}

	pages, err = reader.GetNumPages()
	if err != nil {
		return 0, 0, fmt.Errorf("page count: %w", err)
	}

	c := creator.New()
	for i := 1; i <= pages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return 0, 0, fmt.Errorf("page %d: %w", i, err)
		}
		mbox, err := page.GetMediaBox()
		if err != nil {
			return 0, 0, fmt.Errorf("page %d media box: %w", i, err)
		}
		pageHeight := mbox.Ury - mbox.Lly

		var rects []Rect
		for _, t := range targets {
			found, err := r.searcher.FindAll(page, t)
			if err != nil {
				// Image-only pages extract empty text without error, so
				// this is a real parse failure. Serving the page
				// unredacted would leak the targets it still contains.
				return 0, 0, fmt.Errorf("page %d search: %w", i, err)
			}
			rects = append(rects, found...)
		}
		if len(rects) > 0 {
			r.log.Debugf("search_text", "page %d: %d bars", i, len(rects))
		}

		if err := c.AddPage(page); err != nil {
			return 0, 0, fmt.Errorf("page %d: %w", i, err)
		}
		for _, rect := range rects {
			// Creator coordinates run top-down from the page's top-left.
			bar := c.NewRectangle(
				rect.Llx-mbox.Llx,
				pageHeight-(rect.Ury-mbox.Lly),
				rect.Urx-rect.Llx,
				rect.Ury-rect.Lly,
			)
			bar.SetFillColor(creator.ColorBlack)
			bar.SetBorderWidth(0)
			if err := c.Draw(bar); err != nil {
				return 0, 0, fmt.Errorf("page %d draw: %w", i, err)
			}
			applied++
		}
	}

	if err := c.WriteToFile(outPath); err != nil {
		return 0, 0, fmt.Errorf("write output: %w", err)
	}
	return applied, pages, nil
}

// copyFile copies src to dst byte for byte.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close() //nolint:errcheck // read-only handle

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck // already failing
		return fmt.Errorf("copy: %w", err)
	}
	return out.Close()
}

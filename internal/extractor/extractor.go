// Package extractor pulls plain text out of PDF documents.
//
// The extracted text is the flat, position-free representation the detectors
// run on: all pages in order, each page's text followed by a newline. Page
// and glyph geometry are deliberately dropped here; the redactor re-locates
// matches on the rendered page later.
package extractor

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/cheezycoding/Anonymizer/internal/logger"
	"github.com/cheezycoding/Anonymizer/internal/metrics"
)

// Extractor reads the text content of PDF files.
type Extractor struct {
	metrics *metrics.Metrics // nil = no metrics
	log     *logger.Logger
}

// New returns an Extractor logging at the given level. m may be nil.
func New(m *metrics.Metrics, logLevel string) *Extractor {
	return &Extractor{metrics: m, log: logger.New("EXTRACT", logLevel)}
}

// Extract opens the PDF at path and returns the concatenated text of all
// pages in page order, each page followed by a newline.
//
// The second return value is false when no text is available: the file does
// not exist, the document cannot be parsed, or no page yields any text
// (image-only or empty document). A partial string is never returned with
// false.
func (e *Extractor) Extract(path string) (string, bool) {
	if _, err := os.Stat(path); err != nil {
		e.log.Errorf("open_pdf", "file not found at %s", path)
		return "", false
	}

	text, err := e.readAllPages(path)
	if err != nil {
		e.log.Errorf("read_pdf", "%s: %v", path, err)
		return "", false
	}
	if text == "" {
		e.log.Warnf("read_pdf", "%s: no extractable text on any page", path)
		return "", false
	}
	return text, true
}

// readAllPages walks every page and concatenates the extracted text.
// The pdf library panics on some malformed documents; the recover converts
// that into an ordinary parse error.
func (e *Extractor) readAllPages(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	total := r.NumPage()
	e.log.Debugf("open_pdf", "%s: %d pages", path, total)

	var out []byte
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			e.log.Debugf("page_text", "page %d: missing page object", i)
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// An unreadable page contributes nothing but does not abort.
			e.log.Warnf("page_text", "page %d: %v", i, err)
			continue
		}
		if pageText == "" {
			e.log.Debugf("page_text", "page %d: no extractable text (image or empty)", i)
			continue
		}

		e.log.Debugf("page_text", "page %d: %d chars", i, len(pageText))
		out = append(out, pageText...)
		out = append(out, '\n')
		if e.metrics != nil {
			e.metrics.PagesExtracted.Add(1)
		}
	}

	return string(out), nil
}

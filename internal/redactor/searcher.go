package redactor

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// lineTolerance is the maximum vertical distance, in points, between glyph
// boxes still considered part of the same text line.
const lineTolerance = 2.0

// Rect is an axis-aligned rectangle in PDF user space (origin bottom-left).
type Rect struct {
	Llx, Lly, Urx, Ury float64
}

// Searcher locates every occurrence of a literal string on a rendered page
// and returns one rectangle per occupied text line. An occurrence spanning a
// line break yields multiple rectangles. No occurrences is not an error.
type Searcher interface {
	FindAll(page *model.PdfPage, target string) ([]Rect, error)
}

// markSearcher finds strings through glyph-level text marks: the page text is
// extracted once, each literal occurrence is located by offset, and the marks
// covering that offset range supply the glyph bounding boxes.
type markSearcher struct{}

// NewSearcher returns the text-mark based Searcher.
func NewSearcher() Searcher { return markSearcher{} }

func (markSearcher) FindAll(page *model.PdfPage, target string) ([]Rect, error) {
	if target == "" {
		return nil, nil
	}

	ex, err := extractor.New(page)
	if err != nil {
		return nil, fmt.Errorf("page extractor: %w", err)
	}
	pageText, _, _, err := ex.ExtractPageText()
	if err != nil {
		return nil, fmt.Errorf("page text: %w", err)
	}

	text := pageText.Text()
	marks := pageText.Marks()

	var rects []Rect
	for from := 0; from < len(text); {
		idx := strings.Index(text[from:], target)
		if idx < 0 {
			break
		}
		start := from + idx
		end := start + len(target)

		span, err := marks.RangeOffset(start, end)
		if err != nil {
			// The offset range has no resolvable marks (synthetic
			// whitespace only). Skip this occurrence.
			from = end
			continue
		}
		rects = append(rects, lineRects(span.Elements())...)
		from = end
	}
	return rects, nil
}

// lineRects merges the bounding boxes of a run of glyph marks into one
// rectangle per text line. Marks whose vertical positions differ by more than
// lineTolerance are treated as separate lines.
func lineRects(marks []extractor.TextMark) []Rect {
	var boxes []model.PdfRectangle
	for _, m := range marks {
		if m.Meta {
			continue // inserted spaces and line breaks carry no geometry
		}
		if m.BBox.Width() == 0 && m.BBox.Height() == 0 {
			continue
		}
		boxes = append(boxes, m.BBox)
	}
	if len(boxes) == 0 {
		return nil
	}

	// Top-to-bottom, then left-to-right within a line.
	sort.Slice(boxes, func(i, j int) bool {
		if math.Abs(boxes[i].Lly-boxes[j].Lly) > lineTolerance {
			return boxes[i].Lly > boxes[j].Lly
		}
		return boxes[i].Llx < boxes[j].Llx
	})

	var out []Rect
	for _, b := range boxes {
		if n := len(out); n > 0 && math.Abs(out[n-1].Lly-b.Lly) <= lineTolerance {
			cur := &out[n-1]
			cur.Llx = math.Min(cur.Llx, b.Llx)
			cur.Lly = math.Min(cur.Lly, b.Lly)
			cur.Urx = math.Max(cur.Urx, b.Urx)
			cur.Ury = math.Max(cur.Ury, b.Ury)
			continue
		}
		out = append(out, Rect{Llx: b.Llx, Lly: b.Lly, Urx: b.Urx, Ury: b.Ury})
	}
	return out
}

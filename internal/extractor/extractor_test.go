package extractor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtract_MissingFile(t *testing.T) {
	e := New(nil, "error")
	text, ok := e.Extract(filepath.Join(t.TempDir(), "nope.pdf"))
	if ok {
		t.Error("expected ok=false for missing file")
	}
	if text != "" {
		t.Errorf("expected empty text for missing file, got %q", text)
	}
}

func TestExtract_NotAPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "junk.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o600); err != nil {
		t.Fatalf("write junk file: %v", err)
	}

	e := New(nil, "error")
	text, ok := e.Extract(path)
	if ok {
		t.Error("expected ok=false for non-PDF content")
	}
	if text != "" {
		t.Errorf("expected empty text, got %q", text)
	}
}

func TestExtract_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.pdf")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	e := New(nil, "error")
	_, ok := e.Extract(path)
	if ok {
		t.Error("expected ok=false for empty file")
	}
}

func TestExtract_TruncatedHeader(t *testing.T) {
	// A bare PDF header with no body or xref must fail cleanly (the
	// underlying library panics on some malformed inputs; Extract converts
	// that into an absent result, never a crash).
	dir := t.TempDir()
	path := filepath.Join(dir, "trunc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0o600); err != nil {
		t.Fatalf("write truncated file: %v", err)
	}

	e := New(nil, "error")
	text, ok := e.Extract(path)
	if ok {
		t.Error("expected ok=false for truncated PDF")
	}
	if text != "" {
		t.Errorf("expected empty text, got %q", text)
	}
}

package detector

import (
	"path/filepath"
	"testing"
)

// TestMemoryCacheBasicOperations verifies the in-memory cache satisfies the
// PersistentCache contract.
func TestMemoryCacheBasicOperations(t *testing.T) {
	c := newMemoryCache()
	defer c.Close() //nolint:errcheck // test cleanup

	// Miss on empty cache.
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}

	// Set and hit.
	c.Set("hash-1", `[{"text":"Singapore","label":"GPE"}]`)
	v, ok := c.Get("hash-1")
	if !ok {
		t.Error("expected hit after Set")
	}
	if v != `[{"text":"Singapore","label":"GPE"}]` {
		t.Errorf("unexpected value: %q", v)
	}

	// Overwrite.
	c.Set("hash-1", `[]`)
	v, ok = c.Get("hash-1")
	if !ok || v != `[]` {
		t.Errorf("expected overwritten value, got %q ok=%v", v, ok)
	}

	// Delete.
	c.Delete("hash-1")
	if _, ok := c.Get("hash-1"); ok {
		t.Error("expected miss after Delete")
	}
}

// TestBboltCacheBasicOperations verifies the bbolt cache satisfies the
// PersistentCache contract.
func TestBboltCacheBasicOperations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.db")

	c, err := newBboltCache(path)
	if err != nil {
		t.Fatalf("newBboltCache: %v", err)
	}
	defer c.Close() //nolint:errcheck // test cleanup

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty db")
	}

	c.Set("hash-2", `[{"text":"John Smith","label":"PERSON"}]`)
	v, ok := c.Get("hash-2")
	if !ok {
		t.Error("expected hit after Set")
	}
	if v != `[{"text":"John Smith","label":"PERSON"}]` {
		t.Errorf("unexpected value: %q", v)
	}

	c.Delete("hash-2")
	if _, ok := c.Get("hash-2"); ok {
		t.Error("expected miss after Delete")
	}
}

// TestBboltCacheEmptyValueIsAHit verifies a stored empty string is not
// reported as a miss.
func TestBboltCacheEmptyValueIsAHit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.db")

	c, err := newBboltCache(path)
	if err != nil {
		t.Fatalf("newBboltCache: %v", err)
	}
	defer c.Close() //nolint:errcheck // test cleanup

	c.Set("hash-empty", "")
	v, ok := c.Get("hash-empty")
	if !ok {
		t.Error("stored empty value should be a hit")
	}
	if v != "" {
		t.Errorf("unexpected value: %q", v)
	}
}

// TestBboltCachePersistsAcrossReopen verifies entries survive close/reopen.
func TestBboltCachePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.db")

	c, err := newBboltCache(path)
	if err != nil {
		t.Fatalf("newBboltCache: %v", err)
	}
	c.Set("hash-3", `[]`)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	c2, err := newBboltCache(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close() //nolint:errcheck // test cleanup

	if _, ok := c2.Get("hash-3"); !ok {
		t.Error("entry did not survive reopen")
	}
}

func TestNewDetectionCache_MemoryWhenNoPath(t *testing.T) {
	c, err := NewDetectionCache("", 16)
	if err != nil {
		t.Fatalf("NewDetectionCache: %v", err)
	}
	defer c.Close() //nolint:errcheck // test cleanup

	c.Set("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Errorf("got %q ok=%v", v, ok)
	}
}

func TestNewDetectionCache_BboltWhenPathGiven(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.db")
	c, err := NewDetectionCache(path, 16)
	if err != nil {
		t.Fatalf("NewDetectionCache: %v", err)
	}
	defer c.Close() //nolint:errcheck // test cleanup

	c.Set("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Errorf("got %q ok=%v", v, ok)
	}
}

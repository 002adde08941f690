package detector

import (
	"fmt"
	"testing"
)

func newTestS3FIFO(capacity int) (*s3fifoCache, PersistentCache) {
	backing := newMemoryCache()
	c := newS3FIFOCache(backing, capacity)
	return c.(*s3fifoCache), backing
}

func TestS3FIFO_SetGet(t *testing.T) {
	c, _ := newTestS3FIFO(8)
	defer c.Close() //nolint:errcheck // test cleanup

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v; want 1, true", v, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) should miss")
	}
}

func TestS3FIFO_UpdateInPlace(t *testing.T) {
	c, _ := newTestS3FIFO(8)
	defer c.Close() //nolint:errcheck // test cleanup

	c.Set("a", "1")
	c.Set("a", "2")
	if v, _ := c.Get("a"); v != "2" {
		t.Errorf("Get(a) = %q, want 2", v)
	}
	if c.sQueue.Len()+c.mQueue.Len() != 1 {
		t.Errorf("update must not duplicate queue entries: S=%d M=%d", c.sQueue.Len(), c.mQueue.Len())
	}
}

func TestS3FIFO_CapacityBounded(t *testing.T) {
	c, _ := newTestS3FIFO(10)
	defer c.Close() //nolint:errcheck // test cleanup

	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("key-%d", i), "v")
	}
	if total := c.sQueue.Len() + c.mQueue.Len(); total > 10 {
		t.Errorf("resident entries %d exceed capacity 10", total)
	}
	if len(c.entries) != c.sQueue.Len()+c.mQueue.Len() {
		t.Errorf("entries map (%d) out of sync with queues (%d)",
			len(c.entries), c.sQueue.Len()+c.mQueue.Len())
	}
}

func TestS3FIFO_AccessedEntrySurvivesScan(t *testing.T) {
	c, _ := newTestS3FIFO(10)
	defer c.Close() //nolint:errcheck // test cleanup

	// Insert and access a hot key, then scan many cold keys through.
	c.Set("hot", "v")
	for i := 0; i < 3; i++ {
		c.Get("hot")
	}
	for i := 0; i < 30; i++ {
		c.Set(fmt.Sprintf("cold-%d", i), "v")
	}

	// The hot key should have been promoted to M and survived the scan
	// in memory or, at worst, still be readable via the backing store.
	if _, ok := c.Get("hot"); !ok {
		t.Error("frequently accessed key evicted by one-shot scan")
	}
}

func TestS3FIFO_EvictionDeletesFromBacking(t *testing.T) {
	backing := newMemoryCache()
	c := newS3FIFOCache(backing, 4).(*s3fifoCache)
	defer c.Close() //nolint:errcheck // test cleanup

	for i := 0; i < 40; i++ {
		c.Set(fmt.Sprintf("key-%d", i), "v")
	}

	// Backing deletions are async; the bound is eventual. Force the point
	// by checking the resident set instead: memory can never exceed capacity.
	if total := c.sQueue.Len() + c.mQueue.Len(); total > 4 {
		t.Errorf("resident entries %d exceed capacity 4", total)
	}
}

func TestS3FIFO_GhostPromotesReinsertedKey(t *testing.T) {
	c, _ := newTestS3FIFO(10)
	defer c.Close() //nolint:errcheck // test cleanup

	// Insert, let it age out of S unaccessed (lands in ghost), reinsert.
	c.Set("ghosted", "v")
	for i := 0; i < 15; i++ {
		c.Set(fmt.Sprintf("filler-%d", i), "v")
	}
	if c.ghostContainsForTest("ghosted") {
		c.Set("ghosted", "v2")
		e, ok := c.entries["ghosted"]
		if !ok {
			t.Fatal("reinserted key not resident")
		}
		if !e.inM {
			t.Error("key found in ghost should be inserted directly into M")
		}
	}
}

// ghostContainsForTest exposes ghost membership under the lock.
func (c *s3fifoCache) ghostContainsForTest(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ghostContains(key)
}

func TestS3FIFO_DeleteRemovesEverywhere(t *testing.T) {
	backing := newMemoryCache()
	c := newS3FIFOCache(backing, 8)
	defer c.Close() //nolint:errcheck // test cleanup

	c.Set("a", "1")
	c.Delete("a")

	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) should miss after Delete")
	}
	if _, ok := backing.Get("a"); ok {
		t.Error("backing store should not retain deleted key")
	}
}

func TestS3FIFO_ColdReadRewarmsFromBacking(t *testing.T) {
	backing := newMemoryCache()
	backing.Set("warm-me", "v")

	c := newS3FIFOCache(backing, 8).(*s3fifoCache)
	defer c.Close() //nolint:errcheck // test cleanup

	if v, ok := c.Get("warm-me"); !ok || v != "v" {
		t.Fatalf("Get(warm-me) = %q, %v; want v, true", v, ok)
	}
	c.mu.Lock()
	_, resident := c.entries["warm-me"]
	c.mu.Unlock()
	if !resident {
		t.Error("backing-store hit should re-warm the in-memory layer")
	}
}

func TestS3FIFO_TinyCapacityClamped(t *testing.T) {
	c, _ := newTestS3FIFO(0)
	defer c.Close() //nolint:errcheck // test cleanup

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")
	if total := c.sQueue.Len() + c.mQueue.Len(); total > 2 {
		t.Errorf("clamped capacity exceeded: %d", total)
	}
}

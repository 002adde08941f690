// Package detector — cache.go
//
// PersistentCache is the interface for the cross-request model-detection
// cache. It stores content-hash → JSON-encoded detections, so re-uploading
// an identical document (or re-running the script on the same file) skips
// the model pass entirely. Detection is deterministic per text, so the cache
// changes latency, never results.
//
// Two implementations are provided:
//   - memoryCache — in-memory only, used in tests and when no path is configured.
//   - bboltCache  — embedded key-value store (bbolt), survives restarts.
//
// NewDetectionCache wraps either one with an S3-FIFO eviction layer so both
// the hot in-memory footprint and the on-disk store stay bounded.
package detector

import (
	"fmt"
	"log"
	"sync"

	bolt "go.etcd.io/bbolt"
)

// PersistentCache is the detection cache interface.
// All implementations must be safe for concurrent use.
type PersistentCache interface {
	// Get returns the cached detections JSON for the given content hash.
	Get(key string) (value string, ok bool)

	// Set stores key → value. Overwrites any existing entry silently.
	Set(key, value string)

	// Delete removes key. A no-op if the key is absent.
	Delete(key string)

	// Close releases any resources held by the cache (e.g. file handles).
	Close() error
}

// NewDetectionCache builds the detection cache: bbolt-backed when path is
// non-empty, otherwise memory-only, and in both cases bounded by an S3-FIFO
// eviction layer of the given capacity.
func NewDetectionCache(path string, capacity int) (PersistentCache, error) {
	var backing PersistentCache
	if path == "" {
		backing = newMemoryCache()
	} else {
		b, err := newBboltCache(path)
		if err != nil {
			return nil, err
		}
		backing = b
	}
	return newS3FIFOCache(backing, capacity), nil
}

// --- memoryCache ---------------------------------------------------------

// memoryCache is a thread-safe in-memory PersistentCache.
type memoryCache struct {
	mu    sync.RWMutex
	store map[string]string
}

func newMemoryCache() PersistentCache {
	return &memoryCache{store: make(map[string]string)}
}

func (c *memoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	v, ok := c.store[key]
	c.mu.RUnlock()
	return v, ok
}

func (c *memoryCache) Set(key, value string) {
	c.mu.Lock()
	c.store[key] = value
	c.mu.Unlock()
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.store, key)
	c.mu.Unlock()
}

func (c *memoryCache) Close() error { return nil }

// --- bboltCache ----------------------------------------------------------

const bboltBucket = "ner_detections"

// bboltCache is a PersistentCache backed by an embedded bbolt database.
// Entries survive process restarts. The database file is created at the
// given path if it does not exist.
type bboltCache struct {
	db *bolt.DB
}

// newBboltCache opens (or creates) the bbolt database at path and ensures
// the bucket exists. Returns an error if the file cannot be opened.
func newBboltCache(path string) (PersistentCache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bbolt cache %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bboltBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create bbolt bucket: %w", err)
	}

	log.Printf("[DETECT] persistent detection cache opened at %s", path)
	return &bboltCache{db: db}, nil
}

func (c *bboltCache) Get(key string) (string, bool) {
	var value string
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return nil
		}
		// nil means absent; an empty stored value is still a hit.
		if v := b.Get([]byte(key)); v != nil {
			value = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		log.Printf("[DETECT] bbolt Get error: %v", err)
		return "", false
	}
	return value, found
}

func (c *bboltCache) Set(key, value string) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", bboltBucket)
		}
		return b.Put([]byte(key), []byte(value))
	}); err != nil {
		log.Printf("[DETECT] bbolt Set error: %v", err)
	}
}

func (c *bboltCache) Delete(key string) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	}); err != nil {
		log.Printf("[DETECT] bbolt Delete error: %v", err)
	}
}

func (c *bboltCache) Close() error {
	return c.db.Close()
}

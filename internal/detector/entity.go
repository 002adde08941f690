package detector

import (
	"bytes"
	"context"
	"crypto/md5" // #nosec G501 -- content hash for cache keys, not cryptographic security
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cheezycoding/Anonymizer/internal/logger"
	"github.com/cheezycoding/Anonymizer/internal/metrics"
)

// EntityDetector runs named-entity recognition over document text using a
// pretrained model served by Ollama. One detector instance is created at
// process start and shared across requests; it holds no per-request state.
type EntityDetector struct {
	ollamaURL string
	tagsURL   string
	model     string
	timeout   time.Duration // 0 = no timeout

	cache   PersistentCache  // nil = no caching
	metrics *metrics.Metrics // nil = no metrics
	log     *logger.Logger
}

// NewEntityDetector creates an EntityDetector against the given Ollama
// endpoint and model. timeoutSecs bounds one inference pass; 0 disables the
// bound. cache and m may be nil.
func NewEntityDetector(endpoint, model string, timeoutSecs int, cache PersistentCache, m *metrics.Metrics, logLevel string) *EntityDetector {
	return &EntityDetector{
		ollamaURL: strings.TrimRight(endpoint, "/") + "/api/generate",
		tagsURL:   strings.TrimRight(endpoint, "/") + "/api/tags",
		model:     model,
		timeout:   time.Duration(timeoutSecs) * time.Second,
		cache:     cache,
		metrics:   m,
		log:       logger.New("DETECT", logLevel),
	}
}

// Ready probes the Ollama endpoint and verifies the configured model is
// available. Callers should refuse to serve requests when this fails:
// with no model, every document would silently anonymize to "no PII found".
func (d *EntityDetector) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.tagsURL, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable at %s: %w", d.tagsURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on HTTP response body

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama probe: unexpected status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("ollama probe: parse response: %w", err)
	}

	for _, m := range tags.Models {
		// "qwen2.5:3b" matches both "qwen2.5:3b" and a bare "qwen2.5" config value.
		if m.Name == d.model || strings.HasPrefix(m.Name, d.model+":") {
			return nil
		}
	}
	return fmt.Errorf("model %q not available on %s (pull it first)", d.model, d.tagsURL)
}

// DetectEntities runs one model pass over the full text and returns the
// unique literal strings whose category is in the PII allow-list, sorted.
// Empty input yields an empty result without calling the model. Long
// documents are processed in a single pass; no chunking is attempted.
func (d *EntityDetector) DetectEntities(ctx context.Context, text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("%x", md5.Sum([]byte(text))) // #nosec G401 -- cache key, not crypto

	if d.cache != nil {
		if raw, ok := d.cache.Get(cacheKey); ok {
			var cached []Entity
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				if d.metrics != nil {
					d.metrics.DetectionCacheHits.Add(1)
				}
				d.log.Debugf("cache_hit", "key %s: %d cached detections", cacheKey[:8], len(cached))
				return d.filter(cached), nil
			}
			// Unparseable entry: treat as miss and overwrite below.
			d.log.Warnf("cache_hit", "key %s: corrupt entry, re-querying", cacheKey[:8])
		}
		if d.metrics != nil {
			d.metrics.DetectionCacheMisses.Add(1)
		}
	}

	entities, err := d.queryModel(ctx, text)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if raw, err := json.Marshal(entities); err == nil {
			d.cache.Set(cacheKey, string(raw))
		}
	}

	return d.filter(entities), nil
}

// filter applies the category allow-list and deduplicates by exact string
// equality. The per-entity category is logged here and then discarded.
func (d *EntityDetector) filter(entities []Entity) []string {
	seen := make(map[string]bool, len(entities))
	out := make([]string, 0, len(entities))
	for _, ent := range entities {
		label := strings.ToUpper(strings.TrimSpace(ent.Label))
		if !piiCategories[label] {
			continue
		}
		if ent.Text == "" || seen[ent.Text] {
			continue
		}
		seen[ent.Text] = true
		out = append(out, ent.Text)
		d.log.Debugf("entity", "%q (%s)", ent.Text, label)
	}
	sort.Strings(out)
	return out
}

// --- Ollama integration ---

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

const nerPromptFormat = `You are a named-entity recognizer. Find all named entities in the text below.
Return ONLY a JSON array of detections. Each item must have:
- "text": the exact entity text as it appears
- "label": one of: PERSON, GPE, LOC, ORG, DATE

Text to analyze:
%s

Return ONLY the JSON array, no explanation. Example: [{"text":"John Smith","label":"PERSON"},{"text":"Singapore","label":"GPE"}]`

// queryModel sends one generate request to Ollama and parses the entity
// array out of the model's text response.
func (d *EntityDetector) queryModel(ctx context.Context, text string) ([]Entity, error) {
	reqBody, err := json.Marshal(ollamaRequest{
		Model:  d.model,
		Prompt: fmt.Sprintf(nerPromptFormat, text),
		Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.ollamaURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := http.DefaultClient.Do(req) // #nosec G704 -- URL from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on HTTP response body

	const maxOllamaResponse = 10 << 20 // 10 MB
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOllamaResponse))
	if err != nil {
		return nil, fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return nil, fmt.Errorf("ollama response parse error: %w", err)
	}

	// Extract the JSON array from the model's text response.
	raw := strings.TrimSpace(ollamaResp.Response)
	startIdx := strings.Index(raw, "[")
	endIdx := strings.LastIndex(raw, "]")
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return nil, fmt.Errorf("no JSON array in ollama response")
	}
	raw = raw[startIdx : endIdx+1]

	var entities []Entity
	if err := json.Unmarshal([]byte(raw), &entities); err != nil {
		return nil, fmt.Errorf("detection parse error: %w", err)
	}

	d.log.Infof("model_pass", "%d entities in %s", len(entities), time.Since(start).Round(time.Millisecond))
	return entities, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

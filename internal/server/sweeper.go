package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cheezycoding/Anonymizer/internal/logger"
	"github.com/cheezycoding/Anonymizer/internal/metrics"
)

// outputSuffix marks redacted outputs left behind for client streaming.
const outputSuffix = "_output_redacted.pdf"

// Sweeper removes redacted output files older than a TTL from the temp
// directory. Outputs are left on disk after a response so clients can retry
// an interrupted download; the sweeper is what eventually reclaims them.
type Sweeper struct {
	dir     string
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewSweeper returns a Sweeper for dir with the given TTL in seconds.
// A TTL of 0 or less disables sweeping; Run then returns immediately.
func NewSweeper(dir string, ttlSecs int, m *metrics.Metrics, logLevel string) *Sweeper {
	return &Sweeper{
		dir:     dir,
		ttl:     time.Duration(ttlSecs) * time.Second,
		metrics: m,
		log:     logger.New("SWEEP", logLevel),
	}
}

// Run sweeps periodically until ctx is cancelled. Intended to run in its own
// goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	if s.ttl <= 0 {
		s.log.Info("start", "output TTL disabled, outputs will accumulate")
		return
	}

	interval := s.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	s.log.Infof("start", "sweeping %s every %v (ttl %v)", s.dir, interval, s.ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(time.Now())
		}
	}
}

// sweepOnce removes expired outputs and returns how many were deleted.
func (s *Sweeper) sweepOnce(now time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warnf("sweep", "read %s: %v", s.dir, err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), outputSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed concurrently
		}
		if now.Sub(info.ModTime()) < s.ttl {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warnf("sweep", "remove %s: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		if s.metrics != nil {
			s.metrics.OutputsSwept.Add(int64(removed))
		}
		s.log.Infof("sweep", "removed %d expired outputs", removed)
	}
	return removed
}

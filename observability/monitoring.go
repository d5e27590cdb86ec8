package observability

import (
	"sync"
	"time"
)

// RuntimeStats is one sample of the relay process, served by the liveness probe.
type RuntimeStats struct {
	Connections int       `json:"connections"`
	Goroutines  int       `json:"goroutines"`
	AllocMemMb  uint64    `json:"alloc_mem_mb"`
	NumGC       uint32    `json:"num_gc"`
	CPUPercent  float64   `json:"cpu_percent"`
	RSSBytes    uint64    `json:"rss_bytes"`
	SampledAt   time.Time `json:"sampled_at"`
}

// StatsRecorder keeps the latest sample. Safe for concurrent use.
type StatsRecorder struct {
	mu     sync.RWMutex
	latest RuntimeStats
}

func NewStatsRecorder() *StatsRecorder {
	return &StatsRecorder{}
}

func (r *StatsRecorder) Record(stats RuntimeStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = stats
}

// Latest returns the last recorded sample, zero before the first one.
func (r *StatsRecorder) Latest() RuntimeStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/process"
)

// ProcessStatsWorker samples the relay's own process every interval and publishes
// the result to the prometheus gauges and the stats recorder.
type ProcessStatsWorker struct {
	log         *slog.Logger
	clock       clockwork.Clock
	interval    time.Duration
	metrics     *observability.Metrics
	recorder    *observability.StatsRecorder
	connections func() int
}

func NewProcessStatsWorker(
	log *slog.Logger,
	clock clockwork.Clock,
	interval time.Duration,
	metrics *observability.Metrics,
	recorder *observability.StatsRecorder,
	connections func() int,
) *ProcessStatsWorker {
	return &ProcessStatsWorker{
		log:         log,
		clock:       clock,
		interval:    interval,
		metrics:     metrics,
		recorder:    recorder,
		connections: connections,
	}
}

func (w *ProcessStatsWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	w.sample(p)
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping process stats")
			return nil
		case <-ticker.Chan():
			w.sample(p)
		}
	}
}

func (w *ProcessStatsWorker) sample(p *process.Process) {
	var mem goruntime.MemStats
	goruntime.ReadMemStats(&mem)
	stats := observability.RuntimeStats{
		Goroutines: goruntime.NumGoroutine(),
		AllocMemMb: mem.Alloc / 1024 / 1024,
		NumGC:      mem.NumGC,
		SampledAt:  w.clock.Now().UTC(),
	}
	if w.connections != nil {
		stats.Connections = w.connections()
	}

	// A failed probe keeps the previous gauge value
	if cpu, err := p.CPUPercent(); err != nil {
		w.log.Debug("Error while finding process cpu usage", "error", err)
	} else {
		stats.CPUPercent = cpu
		w.metrics.ProcessCPU.Set(cpu)
	}
	if info, err := p.MemoryInfo(); err != nil {
		w.log.Debug("Error while finding process memory usage", "error", err)
	} else {
		stats.RSSBytes = info.RSS
		w.metrics.ProcessRSS.Set(float64(info.RSS))
	}

	w.recorder.Record(stats)
}

package workers

import (
	"context"
	"duochat/contract"
	"duochat/observability"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// StatsReporter samples the server process and the registry at a fixed interval.
type StatsReporter struct {
	log      *slog.Logger
	registry contract.IRegistry
	metrics  *observability.Metrics
	interval time.Duration
}

const defaultStatsInterval = 30 * time.Second

func NewStatsReporter(log *slog.Logger, registry contract.IRegistry, metrics *observability.Metrics, interval time.Duration) *StatsReporter {
	if interval <= 0 {
		interval = defaultStatsInterval
	}
	return &StatsReporter{log: log, registry: registry, metrics: metrics, interval: interval}
}

func (w *StatsReporter) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Sample(p)
		}
	}
}

// Sample records one snapshot, a failing reading is logged and skipped.
func (w *StatsReporter) Sample(p *process.Process) {
	rss, cpu, err := selfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "error", err)
		return
	}
	goroutines := goruntime.NumGoroutine()
	online := len(w.registry.ListOnline())
	connections := len(w.registry.All())

	w.metrics.ProcessSampled(rss, cpu, goroutines)
	w.metrics.SetOnline(online)
	w.log.Debug("Server stats",
		"rss_bytes", rss,
		"cpu_percent", cpu,
		"goroutines", goroutines,
		"online", online,
		"connections", connections)
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}

package workers

import (
	"context"
	"duochat/observability"
	"duochat/runtime"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/require"
)

func TestStatsReporter_Sample_Records_Process_Metrics(t *testing.T) {
	req := require.New(t)
	metrics := observability.NewMetrics()
	reporter := NewStatsReporter(slog.Default(), runtime.NewRegistry(), metrics, time.Second)

	p, err := process.NewProcess(int32(os.Getpid()))
	req.NoError(err)
	reporter.Sample(p)

	families, err := metrics.Gatherer().Gather()
	req.NoError(err)
	values := map[string]float64{}
	for _, f := range families {
		if len(f.GetMetric()) == 1 && f.GetMetric()[0].GetGauge() != nil {
			values[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	req.Greater(values["duochat_resident_memory_bytes"], 0.0)
	req.Greater(values["duochat_goroutines"], 0.0)
}

func TestStatsReporter_Stops_With_Context(t *testing.T) {
	req := require.New(t)
	reporter := NewStatsReporter(slog.Default(), runtime.NewRegistry(), nil, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	req.NoError(reporter.Run(ctx))
}

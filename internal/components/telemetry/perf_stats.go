package telemetry

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
)

const report_perf_stats = "perf-stats.sample"

// InstrumentPerfStats samples process cpu and memory usage every interval until
// ctx is done, recording them as gauges on the global meter provider.
func InstrumentPerfStats(ctx context.Context, tel API, interval time.Duration) {
	meter := otel.Meter("sensorlog/perf_stats")
	cpuGauge, _ := meter.Float64Gauge("cpu_percent")
	rssGauge, _ := meter.Int64Gauge("rss_bytes")
	goroutineGauge, _ := meter.Int64Gauge("goroutine_count")

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		tel.ReportWarning(report_perf_stats, err)
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cpu, err := proc.CPUPercentWithContext(ctx)
				if err != nil {
					tel.ReportWarning(report_perf_stats, "cpu", err)
				} else {
					cpuGauge.Record(ctx, cpu)
				}

				mem, err := proc.MemoryInfoWithContext(ctx)
				if err != nil {
					tel.ReportWarning(report_perf_stats, "memory", err)
				} else {
					rssGauge.Record(ctx, int64(mem.RSS))
				}

				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))
			case <-ctx.Done():
				return
			}
		}
	}()
}

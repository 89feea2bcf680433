package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	SystemCPUUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "system_cpu_usage_percent",
			Help: "Host CPU usage percentage across all cores",
		},
	)

	SystemMemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "system_memory_usage_bytes",
			Help: "Host memory in bytes",
		},
		[]string{"type"},
	)

	GoHeapAlloc = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fhir_go_heap_alloc_bytes",
			Help: "Heap bytes allocated and still in use",
		},
	)
)

// StartSystemCollector samples host CPU and memory every interval until ctx
// is done. A non-positive interval disables sampling.
func StartSystemCollector(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		collectSystem(ctx, logger)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collectSystem(ctx, logger)
			}
		}
	}()
}

func collectSystem(ctx context.Context, logger zerolog.Logger) {
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		SystemCPUUsage.Set(pct[0])
	} else if err != nil {
		logger.Debug().Err(err).Msg("sample cpu")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		SystemMemoryUsage.WithLabelValues("total").Set(float64(vm.Total))
		SystemMemoryUsage.WithLabelValues("available").Set(float64(vm.Available))
		SystemMemoryUsage.WithLabelValues("used").Set(float64(vm.Used))
	} else {
		logger.Debug().Err(err).Msg("sample memory")
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	GoHeapAlloc.Set(float64(ms.HeapAlloc))
}

package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemMetrics records Go runtime statistics as OpenTelemetry instruments.
type SystemMetrics struct {
	meter metric.Meter

	goRoutines      metric.Int64Gauge
	memoryUsage     metric.Int64Gauge
	memoryAllocated metric.Int64Gauge
	memorySystem    metric.Int64Gauge
	gcPause         metric.Float64Histogram
	processUptime   metric.Float64Gauge
	cpuCount        metric.Int64Gauge
}

// NewSystemMetrics registers the runtime instruments on the meter.
func NewSystemMetrics(meter metric.Meter) (*SystemMetrics, error) {
	var err error
	gauge := func(name, desc, unit string) metric.Int64Gauge {
		if err != nil {
			return nil
		}
		opts := []metric.Int64GaugeOption{metric.WithDescription(desc)}
		if unit != "" {
			opts = append(opts, metric.WithUnit(unit))
		}
		var g metric.Int64Gauge
		g, err = meter.Int64Gauge(name, opts...)
		return g
	}

	sm := &SystemMetrics{
		meter:           meter,
		goRoutines:      gauge("system_goroutines", "Number of active goroutines", ""),
		memoryUsage:     gauge("system_memory_usage_bytes", "Heap memory in use in bytes", "By"),
		memoryAllocated: gauge("system_memory_allocated_bytes", "Cumulative bytes allocated by the Go runtime", "By"),
		memorySystem:    gauge("system_memory_system_bytes", "Memory obtained from the OS in bytes", "By"),
		cpuCount:        gauge("system_cpu_count", "Number of logical CPUs", ""),
	}
	if err != nil {
		return nil, err
	}

	sm.gcPause, err = meter.Float64Histogram(
		"system_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	sm.processUptime, err = meter.Float64Gauge(
		"system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// SystemStats holds a snapshot of runtime statistics. The JSON shape is
// served directly by the health endpoint.
type SystemStats struct {
	GoRoutines     int64     `json:"goroutines"`
	MemoryUsageMB  int64     `json:"memory_usage_mb"`
	MemoryAllocMB  int64     `json:"memory_alloc_mb"`
	MemorySystemMB int64     `json:"memory_system_mb"`
	GCCount        uint32    `json:"gc_count"`
	LastGCPauseMS  int64     `json:"last_gc_pause_ms"`
	CPUCount       int       `json:"cpu_count"`
	UptimeSeconds  float64   `json:"uptime_seconds"`
	Timestamp      time.Time `json:"timestamp"`
}

// Collect samples the runtime, records every instrument, and returns the
// snapshot it recorded.
func (sm *SystemMetrics) Collect(ctx context.Context, startTime time.Time) *SystemStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	lastPause := time.Duration(memStats.PauseNs[(memStats.NumGC+255)%256])

	stats := &SystemStats{
		GoRoutines:     int64(runtime.NumGoroutine()),
		MemoryUsageMB:  int64(memStats.Alloc) / 1024 / 1024,
		MemoryAllocMB:  int64(memStats.TotalAlloc) / 1024 / 1024,
		MemorySystemMB: int64(memStats.Sys) / 1024 / 1024,
		GCCount:        memStats.NumGC,
		LastGCPauseMS:  lastPause.Milliseconds(),
		CPUCount:       runtime.NumCPU(),
		UptimeSeconds:  time.Since(startTime).Seconds(),
		Timestamp:      time.Now().UTC(),
	}

	sm.goRoutines.Record(ctx, stats.GoRoutines)
	sm.memoryUsage.Record(ctx, int64(memStats.Alloc))
	sm.memoryAllocated.Record(ctx, int64(memStats.TotalAlloc))
	sm.memorySystem.Record(ctx, int64(memStats.Sys))
	sm.cpuCount.Record(ctx, int64(stats.CPUCount))
	sm.processUptime.Record(ctx, stats.UptimeSeconds)

	if lastPause > 0 {
		sm.gcPause.Record(ctx, lastPause.Seconds())
	}

	return stats
}

// SystemMetricsCollector samples a shared SystemMetrics instance on a fixed
// cadence so the gauges stay current between scrapes.
type SystemMetricsCollector struct {
	metrics   *SystemMetrics
	startTime time.Time
	interval  time.Duration
	stopCh    chan struct{}
}

// NewSystemMetricsCollector wraps metrics for periodic collection. The
// metrics instance may be shared with request-path consumers.
func NewSystemMetricsCollector(metrics *SystemMetrics, interval time.Duration) *SystemMetricsCollector {
	return &SystemMetricsCollector{
		metrics:   metrics,
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start samples immediately, then on every tick. It blocks until Stop is
// called or the context is cancelled, so run it in its own goroutine.
func (smc *SystemMetricsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(smc.interval)
	defer ticker.Stop()

	smc.metrics.Collect(ctx, smc.startTime)

	for {
		select {
		case <-ticker.C:
			smc.metrics.Collect(ctx, smc.startTime)
		case <-smc.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends periodic collection. Safe to call once.
func (smc *SystemMetricsCollector) Stop() {
	close(smc.stopCh)
}

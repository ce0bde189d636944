package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeMetrics samples Go runtime resource usage between pipeline steps.
// It is not safe for concurrent use.
type RuntimeMetrics struct {
	goroutines   metric.Int64Gauge
	heapInUse    metric.Int64Gauge
	heapObjects  metric.Int64Gauge
	gcPause      metric.Float64Histogram
	lastGCCount  uint32
	processStart time.Time
}

// RuntimeStats is one sample of runtime usage
type RuntimeStats struct {
	Goroutines  int
	HeapInUse   uint64
	HeapObjects uint64
	NumGC       uint32
	LastGCPause time.Duration
	Uptime      time.Duration
}

// NewRuntimeMetrics registers runtime gauges on meter
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	goroutines, err := meter.Int64Gauge("runtime_goroutines",
		metric.WithDescription("Number of active goroutines"))
	if err != nil {
		return nil, err
	}
	heapInUse, err := meter.Int64Gauge("runtime_heap_inuse_bytes",
		metric.WithDescription("Heap bytes in use"), metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	heapObjects, err := meter.Int64Gauge("runtime_heap_objects",
		metric.WithDescription("Number of allocated heap objects"))
	if err != nil {
		return nil, err
	}
	gcPause, err := meter.Float64Histogram("runtime_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"), metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &RuntimeMetrics{
		goroutines:   goroutines,
		heapInUse:    heapInUse,
		heapObjects:  heapObjects,
		gcPause:      gcPause,
		processStart: time.Now(),
	}, nil
}

// Collect reads the runtime statistics and records them. A GC pause is
// recorded only when a collection happened since the previous call.
func (rm *RuntimeMetrics) Collect(ctx context.Context) RuntimeStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := RuntimeStats{
		Goroutines:  runtime.NumGoroutine(),
		HeapInUse:   ms.HeapInuse,
		HeapObjects: ms.HeapObjects,
		NumGC:       ms.NumGC,
		LastGCPause: time.Duration(ms.PauseNs[(ms.NumGC+255)%256]),
		Uptime:      time.Since(rm.processStart),
	}

	rm.goroutines.Record(ctx, int64(stats.Goroutines))
	rm.heapInUse.Record(ctx, int64(stats.HeapInUse))
	rm.heapObjects.Record(ctx, int64(stats.HeapObjects))
	if stats.NumGC != rm.lastGCCount && stats.LastGCPause > 0 {
		rm.gcPause.Record(ctx, stats.LastGCPause.Seconds())
	}
	rm.lastGCCount = stats.NumGC

	return stats
}

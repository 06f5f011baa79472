package config

import (
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"time"
)

// TuneRuntime applies the process-wide GC and scheduler settings described
// by cfg. Adapted from the teacher's OptimizeGCForHFT: a HFT process wants
// GC to run far less often than the default 100% target, and wants to pin
// GOMAXPROCS explicitly rather than let it float with container quota
// detection. Call once, before starting any engine goroutines.
func TuneRuntime(cfg RuntimeConfig) {
	debug.SetGCPercent(cfg.GCPercent)
	if cfg.MemoryLimit > 0 {
		debug.SetMemoryLimit(cfg.MemoryLimit)
	}
	if cfg.LockOSThread {
		runtime.GOMAXPROCS(runtime.NumCPU())
	}
}

// RuntimeStats is a point-in-time snapshot of GC pause and heap metrics,
// read via runtime/metrics rather than the deprecated runtime.ReadMemStats
// paths the teacher's GetGCStats used.
type RuntimeStats struct {
	NumGC        uint64
	HeapAllocBytes uint64
	GCPauseP50   time.Duration
}

// ReadRuntimeStats samples the current GC/heap metrics. Intended to feed the
// monitoring package's periodic gauge updates.
func ReadRuntimeStats() RuntimeStats {
	samples := []metrics.Sample{
		{Name: "/gc/heap/allocs:bytes"},
		{Name: "/gc/cycles/total:gc-cycles"},
		{Name: "/gc/pauses:seconds"},
	}
	metrics.Read(samples)

	var stats RuntimeStats
	if samples[0].Value.Kind() == metrics.KindUint64 {
		stats.HeapAllocBytes = samples[0].Value.Uint64()
	}
	if samples[1].Value.Kind() == metrics.KindUint64 {
		stats.NumGC = samples[1].Value.Uint64()
	}
	if samples[2].Value.Kind() == metrics.KindFloat64Histogram {
		h := samples[2].Value.Float64Histogram()
		stats.GCPauseP50 = time.Duration(medianFromHistogram(h) * float64(time.Second))
	}
	return stats
}

func medianFromHistogram(h *metrics.Float64Histogram) float64 {
	var total uint64
	for _, c := range h.Counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	target := total / 2
	var cum uint64
	for i, c := range h.Counts {
		cum += c
		if cum >= target {
			return (h.Buckets[i] + h.Buckets[i+1]) / 2
		}
	}
	return 0
}

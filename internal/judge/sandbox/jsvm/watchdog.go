package jsvm

import (
	"runtime"
	"runtime/metrics"
	"sync/atomic"
	"time"
)

const (
	defaultWatchInterval = 5 * time.Millisecond
	heapObjectsMetric    = "/memory/classes/heap/objects:bytes"
)

// watchdog samples the helper's heap and fires once when live objects exceed
// the limit. The helper hosts a single isolate, so the whole heap is charged to it.
type watchdog struct {
	limit   int64
	peak    atomic.Int64
	fired   atomic.Bool
	quit    chan struct{}
	done    chan struct{}
	onLimit func()
}

func startWatchdog(limit int64, interval time.Duration, onLimit func()) *watchdog {
	w := &watchdog{
		limit:   limit,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		onLimit: onLimit,
	}
	go w.loop(interval)
	return w
}

func (w *watchdog) loop(interval time.Duration) {
	defer close(w.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	samples := []metrics.Sample{{Name: heapObjectsMetric}}
	for {
		select {
		case <-w.quit:
			return
		case <-ticker.C:
		}
		used := readHeap(samples)
		w.observe(used)
		if used <= w.limit {
			continue
		}
		// Unswept garbage is not usage; only trust the number after a full cycle.
		runtime.GC()
		used = readHeap(samples)
		w.observe(used)
		if used > w.limit && w.fired.CompareAndSwap(false, true) {
			w.onLimit()
			return
		}
	}
}

func (w *watchdog) observe(used int64) {
	for {
		peak := w.peak.Load()
		if used <= peak || w.peak.CompareAndSwap(peak, used) {
			return
		}
	}
}

// stop ends sampling and returns the peak heap observed.
func (w *watchdog) stop() int64 {
	close(w.quit)
	<-w.done
	return w.peak.Load()
}

func readHeap(samples []metrics.Sample) int64 {
	metrics.Read(samples)
	if samples[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return int64(samples[0].Value.Uint64())
}

// Package observer defines metrics hooks for sandbox execution.
package observer

import "context"

// MetricsRecorder records sandbox metrics.
type MetricsRecorder interface {
	ObserveRun(ctx context.Context, fault string, wallMs int64, peakHeapBytes int64)
	ObserveVerdict(ctx context.Context, verdict string)
	ObserveSubmission(ctx context.Context, passed bool, cases int, durationMs int64)
	ObserveInfraError(ctx context.Context, stage string)
	SetLiveIsolates(live int64)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveRun(context.Context, string, int64, int64) {}
func (Nop) ObserveVerdict(context.Context, string) {}
func (Nop) ObserveSubmission(context.Context, bool, int, int64) {}
func (Nop) ObserveInfraError(context.Context, string) {}
func (Nop) SetLiveIsolates(int64) {}

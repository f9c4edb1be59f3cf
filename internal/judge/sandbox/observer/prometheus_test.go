package observer_test

import (
	"context"
	"testing"

	"jsjudge/internal/judge/sandbox/observer"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := observer.NewPrometheus(reg)
	ctx := context.Background()

	rec.ObserveRun(ctx, "", 12, 4<<20)
	rec.ObserveRun(ctx, "Timeout", 3000, 0)
	rec.ObserveVerdict(ctx, "AC")
	rec.ObserveSubmission(ctx, true, 2, 40)
	rec.ObserveInfraError(ctx, "acquire")
	rec.SetLiveIsolates(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 9 {
		t.Fatalf("families = %d, want 9", len(families))
	}
	for _, mf := range families {
		if mf.GetName() == "jsjudge_runs_total" && len(mf.GetMetric()) != 2 {
			t.Fatalf("runs_total series = %d, want 2", len(mf.GetMetric()))
		}
	}
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var rec observer.MetricsRecorder = observer.Nop{}
	rec.ObserveRun(context.Background(), "", 0, 0)
	rec.SetLiveIsolates(0)
}

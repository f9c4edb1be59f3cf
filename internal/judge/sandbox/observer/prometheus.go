package observer

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jsjudge"

// Prometheus records sandbox metrics into a prometheus registry.
type Prometheus struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	peakHeap       prometheus.Histogram
	verdictsTotal  *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	submissionTime prometheus.Histogram
	casesPerSub    prometheus.Histogram
	infraErrors    *prometheus.CounterVec
	liveIsolates   prometheus.Gauge
}

// NewPrometheus registers the sandbox collectors on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of isolate runs by fault kind",
		}, []string{"fault"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_ms",
			Help:      "Wall-clock duration of one isolate run in milliseconds",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		peakHeap: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_peak_heap_bytes",
			Help:      "Peak heap observed during one isolate run",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 2, 10),
		}),
		verdictsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_case_verdicts_total",
			Help:      "Total number of evaluated test cases by verdict",
		}, []string{"verdict"}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of judged submissions",
		}, []string{"passed"}),
		submissionTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_ms",
			Help:      "End-to-end submission duration in milliseconds",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}),
		casesPerSub: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_test_cases",
			Help:      "Number of test cases per submission",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		infraErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "infrastructure_errors_total",
			Help:      "Total number of infrastructure failures by stage",
		}, []string{"stage"}),
		liveIsolates: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_isolates",
			Help:      "Number of isolates currently alive",
		}),
	}
}

func (p *Prometheus) ObserveRun(ctx context.Context, fault string, wallMs int64, peakHeapBytes int64) {
	if fault == "" {
		fault = "none"
	}
	p.runsTotal.WithLabelValues(fault).Inc()
	p.runDuration.Observe(float64(wallMs))
	if peakHeapBytes > 0 {
		p.peakHeap.Observe(float64(peakHeapBytes))
	}
}

func (p *Prometheus) ObserveVerdict(ctx context.Context, verdict string) {
	p.verdictsTotal.WithLabelValues(verdict).Inc()
}

func (p *Prometheus) ObserveSubmission(ctx context.Context, passed bool, cases int, durationMs int64) {
	p.submissions.WithLabelValues(strconv.FormatBool(passed)).Inc()
	p.submissionTime.Observe(float64(durationMs))
	p.casesPerSub.Observe(float64(cases))
}

func (p *Prometheus) ObserveInfraError(ctx context.Context, stage string) {
	p.infraErrors.WithLabelValues(stage).Inc()
}

func (p *Prometheus) SetLiveIsolates(live int64) {
	p.liveIsolates.Set(float64(live))
}

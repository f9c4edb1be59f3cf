package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"jsjudge/internal/judge/sandbox/evaluator"
	"jsjudge/internal/judge/sandbox/harness"
	"jsjudge/internal/judge/sandbox/observer"
	"jsjudge/internal/judge/sandbox/result"
	"jsjudge/internal/judge/sandbox/spec"
	appErr "jsjudge/pkg/errors"
	"jsjudge/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxConcurrentEvaluations = 4
	skippedMessage                  = "skipped: earlier test case failed"
)

// Worker evaluates every test case of a submission with bounded concurrency.
type Worker struct {
	evaluator      evaluator.Evaluator
	cfg            Config
	metrics        observer.MetricsRecorder
	statusReporter StatusReporter
}

// NewWorker creates a worker with defaults applied to cfg.
func NewWorker(ev evaluator.Evaluator, cfg Config, metrics observer.MetricsRecorder) *Worker {
	if cfg.MaxConcurrentEvaluations <= 0 {
		cfg.MaxConcurrentEvaluations = defaultMaxConcurrentEvaluations
	}
	if cfg.MaxSourceLength <= 0 {
		cfg.MaxSourceLength = harness.DefaultMaxSourceLength
	}
	if cfg.TimeLimitMillis <= 0 {
		cfg.TimeLimitMillis = spec.DefaultTimeLimitMs
	}
	if cfg.MemoryLimitBytes <= 0 {
		cfg.MemoryLimitBytes = spec.DefaultMemoryLimitBytes
	}
	if metrics == nil {
		metrics = observer.Nop{}
	}
	return &Worker{evaluator: ev, cfg: cfg, metrics: metrics}
}

// SetStatusReporter injects a status reporter for intermediate updates.
func (w *Worker) SetStatusReporter(reporter StatusReporter) {
	w.statusReporter = reporter
}

// Execute judges sub. User faults are recorded per case; an error means no
// verdict could be produced and any partial results are discarded.
func (w *Worker) Execute(ctx context.Context, sub Submission) (result.SubmissionVerdict, error) {
	if err := w.validate(sub); err != nil {
		return result.SubmissionVerdict{}, err
	}
	if w.evaluator == nil {
		return result.SubmissionVerdict{}, appErr.New(appErr.JudgeSystemError).WithMessage("worker dependencies are not initialized")
	}
	if sub.ID != "" {
		ctx = logger.WithSubmissionID(ctx, sub.ID)
	}

	limits := w.limitsFor(sub)
	failFast := w.cfg.FailFast || sub.FailFast
	total := len(sub.TestCases)
	start := time.Now()

	logger.Info(ctx, "submission evaluation started",
		zap.Int("test_cases", total),
		zap.Int64("time_limit_ms", limits.TimeLimitMs),
		zap.Int64("memory_limit_bytes", limits.MemoryLimitBytes),
		zap.Bool("fail_fast", failFast),
	)
	w.reportStatus(ctx, sub.ID, StatusRunning, total, 0)

	results := make([]result.TestCaseResult, total)
	var (
		failed atomic.Bool
		doneMu sync.Mutex
		done   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.MaxConcurrentEvaluations)
	for i, tc := range sub.TestCases {
		i, tc := i, tc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if failFast && failed.Load() {
				results[i] = skippedResult(tc)
			} else {
				res, err := w.evaluator.Evaluate(gctx, evaluator.Request{
					SubmissionID: sub.ID,
					Code:         sub.Code,
					EntryPoint:   sub.EntryPoint,
					Index:        i,
					TestCase:     tc,
					Limits:       limits,
					Compare:      evaluator.CompareOptions{OrderInsensitive: sub.OrderInsensitive},
				})
				if err != nil {
					return err
				}
				results[i] = res
				if !res.Passed {
					failed.Store(true)
				}
			}
			doneMu.Lock()
			done++
			finished := done
			doneMu.Unlock()
			w.reportStatus(gctx, sub.ID, StatusRunning, total, finished)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		w.reportStatus(ctx, sub.ID, StatusFailed, total, 0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Warn(ctx, "submission evaluation canceled", zap.Error(ctxErr))
			return result.SubmissionVerdict{}, appErr.Wrap(ctxErr, appErr.GetCode(ctxErr))
		}
		w.metrics.ObserveInfraError(ctx, "evaluate")
		logger.Error(ctx, "submission evaluation failed", zap.Error(err))
		return result.SubmissionVerdict{}, err
	}

	verdict := result.Aggregate(sub.ID, results)
	elapsed := time.Since(start).Milliseconds()
	w.metrics.ObserveSubmission(ctx, verdict.Passed, total, elapsed)
	w.reportStatus(ctx, sub.ID, StatusFinished, total, total)
	logger.Info(ctx, "submission evaluation finished",
		zap.Bool("passed", verdict.Passed),
		zap.Int("passed_count", verdict.Summary.PassedCount),
		zap.Int("first_failed", verdict.Summary.FirstFailed),
		zap.Int64("elapsed_ms", elapsed),
	)
	return verdict, nil
}

func (w *Worker) validate(sub Submission) error {
	if strings.TrimSpace(sub.Code) == "" {
		return appErr.InvalidSubmissionError("code is required")
	}
	if len(sub.Code) > w.cfg.MaxSourceLength {
		reason := fmt.Sprintf("code is %d bytes, limit is %d", len(sub.Code), w.cfg.MaxSourceLength)
		return appErr.Wrapf(appErr.InvalidSubmissionError(reason), appErr.CodeTooLarge, "code too large")
	}
	if sub.Language != "" && !strings.EqualFold(sub.Language, LanguageJavaScript) {
		return appErr.Newf(appErr.LanguageNotSupported, "language %q is not supported", sub.Language)
	}
	if len(sub.TestCases) == 0 {
		return appErr.InvalidSubmissionError("at least one test case is required")
	}
	if sub.TimeLimitMillis < 0 {
		return appErr.InvalidSubmissionError("timeLimitMillis must not be negative")
	}
	if sub.MemoryLimitBytes < 0 || (sub.MemoryLimitBytes > 0 && sub.MemoryLimitBytes < spec.MinMemoryLimitBytes) {
		return appErr.InvalidSubmissionError(fmt.Sprintf("memoryLimitBytes must be at least %d", spec.MinMemoryLimitBytes))
	}
	return nil
}

func (w *Worker) limitsFor(sub Submission) spec.Limits {
	limits := spec.Limits{
		TimeLimitMs:      sub.TimeLimitMillis,
		MemoryLimitBytes: sub.MemoryLimitBytes,
		MaxLogEntries:    w.cfg.MaxLogEntries,
		MaxLogBytes:      w.cfg.MaxLogBytes,
		MaxCallStackSize: w.cfg.MaxCallStackSize,
	}
	if limits.TimeLimitMs == 0 {
		limits.TimeLimitMs = w.cfg.TimeLimitMillis
	}
	if limits.MemoryLimitBytes == 0 {
		limits.MemoryLimitBytes = w.cfg.MemoryLimitBytes
	}
	return limits.WithDefaults()
}

func (w *Worker) reportStatus(ctx context.Context, submissionID string, status Status, total, done int) {
	if w.statusReporter == nil || submissionID == "" {
		return
	}
	w.statusReporter.ReportStatus(ctx, StatusUpdate{
		SubmissionID: submissionID,
		Status:       status,
		TotalTests:   total,
		DoneTests:    done,
	})
}

func skippedResult(tc TestCase) result.TestCaseResult {
	return result.TestCaseResult{
		Passed:         false,
		Verdict:        result.VerdictSkipped,
		Input:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
		Error:          skippedMessage,
		Logs:           []string{},
	}
}

var _ Executor = (*Worker)(nil)

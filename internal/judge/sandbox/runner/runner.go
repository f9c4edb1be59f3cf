// Package runner executes one compiled harness in a fresh isolate and turns
// whatever happened into an ExecutionOutcome.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"jsjudge/internal/judge/sandbox/harness"
	"jsjudge/internal/judge/sandbox/isolate"
	"jsjudge/internal/judge/sandbox/observer"
	"jsjudge/internal/judge/sandbox/result"
	"jsjudge/internal/judge/sandbox/spec"
	appErr "jsjudge/pkg/errors"
	"jsjudge/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	timeLimitMessage   = "Time limit exceeded"
	memoryLimitMessage = "Memory limit exceeded"
	stderrTailBytes    = 512
)

// Request describes one harness run.
type Request struct {
	SubmissionID string
	TestIndex    int
	Harness      harness.Harness
	Limits       spec.Limits
}

// Runner runs harnesses. Faults of user code come back inside the outcome;
// the error is reserved for infrastructure failures and cancellation.
type Runner interface {
	Run(ctx context.Context, req Request) (result.ExecutionOutcome, error)
}

// DefaultRunner runs every harness in its own single-use isolate.
type DefaultRunner struct {
	pool    *isolate.Pool
	metrics observer.MetricsRecorder
}

// NewRunner creates a runner on top of pool.
func NewRunner(pool *isolate.Pool, metrics observer.MetricsRecorder) *DefaultRunner {
	if metrics == nil {
		metrics = observer.Nop{}
	}
	return &DefaultRunner{pool: pool, metrics: metrics}
}

func (r *DefaultRunner) Run(ctx context.Context, req Request) (result.ExecutionOutcome, error) {
	limits := req.Limits.WithDefaults()
	iso, err := r.pool.Acquire(ctx, limits.MemoryLimitBytes)
	if err != nil {
		r.metrics.ObserveInfraError(ctx, "acquire")
		return result.ExecutionOutcome{}, err
	}
	r.metrics.SetLiveIsolates(r.pool.Live())
	defer func() {
		r.pool.Release(iso)
		r.metrics.SetLiveIsolates(r.pool.Live())
	}()

	exit, err := iso.Run(ctx, spec.RunRequest{
		Script: req.Harness.Script,
		Input:  req.Harness.Input,
		Limits: limits,
	})
	if err != nil {
		r.metrics.ObserveInfraError(ctx, "run")
		return result.ExecutionOutcome{}, appErr.Wrapf(err, appErr.JudgeSystemError, "run isolate %s", iso.ID)
	}
	if exit.Canceled {
		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		return result.ExecutionOutcome{}, appErr.Wrap(cause, appErr.GetCode(cause))
	}

	outcome, err := classify(exit, limits)
	if err != nil {
		r.metrics.ObserveInfraError(ctx, "helper")
		logger.Error(ctx, "isolate helper failed",
			zap.String("isolate_id", iso.ID),
			zap.Int("test_index", req.TestIndex),
			zap.String("harness_digest", req.Harness.Digest),
			zap.Error(err),
		)
		return result.ExecutionOutcome{}, err
	}
	r.metrics.ObserveRun(ctx, string(outcome.Fault), outcome.WallClockMillis, outcome.PeakHeapBytes)
	logger.Debug(ctx, "isolate run finished",
		zap.String("isolate_id", iso.ID),
		zap.Int("test_index", req.TestIndex),
		zap.String("harness_digest", req.Harness.Digest),
		zap.String("fault", string(outcome.Fault)),
		zap.Int64("wall_ms", outcome.WallClockMillis),
		zap.Int64("peak_heap_bytes", outcome.PeakHeapBytes),
	)
	return outcome, nil
}

// classify maps a raw helper exit to an outcome. Host-observed kills take
// precedence over whatever the helper managed to report.
func classify(exit isolate.Exit, limits spec.Limits) (result.ExecutionOutcome, error) {
	outcome := result.ExecutionOutcome{
		Logs:            []string{},
		WallClockMillis: exit.WallTime.Milliseconds(),
		PeakHeapBytes:   exit.PeakMemoryBytes,
	}

	switch {
	case exit.TimedOut:
		outcome.Fault = result.FaultTimeout
		outcome.Message = timeLimitMessage
		withResponseLogs(&outcome, exit.Response)
		return outcome, nil
	case exit.OOMKilled:
		outcome.Fault = result.FaultMemoryExceeded
		outcome.Message = memoryLimitMessage
		withResponseLogs(&outcome, exit.Response)
		return outcome, nil
	case exit.Response != nil:
		return fromResponse(outcome, *exit.Response)
	}

	switch {
	case exit.OutputTruncated:
		outcome.Fault = result.FaultRuntimeError
		outcome.Message = "output exceeds the isolate output limit"
	case strings.Contains(exit.Stderr, "out of memory"):
		outcome.Fault = result.FaultMemoryExceeded
		outcome.Message = memoryLimitMessage
	case exit.Signal == "CPU time limit exceeded" || exit.WallTime >= limits.TimeLimit():
		outcome.Fault = result.FaultTimeout
		outcome.Message = timeLimitMessage
	default:
		outcome.Fault = result.FaultRuntimeError
		outcome.Message = crashMessage(exit)
	}
	return outcome, nil
}

func fromResponse(outcome result.ExecutionOutcome, resp spec.RunResponse) (result.ExecutionOutcome, error) {
	withResponseLogs(&outcome, &resp)
	if resp.WallTimeMs > 0 {
		outcome.WallClockMillis = resp.WallTimeMs
	}
	if resp.PeakHeapBytes > outcome.PeakHeapBytes {
		outcome.PeakHeapBytes = resp.PeakHeapBytes
	}

	switch resp.Fault {
	case spec.FaultNone:
		if resp.ReturnValue == nil {
			return result.ExecutionOutcome{}, appErr.New(appErr.JudgeSystemError).WithMessage("helper reported success without a return value")
		}
		if !json.Valid([]byte(*resp.ReturnValue)) {
			outcome.Fault = result.FaultTypeMismatch
			outcome.Message = "return value is not valid JSON"
			return outcome, nil
		}
		outcome.ReturnValue = json.RawMessage(*resp.ReturnValue)
	case spec.FaultTimeout:
		outcome.Fault = result.FaultTimeout
		outcome.Message = timeLimitMessage
	case spec.FaultMemoryExceeded:
		outcome.Fault = result.FaultMemoryExceeded
		outcome.Message = memoryLimitMessage
	case spec.FaultRuntimeError:
		outcome.Fault = result.FaultRuntimeError
		outcome.Message = resp.Message
	case spec.FaultTypeMismatch:
		outcome.Fault = result.FaultTypeMismatch
		outcome.Message = resp.Message
	case spec.FaultInternal:
		return result.ExecutionOutcome{}, appErr.New(appErr.JudgeSystemError).WithMessagef("isolate helper: %s", resp.Message)
	default:
		return result.ExecutionOutcome{}, appErr.New(appErr.JudgeSystemError).WithMessagef("unknown helper fault %q", resp.Fault)
	}
	return outcome, nil
}

func withResponseLogs(outcome *result.ExecutionOutcome, resp *spec.RunResponse) {
	if resp == nil {
		return
	}
	if resp.Logs != nil {
		outcome.Logs = resp.Logs
	}
	outcome.LogsTruncated = resp.LogsTruncated
}

func crashMessage(exit isolate.Exit) string {
	msg := fmt.Sprintf("isolate exited unexpectedly (exit code %d", exit.ExitCode)
	if exit.Signal != "" {
		msg += ", signal " + exit.Signal
	}
	msg += ")"
	if tail := stderrTail(exit.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func stderrTail(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if len(stderr) > stderrTailBytes {
		stderr = stderr[len(stderr)-stderrTailBytes:]
	}
	if idx := strings.LastIndexByte(stderr, '\n'); idx >= 0 {
		stderr = stderr[idx+1:]
	}
	return stderr
}

var _ Runner = (*DefaultRunner)(nil)

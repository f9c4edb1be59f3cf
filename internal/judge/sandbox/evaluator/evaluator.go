// Package evaluator runs one test case end to end and judges its output.
package evaluator

import (
	"context"
	"errors"

	"jsjudge/internal/judge/sandbox/harness"
	"jsjudge/internal/judge/sandbox/observer"
	"jsjudge/internal/judge/sandbox/result"
	"jsjudge/internal/judge/sandbox/runner"
	"jsjudge/internal/judge/sandbox/spec"
	appErr "jsjudge/pkg/errors"
	"jsjudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// TestCase is one (input, expected output) pair. Both are JSON text.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// Request describes the evaluation of a single test case.
type Request struct {
	SubmissionID string
	Code         string
	EntryPoint   string
	Index        int
	TestCase     TestCase
	Limits       spec.Limits
	Compare      CompareOptions
}

// Evaluator judges one test case. User faults are part of the result;
// errors mean the case could not be judged at all.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (result.TestCaseResult, error)
}

// DefaultEvaluator compiles, runs and compares.
type DefaultEvaluator struct {
	compiler *harness.Compiler
	runner   runner.Runner
	metrics  observer.MetricsRecorder
}

// NewEvaluator creates an evaluator.
func NewEvaluator(compiler *harness.Compiler, r runner.Runner, metrics observer.MetricsRecorder) *DefaultEvaluator {
	if metrics == nil {
		metrics = observer.Nop{}
	}
	return &DefaultEvaluator{compiler: compiler, runner: r, metrics: metrics}
}

func (e *DefaultEvaluator) Evaluate(ctx context.Context, req Request) (result.TestCaseResult, error) {
	res := result.TestCaseResult{
		Input:          req.TestCase.Input,
		ExpectedOutput: req.TestCase.ExpectedOutput,
		Logs:           []string{},
	}

	h, err := e.compiler.Compile(req.Code, req.EntryPoint, req.TestCase.Input)
	if err != nil {
		var syntaxErr *harness.SyntaxError
		if !errors.As(err, &syntaxErr) {
			return result.TestCaseResult{}, err
		}
		// Code that cannot even be parsed fails every case the same way.
		outcome := result.ExecutionOutcome{Fault: result.FaultRuntimeError, Message: syntaxErr.Message}
		applyFault(&res, outcome)
		e.metrics.ObserveVerdict(ctx, string(res.Verdict))
		return res, nil
	}

	outcome, err := e.runner.Run(ctx, runner.Request{
		SubmissionID: req.SubmissionID,
		TestIndex:    req.Index,
		Harness:      h,
		Limits:       req.Limits,
	})
	if err != nil {
		return result.TestCaseResult{}, err
	}

	res.Logs = outcome.Logs
	if res.Logs == nil {
		res.Logs = []string{}
	}
	res.LogsTruncated = outcome.LogsTruncated
	res.WallClockMillis = outcome.WallClockMillis

	if outcome.Failed() {
		applyFault(&res, outcome)
	} else {
		actual, err := Canonical(outcome.ReturnValue)
		if err != nil {
			return result.TestCaseResult{}, appErr.Wrapf(err, appErr.JudgeSystemError, "canonicalize return value")
		}
		res.ActualOutput = actual
		res.Passed = Match(req.TestCase.ExpectedOutput, outcome.ReturnValue, req.Compare)
		res.Verdict = result.VerdictWA
		if res.Passed {
			res.Verdict = result.VerdictAC
		} else {
			logger.Debug(ctx, "wrong answer",
				zap.Int("test_index", req.Index),
				zap.String("diff", Diff(req.TestCase.ExpectedOutput, outcome.ReturnValue, req.Compare)),
			)
		}
	}
	e.metrics.ObserveVerdict(ctx, string(res.Verdict))
	return res, nil
}

func applyFault(res *result.TestCaseResult, outcome result.ExecutionOutcome) {
	res.Passed = false
	res.Fault = outcome.Fault
	res.Verdict = result.VerdictForFault(outcome.Fault)
	res.Error = outcome.FaultError()
	res.ActualOutput = ""
}

var _ Evaluator = (*DefaultEvaluator)(nil)

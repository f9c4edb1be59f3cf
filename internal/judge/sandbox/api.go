// Package sandbox defines the public call interface used by the judge service.
package sandbox

import (
	"context"

	"jsjudge/internal/judge/sandbox/evaluator"
	"jsjudge/internal/judge/sandbox/result"
)

// LanguageJavaScript is the only language the engine runs.
const LanguageJavaScript = "javascript"

// Executor is the high-level sandbox entrypoint used by the judge layer.
type Executor interface {
	Execute(ctx context.Context, sub Submission) (result.SubmissionVerdict, error)
}

// TestCase is one input / expected-output pair, both JSON text.
type TestCase = evaluator.TestCase

// Submission contains all data needed to judge one piece of user code.
type Submission struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Language string `json:"language"`
	// EntryPoint names the function to call; empty picks the first top-level function.
	EntryPoint string     `json:"entryPoint"`
	TestCases  []TestCase `json:"testCases"`

	// Zero limits fall back to the worker configuration.
	TimeLimitMillis  int64 `json:"timeLimitMillis"`
	MemoryLimitBytes int64 `json:"memoryLimitBytes"`

	// FailFast skips cases not yet started once one case fails.
	FailFast bool `json:"failFast"`
	// OrderInsensitive compares returned arrays as multisets.
	OrderInsensitive bool `json:"orderInsensitive"`
}

// Config holds orchestration defaults.
type Config struct {
	MaxConcurrentEvaluations int
	MaxSourceLength          int
	TimeLimitMillis          int64
	MemoryLimitBytes         int64
	FailFast                 bool
	MaxLogEntries            int
	MaxLogBytes              int
	MaxCallStackSize         int
}

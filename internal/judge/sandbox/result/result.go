// Package result defines execution outcomes, per-case results and verdicts.
package result

import (
	"encoding/json"
	"fmt"
)

// FaultKind is a contained failure of user code. Faults are data, not errors.
type FaultKind string

const (
	FaultNone           FaultKind = ""
	FaultRuntimeError   FaultKind = "RuntimeError"
	FaultTimeout        FaultKind = "Timeout"
	FaultMemoryExceeded FaultKind = "MemoryExceeded"
	FaultTypeMismatch   FaultKind = "TypeMismatch"
)

// Verdict is the short per-case judgement.
type Verdict string

const (
	VerdictAC      Verdict = "AC"
	VerdictWA      Verdict = "WA"
	VerdictTLE     Verdict = "TLE"
	VerdictMLE     Verdict = "MLE"
	VerdictRE      Verdict = "RE"
	VerdictTM      Verdict = "TM"
	VerdictSkipped Verdict = "SKIPPED"
)

// VerdictForFault maps a fault to its verdict. FaultNone maps to the empty verdict.
func VerdictForFault(f FaultKind) Verdict {
	switch f {
	case FaultTimeout:
		return VerdictTLE
	case FaultMemoryExceeded:
		return VerdictMLE
	case FaultRuntimeError:
		return VerdictRE
	case FaultTypeMismatch:
		return VerdictTM
	default:
		return ""
	}
}

// ExecutionOutcome is produced exactly once per runner invocation.
// ReturnValue is nil when absent; Fault and ReturnValue never coexist.
type ExecutionOutcome struct {
	ReturnValue     json.RawMessage
	Logs            []string
	LogsTruncated   bool
	Fault           FaultKind
	Message         string
	WallClockMillis int64
	PeakHeapBytes   int64
}

// Failed reports whether the outcome carries a fault.
func (o ExecutionOutcome) Failed() bool {
	return o.Fault != FaultNone
}

// FaultError renders a fault for humans.
func (o ExecutionOutcome) FaultError() string {
	switch o.Fault {
	case FaultNone:
		return ""
	case FaultTimeout:
		if o.Message != "" {
			return o.Message
		}
		return "Time limit exceeded"
	case FaultMemoryExceeded:
		if o.Message != "" {
			return o.Message
		}
		return "Memory limit exceeded"
	default:
		if o.Message == "" {
			return string(o.Fault)
		}
		return fmt.Sprintf("%s: %s", o.Fault, o.Message)
	}
}

// TestCaseResult is the evaluated result of one test case.
type TestCaseResult struct {
	Passed          bool      `json:"passed"`
	Verdict         Verdict   `json:"verdict"`
	Input           string    `json:"input"`
	ExpectedOutput  string    `json:"expectedOutput"`
	ActualOutput    string    `json:"actualOutput"`
	Error           string    `json:"error,omitempty"`
	Fault           FaultKind `json:"fault,omitempty"`
	Logs            []string  `json:"logs"`
	LogsTruncated   bool      `json:"logsTruncated,omitempty"`
	WallClockMillis int64     `json:"wallClockMillis"`
}

// SubmissionVerdict is the terminal artifact of one submission.
type SubmissionVerdict struct {
	SubmissionID string           `json:"submissionId,omitempty"`
	Passed       bool             `json:"passed"`
	Results      []TestCaseResult `json:"results"`
	Summary      SummaryStat      `json:"summary"`
}

// SummaryStat captures aggregate statistics across test cases.
type SummaryStat struct {
	Total           int   `json:"total"`
	PassedCount     int   `json:"passedCount"`
	FirstFailed     int   `json:"firstFailed"`
	TotalWallMillis int64 `json:"totalWallMillis"`
	MaxWallMillis   int64 `json:"maxWallMillis"`
}

// Aggregate builds the verdict from ordered results. Passed requires a
// non-empty result list where every case passed.
func Aggregate(submissionID string, results []TestCaseResult) SubmissionVerdict {
	summary := SummaryStat{Total: len(results), FirstFailed: -1}
	for i, r := range results {
		if r.Passed {
			summary.PassedCount++
		} else if summary.FirstFailed < 0 {
			summary.FirstFailed = i
		}
		summary.TotalWallMillis += r.WallClockMillis
		if r.WallClockMillis > summary.MaxWallMillis {
			summary.MaxWallMillis = r.WallClockMillis
		}
	}
	return SubmissionVerdict{
		SubmissionID: submissionID,
		Passed:       len(results) > 0 && summary.PassedCount == len(results),
		Results:      results,
		Summary:      summary,
	}
}

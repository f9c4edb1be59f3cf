package model

import (
	"jsjudge/internal/judge/sandbox"
	"jsjudge/internal/judge/sandbox/result"
)

// ExecutionRequest is the HTTP body of a new execution.
type ExecutionRequest struct {
	SubmissionID     string             `json:"submissionId"`
	Code             string             `json:"code"`
	Language         string             `json:"language"`
	EntryPoint       string             `json:"entryPoint"`
	TestCases        []sandbox.TestCase `json:"testCases"`
	TimeLimitMillis  int64              `json:"timeLimitMillis"`
	MemoryLimitBytes int64              `json:"memoryLimitBytes"`
	FailFast         bool               `json:"failFast"`
	OrderInsensitive bool               `json:"orderInsensitive"`
}

// Submission converts the request into the engine's submission type.
func (r ExecutionRequest) Submission(id string) sandbox.Submission {
	return sandbox.Submission{
		ID:               id,
		Code:             r.Code,
		Language:         r.Language,
		EntryPoint:       r.EntryPoint,
		TestCases:        r.TestCases,
		TimeLimitMillis:  r.TimeLimitMillis,
		MemoryLimitBytes: r.MemoryLimitBytes,
		FailFast:         r.FailFast,
		OrderInsensitive: r.OrderInsensitive,
	}
}

// Progress reports how many test cases have been judged.
type Progress struct {
	TotalTests int `json:"totalTests"`
	DoneTests  int `json:"doneTests"`
}

// Timestamps are unix milliseconds.
type Timestamps struct {
	ReceivedAt int64 `json:"receivedAt"`
	FinishedAt int64 `json:"finishedAt,omitempty"`
}

// ExecutionStatus is the stored view of one submission.
type ExecutionStatus struct {
	SubmissionID string                    `json:"submissionId"`
	Status       sandbox.Status            `json:"status"`
	Progress     Progress                  `json:"progress"`
	Verdict      *result.SubmissionVerdict `json:"verdict,omitempty"`
	ErrorCode    int                       `json:"errorCode,omitempty"`
	ErrorMessage string                    `json:"errorMessage,omitempty"`
	Timestamps   Timestamps                `json:"timestamps"`
}

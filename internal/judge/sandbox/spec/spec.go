// Package spec defines resource limits and the wire format spoken between the
// host and a sandbox helper process.
package spec

import "time"

const (
	DefaultMemoryLimitBytes int64 = 128 << 20
	DefaultTimeLimitMs      int64 = 3000
	DefaultMaxLogEntries          = 256
	DefaultMaxLogBytes            = 64 << 10
	DefaultMaxCallStackSize       = 1024

	MinMemoryLimitBytes int64 = 8 << 20
)

// Limits describes the hard limits applied to one harness run.
type Limits struct {
	MemoryLimitBytes int64 `json:"memoryLimitBytes"`
	TimeLimitMs      int64 `json:"timeLimitMs"`
	MaxLogEntries    int   `json:"maxLogEntries"`
	MaxLogBytes      int   `json:"maxLogBytes"`
	MaxCallStackSize int   `json:"maxCallStackSize"`
}

// WithDefaults fills every unset field with its safe default.
func (l Limits) WithDefaults() Limits {
	if l.MemoryLimitBytes <= 0 {
		l.MemoryLimitBytes = DefaultMemoryLimitBytes
	}
	if l.MemoryLimitBytes < MinMemoryLimitBytes {
		l.MemoryLimitBytes = MinMemoryLimitBytes
	}
	if l.TimeLimitMs <= 0 {
		l.TimeLimitMs = DefaultTimeLimitMs
	}
	if l.MaxLogEntries <= 0 {
		l.MaxLogEntries = DefaultMaxLogEntries
	}
	if l.MaxLogBytes <= 0 {
		l.MaxLogBytes = DefaultMaxLogBytes
	}
	if l.MaxCallStackSize <= 0 {
		l.MaxCallStackSize = DefaultMaxCallStackSize
	}
	return l
}

// TimeLimit returns the wall-clock budget as a duration.
func (l Limits) TimeLimit() time.Duration {
	return time.Duration(l.TimeLimitMs) * time.Millisecond
}

// IsolationProfile carries host-side hardening applied inside the helper.
type IsolationProfile struct {
	SeccompProfile string `json:"seccompProfile,omitempty"`
}

// RunRequest is written as one JSON document to the helper's stdin.
// Script and Input are the only values that ever enter the isolate.
type RunRequest struct {
	Script    string           `json:"script"`
	Input     string           `json:"input"`
	Limits    Limits           `json:"limits"`
	Isolation IsolationProfile `json:"isolation"`
}

// Helper-reported fault kinds. They mirror result.FaultKind on the host side.
const (
	FaultNone           = ""
	FaultRuntimeError   = "runtime_error"
	FaultTimeout        = "timeout"
	FaultMemoryExceeded = "memory_exceeded"
	FaultTypeMismatch   = "type_mismatch"
	// FaultInternal means the helper itself failed; it is never the submission's fault.
	FaultInternal = "internal"
)

// RunResponse is written as one JSON document to the helper's stdout.
type RunResponse struct {
	ReturnValue   *string  `json:"returnValue,omitempty"`
	Logs          []string `json:"logs"`
	LogsTruncated bool     `json:"logsTruncated,omitempty"`
	Fault         string   `json:"fault,omitempty"`
	Message       string   `json:"message,omitempty"`
	WallTimeMs    int64    `json:"wallTimeMs"`
	PeakHeapBytes int64    `json:"peakHeapBytes"`
}

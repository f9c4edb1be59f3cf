package result_test

import (
	"testing"

	"jsjudge/internal/judge/sandbox/result"
)

func TestAggregate(t *testing.T) {
	cases := []struct {
		name        string
		results     []result.TestCaseResult
		wantPassed  bool
		firstFailed int
	}{
		{
			name:        "empty_never_passes",
			results:     nil,
			wantPassed:  false,
			firstFailed: -1,
		},
		{
			name: "all_pass",
			results: []result.TestCaseResult{
				{Passed: true, WallClockMillis: 3},
				{Passed: true, WallClockMillis: 7},
			},
			wantPassed:  true,
			firstFailed: -1,
		},
		{
			name: "one_failure",
			results: []result.TestCaseResult{
				{Passed: true},
				{Passed: false},
				{Passed: false},
			},
			wantPassed:  false,
			firstFailed: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := result.Aggregate("sub-1", tc.results)
			if v.Passed != tc.wantPassed {
				t.Fatalf("Passed = %v, want %v", v.Passed, tc.wantPassed)
			}
			if v.Summary.FirstFailed != tc.firstFailed {
				t.Fatalf("FirstFailed = %d, want %d", v.Summary.FirstFailed, tc.firstFailed)
			}
			if v.Summary.Total != len(tc.results) {
				t.Fatalf("Total = %d", v.Summary.Total)
			}
		})
	}
}

func TestAggregateWallStats(t *testing.T) {
	v := result.Aggregate("", []result.TestCaseResult{
		{Passed: true, WallClockMillis: 3},
		{Passed: true, WallClockMillis: 7},
	})
	if v.Summary.TotalWallMillis != 10 || v.Summary.MaxWallMillis != 7 {
		t.Fatalf("unexpected summary: %+v", v.Summary)
	}
}

func TestFaultError(t *testing.T) {
	cases := []struct {
		outcome result.ExecutionOutcome
		want    string
	}{
		{result.ExecutionOutcome{}, ""},
		{result.ExecutionOutcome{Fault: result.FaultTimeout}, "Time limit exceeded"},
		{result.ExecutionOutcome{Fault: result.FaultMemoryExceeded}, "Memory limit exceeded"},
		{result.ExecutionOutcome{Fault: result.FaultRuntimeError, Message: "TypeError: x is not a function"}, "RuntimeError: TypeError: x is not a function"},
	}
	for _, tc := range cases {
		if got := tc.outcome.FaultError(); got != tc.want {
			t.Errorf("FaultError() = %q, want %q", got, tc.want)
		}
	}
	if result.VerdictForFault(result.FaultTimeout) != result.VerdictTLE {
		t.Errorf("timeout should map to TLE")
	}
}

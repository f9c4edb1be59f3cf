package errors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "jsjudge/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{InvalidSubmission, "Invalid submission"},
		{ResourceExhausted, "Sandbox capacity exhausted, please try again later"},
		{ErrorCode(1), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{InvalidSubmission, 400},
		{CodeTooLarge, 400},
		{ValidationFailed, 400},
		{ResourceExhausted, 429},
		{Timeout, 504},
		{CompilationError, 500},
		{JudgeSystemError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestWrapKeepsExistingCode(t *testing.T) {
	inner := New(ResourceExhausted)
	wrapped := fmt.Errorf("acquire isolate: %w", inner)

	got := Wrap(wrapped, JudgeSystemError)
	if got.Code != ResourceExhausted {
		t.Fatalf("Code = %v, want %v", got.Code, ResourceExhausted)
	}
	if !Is(wrapped, ResourceExhausted) {
		t.Fatalf("Is() should see the code through fmt wrapping")
	}
}

func TestIsWalksCodedChain(t *testing.T) {
	inner := InvalidSubmissionError("too big")
	outer := Wrapf(inner, CodeTooLarge, "code too large")

	if GetCode(outer) != CodeTooLarge {
		t.Fatalf("GetCode() = %v, want %v", GetCode(outer), CodeTooLarge)
	}
	for _, code := range []ErrorCode{CodeTooLarge, InvalidSubmission} {
		if !Is(outer, code) {
			t.Fatalf("Is(%v) = false", code)
		}
	}
	if Is(outer, JudgeSystemError) {
		t.Fatalf("Is() matched a code not in the chain")
	}
}

func TestWrapf(t *testing.T) {
	originalErr := errors.New("broken pipe")
	err := Wrapf(originalErr, JudgeSystemError, "write isolate request")

	if err.Error() != "write isolate request: broken pipe" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Errorf("errors.Is should find the original error")
	}
	if Wrapf(nil, JudgeSystemError, "x") != nil {
		t.Errorf("Wrapf(nil) should be nil")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, Success},
		{"coded", InvalidSubmissionError("no test cases"), InvalidSubmission},
		{"canceled", context.Canceled, Canceled},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), Timeout},
		{"foreign", errors.New("boom"), InternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidationErrorDetails(t *testing.T) {
	err := ValidationError("testCases", "required")
	if err.Details["field"] != "testCases" || err.Details["reason"] != "required" {
		t.Fatalf("unexpected details: %v", err.Details)
	}
	if err.Stack == "" {
		t.Fatalf("expected stack to be captured")
	}
}

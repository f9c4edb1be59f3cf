package logger

import (
	"context"
	"testing"

	"jsjudge/pkg/utils/contextkey"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsIDs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := &Logger{zap: zap.New(core)}

	ctx := context.WithValue(context.Background(), contextkey.TraceID, "trace-1")
	ctx = WithSubmissionID(ctx, "sub-1")
	l.WithContext(ctx).Info("run finished")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["trace_id"] != "trace-1" {
		t.Fatalf("trace_id = %v", fields["trace_id"])
	}
	if fields["submission_id"] != "sub-1" {
		t.Fatalf("submission_id = %v", fields["submission_id"])
	}
	if _, ok := fields["request_id"]; ok {
		t.Fatalf("request_id should be absent")
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := NewLogger(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestGlobalHelpersWithoutInit(t *testing.T) {
	globalLogger = nil
	Info(context.Background(), "dropped")
	if err := Sync(); err != nil {
		t.Fatalf("Sync without logger: %v", err)
	}
}

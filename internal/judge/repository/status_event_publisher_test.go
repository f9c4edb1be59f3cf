package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"jsjudge/internal/judge/model"
	"jsjudge/internal/judge/sandbox"
	appErr "jsjudge/pkg/errors"

	"github.com/segmentio/kafka-go"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishFinalStatus(t *testing.T) {
	writer := &recordingWriter{}
	pub := &KafkaStatusEventPublisher{writer: writer, topic: "judge.verdicts"}

	status := model.ExecutionStatus{SubmissionID: "s1", Status: sandbox.StatusFinished}
	if err := pub.PublishFinalStatus(context.Background(), status); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(writer.msgs) != 1 || string(writer.msgs[0].Key) != "s1" {
		t.Fatalf("messages = %+v", writer.msgs)
	}
	var event StatusEvent
	if err := json.Unmarshal(writer.msgs[0].Value, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Type != StatusEventFinal || event.Status.Status != sandbox.StatusFinished || event.CreatedAt == 0 {
		t.Fatalf("event = %+v", event)
	}

	if err := pub.PublishFinalStatus(context.Background(), model.ExecutionStatus{}); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("empty id: got %v", err)
	}
	writer.err = errors.New("broker down")
	if err := pub.PublishFinalStatus(context.Background(), status); !appErr.Is(err, appErr.ServiceUnavailable) {
		t.Fatalf("broker failure: got %v", err)
	}
}

func TestNewKafkaStatusEventPublisher(t *testing.T) {
	if _, err := NewKafkaStatusEventPublisher(KafkaConfig{Topic: "t"}); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewKafkaStatusEventPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatalf("expected error without topic")
	}
	pub, err := NewKafkaStatusEventPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Compression: "zstd"})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

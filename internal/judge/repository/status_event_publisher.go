package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jsjudge/internal/judge/model"
	appErr "jsjudge/pkg/errors"

	"github.com/segmentio/kafka-go"
)

// StatusEventPublisher announces terminal submission statuses.
type StatusEventPublisher interface {
	PublishFinalStatus(ctx context.Context, status model.ExecutionStatus) error
}

// StatusEvent is the payload written for every finished or failed submission.
type StatusEvent struct {
	Type      string                `json:"type"`
	Status    model.ExecutionStatus `json:"status"`
	CreatedAt int64                 `json:"createdAt"`
}

const StatusEventFinal = "final"

// KafkaConfig holds the verdict topic settings.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	Compression  string        `yaml:"compression"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaStatusEventPublisher writes status events keyed by submission id so
// all events of one submission land on the same partition.
type KafkaStatusEventPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaStatusEventPublisher creates a publisher for cfg.Topic.
func NewKafkaStatusEventPublisher(cfg KafkaConfig) (*KafkaStatusEventPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Compression:  parseCompression(cfg.Compression),
	}
	return &KafkaStatusEventPublisher{writer: writer, topic: cfg.Topic}, nil
}

// PublishFinalStatus publishes a final status event.
func (p *KafkaStatusEventPublisher) PublishFinalStatus(ctx context.Context, status model.ExecutionStatus) error {
	if p == nil || p.writer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("status publisher is not configured")
	}
	if status.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	payload, err := json.Marshal(StatusEvent{
		Type:      StatusEventFinal,
		Status:    status,
		CreatedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal status event failed: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(status.SubmissionID),
		Value: payload,
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish status event to %s failed", p.topic)
	}
	return nil
}

// Close flushes pending events.
func (p *KafkaStatusEventPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}

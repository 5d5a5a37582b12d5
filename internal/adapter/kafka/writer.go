package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/flood-data-etl/internal/config"
	"github.com/couchcryptid/flood-data-etl/internal/queue"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes ingestion tasks to the task topic. Tasks are keyed by
// region so one region's tasks stay ordered on a partition.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured task topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and writes one task.
func (w *Writer) Publish(ctx context.Context, t queue.Task) error {
	msg, err := serializeTask(t)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish task %s: %w", t.ID, err)
	}
	w.logger.Debug("task published", "task_id", t.ID, "region", t.Region, "attempt", t.Attempt)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeTask marshals a Task into a Kafka message.
func serializeTask(t queue.Task) (kafkago.Message, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize task: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(t.Region),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "trigger", Value: []byte(t.Trigger)},
			{Key: "attempt", Value: []byte(strconv.Itoa(t.Attempt))},
			{Key: "enqueued_at", Value: []byte(t.EnqueuedAt.Format(time.RFC3339))},
		},
	}, nil
}

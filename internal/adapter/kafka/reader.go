package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/flood-data-etl/internal/config"
	"github.com/couchcryptid/flood-data-etl/internal/queue"
	kafkago "github.com/segmentio/kafka-go"
)

const commitTimeout = 5 * time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Reader consumes ingestion tasks as part of a consumer group. Offsets are
// committed only when a delivery is acknowledged.
type Reader struct {
	reader messageReader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the configured task topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaTopic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  time.Second,
	})
	return &Reader{reader: r, logger: logger}
}

// Consume blocks until a decodable task arrives. Undecodable messages are
// committed and skipped so they cannot wedge the partition.
func (r *Reader) Consume(ctx context.Context) (queue.Delivery, error) {
	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return queue.Delivery{}, ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, kafkago.ErrGroupClosed) {
				return queue.Delivery{}, queue.ErrClosed
			}
			return queue.Delivery{}, fmt.Errorf("fetch task: %w", err)
		}

		task, err := deserializeTask(msg)
		if err != nil {
			r.logger.Warn("undecodable task message, skipping",
				"error", err,
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			if err := r.commit(msg); err != nil {
				r.logger.Warn("commit offset failed", "error", err, "offset", msg.Offset)
			}
			continue
		}

		return queue.NewDelivery(task, func(context.Context) error {
			return r.commit(msg)
		}), nil
	}
}

// commit uses its own timeout so acknowledgements still land during shutdown.
func (r *Reader) commit(msg kafkago.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	return r.reader.CommitMessages(ctx, msg)
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

func deserializeTask(msg kafkago.Message) (queue.Task, error) {
	var t queue.Task
	if err := json.Unmarshal(msg.Value, &t); err != nil {
		return queue.Task{}, fmt.Errorf("deserialize task: %w", err)
	}
	if t.Region == "" {
		t.Region = string(msg.Key)
	}
	if t.Region == "" {
		return queue.Task{}, errors.New("deserialize task: missing region")
	}
	return t, nil
}

// Queue joins a Writer and a Reader into a queue.Queue.
type Queue struct {
	*Writer
	*Reader
}

// NewQueue creates a Kafka-backed task queue.
func NewQueue(cfg *config.Config, logger *slog.Logger) *Queue {
	return &Queue{Writer: NewWriter(cfg, logger), Reader: NewReader(cfg, logger)}
}

// Close closes the reader and the writer.
func (q *Queue) Close() error {
	return errors.Join(q.Reader.Close(), q.Writer.Close())
}

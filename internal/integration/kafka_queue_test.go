//go:build integration

package integration_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/flood-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/flood-data-etl/internal/config"
	"github.com/couchcryptid/flood-data-etl/internal/domain"
	"github.com/couchcryptid/flood-data-etl/internal/jobs"
	"github.com/couchcryptid/flood-data-etl/internal/observability"
	"github.com/couchcryptid/flood-data-etl/internal/pipeline"
	"github.com/couchcryptid/flood-data-etl/internal/queue"
	"github.com/couchcryptid/flood-data-etl/internal/scheduler"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kafkaConfig(broker, topic string) *config.Config {
	return &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   topic,
		KafkaGroupID: fmt.Sprintf("test-group-%d", time.Now().UnixNano()),
	}
}

// TestKafkaQueueRoundTrip publishes a task and consumes it back through the
// consumer group.
func TestKafkaQueueRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, "tasks-roundtrip")

	q := kafka.NewQueue(kafkaConfig(broker, "tasks-roundtrip"), discardLogger())
	defer q.Close()

	sent := queue.Task{
		ID:          "task-1",
		Region:      "KEL",
		Attempt:     1,
		MaxAttempts: 3,
		Trigger:     queue.TriggerSchedule,
		RepeatKey:   "repeat.ingest.KEL:600000",
		EnqueuedAt:  time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, q.Publish(ctx, sent))

	consumeCtx, consumeCancel := context.WithTimeout(ctx, 60*time.Second)
	defer consumeCancel()
	d, err := q.Consume(consumeCtx)
	require.NoError(t, err)
	assert.Equal(t, sent, d.Task)
	require.NoError(t, d.Ack(ctx))
}

type flakyRunner struct {
	failures int
	calls    int
}

func (r *flakyRunner) Ingest(_ context.Context, region string) (domain.IngestResult, error) {
	r.calls++
	if r.calls <= r.failures {
		return domain.IngestResult{}, errors.New("portal unavailable")
	}
	return domain.IngestResult{Region: region, Mode: domain.ModePrimary}, nil
}

// TestWorkerOverKafka enqueues through the scheduler and lets the worker
// retry once through the topic before the task completes.
func TestWorkerOverKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, "tasks-worker")

	q := kafka.NewQueue(kafkaConfig(broker, "tasks-worker"), discardLogger())
	defer q.Close()

	history := jobs.NewMemory(10)
	clock := clockwork.NewRealClock()
	worker := pipeline.NewWorker(q, &flakyRunner{failures: 1}, history, clock, discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{
		RetryBackoff: 100 * time.Millisecond,
	})
	sched := scheduler.New(q, clock, 3, discardLogger())

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- worker.Run(runCtx) }()

	id, err := sched.Enqueue(ctx, "kel")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		records, err := history.List(ctx, jobs.StatusCompleted, 0)
		return err == nil && len(records) == 1
	}, 90*time.Second, 200*time.Millisecond)
	stop()
	require.NoError(t, <-done)

	records, err := history.List(ctx, jobs.StatusCompleted, 0)
	require.NoError(t, err)
	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, "KEL", records[0].Region)
	assert.Equal(t, 2, records[0].Attempt)
	assert.Equal(t, queue.TriggerRetry, records[0].Trigger)
}

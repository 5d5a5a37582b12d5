// Package pipeline runs ingestion tasks: it consumes tasks from the queue,
// drives the fetch, reconcile and write chain for each region, retries
// failures with exponential backoff and records terminal outcomes.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/flood-data-etl/internal/domain"
	"github.com/couchcryptid/flood-data-etl/internal/jobs"
	"github.com/couchcryptid/flood-data-etl/internal/observability"
	"github.com/couchcryptid/flood-data-etl/internal/queue"
	"github.com/jonboulle/clockwork"
)

const (
	ackTimeout     = 5 * time.Second
	publishTimeout = 10 * time.Second
)

// Runner ingests one region.
type Runner interface {
	Ingest(ctx context.Context, region string) (domain.IngestResult, error)
}

// Options tune the worker pool.
type Options struct {
	// Concurrency is the number of tasks processed at once.
	Concurrency int
	// RetryBackoff is the delay before the second attempt. Each further
	// attempt doubles it.
	RetryBackoff time.Duration
	// MaxRetryBackoff caps the retry delay. Zero means uncapped.
	MaxRetryBackoff time.Duration
}

// Worker consumes ingestion tasks from a queue.
type Worker struct {
	queue   queue.Queue
	runner  Runner
	history jobs.Store
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	ready   atomic.Bool

	mu      sync.Mutex
	pending map[string]clockwork.Timer // task id -> scheduled retry
}

// NewWorker creates a Worker. Concurrency below one is treated as one.
func NewWorker(q queue.Queue, runner Runner, history jobs.Store, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Worker {
	opts.Concurrency = max(opts.Concurrency, 1)
	return &Worker{
		queue:   q,
		runner:  runner,
		history: history,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		pending: make(map[string]clockwork.Timer),
	}
}

// CheckReadiness returns nil once the worker has completed at least one task.
func (w *Worker) CheckReadiness(_ context.Context) error {
	if !w.ready.Load() {
		return errors.New("worker has not completed any tasks yet")
	}
	return nil
}

// Run processes tasks until the context is cancelled or the queue closes.
// Retries that have not fired yet are dropped on return.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "concurrency", w.opts.Concurrency)
	w.metrics.WorkerRunning.Set(1)
	defer w.metrics.WorkerRunning.Set(0)

	var wg sync.WaitGroup
	for range w.opts.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consumeLoop(ctx)
		}()
	}
	wg.Wait()

	if dropped := w.stopRetries(); dropped > 0 {
		w.logger.Warn("pending retries dropped", "count", dropped)
	}
	w.logger.Info("worker stopped")
	return nil
}

// Pending reports the number of scheduled retries that have not fired yet.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Worker) consumeLoop(ctx context.Context) {
	// Exponential backoff on transport errors: start at 200ms, double, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		d, err := w.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			w.logger.Error("consume task failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond
		w.handle(ctx, d)
	}
}

// handle runs one attempt and acknowledges the delivery once the task is
// recorded or re-published. A task interrupted by shutdown is left
// unacknowledged so a durable transport redelivers it.
func (w *Worker) handle(ctx context.Context, d queue.Delivery) {
	task := d.Task
	start := w.clock.Now()
	log := w.logger.With("task_id", task.ID, "region", task.Region, "attempt", task.Attempt)

	result, err := w.runner.Ingest(ctx, task.Region)
	w.metrics.TaskDuration.Observe(w.clock.Since(start).Seconds())

	switch {
	case err == nil:
		w.metrics.TasksProcessed.WithLabelValues("completed").Inc()
		w.ready.Store(true)
		w.record(task, jobs.StatusCompleted, &result, nil, start)
	case ctx.Err() != nil:
		log.Info("task interrupted", "error", err)
		return
	case task.Attempt < task.MaxAttempts:
		delay := RetryDelay(w.opts.RetryBackoff, w.opts.MaxRetryBackoff, task.Attempt)
		log.Warn("task failed, retrying", "error", err, "delay", delay)
		w.metrics.TasksProcessed.WithLabelValues("retried").Inc()
		w.scheduleRetry(task, delay)
	default:
		log.Error("task failed", "error", err, "max_attempts", task.MaxAttempts)
		w.metrics.TasksProcessed.WithLabelValues("failed").Inc()
		w.record(task, jobs.StatusFailed, nil, err, start)
	}

	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := d.Ack(ackCtx); err != nil {
		log.Warn("ack task failed", "error", err)
	}
}

func (w *Worker) record(task queue.Task, status jobs.Status, result *domain.IngestResult, taskErr error, start time.Time) {
	r := jobs.Record{
		ID:         task.ID,
		Region:     task.Region,
		Trigger:    task.Trigger,
		Attempt:    task.Attempt,
		Status:     status,
		Result:     result,
		StartedAt:  start.UTC(),
		FinishedAt: w.clock.Now().UTC(),
	}
	if taskErr != nil {
		r.Error = taskErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()
	if err := w.history.Add(ctx, r); err != nil {
		w.logger.Warn("record job failed", "task_id", task.ID, "error", err)
	}
}

func (w *Worker) scheduleRetry(task queue.Task, delay time.Duration) {
	next := task
	next.Attempt++
	next.Trigger = queue.TriggerRetry
	next.EnqueuedAt = w.clock.Now().Add(delay).UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[task.ID] = w.clock.AfterFunc(delay, func() {
		w.mu.Lock()
		delete(w.pending, task.ID)
		w.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := w.queue.Publish(ctx, next); err != nil {
			w.logger.Error("publish retry failed", "task_id", next.ID, "region", next.Region, "error", err)
			return
		}
		w.metrics.RetriesQueued.Inc()
	})
}

func (w *Worker) stopRetries() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	dropped := 0
	for id, t := range w.pending {
		if t.Stop() {
			dropped++
		}
		delete(w.pending, id)
	}
	return dropped
}

// RetryDelay is base * 2^(attempt-1), capped at limit when limit is positive.
func RetryDelay(base, limit time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Package scheduler registers one repeating ingestion task per region,
// staggered so regions do not hit the portal at the same moment, and
// enqueues on-demand tasks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/flood-data-etl/internal/queue"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// ErrEmptyRegion is returned when a task is requested without a region.
var ErrEmptyRegion = errors.New("region is required")

const publishTimeout = 10 * time.Second

// Publisher accepts tasks for the worker pool.
type Publisher interface {
	Publish(ctx context.Context, t queue.Task) error
}

// Registration is one region's repeating schedule.
type Registration struct {
	Region string
	Key    string
	Delay  time.Duration
	Period time.Duration
}

// RepeatKey is the identity of a region's repeating registration.
func RepeatKey(region string, period time.Duration) string {
	return fmt.Sprintf("repeat.ingest.%s:%d", region, period.Milliseconds())
}

// Plan assigns region i an initial delay of i*offset, in list order.
func Plan(regions []string, period, offset time.Duration) []Registration {
	out := make([]Registration, 0, len(regions))
	for i, region := range regions {
		out = append(out, Registration{
			Region: region,
			Key:    RepeatKey(region, period),
			Delay:  time.Duration(i) * offset,
			Period: period,
		})
	}
	return out
}

// Staggered fires first at First and then every Period. The first call to
// Next always returns First, even when cron starts after it has passed, so
// the slot fires immediately instead of being skipped. Cron calls Next from
// its run goroutine only.
type Staggered struct {
	First  time.Time
	Period time.Duration

	scheduled bool
}

// Next returns First on the first call and afterwards the first fire time
// strictly after t.
func (s *Staggered) Next(t time.Time) time.Time {
	if !s.scheduled {
		s.scheduled = true
		return s.First
	}
	if t.Before(s.First) {
		return s.First
	}
	if s.Period <= 0 {
		return time.Time{}
	}
	n := t.Sub(s.First)/s.Period + 1
	return s.First.Add(n * s.Period)
}

// Scheduler owns the repeating registrations.
type Scheduler struct {
	cron        *cron.Cron
	pub         Publisher
	clock       clockwork.Clock
	maxAttempts int
	logger      *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New creates a Scheduler publishing to pub. Every task it creates allows
// up to maxAttempts attempts. clock seeds each registration's first fire
// time and stamps tasks; cron itself waits on the wall clock, so a fake
// clock fixes First without controlling when entries fire.
func New(pub Publisher, clock clockwork.Clock, maxAttempts int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(time.UTC)),
		pub:         pub,
		clock:       clock,
		maxAttempts: max(maxAttempts, 1),
		logger:      logger,
		entries:     make(map[string]cron.EntryID),
	}
}

// Register adds reg unless a registration with the same key exists. It
// reports whether reg was added.
func (s *Scheduler) Register(reg Registration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[reg.Key]; ok {
		s.logger.Debug("repeat registration exists", "key", reg.Key)
		return false
	}
	sched := &Staggered{First: s.clock.Now().Add(reg.Delay), Period: reg.Period}
	id := s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(reg) }))
	s.entries[reg.Key] = id
	s.logger.Info("repeat registered",
		"region", reg.Region,
		"key", reg.Key,
		"delay", reg.Delay,
		"period", reg.Period,
	)
	return true
}

// RegisterAll registers every plan entry and returns how many were new.
func (s *Scheduler) RegisterAll(plan []Registration) int {
	added := 0
	for _, reg := range plan {
		if s.Register(reg) {
			added++
		}
	}
	return added
}

// Keys lists the registered repeat keys.
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Start begins firing registrations in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts firing and waits for in-flight publishes or ctx, whichever
// comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Enqueue publishes an on-demand task for region and returns its id.
func (s *Scheduler) Enqueue(ctx context.Context, region string) (string, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return "", ErrEmptyRegion
	}
	t := s.newTask(region, queue.TriggerManual, "")
	if err := s.pub.Publish(ctx, t); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", region, err)
	}
	s.logger.Info("task enqueued", "task_id", t.ID, "region", region)
	return t.ID, nil
}

func (s *Scheduler) fire(reg Registration) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	t := s.newTask(reg.Region, queue.TriggerSchedule, reg.Key)
	if err := s.pub.Publish(ctx, t); err != nil {
		s.logger.Error("scheduled publish failed", "region", reg.Region, "key", reg.Key, "error", err)
		return
	}
	s.logger.Debug("scheduled task published", "task_id", t.ID, "region", reg.Region)
}

func (s *Scheduler) newTask(region string, trigger queue.Trigger, key string) queue.Task {
	return queue.Task{
		ID:          uuid.NewString(),
		Region:      region,
		Attempt:     1,
		MaxAttempts: s.maxAttempts,
		Trigger:     trigger,
		RepeatKey:   key,
		EnqueuedAt:  s.clock.Now().UTC(),
	}
}

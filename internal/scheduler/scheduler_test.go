package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/flood-data-etl/internal/domain"
	"github.com/couchcryptid/flood-data-etl/internal/queue"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu    sync.Mutex
	tasks []queue.Task
	sent  chan queue.Task
	err   error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{sent: make(chan queue.Task, 16)}
}

func (p *recordingPublisher) Publish(_ context.Context, t queue.Task) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	p.tasks = append(p.tasks, t)
	p.mu.Unlock()
	p.sent <- t
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPlan_StaggersRegions(t *testing.T) {
	period, offset := 10*time.Minute, 30*time.Second

	plan := Plan(domain.Regions, period, offset)

	require.Len(t, plan, 16)
	for i, reg := range plan {
		assert.Equal(t, domain.Regions[i], reg.Region)
		assert.Equal(t, time.Duration(i)*offset, reg.Delay)
		assert.Equal(t, period, reg.Period)
	}
	assert.Equal(t, time.Duration(0), plan[0].Delay)
	assert.Equal(t, 7*time.Minute+30*time.Second, plan[15].Delay)
	assert.Equal(t, "repeat.ingest.PLS:600000", plan[0].Key)
	assert.Equal(t, "repeat.ingest.WLP:600000", plan[15].Key)
}

func TestPlan_Empty(t *testing.T) {
	assert.Empty(t, Plan(nil, time.Minute, time.Second))
}

func TestStaggered_Next(t *testing.T) {
	first := time.Date(2025, 12, 25, 0, 1, 0, 0, time.UTC)
	s := &Staggered{First: first, Period: 10 * time.Minute}
	require.Equal(t, first, s.Next(first.Add(-time.Hour)))

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"before first", first.Add(-time.Hour), first},
		{"at first", first, first.Add(10 * time.Minute)},
		{"mid period", first.Add(3 * time.Minute), first.Add(10 * time.Minute)},
		{"on boundary", first.Add(20 * time.Minute), first.Add(30 * time.Minute)},
		{"later", first.Add(25*time.Minute + time.Second), first.Add(30 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Next(tt.at))
		})
	}
}

func TestStaggered_LateStartKeepsFirstSlot(t *testing.T) {
	first := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	s := &Staggered{First: first, Period: 10 * time.Minute}

	assert.Equal(t, first, s.Next(first.Add(time.Millisecond)))
	assert.Equal(t, first.Add(10*time.Minute), s.Next(first.Add(time.Millisecond)))
}

func TestStaggered_ZeroPeriodFiresOnce(t *testing.T) {
	first := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	s := &Staggered{First: first}
	assert.Equal(t, first, s.Next(first.Add(time.Second)))
	assert.True(t, s.Next(first).IsZero())
}

func TestScheduler_RegisterIsIdempotent(t *testing.T) {
	s := New(newRecordingPublisher(), clockwork.NewFakeClock(), 3, discardLogger())
	plan := Plan([]string{"KEL", "PNG"}, 10*time.Minute, 30*time.Second)

	assert.Equal(t, 2, s.RegisterAll(plan))
	assert.Equal(t, 0, s.RegisterAll(plan))
	assert.False(t, s.Register(plan[0]))
	assert.ElementsMatch(t, []string{"repeat.ingest.KEL:600000", "repeat.ingest.PNG:600000"}, s.Keys())
}

func TestScheduler_RegistrationOffsetsFromClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC))
	s := New(newRecordingPublisher(), clock, 3, discardLogger())
	s.RegisterAll(Plan([]string{"KEL", "PNG", "SEL"}, 10*time.Minute, 30*time.Second))

	var firsts []time.Time
	for _, e := range s.cron.Entries() {
		firsts = append(firsts, e.Schedule.(*Staggered).First)
	}
	assert.ElementsMatch(t, []time.Time{
		clock.Now(),
		clock.Now().Add(30 * time.Second),
		clock.Now().Add(time.Minute),
	}, firsts)
}

func TestScheduler_FiresRegistration(t *testing.T) {
	pub := newRecordingPublisher()
	s := New(pub, clockwork.NewRealClock(), 3, discardLogger())
	s.Register(Registration{Region: "KEL", Key: RepeatKey("KEL", time.Hour), Delay: 20 * time.Millisecond, Period: time.Hour})
	s.Start()
	defer s.Stop(context.Background())

	select {
	case task := <-pub.sent:
		assert.Equal(t, "KEL", task.Region)
		assert.Equal(t, queue.TriggerSchedule, task.Trigger)
		assert.Equal(t, "repeat.ingest.KEL:3600000", task.RepeatKey)
		assert.Equal(t, 1, task.Attempt)
		assert.Equal(t, 3, task.MaxAttempts)
	case <-time.After(5 * time.Second):
		t.Fatal("registration did not fire")
	}
}

func TestScheduler_FiresPlanInStaggerOrder(t *testing.T) {
	pub := newRecordingPublisher()
	s := New(pub, clockwork.NewRealClock(), 3, discardLogger())
	require.Equal(t, 2, s.RegisterAll(Plan([]string{"PLS", "KDH"}, time.Hour, 200*time.Millisecond)))
	time.Sleep(5 * time.Millisecond)
	s.Start()
	defer s.Stop(context.Background())

	var fired []string
	deadline := time.After(5 * time.Second)
	for len(fired) < 2 {
		select {
		case task := <-pub.sent:
			fired = append(fired, task.Region)
		case <-deadline:
			t.Fatalf("only fired %v", fired)
		}
	}
	assert.Equal(t, []string{"PLS", "KDH"}, fired)
}

func TestScheduler_Enqueue(t *testing.T) {
	pub := newRecordingPublisher()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 12, 25, 8, 0, 0, 0, time.UTC))
	s := New(pub, clock, 3, discardLogger())

	id, err := s.Enqueue(context.Background(), " kel ")
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	require.NoError(t, err)
	require.Len(t, pub.tasks, 1)
	task := pub.tasks[0]
	assert.Equal(t, id, task.ID)
	assert.Equal(t, "KEL", task.Region)
	assert.Equal(t, queue.TriggerManual, task.Trigger)
	assert.Empty(t, task.RepeatKey)
	assert.Equal(t, 3, task.MaxAttempts)
	assert.Equal(t, clock.Now(), task.EnqueuedAt)
}

func TestScheduler_EnqueueErrors(t *testing.T) {
	pub := newRecordingPublisher()
	s := New(pub, clockwork.NewFakeClock(), 3, discardLogger())

	_, err := s.Enqueue(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyRegion)
	assert.Empty(t, pub.tasks)

	pub.err = queue.ErrClosed
	_, err = s.Enqueue(context.Background(), "KEL")
	require.True(t, errors.Is(err, queue.ErrClosed))
}

func TestNew_AttemptsAtLeastOne(t *testing.T) {
	s := New(newRecordingPublisher(), clockwork.NewFakeClock(), 0, discardLogger())
	assert.Equal(t, 1, s.maxAttempts)
}

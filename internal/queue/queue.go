// Package queue carries ingestion tasks from producers (the scheduler and
// the HTTP trigger) to the worker pool.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Publish and Consume after Close.
var ErrClosed = errors.New("queue closed")

// Trigger records what produced a task.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerRetry    Trigger = "retry"
)

// Task asks a worker to ingest one region.
type Task struct {
	ID          string    `json:"id"`
	Region      string    `json:"region"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"maxAttempts"`
	Trigger     Trigger   `json:"trigger"`
	RepeatKey   string    `json:"repeatKey,omitempty"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
}

// Delivery is a consumed task. Ack must be called once the task reaches a
// terminal outcome or has been re-published for retry.
type Delivery struct {
	Task Task
	ack  func(ctx context.Context) error
}

// NewDelivery wraps a task with its acknowledgement callback. A nil ack is a no-op.
func NewDelivery(t Task, ack func(ctx context.Context) error) Delivery {
	return Delivery{Task: t, ack: ack}
}

// Ack acknowledges the delivery to the transport.
func (d Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Queue is a task transport.
type Queue interface {
	Publish(ctx context.Context, t Task) error
	Consume(ctx context.Context) (Delivery, error)
	Close() error
}

// Memory is an in-process Queue backed by a buffered channel.
type Memory struct {
	tasks  chan Task
	closed chan struct{}
	once   sync.Once
}

// NewMemory creates a Memory queue holding up to buffer pending tasks.
func NewMemory(buffer int) *Memory {
	return &Memory{
		tasks:  make(chan Task, max(buffer, 0)),
		closed: make(chan struct{}),
	}
}

// Publish enqueues t, blocking while the buffer is full.
func (m *Memory) Publish(ctx context.Context, t Task) error {
	select {
	case <-m.closed:
		return ErrClosed
	default:
	}
	select {
	case m.tasks <- t:
		return nil
	case <-m.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume blocks until a task is available.
func (m *Memory) Consume(ctx context.Context) (Delivery, error) {
	select {
	case t := <-m.tasks:
		return NewDelivery(t, nil), nil
	case <-m.closed:
		return Delivery{}, ErrClosed
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

// Len reports the number of pending tasks.
func (m *Memory) Len() int {
	return len(m.tasks)
}

// Close stops the queue. Pending tasks are discarded.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

// Package jobs keeps a bounded history of finished ingestion tasks.
package jobs

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/flood-data-etl/internal/domain"
	"github.com/couchcryptid/flood-data-etl/internal/queue"
)

// DefaultLimit is the number of records kept per status.
const DefaultLimit = 50

// Status is the terminal outcome of a task.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus validates a status filter. An empty string means any status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case "", StatusCompleted, StatusFailed:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

// Record is one finished task.
type Record struct {
	ID         string               `json:"id"`
	Region     string               `json:"region"`
	Trigger    queue.Trigger        `json:"trigger"`
	Attempt    int                  `json:"attempt"`
	Status     Status               `json:"status"`
	Result     *domain.IngestResult `json:"result,omitempty"`
	Error      string               `json:"error,omitempty"`
	StartedAt  time.Time            `json:"startedAt"`
	FinishedAt time.Time            `json:"finishedAt"`
}

// Store records finished tasks and lists the most recent ones.
type Store interface {
	Add(ctx context.Context, r Record) error
	List(ctx context.Context, status Status, limit int) ([]Record, error)
}

// Memory is an in-process Store keeping the newest limit records per status.
type Memory struct {
	mu      sync.Mutex
	limit   int
	records map[Status][]Record // newest first
}

// NewMemory creates a Memory store. Non-positive limits use DefaultLimit.
func NewMemory(limit int) *Memory {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Memory{limit: limit, records: make(map[Status][]Record)}
}

func (m *Memory) Add(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := append([]Record{r}, m.records[r.Status]...)
	if len(list) > m.limit {
		list = list[:m.limit]
	}
	m.records[r.Status] = list
	return nil
}

func (m *Memory) List(_ context.Context, status Status, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	if status != "" {
		out = slices.Clone(m.records[status])
	} else {
		out = append(slices.Clone(m.records[StatusCompleted]), m.records[StatusFailed]...)
	}
	return Newest(out, limit), nil
}

// Newest sorts records by finish time, newest first, and truncates to limit.
// Non-positive limits keep every record.
func Newest(records []Record, limit int) []Record {
	slices.SortStableFunc(records, func(a, b Record) int {
		return b.FinishedAt.Compare(a.FinishedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	if records == nil {
		records = []Record{}
	}
	return records
}

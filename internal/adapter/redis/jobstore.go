// Package redis stores job history in Redis lists, one list per status,
// trimmed to a fixed length on every write.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/flood-data-etl/internal/jobs"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "flood-etl:jobs:"

// Connect parses a redis:// URL and verifies the server with a ping.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// JobStore implements jobs.Store.
type JobStore struct {
	client goredis.Cmdable
	limit  int
}

// NewJobStore keeps the newest limit records per status. Non-positive
// limits use jobs.DefaultLimit.
func NewJobStore(client goredis.Cmdable, limit int) *JobStore {
	if limit < 1 {
		limit = jobs.DefaultLimit
	}
	return &JobStore{client: client, limit: limit}
}

// Add pushes r onto its status list and trims the list in one transaction.
func (s *JobStore) Add(ctx context.Context, r jobs.Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("serialize job record: %w", err)
	}
	key := statusKey(r.Status)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(s.limit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("record job %s: %w", r.ID, err)
	}
	return nil
}

// List returns the newest records for status, or for every status when
// status is empty.
func (s *JobStore) List(ctx context.Context, status jobs.Status, limit int) ([]jobs.Record, error) {
	statuses := []jobs.Status{status}
	if status == "" {
		statuses = []jobs.Status{jobs.StatusCompleted, jobs.StatusFailed}
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	var out []jobs.Record
	for _, st := range statuses {
		items, err := s.client.LRange(ctx, statusKey(st), 0, stop).Result()
		if err != nil {
			return nil, fmt.Errorf("list %s jobs: %w", st, err)
		}
		for _, item := range items {
			var r jobs.Record
			if err := json.Unmarshal([]byte(item), &r); err != nil {
				return nil, fmt.Errorf("deserialize job record: %w", err)
			}
			out = append(out, r)
		}
	}
	return jobs.Newest(out, limit), nil
}

func statusKey(s jobs.Status) string {
	return keyPrefix + string(s)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/flood-data-etl/internal/adapter/feed"
	kafkaadapter "github.com/couchcryptid/flood-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/flood-data-etl/internal/adapter/portal"
	redisadapter "github.com/couchcryptid/flood-data-etl/internal/adapter/redis"
	"github.com/couchcryptid/flood-data-etl/internal/config"
	"github.com/couchcryptid/flood-data-etl/internal/domain"
	"github.com/couchcryptid/flood-data-etl/internal/jobs"
	"github.com/couchcryptid/flood-data-etl/internal/observability"
	"github.com/couchcryptid/flood-data-etl/internal/pipeline"
	"github.com/couchcryptid/flood-data-etl/internal/queue"
	"github.com/couchcryptid/flood-data-etl/internal/source"
	"github.com/couchcryptid/flood-data-etl/internal/storage"
)

// memoryQueueBuffer holds a full round of scheduled fires plus retries.
const memoryQueueBuffer = 64

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	store    *storage.Store
	ingestor *pipeline.Ingestor
	closers  []func() error
}

// newApp opens storage and builds the ingest chain. When migrate is set the
// schema is applied before returning.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (*app, error) {
	db, err := storage.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		store:   storage.NewStore(db),
		closers: []func() error{func() error { db.Close(); return nil }},
	}
	if migrate {
		if err := storage.Migrate(ctx, db); err != nil {
			_ = a.Close()
			return nil, err
		}
		logger.Info("schema migrated", "driver", db.Dialect())
	}

	src := source.New(
		portal.NewClient(cfg.PortalRainURL, cfg.PortalWaterURL, cfg.PortalTimeout),
		feed.NewClient(cfg.FeedURL, cfg.FeedTimeout),
		domain.NewNormalizer(domain.DefaultTables()),
		cfg.PortalRetries,
		logger,
		a.metrics,
	)
	a.ingestor = pipeline.NewIngestor(src, a.store, domain.NewReconciler(domain.SourcePublicInfoBanjir), logger, a.metrics)
	return a, nil
}

// queue builds the configured task transport.
func (a *app) queue() queue.Queue {
	var q queue.Queue
	if a.cfg.QueueBackend == config.BackendKafka {
		q = kafkaadapter.NewQueue(a.cfg, a.logger)
		a.logger.Info("kafka task queue", "brokers", a.cfg.KafkaBrokers, "topic", a.cfg.KafkaTopic, "group_id", a.cfg.KafkaGroupID)
	} else {
		q = queue.NewMemory(memoryQueueBuffer)
		a.logger.Info("in-memory task queue")
	}
	a.closers = append(a.closers, q.Close)
	return q
}

// jobStore builds the configured job history.
func (a *app) jobStore(ctx context.Context) (jobs.Store, error) {
	if a.cfg.JobStore != config.BackendRedis {
		return jobs.NewMemory(a.cfg.JobHistoryLimit), nil
	}
	client, err := redisadapter.Connect(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect job store: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.logger.Info("redis job history", "limit", a.cfg.JobHistoryLimit)
	return redisadapter.NewJobStore(client, a.cfg.JobHistoryLimit), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

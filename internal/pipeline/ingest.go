package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/flood-data-etl/internal/domain"
	"github.com/couchcryptid/flood-data-etl/internal/observability"
)

// Fetcher returns one region's typed rows.
type Fetcher interface {
	FetchRegion(ctx context.Context, region string) (domain.Batch, error)
}

// Store is the storage the ingest chain writes through.
type Store interface {
	ActiveStations(ctx context.Context, region string) ([]domain.Station, error)
	UpsertStations(ctx context.Context, stations []domain.StationUpsert) (int, error)
	UpsertReadings(ctx context.Context, readings []domain.Reading) (int, error)
}

// Ingestor runs fetch, reconcile and write for one region.
type Ingestor struct {
	source     Fetcher
	store      Store
	reconciler *domain.Reconciler
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewIngestor creates an Ingestor.
func NewIngestor(source Fetcher, store Store, reconciler *domain.Reconciler, logger *slog.Logger, metrics *observability.Metrics) *Ingestor {
	return &Ingestor{
		source:     source,
		store:      store,
		reconciler: reconciler,
		logger:     logger,
		metrics:    metrics,
	}
}

// Ingest fetches region, reconciles the batch and upserts the result.
// Stations are written before readings so fallback and primary readings
// always reference a registered station.
func (i *Ingestor) Ingest(ctx context.Context, region string) (domain.IngestResult, error) {
	region = strings.ToUpper(strings.TrimSpace(region))

	batch, err := i.source.FetchRegion(ctx, region)
	if err != nil {
		return domain.IngestResult{}, err
	}

	var known []domain.Station
	if batch.Mode == domain.ModeFallback {
		known, err = i.store.ActiveStations(ctx, region)
		if err != nil {
			return domain.IngestResult{}, fmt.Errorf("load active stations: %w", err)
		}
	}

	plan := i.reconciler.Plan(batch, known)

	stations, err := i.store.UpsertStations(ctx, plan.Stations)
	if err != nil {
		return domain.IngestResult{}, err
	}
	readings, err := i.store.UpsertReadings(ctx, plan.Readings)
	if err != nil {
		return domain.IngestResult{}, err
	}

	result := domain.IngestResult{
		Region: region,
		Mode:   batch.Mode,
		Scraped: domain.ScrapeCounts{
			RainRows:       batch.RainCount(),
			WaterLevelRows: batch.WaterCount(),
		},
		UpsertedStations: stations,
		PreparedReadings: plan.Prepared,
		MergedReadings:   len(plan.Readings),
		InsertedReadings: readings,
		Skipped:          plan.Skipped,
	}
	i.observe(result)
	return result, nil
}

func (i *Ingestor) observe(r domain.IngestResult) {
	i.metrics.StationsUpserted.Add(float64(r.UpsertedStations))
	i.metrics.ReadingsUpserted.Add(float64(r.InsertedReadings))
	for reason, n := range r.Skipped {
		i.metrics.RowsSkipped.WithLabelValues(string(reason)).Add(float64(n))
	}
	i.logger.Info("region ingested",
		"region", r.Region,
		"mode", r.Mode,
		"rain_rows", r.Scraped.RainRows,
		"water_level_rows", r.Scraped.WaterLevelRows,
		"stations", r.UpsertedStations,
		"prepared_readings", r.PreparedReadings,
		"readings", r.InsertedReadings,
		"skipped", r.Skipped.Total(),
	)
}

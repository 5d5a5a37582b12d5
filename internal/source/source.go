// Package source fetches one region's telemetry, scraping the portal pages
// first and falling back to the JSON feed when scraping keeps failing.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/flood-data-etl/internal/domain"
	"github.com/couchcryptid/flood-data-etl/internal/observability"
	"golang.org/x/sync/errgroup"
)

// PagesReader loads the raw rows of the two region pages.
type PagesReader interface {
	Rain(ctx context.Context, region string) (domain.RainTable, error)
	Water(ctx context.Context, region string) ([][]string, error)
}

// FeedReader loads every record of the fallback feed.
type FeedReader interface {
	Fetch(ctx context.Context) ([]domain.FeedRow, error)
}

// Source composes the primary and fallback readers.
type Source struct {
	pages      PagesReader
	feed       FeedReader
	normalizer *domain.Normalizer
	retries    int
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Source. retries is the number of extra primary attempts
// before falling back; negative values are treated as zero.
func New(pages PagesReader, feed FeedReader, n *domain.Normalizer, retries int, logger *slog.Logger, metrics *observability.Metrics) *Source {
	return &Source{
		pages:      pages,
		feed:       feed,
		normalizer: n,
		retries:    max(retries, 0),
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchRegion returns the region's typed rows. It errors only when the
// primary attempts and the fallback have all failed, or ctx is done.
func (s *Source) FetchRegion(ctx context.Context, region string) (domain.Batch, error) {
	var primaryErr error
	for attempt := 1; attempt <= s.retries+1; attempt++ {
		batch, err := s.fetchPrimary(ctx, region)
		if err == nil {
			s.observe(batch)
			return batch, nil
		}
		if ctx.Err() != nil {
			return domain.Batch{}, ctx.Err()
		}
		primaryErr = err
		s.metrics.PrimaryFailures.Inc()
		s.logger.Warn("primary scrape failed",
			"region", region,
			"attempt", attempt,
			"max_attempts", s.retries+1,
			"error", err,
		)
	}

	s.logger.Warn("falling back to json feed", "region", region, "error", primaryErr)
	batch, err := s.fetchFallback(ctx, region)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("fetch region %s: %w", region, errors.Join(primaryErr, err))
	}
	s.observe(batch)
	return batch, nil
}

// fetchPrimary loads both pages concurrently; either failure fails the attempt.
func (s *Source) fetchPrimary(ctx context.Context, region string) (domain.Batch, error) {
	var rainTable domain.RainTable
	var waterCells [][]string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.pages.Rain(gctx, region)
		rainTable = t
		return err
	})
	g.Go(func() error {
		rows, err := s.pages.Water(gctx, region)
		waterCells = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Batch{}, err
	}

	skipped := domain.SkipCounts{}
	return domain.Batch{
		Region:  region,
		Mode:    domain.ModePrimary,
		Rain:    s.normalizer.ParseRainTable(rainTable, skipped),
		Water:   s.normalizer.ParseWaterTable(waterCells, skipped),
		Skipped: skipped,
	}, nil
}

func (s *Source) fetchFallback(ctx context.Context, region string) (domain.Batch, error) {
	rows, err := s.feed.Fetch(ctx)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("fallback feed: %w", err)
	}
	skipped := domain.SkipCounts{}
	return domain.Batch{
		Region:   region,
		Mode:     domain.ModeFallback,
		Fallback: s.normalizer.FallbackReadings(rows, region, skipped),
		Skipped:  skipped,
	}, nil
}

func (s *Source) observe(b domain.Batch) {
	s.metrics.SourceMode.WithLabelValues(string(b.Mode)).Inc()
	s.metrics.RowsScraped.WithLabelValues(string(domain.KindRain)).Add(float64(b.RainCount()))
	s.metrics.RowsScraped.WithLabelValues(string(domain.KindWaterLevel)).Add(float64(b.WaterCount()))
}

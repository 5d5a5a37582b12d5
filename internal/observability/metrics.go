package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flood_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion.
type Metrics struct {
	TasksProcessed *prometheus.CounterVec // labels: outcome={completed,retried,failed}
	TaskDuration   prometheus.Histogram
	RetriesQueued  prometheus.Counter
	WorkerRunning  prometheus.Gauge

	// Source metrics.
	SourceMode      *prometheus.CounterVec // labels: mode={primary,fallback}
	PrimaryFailures prometheus.Counter
	RowsScraped     *prometheus.CounterVec // labels: kind={rain,water_level}
	RowsSkipped     *prometheus.CounterVec // labels: reason

	// Storage metrics.
	StationsUpserted prometheus.Counter
	ReadingsUpserted prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		TasksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_processed_total",
			Help:      "Ingestion task attempts by outcome.",
		}, []string{"outcome"}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of one ingestion task attempt.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		RetriesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_retries_total",
			Help:      "Task retries scheduled after a failed attempt.",
		}),
		WorkerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_running",
			Help:      "1 when the worker pool is consuming tasks, 0 when shut down.",
		}),
		SourceMode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Successful region fetches by source mode.",
		}, []string{"mode"}),
		PrimaryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "primary_attempt_failures_total",
			Help:      "Failed attempts to scrape the region pages.",
		}),
		RowsScraped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_scraped_total",
			Help:      "Rows yielded by the source by kind.",
		}, []string{"kind"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Rows dropped before persistence by reason.",
		}, []string{"reason"}),
		StationsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_upserted_total",
			Help:      "Stations written by ingestion.",
		}),
		ReadingsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_upserted_total",
			Help:      "Readings written by ingestion.",
		}),
	}
}

// NewMetrics creates and registers all ingestion metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.TasksProcessed,
		m.TaskDuration,
		m.RetriesQueued,
		m.WorkerRunning,
		m.SourceMode,
		m.PrimaryFailures,
		m.RowsScraped,
		m.RowsSkipped,
		m.StationsUpserted,
		m.ReadingsUpserted,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

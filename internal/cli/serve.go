package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/flood-data-etl/internal/adapter/http"
	"github.com/couchcryptid/flood-data-etl/internal/pipeline"
	"github.com/couchcryptid/flood-data-etl/internal/scheduler"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, worker pool and HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "apply the schema before starting")
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx, cfg, logger, serveMigrate)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close resources", "error", err)
		}
	}()

	history, err := a.jobStore(ctx)
	if err != nil {
		return err
	}
	q := a.queue()
	clock := clockwork.NewRealClock()

	worker := pipeline.NewWorker(q, a.ingestor, history, clock, logger, a.metrics, pipeline.Options{
		Concurrency:  cfg.WorkerConcurrency,
		RetryBackoff: cfg.TaskBackoff,
	})
	sched := scheduler.New(q, clock, cfg.TaskAttempts, logger)
	if cfg.ScheduleEnabled {
		added := sched.RegisterAll(scheduler.Plan(cfg.Regions, cfg.SchedulePeriod, cfg.ScheduleOffset))
		logger.Info("schedule registered", "regions", added, "period", cfg.SchedulePeriod, "offset", cfg.ScheduleOffset)
	} else {
		logger.Info("schedule disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Ready:    httpadapter.AllReady(a.store, worker),
		Enqueuer: sched,
		Ingester: a.ingestor,
		Reader:   a.store,
		Jobs:     history,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start worker pool.
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(ctx); err != nil {
			logger.Error("worker error", "error", err)
		}
	}()

	sched.Start()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
	return nil
}

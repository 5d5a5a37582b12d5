package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/flood-data-etl/internal/domain"
	"github.com/couchcryptid/flood-data-etl/internal/jobs"
	"github.com/couchcryptid/flood-data-etl/internal/scheduler"
	"github.com/couchcryptid/flood-data-etl/internal/storage"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	queryTimeout = 10 * time.Second

	// A synchronous ingest run can last as long as a portal fetch with retries.
	runWriteTimeout = 5 * time.Minute
)

// Enqueuer accepts on-demand ingestion requests.
type Enqueuer interface {
	Enqueue(ctx context.Context, region string) (string, error)
}

// Ingester runs one ingestion synchronously.
type Ingester interface {
	Ingest(ctx context.Context, region string) (domain.IngestResult, error)
}

// Reader serves the station and reading queries.
type Reader interface {
	ListStations(ctx context.Context, f storage.StationFilter) ([]domain.Station, error)
	LatestReadings(ctx context.Context, kind domain.ReadingKind, state string, limit int) ([]domain.LatestReading, error)
}

// JobLister lists recent job records.
type JobLister interface {
	List(ctx context.Context, status jobs.Status, limit int) ([]jobs.Record, error)
}

// Deps are the collaborators behind the API routes.
type Deps struct {
	Ready    sharedobs.ReadinessChecker
	Enqueuer Enqueuer
	Ingester Ingester
	Reader   Reader
	Jobs     JobLister
}

// Server exposes health, readiness, metrics and the ingestion API.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the operational and /api/v1 routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: runWriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	engine.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	engine.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(deps.Ready)))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")
	v1.POST("/jobs/ingest", s.handleEnqueue)
	v1.GET("/jobs", s.handleListJobs)
	v1.POST("/ingest/run", s.handleRun)
	v1.GET("/stations", s.handleListStations)
	v1.GET("/readings/latest/:kind", s.handleLatest)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type enqueueRequest struct {
	Region string `json:"region"`
	// State is the older name of region and is still accepted.
	State string `json:"state"`
}

func (s *Server) handleEnqueue(c *gin.Context) {
	var req enqueueRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	region := req.Region
	if region == "" {
		region = req.State
	}

	id, err := s.deps.Enqueuer.Enqueue(c.Request.Context(), region)
	if errors.Is(err, scheduler.ErrEmptyRegion) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("enqueue failed", "region", region, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true, "jobId": id, "region": normalizeRegion(region)})
}

func (s *Server) handleRun(c *gin.Context) {
	region := normalizeRegion(c.Query("region"))
	if region == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": scheduler.ErrEmptyRegion.Error()})
		return
	}
	result, err := s.deps.Ingester.Ingest(c.Request.Context(), region)
	if err != nil {
		s.logger.Error("synchronous ingest failed", "region", region, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "state": region})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListJobs(c *gin.Context) {
	status, err := jobs.ParseStatus(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, ok := positiveQuery(c, "limit", jobs.DefaultLimit)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	records, err := s.deps.Jobs.List(ctx, status, limit)
	if err != nil {
		s.internalError(c, "list jobs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": records})
}

func (s *Server) handleListStations(c *gin.Context) {
	page, ok := positiveQuery(c, "page", storage.DefaultPage)
	if !ok {
		return
	}
	limit, ok := positiveQuery(c, "limit", storage.DefaultStationLimit)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	stations, err := s.deps.Reader.ListStations(ctx, storage.StationFilter{
		State:    normalizeRegion(c.Query("state")),
		District: c.Query("district"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		s.internalError(c, "list stations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stations": stations, "page": page, "limit": limit})
}

func (s *Server) handleLatest(c *gin.Context) {
	kind := domain.ReadingKind(c.Param("kind"))
	if kind != domain.KindRain && kind != domain.KindWaterLevel {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown reading kind"})
		return
	}
	limit, ok := positiveQuery(c, "limit", storage.DefaultLatestLimit)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	items, err := s.deps.Reader.LatestReadings(ctx, kind, normalizeRegion(c.Query("state")), limit)
	if err != nil {
		s.internalError(c, "latest readings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.Error(op+" failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// positiveQuery reads an optional positive integer query parameter. On a
// bad value it writes a 400 and returns false.
func positiveQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return n, true
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func normalizeRegion(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

type allReady []sharedobs.ReadinessChecker

// AllReady is ready when every checker is.
func AllReady(checkers ...sharedobs.ReadinessChecker) sharedobs.ReadinessChecker {
	return allReady(checkers)
}

func (a allReady) CheckReadiness(ctx context.Context) error {
	for _, c := range a {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Package api exposes history reads, ingestion triggers and service status
// over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/raulk/clock"
	"go.uber.org/zap"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/ingestion"
	"midgard-metrics/internal/observability"
	"midgard-metrics/internal/query"
	"midgard-metrics/internal/scheduler"
	"midgard-metrics/internal/storage"
)

// Ingester runs one ingestion stream.
type Ingester interface {
	Run(ctx context.Context, req ingestion.Request) (*ingestion.RunResult, error)
}

// Batcher runs several streams together and reports periodic tick status.
// *scheduler.Scheduler satisfies it.
type Batcher interface {
	RunAll(ctx context.Context, from int64, streams []scheduler.Stream) (*scheduler.BatchResult, error)
	Status() scheduler.Status
}

// Options contains configuration for creating a Server.
type Options struct {
	Engine      *query.Engine
	Ingester    Ingester
	Batcher     Batcher
	Checkpoints storage.CheckpointStore // optional, listed on /status
	Secret      string                  // shared secret for trigger routes
	Clock       clock.Clock             // Default: wall clock
	Logger      *zap.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	engine      *query.Engine
	ingester    Ingester
	batcher     Batcher
	checkpoints storage.CheckpointStore
	secret      string
	clock       clock.Clock
	logger      *zap.Logger
}

// New creates a new Server.
func New(opts Options) *Server {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:      opts.Engine,
		ingester:    opts.Ingester,
		batcher:     opts.Batcher,
		checkpoints: opts.Checkpoints,
		secret:      opts.Secret,
		clock:       clk,
		logger:      logger.Named("api"),
	}
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(observability.Handler()))
	r.GET("/status", s.status)

	r.GET("/depths", s.depths)
	r.GET("/swaps", s.swaps)
	r.GET("/earnings", s.earnings)
	r.GET("/runepool", s.runePool)

	r.POST("/depths_scraper", s.trigger(domain.FamilyDepths))
	r.POST("/swaps_scraper", s.trigger(domain.FamilySwaps))
	r.POST("/earnings_scraper", s.trigger(domain.FamilyEarnings))
	r.POST("/rune_pool_scraper", s.trigger(domain.FamilyRunePool))
	r.POST("/scrape_all", s.scrapeAll)

	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.clock.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", s.clock.Now().Sub(start)))
	}
}

// historyQuery is the query string accepted by every read route.
type historyQuery struct {
	StartTime *int64 `form:"start_time" binding:"omitempty,min=0"`
	EndTime   *int64 `form:"end_time" binding:"omitempty,min=0"`
	Pool      string `form:"pool"`
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
	SortBy    string `form:"sort_by"`
	Order     string `form:"order" binding:"omitempty,oneof=asc desc"`
	Interval  string `form:"interval"`
	Summary   bool   `form:"summary"`
}

func (q historyQuery) params() query.Params {
	return query.Params{
		StartTime:      q.StartTime,
		EndTime:        q.EndTime,
		Pool:           q.Pool,
		Page:           q.Page,
		Limit:          q.Limit,
		SortBy:         q.SortBy,
		Order:          q.Order,
		Interval:       domain.BucketInterval(q.Interval),
		IncludeSummary: q.Summary,
	}
}

func bindHistory(c *gin.Context) (query.Params, bool) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return query.Params{}, false
	}
	return q.params(), true
}

func (s *Server) depths(c *gin.Context) {
	if p, ok := bindHistory(c); ok {
		rows, err := s.engine.Depths(c.Request.Context(), p)
		s.respond(c, rows, err)
	}
}

func (s *Server) swaps(c *gin.Context) {
	if p, ok := bindHistory(c); ok {
		rows, err := s.engine.Swaps(c.Request.Context(), p)
		s.respond(c, rows, err)
	}
}

func (s *Server) earnings(c *gin.Context) {
	if p, ok := bindHistory(c); ok {
		rows, err := s.engine.Earnings(c.Request.Context(), p)
		s.respond(c, rows, err)
	}
}

func (s *Server) runePool(c *gin.Context) {
	if p, ok := bindHistory(c); ok {
		rows, err := s.engine.RunePool(c.Request.Context(), p)
		s.respond(c, rows, err)
	}
}

func (s *Server) respond(c *gin.Context, rows any, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, rows)
	case query.IsClientError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("query failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type checkpointView struct {
	Family    string `json:"family"`
	Pool      string `json:"pool,omitempty"`
	Position  int64  `json:"position"`
	UpdatedAt int64  `json:"updated_at"`
}

type statusResponse struct {
	Scheduler   *scheduler.Status `json:"scheduler,omitempty"`
	Checkpoints []checkpointView  `json:"checkpoints,omitempty"`
}

func (s *Server) status(c *gin.Context) {
	var resp statusResponse
	if s.batcher != nil {
		st := s.batcher.Status()
		resp.Scheduler = &st
	}
	if s.checkpoints != nil {
		cps, err := s.checkpoints.List(c.Request.Context())
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("list checkpoints failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		for _, cp := range cps {
			resp.Checkpoints = append(resp.Checkpoints, checkpointView{
				Family:    cp.Family,
				Pool:      cp.Pool,
				Position:  cp.Position,
				UpdatedAt: cp.UpdatedAt,
			})
		}
	}
	c.JSON(http.StatusOK, resp)
}

package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/ingestion"
	"midgard-metrics/internal/scheduler"
)

type triggerRequest struct {
	Secret    string `json:"secret"`
	Pool      string `json:"pool"`
	Interval  string `json:"interval"`
	StartTime *int64 `json:"start_time" binding:"required"`
}

type scrapeAllRequest struct {
	Secret string `json:"secret"`
	Pool   string `json:"pool"`
}

type runResponse struct {
	Result *ingestion.RunResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

type batchResponse struct {
	*scheduler.BatchResult
	Error string `json:"error,omitempty"`
}

// authorized compares the supplied secret in constant time. With no
// configured secret every trigger is refused.
func (s *Server) authorized(c *gin.Context, supplied string) bool {
	if s.secret != "" && subtle.ConstantTimeCompare([]byte(supplied), []byte(s.secret)) == 1 {
		return true
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong secret key"})
	return false
}

// trigger runs one stream to completion from the requested start time.
func (s *Server) trigger(family string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body triggerRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !s.authorized(c, body.Secret) {
			return
		}

		result, err := s.ingester.Run(c.Request.Context(), ingestion.Request{
			Family:   family,
			Pool:     body.Pool,
			Interval: domain.BucketInterval(body.Interval),
			From:     *body.StartTime,
		})
		switch {
		case err == nil:
			c.JSON(http.StatusOK, runResponse{Result: result})
		case errors.Is(err, ingestion.ErrPoolRequired),
			errors.Is(err, ingestion.ErrUnsupportedInterval),
			errors.Is(err, ingestion.ErrUnknownFamily):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			s.logger.Error("triggered run failed", zap.String("family", family), zap.Error(err))
			c.JSON(http.StatusInternalServerError, runResponse{Result: result, Error: err.Error()})
		}
	}
}

// scrapeAll runs every stream from one hour ago. A pool in the body
// replaces the configured pools for this batch.
func (s *Server) scrapeAll(c *gin.Context) {
	var body scrapeAllRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.authorized(c, body.Secret) {
		return
	}

	var streams []scheduler.Stream
	if body.Pool != "" {
		streams = scheduler.Streams([]string{body.Pool})
	}
	from := s.clock.Now().Add(-time.Hour).Unix()

	batch, err := s.batcher.RunAll(c.Request.Context(), from, streams)
	if err != nil {
		s.logger.Error("scrape all failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, batchResponse{BatchResult: batch, Error: "one or more jobs failed"})
		return
	}
	c.JSON(http.StatusOK, batchResponse{BatchResult: batch})
}

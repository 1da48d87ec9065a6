// Package api serves run progress over HTTP and websocket, and accepts new
// runs.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jorge-barreto/tome/internal/pipeline"
)

const requestIDKey = "requestID"

// Launcher starts and cancels background runs. *pipeline.Launcher
// implements it.
type Launcher interface {
	Start(req pipeline.Request) (string, error)
	Cancel(runID string) bool
	Running() []string
}

// Defaults fill in omitted request fields.
type Defaults struct {
	Audience string
	Words    int
}

// NewRouter builds the gin engine for s.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), withRequestID(), accessLog(s.log()))

	r.GET("/healthz", s.health)

	runs := r.Group("/api/runs")
	runs.POST("", s.startRun)
	runs.GET("", s.listRuns)
	runs.GET("/:id", s.getRun)
	runs.DELETE("/:id", s.cancelRun)
	runs.GET("/:id/artifact", s.artifact)

	r.GET("/ws/runs/:id", s.watchRun)
	return r
}

func withRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func accessLog(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID(c))
	}
}

// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/metrics"
)

// RunRequest is the optional JSON body of POST /run.
type RunRequest struct {
	Config string `json:"config"`
	DryRun bool   `json:"dry_run"`
	// RunID is assigned by the server.
	RunID string `json:"-"`
}

// RunFunc executes one pipeline run and returns a JSON-serializable result.
type RunFunc func(ctx context.Context, req RunRequest) (any, error)

type Handler struct {
	run     RunFunc
	metrics *metrics.Metrics
	apiKey  string
	timeout time.Duration

	busy sync.Mutex
}

// NewHandler builds the handler. An empty apiKey disables authentication.
func NewHandler(run RunFunc, m *metrics.Metrics, apiKey string) *Handler {
	if m == nil {
		m = metrics.Global
	}
	return &Handler{run: run, metrics: m, apiKey: apiKey, timeout: 30 * time.Minute}
}

// NewServer creates the gin engine with all routes.
func NewServer(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger())
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)
	r.GET("/metrics", h.Metrics)
	r.POST("/run", h.requireAPIKey, h.Run)
	return r
}

func requestLogger() gin.HandlerFunc {
	log := logger.Component("server")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

func (h *Handler) requireAPIKey(c *gin.Context) {
	if h.apiKey == "" {
		c.Next()
		return
	}
	got := c.GetHeader("X-API-Key")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.apiKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "invalid api key"})
		return
	}
	c.Next()
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	stats := h.metrics.GetStats()
	status, code := "ok", http.StatusOK
	if !h.metrics.Healthy() {
		status, code = "error", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":        status,
		"last_run_id":   stats["last_run_id"],
		"last_run_time": stats["last_run_time"],
		"last_error":    stats["last_error"],
	})
}

// Metrics handles GET /metrics.
func (h *Handler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetStats())
}

// Run handles POST /run. Only one run executes at a time; concurrent requests
// get 409.
func (h *Handler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body: " + err.Error()})
		return
	}

	if !h.busy.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"status": "error", "error": "a run is already in progress"})
		return
	}
	defer h.busy.Unlock()

	req.RunID = uuid.NewString()
	log := logger.Component("server").With("run_id", req.RunID)
	log.Info("run requested", "config", req.Config, "dry_run", req.DryRun)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	out, err := h.run(ctx, req)
	if err != nil {
		log.Error("run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "run_id": req.RunID, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "run_id": req.RunID, "output": out})
}

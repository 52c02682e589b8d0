// Package dashboard provides the admin HTTP server for GoDispatcher.
//
// It exposes:
//   - GET /api/stats         – pool and request counters (JSON)
//   - GET /api/stats/stream  – SSE stream of the same payload (1 s ticks)
//   - GET /api/config        – the running configuration (JSON)
//   - GET /healthz           – 200 while the pool accepts work, 503 after
//   - GET /metrics           – Prometheus exposition of the metrics registry
//
// The dashboard is read-only.  It never submits work to the pool.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/firasghr/GoDispatcher/config"
	"github.com/firasghr/GoDispatcher/logger"
	"github.com/firasghr/GoDispatcher/metrics"
	"github.com/firasghr/GoDispatcher/worker"
)

// Pool is the view of the worker pool the dashboard reports on.
// *worker.ThreadPool satisfies it.
type Pool interface {
	Stats() worker.Stats
	IsShutdown() bool
}

// Snapshot is the JSON payload served by /api/stats and its stream.
type Snapshot struct {
	Timestamp int64        `json:"timestamp"`
	Total     uint64       `json:"total"`
	Success   uint64       `json:"success"`
	Failed    uint64       `json:"failed"`
	RPS       float64      `json:"rps"`
	Pool      worker.Stats `json:"pool"`
}

const streamInterval = time.Second

// Server serves the dashboard endpoints on a gin engine.
type Server struct {
	metrics *metrics.Metrics
	cfg     *config.Config
	pool    Pool
	log     *logger.Logger

	engine *gin.Engine

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// New creates a dashboard Server.  Call Start to begin accepting
// connections, or mount Handler on an existing server.
func New(m *metrics.Metrics, cfg *config.Config, pool Pool, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		metrics: m,
		cfg:     cfg,
		pool:    pool,
		log:     log.With("component", "dashboard"),
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.accessLog(), withCORS())
	s.registerRoutes()
	return s
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	api.GET("/stats", s.handleStats)
	api.GET("/stats/stream", s.handleStatsStream)
	api.GET("/config", s.handleConfig)
}

// Start binds addr and serves in the background.  The returned error only
// covers binding; serving errors are logged.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("dashboard: already started")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dashboard: listen on %s: %w", addr, err)
	}
	// WriteTimeout stays disabled for the SSE stream.
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.srv, s.ln = srv, ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("serve: %v", err)
		}
	}()
	s.log.Infof("listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops the server, waiting for open requests until ctx is done.
// Open SSE streams are cut when ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("dashboard: shutdown: %w", err)
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debugf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}

func withCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) snapshot() Snapshot {
	total, success, failed := s.metrics.Snapshot()
	return Snapshot{
		Timestamp: time.Now().UnixMilli(),
		Total:     total,
		Success:   success,
		Failed:    failed,
		RPS:       s.metrics.RequestsPerSecond(),
		Pool:      s.pool.Stats(),
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.pool.IsShutdown() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleStatsStream(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// First event goes out immediately so clients render without waiting a tick.
	c.SSEvent("stats", s.snapshot())
	c.Writer.Flush()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()
	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			c.SSEvent("stats", s.snapshot())
			return true
		}
	})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg)
}

// Package api exposes manual scans, scan history and metrics over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PhiFever/idbadge-scanner/internal/config"
	"github.com/PhiFever/idbadge-scanner/internal/logger"
	"github.com/PhiFever/idbadge-scanner/internal/scanner"
	"github.com/PhiFever/idbadge-scanner/internal/store"
)

// Server is the HTTP surface of the scanner
type Server struct {
	cfg      config.ServerConfig
	areas    []string
	pipeline *scanner.Pipeline
	store    store.Store
	gatherer prometheus.Gatherer
	engine   *gin.Engine
}

// New wires the routes. gatherer may be nil to disable /metrics.
func New(cfg config.ServerConfig, areas []string, pipeline *scanner.Pipeline, st store.Store, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		cfg:      cfg,
		areas:    areas,
		pipeline: pipeline,
		store:    st,
		gatherer: gatherer,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	s.setupRoutes(r)
	s.engine = r
	return s
}

func (s *Server) setupRoutes(r *gin.Engine) {
	r.GET("/health", s.healthHandler)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/areas", s.areasHandler)
	api.POST("/scans", s.createScanHandler)
	api.GET("/scans", s.listScansHandler)
	api.GET("/scans/summary", s.summaryHandler)
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[API] Listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("[API] Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		msg := "[API] %s %s %d (%v)"
		if status >= http.StatusInternalServerError {
			logger.ErrorfNoTrace(msg, c.Request.Method, c.Request.URL.Path, status, time.Since(start))
			return
		}
		logger.Debugf(msg, c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}

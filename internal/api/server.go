// Package api exposes peak detection and calibration over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"voltammetry-lab/internal/analysis"
	"voltammetry-lab/internal/calibration"
	"voltammetry-lab/internal/observability"
)

// Options for creating a Server.
type Options struct {
	Analyzer    *analysis.Analyzer
	Selector    *calibration.Selector
	Trainer     *calibration.Trainer
	Dataset     *calibration.Dataset
	MetricsPath string // "" disables the metrics route
	Logger      logrus.FieldLogger
}

// Server serves the HTTP API.
type Server struct {
	analyzer *analysis.Analyzer
	selector *calibration.Selector
	trainer  *calibration.Trainer
	dataset  *calibration.Dataset
	log      logrus.FieldLogger
	router   *gin.Engine
}

// NewServer creates a server and its routes.
func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		analyzer: opts.Analyzer,
		selector: opts.Selector,
		trainer:  opts.Trainer,
		dataset:  opts.Dataset,
		log:      log,
	}
	s.router = s.setupRoutes(opts.MetricsPath)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(metricsPath string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(s.log))
	router.Use(requestMetrics())

	router.GET("/health", s.health)
	if metricsPath != "" {
		router.GET(metricsPath, gin.WrapH(observability.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/peaks/detect", s.detectPeaks)
		v1.GET("/calibrations", s.calibrationInfo)
		v1.POST("/calibrations/apply", s.applyCalibration)
		v1.POST("/calibrations/compare", s.compareCurves)
		v1.POST("/calibrations/train", s.train)
	}

	return router
}

// Run listens on addr until ctx is cancelled, then shuts down within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

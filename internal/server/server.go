// Package server exposes file checks over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Vzurxy/discord-crasher-checker/internal/config"
	"github.com/Vzurxy/discord-crasher-checker/internal/logging"
	"github.com/Vzurxy/discord-crasher-checker/internal/media"
	"github.com/Vzurxy/discord-crasher-checker/internal/processing"
	"github.com/Vzurxy/discord-crasher-checker/internal/util"
	"github.com/Vzurxy/discord-crasher-checker/internal/worker"
)

const (
	uploadPrefix    = "crashcheck-upload"
	staleUploadAge  = time.Hour
	shutdownTimeout = 10 * time.Second
)

// Server is the HTTP check service.
type Server struct {
	config     config.ServeConfig
	router     *mux.Router
	httpServer *http.Server
	opener     media.Opener
	checkOpts  processing.Options
	sem        *worker.Semaphore
	limiter    *rate.Limiter
	logger     *logging.Logger
	uploadDir  string
}

// New creates a server checking uploads with opener. Concurrent checks
// are bounded by cfg.Workers.
func New(cfg *config.Config, opener media.Opener, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Global()
	}

	s := &Server{
		config:  cfg.Serve,
		router:  mux.NewRouter(),
		opener:  opener,
		sem:     worker.NewSemaphore(cfg.Workers),
		limiter: rate.NewLimiter(rate.Limit(cfg.Serve.RateLimit), cfg.Serve.RateBurst),
		logger:  logger.WithPrefix("server"),
		checkOpts: processing.Options{
			Timeout: cfg.ScanTimeout,
			Backend: cfg.Backend.String(),
			Logger:  logger,
		},
		uploadDir: os.TempDir(),
	}
	s.checkOpts.Detector.SkipFormats = cfg.SkipFormats
	s.checkOpts.Detector.MaxPackets = cfg.MaxPackets

	s.setupRoutes()
	return s
}

// SetUploadDir changes where request bodies are spooled.
func (s *Server) SetUploadDir(dir string) {
	s.uploadDir = dir
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.metricsMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle(s.config.MetricsPath, promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/check", s.handleCheck).Methods(http.MethodPost)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := util.EnsureDirectoryWritable(s.uploadDir); err != nil {
		return err
	}
	if n, err := util.CleanupStaleTempFiles(s.uploadDir, uploadPrefix, staleUploadAge); err != nil {
		s.logger.Warn("stale upload cleanup failed", "dir", s.uploadDir, "error", err)
	} else if n > 0 {
		s.logger.Info("removed stale uploads", "count", n)
	}
	util.CheckDiskSpace(s.uploadDir, func(format string, args ...any) {
		s.logger.Warn(fmt.Sprintf(format, args...))
	})

	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.config.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(shutdownCtx)
}

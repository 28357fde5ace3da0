// Package server exposes mask, cut, trace and compose over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chaos-io/outline/config"
	"github.com/chaos-io/outline/session"
	"github.com/chaos-io/outline/trace"
)

// ErrQueueFull is returned when no processing slot frees up within the queue timeout.
var ErrQueueFull = errors.New("processing queue is full, retry later")

// Server owns the gin engine, the result store and the retention job.
type Server struct {
	cfg        config.Server
	runner     *session.Runner
	vectorizer trace.Vectorizer
	traceCfg   trace.Config
	store      *Store
	retention  time.Duration

	semaphore    chan struct{}
	queueTimeout time.Duration

	engine *gin.Engine
	cron   *cron.Cron
	logger *zap.Logger
}

// New wires a server from cfg.
func New(cfg *config.Config, runner *session.Runner, vectorizer trace.Vectorizer, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := NewStore(cfg.Server.OutputDir, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:          cfg.Server,
		runner:       runner,
		vectorizer:   vectorizer,
		traceCfg:     cfg.Trace.Config,
		store:        store,
		retention:    cfg.Retention(),
		semaphore:    make(chan struct{}, cfg.Server.MaxConcurrent),
		queueTimeout: cfg.QueueTimeout(),
		logger:       logger,
	}

	if s.retention > 0 {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(cfg.Server.CleanupSchedule, s.pruneResults); err != nil {
			return nil, fmt.Errorf("schedule cleanup: %w", err)
		}
	}

	gin.SetMode(cfg.Server.Mode)
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = int64(s.cfg.MaxUploadMB) << 20
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(bodyLimit(int64(s.cfg.MaxUploadMB) << 20))
	{
		api.POST("/mask", s.handleMask)
		api.POST("/cut", s.handleCut)
		api.POST("/trace", s.handleTrace)
		api.POST("/compose", s.handleCompose)
		api.GET("/results/:id/:name", s.handleResult)
	}
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Bind,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cron != nil {
		s.cron.Start()
		defer func() {
			<-s.cron.Stop().Done()
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("bind", s.cfg.Bind))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) pruneResults() {
	removed, err := s.store.Prune(s.retention)
	if err != nil {
		s.logger.Warn("result cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("expired results removed", zap.Int("count", removed))
	}
}

// acquire waits for a processing slot for at most the queue timeout.
func (s *Server) acquire(ctx context.Context) (func(), error) {
	release := func() { <-s.semaphore }
	select {
	case s.semaphore <- struct{}{}:
		return release, nil
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		return release, nil
	case <-ctx.Done():
		return nil, ErrQueueFull
	}
}

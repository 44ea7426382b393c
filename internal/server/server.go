// Package server implements the collector that receives CSM batches and remote logs from
// agents.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/and161185/csm-transport/internal/config"
	"github.com/and161185/csm-transport/internal/server/middleware"
	"github.com/and161185/csm-transport/model"
	"github.com/and161185/csm-transport/storage"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mocks/mock_storage.go -package=mocks github.com/and161185/csm-transport/internal/server Storage

const maxBodySize = 8 << 20

// Storage keeps what the collector receives.
type Storage interface {
	SaveMetrics(ctx context.Context, req model.MetricRequest) error
	SaveLogs(ctx context.Context, logs []model.RemoteLogRecords) error
	Stats(ctx context.Context) (storage.Stats, error)
	Ping(ctx context.Context) error
}

type Server struct {
	storage Storage
	config  *config.ServerConfig
	logger  *zap.SugaredLogger
}

func NewServer(storage Storage, cfg *config.ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		storage: storage,
		config:  cfg,
		logger:  logger,
	}
}

// Router returns the collector routes.
func (srv *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.LogMiddleware(srv.logger))

	router.Get("/ping", srv.PingHandler)
	router.Get("/metrics", promhttp.Handler().ServeHTTP)
	router.With(middleware.CompressMiddleware).Get("/stats", srv.StatsHandler)

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.RequestSize(maxBodySize))
		r.Use(middleware.VerifyHashMiddleware(srv.config.Key))
		r.Use(middleware.DecompressMiddleware)
		r.Post("/csm", srv.MetricsHandler)
		r.Post("/logs", srv.LogsHandler)
	})
	return router
}

// Run serves until ctx is done, then shuts down gracefully.
func (srv *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              srv.config.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.logger.Infof("collector listening on %s", srv.config.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	grace := time.Duration(srv.config.ShutdownGrace) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	srv.logger.Info("collector stopped")
	return nil
}

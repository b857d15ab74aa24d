package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/nulzo/generation-router/internal/analytics"
	"github.com/nulzo/generation-router/internal/config"
	"github.com/nulzo/generation-router/internal/platform/metrics"
	"github.com/nulzo/generation-router/internal/router"
	"github.com/nulzo/generation-router/internal/server/middleware"
	"github.com/nulzo/generation-router/internal/server/validator"
	"github.com/nulzo/generation-router/internal/store"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Deps are the services the HTTP layer is built on. Metrics and Store may be nil.
type Deps struct {
	Router    *router.Router
	Analytics analytics.Service
	Store     store.Repository
	Metrics   *metrics.Collector
}

type Server struct {
	engine *gin.Engine
	http   *http.Server
	config *config.Config
	logger *zap.Logger
	deps   Deps
}

func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.InitValidator()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		ginzap.RecoveryWithZap(logger, true),
		middleware.Logger(logger),
	)
	if cfg.Tracing.Enabled {
		engine.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	engine.Use(middleware.CORS(), middleware.ErrorHandler(logger))

	s := &Server{
		engine: engine,
		config: cfg,
		logger: logger,
		deps:   deps,
	}
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

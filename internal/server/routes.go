package server

import (
	"github.com/gin-gonic/gin"
	"github.com/nulzo/generation-router/internal/server/middleware"
	v1 "github.com/nulzo/generation-router/internal/server/v1"
)

func (s *Server) setupRoutes() {
	registry := s.deps.Router.Registry()

	health := v1.NewHealthHandler(registry, s.deps.Store)
	s.engine.GET("/health", health.Health)

	if s.deps.Metrics != nil && s.config.Metrics.Enabled {
		s.engine.GET(s.config.Metrics.Path, gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := s.engine.Group("/v1")
	if s.config.Server.AuthEnabled {
		api.Use(middleware.Auth(s.config.Server.APIKeys))
	}
	if rl := s.config.RateLimit; rl.RequestsPerSecond > 0 {
		api.Use(middleware.NewRateLimiter(rl.RequestsPerSecond, rl.Burst, s.logger).Middleware())
	}

	generate := v1.NewGenerateHandler(s.deps.Router)
	api.POST("/generate", generate.Generate)

	backends := v1.NewBackendHandler(registry)
	api.GET("/backends", backends.ListBackends)

	if s.deps.Analytics != nil {
		generations := v1.NewGenerationHandler(s.deps.Analytics)
		api.GET("/generations/:id", generations.GetGeneration)

		analytics := v1.NewAnalyticsHandler(s.deps.Analytics)
		api.GET("/analytics/backends", analytics.BackendSummaries)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nulzo/generation-router/cmd"
	"github.com/nulzo/generation-router/internal/analytics"
	"github.com/nulzo/generation-router/internal/config"
	"github.com/nulzo/generation-router/internal/platform/logger"
	"github.com/nulzo/generation-router/internal/platform/metrics"
	"github.com/nulzo/generation-router/internal/platform/otel"
	"github.com/nulzo/generation-router/internal/router"
	"github.com/nulzo/generation-router/internal/server"
	"github.com/nulzo/generation-router/internal/store/cache"
	"github.com/nulzo/generation-router/internal/store/sqlstore"
	"go.uber.org/zap"

	// Adapters register their factories in init().
	_ "github.com/nulzo/generation-router/internal/llm/anthropic"
	_ "github.com/nulzo/generation-router/internal/llm/google"
	_ "github.com/nulzo/generation-router/internal/llm/ollama"
	_ "github.com/nulzo/generation-router/internal/llm/openai"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run() error {
	reloads := make(chan *config.Config, 1)
	cfg, err := config.Watch(func(next *config.Config) {
		// keep only the newest pending reload
		select {
		case <-reloads:
		default:
		}
		reloads <- next
	}, func(err error) {
		logger.Warn("Ignoring invalid configuration change", zap.Error(err))
	})
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logger.Initialize(logCfg)
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkForUpdates(ctx, log)

	var cleanup shutdownStack
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := cleanup.run(shutdownCtx); err != nil {
			log.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	shutdownTracer, err := otel.Setup(cfg.Tracing, log, os.Stdout)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	cleanup.push("tracer", shutdownTracer)

	repo, err := sqlstore.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	cleanup.push("database", func(context.Context) error { return repo.Close() })

	ingestor := analytics.NewIngestor(log.Named("ingestor"), repo)
	// The writer outlives the signal context so Stop can drain it.
	ingestor.Start(context.Background())
	cleanup.push("ingestor", func(context.Context) error {
		ingestor.Stop()
		return nil
	})

	retention := analytics.NewRetention(repo, cfg.Database.Retention, cfg.Database.PruneSchedule, log.Named("retention"))
	if err := retention.Start(ctx); err != nil {
		return err
	}
	cleanup.push("retention", func(context.Context) error {
		retention.Stop()
		return nil
	})

	c, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	registry, err := router.BuildRegistry(cfg.EnabledBackends(), log)
	if err != nil {
		return fmt.Errorf("backends: %w", err)
	}

	routerCfg, err := router.ConfigFrom(cfg.Router)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	collector := metrics.NewCollector(registry.All)
	r := router.New(routerCfg, registry,
		router.WithLogger(log.Named("router")),
		router.WithObserver(collector, ingestor),
		router.WithAvailabilityChecker(router.NewCachedChecker(c, cfg.Router.AvailabilityTTL)),
	)

	go watchReloads(ctx, reloads, registry, log)

	srv := server.New(cfg, log, server.Deps{
		Router:    r,
		Analytics: analytics.NewService(repo),
		Store:     repo,
		Metrics:   collector,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// watchReloads rebuilds the backend set and log level on every configuration change.
// Router defaults are fixed at startup and need a restart.
func watchReloads(ctx context.Context, reloads <-chan *config.Config, registry *router.Registry, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-reloads:
			logger.SetLevel(next.Log.Level)
			backends := router.BuildBackends(next.EnabledBackends(), log)
			carried, err := registry.Reload(backends)
			if err != nil {
				log.Error("Keeping previous backends after failed reload", zap.Error(err))
				continue
			}
			log.Info("Configuration reloaded",
				zap.Int("backends", len(backends)),
				zap.Int("history_kept", carried),
			)
		}
	}
}

func checkForUpdates(ctx context.Context, log *zap.Logger) {
	update, err := cmd.CheckForUpdates(ctx, cmd.ReleaseURL, cmd.AppVersion)
	if err != nil {
		log.Debug("Update check failed", zap.Error(err))
		return
	}
	if update != nil {
		log.Warn("A newer release is available",
			zap.String("current", update.Current),
			zap.String("latest", update.Latest),
		)
	}
}

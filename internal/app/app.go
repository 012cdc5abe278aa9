package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/indrav/forecourt/internal/api"
	"github.com/indrav/forecourt/internal/config"
	"github.com/indrav/forecourt/internal/db"
	"github.com/indrav/forecourt/internal/dnscheck"
	"github.com/indrav/forecourt/internal/history"
	"github.com/indrav/forecourt/internal/hostname"
	"github.com/indrav/forecourt/internal/lifecycle"
	"github.com/indrav/forecourt/internal/metrics"
	"github.com/indrav/forecourt/internal/monitor"
	"github.com/indrav/forecourt/internal/registry"
)

// App is the main application
type App struct {
	config        *config.Config
	database      *db.DB
	historyStore  *history.Store
	store         *registry.Store
	service       *lifecycle.Service
	apiServer     *api.Server
	metricsServer *metrics.Server
	collector     *metrics.Collector
	monitor       *monitor.Monitor
	logger        *slog.Logger
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	database, err := db.New(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	historyStore, err := history.NewStore(cfg.Storage.HistoryPath)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	store := registry.NewStore(database.DB)

	resolver := dnscheck.NewNetResolver(cfg.DNS.ResolverAddr, cfg.DNS.Timeout)
	engine := dnscheck.NewEngine(resolver, cfg.DNS.ExpectedA, cfg.DNS.ExpectedCNAME)
	validator := hostname.New(cfg.DNS.ReservedSuffixes)

	service := lifecycle.NewService(store, engine, validator, historyStore,
		logger.With("component", "lifecycle"))

	a := &App{
		config:       cfg,
		database:     database,
		historyStore: historyStore,
		store:        store,
		service:      service,
		apiServer:    api.NewServer(service, &cfg.API, logger.With("component", "api")),
		logger:       logger,
	}

	if cfg.Metrics.Enabled {
		m := metrics.New()
		metrics.SetGlobal(m)
		a.metricsServer = metrics.NewServer(m, cfg.Metrics.ListenAddr, cfg.Metrics.Path,
			cfg.Metrics.AllowedIPs, logger.With("component", "metrics"))
		a.collector = metrics.NewCollector(m, statusCounts{store}, 0)
	}

	if cfg.Monitor.Enabled {
		a.monitor = monitor.New(store, service, cfg.Monitor.Interval,
			logger.With("component", "monitor"))
	}

	return a, nil
}

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting forecourt",
		"hostname", a.config.Server.Hostname,
		"api_addr", a.config.API.ListenAddr,
		"monitor", a.config.Monitor.Enabled,
		"metrics", a.config.Metrics.Enabled,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}
	if a.collector != nil {
		go a.collector.Start(ctx)
	}

	if a.monitor != nil {
		go a.monitor.Run(ctx)
	}

	if a.config.Storage.HistoryMaxAge > 0 {
		go a.pruneHistoryLoop(ctx)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if err := a.historyStore.Close(); err != nil {
		a.logger.Error("history store close error", "error", err)
	}
	if err := a.database.Close(); err != nil {
		a.logger.Error("database close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// pruneHistoryLoop deletes old verification checks once a day
func (a *App) pruneHistoryLoop(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-a.config.Storage.HistoryMaxAge)
			removed, err := a.historyStore.Prune(cutoff)
			if err != nil {
				a.logger.Error("history prune failed", "error", err)
				continue
			}
			if removed > 0 {
				a.logger.Info("pruned verification history", "removed", removed)
			}
		}
	}
}

// statusCounts adapts the registry store to the metrics collector.
type statusCounts struct {
	store *registry.Store
}

func (s statusCounts) CountByStatus(ctx context.Context) (map[string]int, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out, nil
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentalhub/internal/api"
	"rentalhub/internal/config"
	"rentalhub/internal/database"
	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/export"
	"rentalhub/internal/lock"
	"rentalhub/internal/logging"
	"rentalhub/internal/metrics"
	"rentalhub/internal/pgstore"
	"rentalhub/internal/service"
	"rentalhub/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, sqliteDB, err := initStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	locker := lock.New(cfg.Locking, redisClient, logging.Component(logger, "lock"))

	bus := events.NewEventBus()
	bus.Subscribe(events.AllEvents, logEvent(logging.Component(logger, "events")))

	catalog := service.NewCatalogService(store, logging.Component(logger, "catalog"))
	if err := catalog.SyncProducts(ctx, cfg.Products); err != nil {
		logger.Error().Err(err).Msg("sync product catalog")
		return err
	}

	exporter := export.NewExporter(store, cfg.Exports.Path, logging.Component(logger, "export"))
	if cfg.Exports.AutoRefresh {
		reports := worker.NewReportWorker(exporter, redisClient, worker.RetryPolicy{
			MaxRetries: cfg.Exports.MaxRetries,
			Backoff:    lock.RetryPolicy{InitialDelay: cfg.Exports.RetryDelay, MaxDelay: time.Minute, BackoffFactor: 2},
		}, logging.Component(logger, "report-worker"))
		reports.Subscribe(bus)
		go reports.Start(ctx)
	}

	svc := api.Services{
		Rentals:   service.NewRentalService(store, locker, bus, cfg.Rentals.Strict(), logging.Component(logger, "rentals")),
		Payments:  service.NewPaymentService(store, bus, logging.Component(logger, "payments")),
		Catalog:   catalog,
		Dashboard: service.NewDashboardService(store),
		Exporter:  exporter,
	}

	if sqliteDB != nil {
		backup := database.NewBackupService(sqliteDB, cfg.Backup, logging.Component(logger, "backup"))
		go backup.Start(ctx)
	}

	startMetrics(ctx, cfg, logger)

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}
	httpServer := api.NewHTTPServer(cfg.API, svc, store, logging.Component(logger, "http"))

	return serve(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

// initStore also returns the SQLite handle when that driver is selected, for backups.
func initStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Store, *database.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		store, err := pgstore.Connect(ctx, cfg.Database.Postgres, logging.Component(logger, "pgstore"))
		if err != nil {
			logger.Error().Err(err).Str("host", cfg.Database.Postgres.Host).Msg("init postgres")
			return nil, nil, err
		}
		return store, nil, nil
	default:
		db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, nil, err
		}
		return db, db, nil
	}
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := lock.NewRedisClient(cfg.Redis)
	if err := lock.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func logEvent(logger *zerolog.Logger) events.EventHandler {
	return func(e *events.Event) error {
		logger.Debug().Str("event", e.Type).RawJSON("payload", e.Payload).Msg("domain event")
		return nil
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

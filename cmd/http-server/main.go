package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ksred/index-migrator/internal/api"
	"github.com/ksred/index-migrator/internal/config"
	"github.com/ksred/index-migrator/internal/database"
	"github.com/ksred/index-migrator/internal/database/migrations"
	"github.com/ksred/index-migrator/internal/index"
	"github.com/ksred/index-migrator/internal/lock"
	"github.com/ksred/index-migrator/internal/metrics"
	"github.com/ksred/index-migrator/internal/migrate"
	"github.com/ksred/index-migrator/internal/store"
	"github.com/ksred/index-migrator/internal/utils"
)

// Standalone admin API server. Runs no scheduler: jobs execute only when
// triggered through the API, contending on the same distributed lock as any
// daemon working the tenant.
func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := loadConfiguration(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)
	logger.Info().Int("port", cfg.HTTP.Port).Msg("Starting admin API server")

	db, err := connectToDatabase(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}()

	if err := runMigrations(context.Background(), db, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close redis connection")
		}
	}()

	provider, err := index.NewOpenSearchProvider(index.ProviderConfig{
		SourceAddresses:      cfg.Search.SourceAddresses,
		DestinationAddresses: cfg.Search.DestinationAddresses,
		Username:             cfg.Search.Username,
		Password:             cfg.Search.Password,
		SourceIndexPrefix:    cfg.Search.SourceIndexPrefix,
		DestIndexPrefix:      cfg.Search.DestIndexPrefix,
		RequestTimeout:       cfg.Search.RequestTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create index clients")
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.NewMetrics(registry)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to register metrics")
	}

	recordStore := store.NewRecordStore(db.DB(), logger)
	opts := migrate.OptionsFromConfig(cfg.Migration)
	policy := migrate.MaxAttemptsPolicy{MaxAttempts: cfg.Migration.MaxAttempts}

	discovery := migrate.NewDiscoveryJob(recordStore,
		lock.NewRedisLocker(rdb, cfg.Migration.LockRetryInterval, logger), m, logger, opts)
	migration := migrate.NewMigrationJob(recordStore,
		lock.NewRedisLocker(rdb, cfg.Migration.LockRetryInterval, logger),
		provider, index.NewChunkTransformer(), policy, m, logger, opts)

	server, err := api.NewServer(cfg, db, recordStore, discovery, migration, registry, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create HTTP server")
	}

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.HTTP.Port); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverErrChan:
		logger.Error().Err(err).Msg("HTTP server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to gracefully shutdown HTTP server")
	}

	logger.Info().Msg("Shutdown complete")
}

// loadConfiguration loads the application configuration
func loadConfiguration(configPath string) (*config.Config, error) {
	cfg := config.LoadConfigOrDefault(configPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setupLogging configures the application logger
func setupLogging(cfg *config.Config) zerolog.Logger {
	logConfig := utils.LoggerConfig{
		Level:      cfg.Server.LogLevel,
		Pretty:     cfg.Server.Debug,
		CallerInfo: cfg.Server.Debug,
		LogFile:    os.Getenv("LOG_FILE"),
	}

	utils.SetupGlobalLogger(logConfig)

	return utils.NewLogger(logConfig)
}

// connectToDatabase establishes database connection
func connectToDatabase(cfg *config.Config, logger zerolog.Logger) (*database.Database, error) {
	logger.Info().Msg("Connecting to PostgreSQL database")

	db := database.NewDatabase(map[string]interface{}{
		"host":               cfg.Database.Host,
		"port":               cfg.Database.Port,
		"user":               cfg.Database.User,
		"password":           cfg.Database.Password,
		"dbname":             cfg.Database.DBName,
		"sslmode":            cfg.Database.SSLMode,
		"max_open_conns":     cfg.Database.MaxConnections,
		"max_idle_conns":     cfg.Database.MaxIdleConns,
		"conn_max_lifetime":  cfg.Database.ConnMaxLifetime.String(),
		"conn_max_idle_time": cfg.Database.ConnMaxIdleTime.String(),
		"log_level":          cfg.Server.LogLevel,
	})

	if err := db.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Health(ctx); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	return db, nil
}

// runMigrations runs auto-migrations and versioned migrations
func runMigrations(ctx context.Context, db *database.Database, logger zerolog.Logger) error {
	if err := database.RunMigrations(db.DB()); err != nil {
		return fmt.Errorf("failed to run auto-migrations: %w", err)
	}

	runner := database.NewMigrationRunner(db.DB(), logger)
	for _, m := range migrations.GetMigrations() {
		runner.Register(m)
	}
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("failed to run versioned migrations: %w", err)
	}

	return nil
}

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

const version = "v0.3.0"

func main() {
	// Parse command line flags
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfiguration(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if cfg.Migration.Tenant == "" {
		fmt.Fprintln(os.Stderr, "migration.tenant must be configured")
		os.Exit(1)
	}

	// Set up logging
	logger := setupLogging(cfg)
	logger.Info().
		Str("version", version).
		Str("tenant", cfg.Migration.Tenant).
		Msg("Starting index migrator")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Connect to database
	db, err := connectToDatabase(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}()

	// Run migrations
	if err := runMigrations(ctx, db, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Connect to redis for the distributed lock
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

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	pingCancel()

	// Build the index clients
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

	// Register metrics
	registry := prometheus.NewRegistry()
	m, err := metrics.NewMetrics(registry)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to register metrics")
	}

	// Assemble the jobs
	recordStore := store.NewRecordStore(db.DB(), logger)
	opts := migrate.OptionsFromConfig(cfg.Migration)
	policy := migrate.MaxAttemptsPolicy{MaxAttempts: cfg.Migration.MaxAttempts}

	newLocker := func() lock.Locker {
		return lock.NewRedisLocker(rdb, cfg.Migration.LockRetryInterval, logger)
	}

	discovery := migrate.NewDiscoveryJob(recordStore, newLocker(), m, logger, opts)
	migration := migrate.NewMigrationJob(recordStore, newLocker(), provider,
		index.NewChunkTransformer(), policy, m, logger, opts)

	// The admin API gets its own lockers so a manual trigger contends with
	// the scheduled ticks instead of sharing their lock state
	apiDiscovery := migrate.NewDiscoveryJob(recordStore, newLocker(), m, logger, opts)
	apiMigration := migrate.NewMigrationJob(recordStore, newLocker(), provider,
		index.NewChunkTransformer(), policy, m, logger, opts)

	server, err := api.NewServer(cfg, db, recordStore, apiDiscovery, apiMigration, registry, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create HTTP server")
	}

	scheduler := migrate.NewScheduler(discovery, migration, m, logger, migrate.SchedulerConfig{
		Tenant:            cfg.Migration.Tenant,
		DiscoveryInterval: cfg.Migration.DiscoveryInterval,
		MigrationInterval: cfg.Migration.MigrationInterval,
		TickTimeout:       cfg.Migration.TickTimeout,
	})

	// Start scheduler and HTTP server
	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(schedulerDone)
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.HTTP.Port); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverErrChan:
		logger.Error().Err(err).Msg("HTTP server error")
	}

	// Graceful shutdown
	logger.Info().Msg("Starting graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to gracefully shutdown HTTP server")
	}

	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("Shutdown timeout exceeded waiting for scheduler")
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

	logger.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.DBName).
		Msg("Successfully connected to database")

	return db, nil
}

// runMigrations runs auto-migrations and versioned migrations
func runMigrations(ctx context.Context, db *database.Database, logger zerolog.Logger) error {
	logger.Info().Msg("Running database migrations")

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

	logger.Info().Msg("Database migrations completed successfully")
	return nil
}

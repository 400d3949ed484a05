package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

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

// Runs a single discovery tick followed by a single migration tick and
// exits. Useful for cron-driven deployments and for operators draining a
// backlog by hand. Exit code is non-zero if either tick failed.
func main() {
	var configPath string
	var skipDiscovery bool
	var skipMigration bool
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&skipDiscovery, "skip-discovery", false, "Skip the discovery tick")
	flag.BoolVar(&skipMigration, "skip-migration", false, "Skip the migration tick")
	flag.Parse()

	cfg := config.LoadConfigOrDefault(configPath)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Migration.Tenant == "" {
		fmt.Fprintln(os.Stderr, "migration.tenant must be configured")
		os.Exit(1)
	}

	logConfig := utils.LoggerConfig{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.Debug,
	}
	utils.SetupGlobalLogger(logConfig)
	logger := utils.NewLogger(logConfig)

	if err := run(cfg, logger, skipDiscovery, skipMigration); err != nil {
		logger.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger zerolog.Logger, skipDiscovery, skipMigration bool) error {
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
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}()

	ctx := context.Background()

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
		return fmt.Errorf("failed to create index clients: %w", err)
	}

	m, err := metrics.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	recordStore := store.NewRecordStore(db.DB(), logger)
	opts := migrate.OptionsFromConfig(cfg.Migration)
	policy := migrate.MaxAttemptsPolicy{MaxAttempts: cfg.Migration.MaxAttempts}
	tenant := cfg.Migration.Tenant

	if !skipDiscovery {
		discovery := migrate.NewDiscoveryJob(recordStore,
			lock.NewRedisLocker(rdb, cfg.Migration.LockRetryInterval, logger), m, logger, opts)

		tickCtx, cancel := context.WithTimeout(ctx, cfg.Migration.TickTimeout)
		result, err := discovery.Run(tickCtx, tenant)
		cancel()
		if err != nil {
			return fmt.Errorf("discovery tick failed: %w", err)
		}
		logger.Info().
			Str("outcome", string(result.Outcome)).
			Int("inserted", result.Inserted).
			Msg("Discovery tick finished")
	}

	if !skipMigration {
		migration := migrate.NewMigrationJob(recordStore,
			lock.NewRedisLocker(rdb, cfg.Migration.LockRetryInterval, logger),
			provider, index.NewChunkTransformer(), policy, m, logger, opts)

		tickCtx, cancel := context.WithTimeout(ctx, cfg.Migration.TickTimeout)
		result, err := migration.Run(tickCtx, tenant)
		cancel()
		if err != nil {
			return fmt.Errorf("migration tick failed: %w", err)
		}
		logger.Info().
			Str("outcome", string(result.Outcome)).
			Int("processed", result.Processed).
			Int("completed", result.Completed).
			Int("failed", result.Failed).
			Int("permanently_failed", result.PermanentlyFailed).
			Msg("Migration tick finished")
	}

	return nil
}

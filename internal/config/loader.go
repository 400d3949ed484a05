package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetConfigName("config")

	if configPath != "" {
		// Use explicit path if provided
		v.SetConfigFile(configPath)
	} else {
		// Search in multiple locations
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/index-migrator")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".index-migrator"))
		}
	}

	// Set defaults (these will be overridden by config file and env vars)
	setDefaults(v)

	// Configure environment variable handling
	v.SetEnvPrefix("MIGRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file doesn't exist, we have defaults and env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	defaults := NewDefault()

	// Database defaults
	v.SetDefault("database.host", defaults.Database.Host)
	v.SetDefault("database.port", defaults.Database.Port)
	v.SetDefault("database.user", defaults.Database.User)
	v.SetDefault("database.password", defaults.Database.Password)
	v.SetDefault("database.dbname", defaults.Database.DBName)
	v.SetDefault("database.sslmode", defaults.Database.SSLMode)
	v.SetDefault("database.max_connections", defaults.Database.MaxConnections)
	v.SetDefault("database.max_idle_conns", defaults.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")

	// Redis defaults
	v.SetDefault("redis.host", defaults.Redis.Host)
	v.SetDefault("redis.port", defaults.Redis.Port)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Search defaults
	v.SetDefault("search.source_addresses", defaults.Search.SourceAddresses)
	v.SetDefault("search.destination_addresses", defaults.Search.DestinationAddresses)
	v.SetDefault("search.source_index_prefix", defaults.Search.SourceIndexPrefix)
	v.SetDefault("search.dest_index_prefix", defaults.Search.DestIndexPrefix)
	v.SetDefault("search.request_timeout", "30s")

	// Migration defaults
	v.SetDefault("migration.enabled", defaults.Migration.Enabled)
	v.SetDefault("migration.batch_size", defaults.Migration.BatchSize)
	v.SetDefault("migration.max_attempts", defaults.Migration.MaxAttempts)
	v.SetDefault("migration.lock_ttl", "5m")
	v.SetDefault("migration.lock_max_wait", "10s")
	v.SetDefault("migration.lock_retry_interval", "500ms")
	v.SetDefault("migration.discovery_interval", "2m")
	v.SetDefault("migration.migration_interval", "2m")
	v.SetDefault("migration.tick_timeout", "5m")

	// Server defaults
	v.SetDefault("server.log_level", defaults.Server.LogLevel)
	v.SetDefault("server.debug", defaults.Server.Debug)

	// HTTP defaults
	v.SetDefault("http.port", defaults.HTTP.Port)
}

// bindEnvVars binds specific environment variables to configuration keys
func bindEnvVars(v *viper.Viper) {
	// Tenant can be set via MIGRATION_TENANT or MIGRATOR_MIGRATION_TENANT
	v.BindEnv("migration.tenant", "MIGRATION_TENANT", "MIGRATOR_MIGRATION_TENANT")

	// Log level can be set via LOG_LEVEL or MIGRATOR_SERVER_LOG_LEVEL
	v.BindEnv("server.log_level", "LOG_LEVEL", "MIGRATOR_SERVER_LOG_LEVEL")

	// Redis password commonly arrives through its own variable
	v.BindEnv("redis.password", "REDIS_PASSWORD", "MIGRATOR_REDIS_PASSWORD")

	// Admin API key
	v.BindEnv("http.api_key", "MIGRATOR_API_KEY", "MIGRATOR_HTTP_API_KEY")

	// Debug mode
	v.BindEnv("server.debug", "DEBUG", "MIGRATOR_SERVER_DEBUG")
}

// LoadConfigOrDefault loads configuration or returns default if loading fails
func LoadConfigOrDefault(configPath string) *Config {
	config, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v. Using defaults.\n", err)
		return NewDefault()
	}
	return config
}

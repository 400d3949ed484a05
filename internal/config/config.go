package config

import (
	"fmt"
	"time"
)

// Config represents the main application configuration
type Config struct {
	Database  Database  `json:"database" mapstructure:"database"`
	Redis     Redis     `json:"redis" mapstructure:"redis"`
	Search    Search    `json:"search" mapstructure:"search"`
	Migration Migration `json:"migration" mapstructure:"migration"`
	Server    Server    `json:"server" mapstructure:"server"`
	HTTP      HTTP      `json:"http" mapstructure:"http"`
}

// Database represents database configuration
type Database struct {
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	User            string        `json:"user" mapstructure:"user"`
	Password        string        `json:"password" mapstructure:"password"`
	DBName          string        `json:"dbname" mapstructure:"dbname"`
	SSLMode         string        `json:"sslmode" mapstructure:"sslmode"`
	MaxConnections  int           `json:"max_connections" mapstructure:"max_connections"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// Redis represents the connection settings for the distributed lock backend
type Redis struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
}

// Addr returns the host:port address for the redis client
func (r Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Search represents the source and destination document index configuration
type Search struct {
	SourceAddresses      []string      `json:"source_addresses" mapstructure:"source_addresses"`
	DestinationAddresses []string      `json:"destination_addresses" mapstructure:"destination_addresses"`
	Username             string        `json:"username" mapstructure:"username"`
	Password             string        `json:"password" mapstructure:"password"`
	SourceIndexPrefix    string        `json:"source_index_prefix" mapstructure:"source_index_prefix"`
	DestIndexPrefix      string        `json:"dest_index_prefix" mapstructure:"dest_index_prefix"`
	RequestTimeout       time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
}

// Migration represents the migration job configuration
type Migration struct {
	Enabled           bool          `json:"enabled" mapstructure:"enabled"`
	Tenant            string        `json:"tenant" mapstructure:"tenant"`
	BatchSize         int           `json:"batch_size" mapstructure:"batch_size"`
	MaxAttempts       int           `json:"max_attempts" mapstructure:"max_attempts"`
	LockTTL           time.Duration `json:"lock_ttl" mapstructure:"lock_ttl"`
	LockMaxWait       time.Duration `json:"lock_max_wait" mapstructure:"lock_max_wait"`
	LockRetryInterval time.Duration `json:"lock_retry_interval" mapstructure:"lock_retry_interval"`
	DiscoveryInterval time.Duration `json:"discovery_interval" mapstructure:"discovery_interval"`
	MigrationInterval time.Duration `json:"migration_interval" mapstructure:"migration_interval"`
	TickTimeout       time.Duration `json:"tick_timeout" mapstructure:"tick_timeout"`
}

// Server represents server configuration
type Server struct {
	LogLevel string `json:"log_level" mapstructure:"log_level"`
	Debug    bool   `json:"debug" mapstructure:"debug"`
}

// HTTP represents HTTP server configuration
type HTTP struct {
	Port         int      `json:"port" mapstructure:"port"`
	APIKey       string   `json:"api_key" mapstructure:"api_key"`
	AllowOrigins []string `json:"allow_origins" mapstructure:"allow_origins"`
}

// NewDefault returns a Config instance with default values
func NewDefault() *Config {
	return &Config{
		Database: Database{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "",
			DBName:          "index_migrator",
			SSLMode:         "disable",
			MaxConnections:  25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 1 * time.Minute,
		},
		Redis: Redis{
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
		},
		Search: Search{
			SourceAddresses:      []string{"http://localhost:9200"},
			DestinationAddresses: []string{"http://localhost:9201"},
			SourceIndexPrefix:    "document-chunks-v1",
			DestIndexPrefix:      "document-chunks-v2",
			RequestTimeout:       30 * time.Second,
		},
		Migration: Migration{
			Enabled:           true,
			Tenant:            "",
			BatchSize:         100,
			MaxAttempts:       5,
			LockTTL:           5 * time.Minute,
			LockMaxWait:       10 * time.Second,
			LockRetryInterval: 500 * time.Millisecond,
			DiscoveryInterval: 2 * time.Minute,
			MigrationInterval: 2 * time.Minute,
			TickTimeout:       5 * time.Minute,
		},
		Server: Server{
			LogLevel: "info",
			Debug:    false,
		},
		HTTP: HTTP{
			Port:         8083,
			APIKey:       "",
			AllowOrigins: []string{"http://localhost:3000"},
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be greater than 0")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("max idle connections cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxConnections {
		return fmt.Errorf("max idle connections cannot exceed max connections")
	}

	// Redis validation
	if c.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("redis port must be between 1 and 65535")
	}

	// Search validation
	if len(c.Search.SourceAddresses) == 0 {
		return fmt.Errorf("at least one source index address is required")
	}
	if len(c.Search.DestinationAddresses) == 0 {
		return fmt.Errorf("at least one destination index address is required")
	}
	if c.Search.SourceIndexPrefix == "" {
		return fmt.Errorf("source index prefix is required")
	}
	if c.Search.DestIndexPrefix == "" {
		return fmt.Errorf("destination index prefix is required")
	}
	if c.Search.SourceIndexPrefix == c.Search.DestIndexPrefix {
		return fmt.Errorf("source and destination index prefixes must differ")
	}
	if c.Search.RequestTimeout <= 0 {
		return fmt.Errorf("search request timeout must be positive")
	}

	// Migration validation
	if c.Migration.BatchSize <= 0 {
		return fmt.Errorf("migration batch size must be greater than 0")
	}
	if c.Migration.MaxAttempts <= 0 {
		return fmt.Errorf("migration max attempts must be greater than 0")
	}
	if c.Migration.LockTTL <= 0 {
		return fmt.Errorf("lock TTL must be positive")
	}
	if c.Migration.LockMaxWait < 0 {
		return fmt.Errorf("lock max wait cannot be negative")
	}
	if c.Migration.LockRetryInterval <= 0 {
		return fmt.Errorf("lock retry interval must be positive")
	}
	if c.Migration.LockMaxWait >= c.Migration.LockTTL {
		return fmt.Errorf("lock max wait must be shorter than the lock TTL")
	}

	// Server validation
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	// HTTP validation
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}

	return nil
}

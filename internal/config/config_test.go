package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "index_migrator", cfg.Database.DBName)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())

	assert.Equal(t, "document-chunks-v1", cfg.Search.SourceIndexPrefix)
	assert.Equal(t, "document-chunks-v2", cfg.Search.DestIndexPrefix)

	assert.True(t, cfg.Migration.Enabled)
	assert.Equal(t, 100, cfg.Migration.BatchSize)
	assert.Equal(t, 5, cfg.Migration.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Migration.LockTTL)
	assert.Equal(t, 10*time.Second, cfg.Migration.LockMaxWait)

	assert.Equal(t, 8083, cfg.HTTP.Port)

	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "database host is required",
		},
		{
			name:    "database port out of range",
			mutate:  func(c *Config) { c.Database.Port = 70000 },
			wantErr: "database port",
		},
		{
			name:    "idle connections exceed max connections",
			mutate:  func(c *Config) { c.Database.MaxIdleConns = 50 },
			wantErr: "max idle connections cannot exceed max connections",
		},
		{
			name:    "missing redis host",
			mutate:  func(c *Config) { c.Redis.Host = "" },
			wantErr: "redis host is required",
		},
		{
			name:    "no source index addresses",
			mutate:  func(c *Config) { c.Search.SourceAddresses = nil },
			wantErr: "source index address",
		},
		{
			name:    "no destination index addresses",
			mutate:  func(c *Config) { c.Search.DestinationAddresses = nil },
			wantErr: "destination index address",
		},
		{
			name: "identical index prefixes",
			mutate: func(c *Config) {
				c.Search.SourceIndexPrefix = "chunks"
				c.Search.DestIndexPrefix = "chunks"
			},
			wantErr: "prefixes must differ",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Migration.BatchSize = 0 },
			wantErr: "batch size",
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *Config) { c.Migration.MaxAttempts = 0 },
			wantErr: "max attempts",
		},
		{
			name:    "zero lock ttl",
			mutate:  func(c *Config) { c.Migration.LockTTL = 0 },
			wantErr: "lock TTL",
		},
		{
			name: "lock wait not shorter than ttl",
			mutate: func(c *Config) {
				c.Migration.LockTTL = 5 * time.Second
				c.Migration.LockMaxWait = 5 * time.Second
			},
			wantErr: "lock max wait must be shorter",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "http port out of range",
			mutate:  func(c *Config) { c.HTTP.Port = 0 },
			wantErr: "HTTP port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRedisAddr(t *testing.T) {
	r := Redis{Host: "redis.internal", Port: 6380}
	assert.Equal(t, "redis.internal:6380", r.Addr())
}

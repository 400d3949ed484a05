package migrate

import (
	"time"

	"github.com/ksred/index-migrator/internal/config"
)

// Options carries the shared job settings. Tenant is the runner's active
// tenant context: a tick invoked for any other tenant is rejected as a
// programming error rather than silently operating on the wrong data.
type Options struct {
	Enabled     bool
	Tenant      string
	BatchSize   int
	LockTTL     time.Duration
	LockMaxWait time.Duration
}

// OptionsFromConfig builds job options from the application configuration
func OptionsFromConfig(cfg config.Migration) Options {
	return Options{
		Enabled:     cfg.Enabled,
		Tenant:      cfg.Tenant,
		BatchSize:   cfg.BatchSize,
		LockTTL:     cfg.LockTTL,
		LockMaxWait: cfg.LockMaxWait,
	}
}

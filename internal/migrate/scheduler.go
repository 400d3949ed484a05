package migrate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ksred/index-migrator/internal/metrics"
)

// Scheduler periodically invokes the discovery and migration jobs for one
// tenant from within the daemon process. It stands in for an external
// scheduler: each job runs on its own independent ticker and neither tick
// assumes anything about the other's timing.
type Scheduler struct {
	discovery *DiscoveryJob
	migration *MigrationJob
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	tenant            string
	discoveryInterval time.Duration
	migrationInterval time.Duration
	tickTimeout       time.Duration
}

// SchedulerConfig carries the scheduler cadence settings
type SchedulerConfig struct {
	Tenant            string
	DiscoveryInterval time.Duration
	MigrationInterval time.Duration
	TickTimeout       time.Duration
}

// NewScheduler creates a new Scheduler
func NewScheduler(discovery *DiscoveryJob, migration *MigrationJob, m *metrics.Metrics, logger zerolog.Logger, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		discovery:         discovery,
		migration:         migration,
		metrics:           m,
		logger:            logger,
		tenant:            cfg.Tenant,
		discoveryInterval: cfg.DiscoveryInterval,
		migrationInterval: cfg.MigrationInterval,
		tickTimeout:       cfg.TickTimeout,
	}
}

// Start runs both job loops until the context is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loop(ctx, "discovery", s.discoveryInterval, s.runDiscoveryTick)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, "migration", s.migrationInterval, s.runMigrationTick)
	}()

	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job string, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Str("job", job).Dur("interval", interval).Msg("job loop started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str("job", job).Msg("job loop stopped")
			return
		case <-ticker.C:
			start := time.Now()
			tickCtx, cancel := context.WithTimeout(ctx, s.tickTimeout)
			tick(tickCtx)
			cancel()
			if s.metrics != nil {
				s.metrics.TickDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
			}
		}
	}
}

func (s *Scheduler) runDiscoveryTick(ctx context.Context) {
	result, err := s.discovery.Run(ctx, s.tenant)
	if err != nil {
		s.logger.Error().Err(err).Msg("discovery tick failed")
		return
	}
	if s.metrics != nil && result.Inserted > 0 {
		s.metrics.RecordsDiscovered.WithLabelValues(s.tenant).Add(float64(result.Inserted))
	}
}

func (s *Scheduler) runMigrationTick(ctx context.Context) {
	result, err := s.migration.Run(ctx, s.tenant)
	if err != nil {
		s.logger.Error().Err(err).Msg("migration tick failed")
		return
	}
	if s.metrics != nil {
		s.metrics.DocumentsProcessed.WithLabelValues(s.tenant, "completed").Add(float64(result.Completed))
		s.metrics.DocumentsProcessed.WithLabelValues(s.tenant, "failed").Add(float64(result.Failed))
		s.metrics.DocumentsProcessed.WithLabelValues(s.tenant, "permanently_failed").Add(float64(result.PermanentlyFailed))
	}
}

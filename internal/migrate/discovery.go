package migrate

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ksred/index-migrator/internal/lock"
	"github.com/ksred/index-migrator/internal/metrics"
	"github.com/ksred/index-migrator/internal/store"
	"github.com/ksred/index-migrator/internal/utils"
)

// DiscoveryJob advances the enumeration cursor over all of a tenant's source
// documents and creates one pending migration record per newly observed
// document. It is invoked periodically by an external scheduler; overlapping
// invocations are serialized by the tenant's migration lock.
type DiscoveryJob struct {
	store    *store.RecordStore
	locker   lock.Locker
	counters metrics.ProgressCounters
	logger   zerolog.Logger
	opts     Options
}

// NewDiscoveryJob creates a new DiscoveryJob
func NewDiscoveryJob(recordStore *store.RecordStore, locker lock.Locker, counters metrics.ProgressCounters, logger zerolog.Logger, opts Options) *DiscoveryJob {
	return &DiscoveryJob{
		store:    recordStore,
		locker:   locker,
		counters: counters,
		logger:   logger.With().Str("job", "discovery").Logger(),
		opts:     opts,
	}
}

// Run executes one discovery tick for the tenant. Lock contention and a
// disabled feature flag both yield OutcomeSkipped without touching the record
// store; the returned error is non-nil only when the Outcome is
// OutcomeFailure.
func (j *DiscoveryJob) Run(ctx context.Context, tenantID string) (DiscoveryResult, error) {
	if !j.opts.Enabled {
		j.logger.Debug().Str("tenant", tenantID).Msg("migration disabled, skipping discovery tick")
		return DiscoveryResult{Outcome: OutcomeSkipped}, nil
	}

	if tenantID != j.opts.Tenant {
		err := utils.WrapValidationError("tenant",
			"tick invoked for a tenant outside this runner's tenant context")
		j.logger.Error().Str("tenant", tenantID).Str("active_tenant", j.opts.Tenant).
			Msg("tenant context mismatch")
		return DiscoveryResult{Outcome: OutcomeFailure}, err
	}

	name := LockName(tenantID)
	acquired, err := j.locker.TryAcquire(ctx, name, j.opts.LockTTL, j.opts.LockMaxWait)
	if err != nil {
		j.logger.Error().Err(err).Str("tenant", tenantID).Msg("lock service failure")
		return DiscoveryResult{Outcome: OutcomeFailure}, err
	}
	if !acquired {
		j.logger.Warn().Str("tenant", tenantID).Str("lock", name).
			Msg("migration lock held elsewhere, skipping discovery tick")
		return DiscoveryResult{Outcome: OutcomeSkipped}, nil
	}
	defer func() {
		if err := j.locker.Release(context.WithoutCancel(ctx)); err != nil {
			j.logger.Warn().Err(err).Str("lock", name).Msg("failed to release migration lock")
		}
	}()

	cursor, err := j.store.Cursor(ctx, tenantID)
	if err != nil {
		return DiscoveryResult{Outcome: OutcomeFailure}, err
	}

	candidates, err := j.store.NextCandidates(ctx, tenantID, cursor, j.opts.BatchSize)
	if err != nil {
		return DiscoveryResult{Outcome: OutcomeFailure}, err
	}

	if len(candidates) == 0 {
		j.counters.IncNoNewDocuments(tenantID)
		j.logger.Info().Str("tenant", tenantID).Str("cursor", cursor).
			Msg("no new documents to enumerate")
		return DiscoveryResult{Outcome: OutcomeSuccess}, nil
	}

	inserted, err := j.store.InsertPending(ctx, tenantID, candidates)
	if err != nil {
		return DiscoveryResult{Outcome: OutcomeFailure}, err
	}

	j.logger.Info().
		Str("tenant", tenantID).
		Str("cursor", cursor).
		Int("candidates", len(candidates)).
		Int("inserted", inserted).
		Msg("enumerated new documents")

	return DiscoveryResult{Outcome: OutcomeSuccess, Inserted: inserted}, nil
}

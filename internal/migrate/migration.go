package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ksred/index-migrator/internal/index"
	"github.com/ksred/index-migrator/internal/lock"
	"github.com/ksred/index-migrator/internal/metrics"
	"github.com/ksred/index-migrator/internal/models"
	"github.com/ksred/index-migrator/internal/store"
	"github.com/ksred/index-migrator/internal/utils"
)

// MigrationJob drains the records needing work and migrates each document
// from the source index to the destination index, with per-document
// verification and bounded retry. One bad document never aborts the batch:
// its failure is recorded on its own migration record and the loop moves on.
type MigrationJob struct {
	store       *store.RecordStore
	locker      lock.Locker
	provider    index.Provider
	transformer index.Transformer
	policy      FailurePolicy
	counters    metrics.ProgressCounters
	logger      zerolog.Logger
	opts        Options
}

// NewMigrationJob creates a new MigrationJob
func NewMigrationJob(
	recordStore *store.RecordStore,
	locker lock.Locker,
	provider index.Provider,
	transformer index.Transformer,
	policy FailurePolicy,
	counters metrics.ProgressCounters,
	logger zerolog.Logger,
	opts Options,
) *MigrationJob {
	return &MigrationJob{
		store:       recordStore,
		locker:      locker,
		provider:    provider,
		transformer: transformer,
		policy:      policy,
		counters:    counters,
		logger:      logger.With().Str("job", "migration").Logger(),
		opts:        opts,
	}
}

// Run executes one migration tick for the tenant. All record updates are
// committed in one transaction at the end of the batch; per-document failures
// surface only on the records themselves, never as a tick-level error.
func (j *MigrationJob) Run(ctx context.Context, tenantID string) (MigrationResult, error) {
	if !j.opts.Enabled {
		j.logger.Debug().Str("tenant", tenantID).Msg("migration disabled, skipping migration tick")
		return MigrationResult{Outcome: OutcomeSkipped}, nil
	}

	if tenantID != j.opts.Tenant {
		err := utils.WrapValidationError("tenant",
			"tick invoked for a tenant outside this runner's tenant context")
		j.logger.Error().Str("tenant", tenantID).Str("active_tenant", j.opts.Tenant).
			Msg("tenant context mismatch")
		return MigrationResult{Outcome: OutcomeFailure}, err
	}

	name := LockName(tenantID)
	acquired, err := j.locker.TryAcquire(ctx, name, j.opts.LockTTL, j.opts.LockMaxWait)
	if err != nil {
		j.logger.Error().Err(err).Str("tenant", tenantID).Msg("lock service failure")
		return MigrationResult{Outcome: OutcomeFailure}, err
	}
	if !acquired {
		j.logger.Warn().Str("tenant", tenantID).Str("lock", name).
			Msg("migration lock held elsewhere, skipping migration tick")
		return MigrationResult{Outcome: OutcomeSkipped}, nil
	}
	defer func() {
		if err := j.locker.Release(context.WithoutCancel(ctx)); err != nil {
			j.logger.Warn().Err(err).Str("lock", name).Msg("failed to release migration lock")
		}
	}()

	records, err := j.store.NeedingMigration(ctx, tenantID)
	if err != nil {
		return MigrationResult{Outcome: OutcomeFailure}, err
	}

	if len(records) == 0 {
		j.counters.IncNoPendingMigrations(tenantID)
		j.logger.Info().Str("tenant", tenantID).Msg("no documents needing migration")
		return MigrationResult{Outcome: OutcomeSuccess}, nil
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.DocumentID)
	}
	documents, err := j.store.DocumentsByIDs(ctx, tenantID, ids)
	if err != nil {
		return MigrationResult{Outcome: OutcomeFailure}, err
	}

	// Tenant-scoped handles are built once per tick, not once per document
	source := j.provider.SourceForTenant(tenantID)
	destination := j.provider.DestinationForTenant(tenantID)

	result := MigrationResult{Outcome: OutcomeSuccess, Processed: len(records)}
	for _, record := range records {
		attemptErr := j.migrateDocument(ctx, source, destination, tenantID, record.DocumentID, documents[record.DocumentID])
		record.RecordAttempt(time.Now().UTC(), attemptErr)

		if record.Status == models.StatusFailed && j.policy.IsPermanentlyFailed(record) {
			record.Status = models.StatusPermanentlyFailed
		}

		switch record.Status {
		case models.StatusCompleted:
			result.Completed++
			j.logger.Debug().Str("tenant", tenantID).Str("document", record.DocumentID).
				Int("attempts", record.AttemptsCount).Msg("document migrated")
		case models.StatusPermanentlyFailed:
			result.PermanentlyFailed++
			j.logger.Error().Err(attemptErr).Str("tenant", tenantID).Str("document", record.DocumentID).
				Int("attempts", record.AttemptsCount).Msg("document permanently failed")
		default:
			result.Failed++
			j.logger.Warn().Err(attemptErr).Str("tenant", tenantID).Str("document", record.DocumentID).
				Int("attempts", record.AttemptsCount).Msg("document migration failed, will retry")
		}
	}

	if err := j.store.SaveAttempts(ctx, records); err != nil {
		return MigrationResult{Outcome: OutcomeFailure}, err
	}

	j.logger.Info().
		Str("tenant", tenantID).
		Int("processed", result.Processed).
		Int("completed", result.Completed).
		Int("failed", result.Failed).
		Int("permanently_failed", result.PermanentlyFailed).
		Msg("migration tick finished")

	return result, nil
}

// migrateDocument performs one verified migration attempt. A nil return means
// the document's chunks are fully present in the destination; any error is
// recorded on the migration record and retried on a later tick, subject to
// the failure policy.
func (j *MigrationJob) migrateDocument(ctx context.Context, source index.SourceIndex, destination index.DestinationIndex, tenantID, documentID string, doc *models.Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during document migration: %v", r)
		}
	}()

	// The chunk count is maintained by the indexing pipeline and may lag a
	// freshly created document; treat its absence as transient.
	if doc == nil {
		return fmt.Errorf("document not found in documents table")
	}
	if doc.ChunkCount == nil {
		return fmt.Errorf("chunk count not yet available, document may still be indexing")
	}
	expected := *doc.ChunkCount

	chunks, err := source.ReadChunks(ctx, documentID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks found in source index")
	}

	// Verify against the authoritative count before touching the destination.
	// A mismatch means source and bookkeeping are not yet consistent; a later
	// tick may observe an updated count or stable data.
	if len(chunks) != expected {
		return fmt.Errorf("source returned %d chunks but document chunk count is %d", len(chunks), expected)
	}

	transformed, err := j.transformer.Transform(chunks, tenantID)
	if err != nil {
		return err
	}
	if len(transformed) != len(chunks) {
		return fmt.Errorf("transform produced %d chunks from %d source chunks", len(transformed), len(chunks))
	}

	written, err := destination.WriteChunks(ctx, transformed)
	if err != nil {
		return err
	}

	// The destination reports how many chunks it acknowledged; anything short
	// of the expected count leaves the document incomplete and retryable.
	if written != expected {
		return fmt.Errorf("destination acknowledged %d chunks but document chunk count is %d", written, expected)
	}

	return nil
}

package store

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ksred/index-migrator/internal/models"
	"github.com/ksred/index-migrator/internal/utils"
)

// RecordStore persists migration bookkeeping rows and enumerates source
// documents. It is the single shared table both periodic jobs coordinate
// through; callers are expected to hold the tenant's migration lock around
// any read-modify-write sequence.
type RecordStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewRecordStore creates a new RecordStore instance
func NewRecordStore(db *gorm.DB, logger zerolog.Logger) *RecordStore {
	return &RecordStore{
		db:     db,
		logger: logger,
	}
}

// Cursor returns the most recent document id already enumerated for the
// tenant, or an empty string when no records exist yet. The cursor is
// derived from committed rows, never from in-memory state, so enumeration
// survives crashes between ticks.
func (s *RecordStore) Cursor(ctx context.Context, tenantID string) (string, error) {
	var cursor *string
	err := s.db.WithContext(ctx).
		Model(&models.MigrationRecord{}).
		Where("tenant_id = ?", tenantID).
		Select("MAX(document_id)").
		Scan(&cursor).Error
	if err != nil {
		s.logger.Error().Err(err).Str("tenant", tenantID).Msg("failed to read enumeration cursor")
		return "", utils.WrapDatabaseError("read enumeration cursor", err)
	}

	if cursor == nil {
		return "", nil
	}
	return *cursor, nil
}

// NextCandidates returns the next page of document ids whose ordering key is
// strictly after the cursor. An empty cursor starts from the beginning; an
// empty result means enumeration has caught up.
func (s *RecordStore) NextCandidates(ctx context.Context, tenantID, after string, limit int) ([]string, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("tenant_id = ?", tenantID)

	if after != "" {
		query = query.Where("document_id > ?", after)
	}

	var ids []string
	err := query.
		Order("document_id ASC").
		Limit(limit).
		Pluck("document_id", &ids).Error
	if err != nil {
		s.logger.Error().Err(err).Str("tenant", tenantID).Msg("failed to enumerate candidate documents")
		return nil, utils.WrapDatabaseError("enumerate candidate documents", err)
	}

	return ids, nil
}

// InsertPending creates one pending record per document id in a single
// transaction. Document ids the tenant already tracks are skipped rather
// than duplicated so a retried tick cannot corrupt state; the same document
// id under another tenant is a distinct record.
func (s *RecordStore) InsertPending(ctx context.Context, tenantID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	records := make([]models.MigrationRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, models.MigrationRecord{
			TenantID:   tenantID,
			DocumentID: id,
			Status:     models.StatusPending,
		})
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "document_id"}},
			DoNothing: true,
		}).
		Create(&records)
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Str("tenant", tenantID).Int("count", len(ids)).
			Msg("failed to insert pending records")
		return 0, utils.WrapDatabaseError("insert pending records", result.Error)
	}

	return int(result.RowsAffected), nil
}

// NeedingMigration returns records with status pending or failed, in creation
// order. Completed and permanently failed records are excluded by definition.
func (s *RecordStore) NeedingMigration(ctx context.Context, tenantID string) ([]*models.MigrationRecord, error) {
	var records []*models.MigrationRecord
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ?", tenantID, []string{models.StatusPending, models.StatusFailed}).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		s.logger.Error().Err(err).Str("tenant", tenantID).Msg("failed to query records needing migration")
		return nil, utils.WrapDatabaseError("query records needing migration", err)
	}

	return records, nil
}

// DocumentsByIDs returns the tenant's documents keyed by document id.
// Documents missing from the result either do not exist or belong to another
// tenant.
func (s *RecordStore) DocumentsByIDs(ctx context.Context, tenantID string, ids []string) (map[string]*models.Document, error) {
	if len(ids) == 0 {
		return map[string]*models.Document{}, nil
	}

	var docs []*models.Document
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND document_id IN ?", tenantID, ids).
		Find(&docs).Error
	if err != nil {
		s.logger.Error().Err(err).Str("tenant", tenantID).Msg("failed to load documents")
		return nil, utils.WrapDatabaseError("load documents", err)
	}

	byID := make(map[string]*models.Document, len(docs))
	for _, doc := range docs {
		byID[doc.DocumentID] = doc
	}
	return byID, nil
}

// SaveAttempts persists the outcome of a migration tick in one transaction,
// so the database-visible bookkeeping is all-or-nothing even though each
// document's outcome was decided independently.
func (s *RecordStore) SaveAttempts(ctx context.Context, records []*models.MigrationRecord) error {
	if len(records) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			if err := tx.Save(record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Int("count", len(records)).Msg("failed to save attempt outcomes")
		return utils.WrapDatabaseError("save attempt outcomes", err)
	}

	return nil
}

// ListRecords returns the tenant's records, optionally filtered by status,
// newest first. Used by the admin API.
func (s *RecordStore) ListRecords(ctx context.Context, tenantID, status string, limit int) ([]*models.MigrationRecord, error) {
	if status != "" && !models.IsValidStatus(status) {
		return nil, utils.WrapValidationError("status", "unknown record status")
	}
	if limit <= 0 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var records []*models.MigrationRecord
	err := query.Order("updated_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		s.logger.Error().Err(err).Str("tenant", tenantID).Msg("failed to list records")
		return nil, utils.WrapDatabaseError("list records", err)
	}

	return records, nil
}

// Stats returns the record counts per status for the tenant. An external
// process reads these to decide when the tenant-wide migration is done.
func (s *RecordStore) Stats(ctx context.Context, tenantID string) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	err := s.db.WithContext(ctx).
		Model(&models.MigrationRecord{}).
		Where("tenant_id = ?", tenantID).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		s.logger.Error().Err(err).Str("tenant", tenantID).Msg("failed to aggregate record stats")
		return nil, utils.WrapDatabaseError("aggregate record stats", err)
	}

	stats := map[string]int64{
		models.StatusPending:           0,
		models.StatusCompleted:         0,
		models.StatusFailed:            0,
		models.StatusPermanentlyFailed: 0,
	}
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/index-migrator/internal/models"
	"github.com/ksred/index-migrator/internal/utils"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Document{}, &models.MigrationRecord{})
	require.NoError(t, err)

	return db
}

func setupRecordStore(t *testing.T) (*RecordStore, *gorm.DB) {
	db := setupTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewRecordStore(db, log), db
}

func seedDocument(t *testing.T, db *gorm.DB, tenantID, documentID string, chunkCount *int) {
	doc := models.Document{
		TenantID:   tenantID,
		DocumentID: documentID,
		ChunkCount: chunkCount,
	}
	require.NoError(t, db.Create(&doc).Error)
}

func intPtr(n int) *int {
	return &n
}

func TestCursor(t *testing.T) {
	ctx := context.Background()

	t.Run("empty table returns empty cursor", func(t *testing.T) {
		store, _ := setupRecordStore(t)

		cursor, err := store.Cursor(ctx, "tenant-a")
		require.NoError(t, err)
		assert.Equal(t, "", cursor)
	})

	t.Run("returns highest document id for the tenant", func(t *testing.T) {
		store, db := setupRecordStore(t)

		for _, id := range []string{"doc-001", "doc-003", "doc-002"} {
			record := models.MigrationRecord{TenantID: "tenant-a", DocumentID: id, Status: models.StatusPending}
			require.NoError(t, db.Create(&record).Error)
		}

		cursor, err := store.Cursor(ctx, "tenant-a")
		require.NoError(t, err)
		assert.Equal(t, "doc-003", cursor)
	})

	t.Run("ignores other tenants", func(t *testing.T) {
		store, db := setupRecordStore(t)

		record := models.MigrationRecord{TenantID: "tenant-b", DocumentID: "doc-999", Status: models.StatusPending}
		require.NoError(t, db.Create(&record).Error)

		cursor, err := store.Cursor(ctx, "tenant-a")
		require.NoError(t, err)
		assert.Equal(t, "", cursor)
	})
}

func TestNextCandidates(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cursor starts from the beginning", func(t *testing.T) {
		store, db := setupRecordStore(t)

		seedDocument(t, db, "tenant-a", "doc-002", intPtr(1))
		seedDocument(t, db, "tenant-a", "doc-001", intPtr(1))
		seedDocument(t, db, "tenant-a", "doc-003", intPtr(1))

		ids, err := store.NextCandidates(ctx, "tenant-a", "", 100)
		require.NoError(t, err)
		assert.Equal(t, []string{"doc-001", "doc-002", "doc-003"}, ids)
	})

	t.Run("returns only ids after the cursor", func(t *testing.T) {
		store, db := setupRecordStore(t)

		seedDocument(t, db, "tenant-a", "doc-001", intPtr(1))
		seedDocument(t, db, "tenant-a", "doc-002", intPtr(1))
		seedDocument(t, db, "tenant-a", "doc-003", intPtr(1))

		ids, err := store.NextCandidates(ctx, "tenant-a", "doc-001", 100)
		require.NoError(t, err)
		assert.Equal(t, []string{"doc-002", "doc-003"}, ids)
	})

	t.Run("respects the batch limit", func(t *testing.T) {
		store, db := setupRecordStore(t)

		for _, id := range []string{"doc-001", "doc-002", "doc-003"} {
			seedDocument(t, db, "tenant-a", id, intPtr(1))
		}

		ids, err := store.NextCandidates(ctx, "tenant-a", "", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"doc-001", "doc-002"}, ids)
	})

	t.Run("caught up enumeration yields no candidates", func(t *testing.T) {
		store, db := setupRecordStore(t)

		seedDocument(t, db, "tenant-a", "doc-001", intPtr(1))

		ids, err := store.NextCandidates(ctx, "tenant-a", "doc-001", 100)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("excludes other tenants", func(t *testing.T) {
		store, db := setupRecordStore(t)

		seedDocument(t, db, "tenant-a", "doc-001", intPtr(1))
		seedDocument(t, db, "tenant-b", "doc-002", intPtr(1))

		ids, err := store.NextCandidates(ctx, "tenant-a", "", 100)
		require.NoError(t, err)
		assert.Equal(t, []string{"doc-001"}, ids)
	})
}

func TestInsertPending(t *testing.T) {
	ctx := context.Background()

	t.Run("creates one pending record per id", func(t *testing.T) {
		store, db := setupRecordStore(t)

		inserted, err := store.InsertPending(ctx, "tenant-a", []string{"doc-001", "doc-002"})
		require.NoError(t, err)
		assert.Equal(t, 2, inserted)

		var records []models.MigrationRecord
		require.NoError(t, db.Order("document_id ASC").Find(&records).Error)
		require.Len(t, records, 2)
		for _, record := range records {
			assert.Equal(t, models.StatusPending, record.Status)
			assert.Equal(t, 0, record.AttemptsCount)
		}
	})

	t.Run("conflicting ids are skipped, not duplicated", func(t *testing.T) {
		store, db := setupRecordStore(t)

		_, err := store.InsertPending(ctx, "tenant-a", []string{"doc-001"})
		require.NoError(t, err)

		// Mark it completed, then re-insert the same id
		require.NoError(t, db.Model(&models.MigrationRecord{}).
			Where("document_id = ?", "doc-001").
			Update("status", models.StatusCompleted).Error)

		inserted, err := store.InsertPending(ctx, "tenant-a", []string{"doc-001", "doc-002"})
		require.NoError(t, err)
		assert.Equal(t, 1, inserted)

		var existing models.MigrationRecord
		require.NoError(t, db.Where("document_id = ?", "doc-001").First(&existing).Error)
		assert.Equal(t, models.StatusCompleted, existing.Status, "existing record must keep its status")

		var count int64
		require.NoError(t, db.Model(&models.MigrationRecord{}).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})

	t.Run("same document id under another tenant is tracked independently", func(t *testing.T) {
		store, db := setupRecordStore(t)

		_, err := store.InsertPending(ctx, "tenant-a", []string{"doc-001"})
		require.NoError(t, err)

		inserted, err := store.InsertPending(ctx, "tenant-b", []string{"doc-001"})
		require.NoError(t, err)
		assert.Equal(t, 1, inserted, "tenant-b must get its own record for doc-001")

		var count int64
		require.NoError(t, db.Model(&models.MigrationRecord{}).
			Where("document_id = ?", "doc-001").
			Count(&count).Error)
		assert.Equal(t, int64(2), count)

		pending, err := store.NeedingMigration(ctx, "tenant-b")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "tenant-b", pending[0].TenantID)
		assert.Equal(t, "doc-001", pending[0].DocumentID)
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		store, _ := setupRecordStore(t)

		inserted, err := store.InsertPending(ctx, "tenant-a", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, inserted)
	})
}

func TestNeedingMigration(t *testing.T) {
	ctx := context.Background()

	t.Run("returns pending and failed records in creation order", func(t *testing.T) {
		store, db := setupRecordStore(t)

		seed := []models.MigrationRecord{
			{TenantID: "tenant-a", DocumentID: "doc-001", Status: models.StatusPending},
			{TenantID: "tenant-a", DocumentID: "doc-002", Status: models.StatusCompleted},
			{TenantID: "tenant-a", DocumentID: "doc-003", Status: models.StatusFailed, AttemptsCount: 2},
			{TenantID: "tenant-a", DocumentID: "doc-004", Status: models.StatusPermanentlyFailed, AttemptsCount: 5},
		}
		for i := range seed {
			require.NoError(t, db.Create(&seed[i]).Error)
		}

		records, err := store.NeedingMigration(ctx, "tenant-a")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "doc-001", records[0].DocumentID)
		assert.Equal(t, "doc-003", records[1].DocumentID)
	})

	t.Run("empty when all records are terminal", func(t *testing.T) {
		store, db := setupRecordStore(t)

		record := models.MigrationRecord{TenantID: "tenant-a", DocumentID: "doc-001", Status: models.StatusCompleted}
		require.NoError(t, db.Create(&record).Error)

		records, err := store.NeedingMigration(ctx, "tenant-a")
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestDocumentsByIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("returns documents keyed by document id", func(t *testing.T) {
		store, db := setupRecordStore(t)

		seedDocument(t, db, "tenant-a", "doc-001", intPtr(3))
		seedDocument(t, db, "tenant-a", "doc-002", nil)

		docs, err := store.DocumentsByIDs(ctx, "tenant-a", []string{"doc-001", "doc-002", "doc-missing"})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		require.NotNil(t, docs["doc-001"].ChunkCount)
		assert.Equal(t, 3, *docs["doc-001"].ChunkCount)
		assert.Nil(t, docs["doc-002"].ChunkCount)
		assert.NotContains(t, docs, "doc-missing")
	})

	t.Run("empty input yields empty map", func(t *testing.T) {
		store, _ := setupRecordStore(t)

		docs, err := store.DocumentsByIDs(ctx, "tenant-a", nil)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestSaveAttempts(t *testing.T) {
	ctx := context.Background()

	t.Run("persists updated records", func(t *testing.T) {
		store, db := setupRecordStore(t)

		record := models.MigrationRecord{TenantID: "tenant-a", DocumentID: "doc-001", Status: models.StatusPending}
		require.NoError(t, db.Create(&record).Error)

		now := time.Now().UTC()
		record.RecordAttempt(now, nil)
		require.NoError(t, store.SaveAttempts(ctx, []*models.MigrationRecord{&record}))

		var reloaded models.MigrationRecord
		require.NoError(t, db.Where("document_id = ?", "doc-001").First(&reloaded).Error)
		assert.Equal(t, models.StatusCompleted, reloaded.Status)
		assert.Equal(t, 1, reloaded.AttemptsCount)
		require.NotNil(t, reloaded.LastAttemptAt)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		store, _ := setupRecordStore(t)
		require.NoError(t, store.SaveAttempts(ctx, nil))
	})
}

func TestListRecords(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by status", func(t *testing.T) {
		store, db := setupRecordStore(t)

		seed := []models.MigrationRecord{
			{TenantID: "tenant-a", DocumentID: "doc-001", Status: models.StatusPending},
			{TenantID: "tenant-a", DocumentID: "doc-002", Status: models.StatusFailed, AttemptsCount: 1},
		}
		for i := range seed {
			require.NoError(t, db.Create(&seed[i]).Error)
		}

		records, err := store.ListRecords(ctx, "tenant-a", models.StatusFailed, 0)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "doc-002", records[0].DocumentID)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		store, _ := setupRecordStore(t)

		_, err := store.ListRecords(ctx, "tenant-a", "exploded", 0)
		require.Error(t, err)
		assert.True(t, utils.IsValidationError(err))
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()

	t.Run("counts per status with zeroed absent statuses", func(t *testing.T) {
		store, db := setupRecordStore(t)

		seed := []models.MigrationRecord{
			{TenantID: "tenant-a", DocumentID: "doc-001", Status: models.StatusPending},
			{TenantID: "tenant-a", DocumentID: "doc-002", Status: models.StatusPending},
			{TenantID: "tenant-a", DocumentID: "doc-003", Status: models.StatusCompleted},
		}
		for i := range seed {
			require.NoError(t, db.Create(&seed[i]).Error)
		}

		stats, err := store.Stats(ctx, "tenant-a")
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats[models.StatusPending])
		assert.Equal(t, int64(1), stats[models.StatusCompleted])
		assert.Equal(t, int64(0), stats[models.StatusFailed])
		assert.Equal(t, int64(0), stats[models.StatusPermanentlyFailed])
	})
}

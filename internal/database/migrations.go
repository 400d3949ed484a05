package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/ksred/index-migrator/internal/models"
)

// RunMigrations runs all database auto-migrations
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Document{},
		&models.MigrationRecord{},
	); err != nil {
		return fmt.Errorf("failed to run auto-migrations: %w", err)
	}

	// Composite index for the needs-work query (tenant + status scan). The
	// cursor-ordered enumeration is covered by the models' unique
	// (tenant_id, document_id) indexes.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_migration_records_tenant_status
		ON migration_records(tenant_id, status)
	`).Error; err != nil {
		return fmt.Errorf("failed to create composite index: %w", err)
	}

	return nil
}

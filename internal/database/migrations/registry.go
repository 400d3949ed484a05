package migrations

import (
	"github.com/ksred/index-migrator/internal/database"
)

// GetMigrations returns all registered migrations
func GetMigrations() []database.SchemaMigration {
	return []database.SchemaMigration{
		{
			Version: "20250301_001",
			Name:    "normalize_record_statuses",
			Run:     NormalizeRecordStatuses,
		},
	}
}

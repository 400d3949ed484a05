package migrations

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// NormalizeRecordStatuses lowercases migration record statuses written by the
// first deployment, which stored the enum names verbatim (PENDING, FAILED).
func NormalizeRecordStatuses(ctx context.Context, db *gorm.DB, logger zerolog.Logger) error {
	result := db.WithContext(ctx).Exec(`
		UPDATE migration_records
		SET status = LOWER(status)
		WHERE status != LOWER(status)
	`)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		logger.Info().
			Int64("rows", result.RowsAffected).
			Msg("Normalized legacy record statuses")
	}

	return nil
}

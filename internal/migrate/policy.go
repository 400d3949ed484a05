package migrate

import (
	"github.com/ksred/index-migrator/internal/models"
)

// FailurePolicy decides when a failing record stops being retried. The
// threshold is deployment configuration, not job logic, so it is injected.
type FailurePolicy interface {
	IsPermanentlyFailed(record *models.MigrationRecord) bool
}

// MaxAttemptsPolicy marks a record permanently failed once it has failed
// MaxAttempts times in a row without completing.
type MaxAttemptsPolicy struct {
	MaxAttempts int
}

// IsPermanentlyFailed implements FailurePolicy
func (p MaxAttemptsPolicy) IsPermanentlyFailed(record *models.MigrationRecord) bool {
	return record.Status == models.StatusFailed && record.AttemptsCount >= p.MaxAttempts
}

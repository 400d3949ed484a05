package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// MigrationRecord tracks the migration of a single document from the source
// index to the destination index. One row exists per document per tenant;
// rows are never deleted so the table doubles as an audit trail and an
// idempotency guard against re-enumeration. Tenants may reuse document ids,
// so uniqueness is scoped to the tenant.
type MigrationRecord struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	TenantID      string     `gorm:"uniqueIndex:idx_migration_records_tenant_document;not null" json:"tenant_id"`
	DocumentID    string     `gorm:"uniqueIndex:idx_migration_records_tenant_document;not null" json:"document_id"`
	Status        string     `gorm:"index;not null;default:'pending'" json:"status"`
	AttemptsCount int        `gorm:"not null;default:0" json:"attempts_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Migration record statuses
const (
	StatusPending           = "pending"
	StatusCompleted         = "completed"
	StatusFailed            = "failed"
	StatusPermanentlyFailed = "permanently_failed"
)

// TableName ensures consistent table naming
func (MigrationRecord) TableName() string {
	return "migration_records"
}

// Validate checks if the record has valid Status and identifier values
func (r *MigrationRecord) Validate() error {
	switch r.Status {
	case StatusPending, StatusCompleted, StatusFailed, StatusPermanentlyFailed:
		// Valid status
	default:
		return errors.New("invalid record status: must be one of pending, completed, failed, or permanently_failed")
	}

	if r.DocumentID == "" {
		return errors.New("document id cannot be empty")
	}
	if r.TenantID == "" {
		return errors.New("tenant id cannot be empty")
	}
	if r.AttemptsCount < 0 {
		return errors.New("attempts count cannot be negative")
	}

	return nil
}

// BeforeCreate runs validation before saving a new record
func (r *MigrationRecord) BeforeCreate(tx *gorm.DB) error {
	return r.Validate()
}

// BeforeUpdate runs validation before updating an existing record
func (r *MigrationRecord) BeforeUpdate(tx *gorm.DB) error {
	return r.Validate()
}

// IsTerminal reports whether the record can no longer change state.
func (r *MigrationRecord) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusPermanentlyFailed
}

// RecordAttempt applies the outcome of a single migration attempt. The
// attempt counter and timestamp advance regardless of outcome; failure
// messages are appended with their attempt number so earlier diagnostics
// survive later attempts.
func (r *MigrationRecord) RecordAttempt(now time.Time, attemptErr error) {
	r.AttemptsCount++
	r.LastAttemptAt = &now

	if attemptErr == nil {
		r.Status = StatusCompleted
		return
	}

	r.Status = StatusFailed
	line := fmt.Sprintf("attempt %d: %s", r.AttemptsCount, attemptErr.Error())
	if r.ErrorMessage == "" {
		r.ErrorMessage = line
	} else {
		r.ErrorMessage = r.ErrorMessage + "\n" + line
	}
}

// IsValidStatus checks if a given status string is valid
func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusPermanentlyFailed:
		return true
	default:
		return false
	}
}

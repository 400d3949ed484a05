package models

import (
	"time"
)

// SchemaMigration represents a database schema migration that has been applied
type SchemaMigration struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Version   string    `gorm:"uniqueIndex;not null" json:"version"`
	Name      string    `gorm:"not null" json:"name"`
	AppliedAt time.Time `json:"applied_at"`
}

// TableName ensures consistent table naming
func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

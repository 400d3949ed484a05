package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  MigrationRecord
		wantErr bool
	}{
		{
			name:   "valid pending record",
			record: MigrationRecord{TenantID: "tenant-a", DocumentID: "doc-001", Status: StatusPending},
		},
		{
			name:   "valid permanently failed record",
			record: MigrationRecord{TenantID: "tenant-a", DocumentID: "doc-001", Status: StatusPermanentlyFailed, AttemptsCount: 5},
		},
		{
			name:    "unknown status",
			record:  MigrationRecord{TenantID: "tenant-a", DocumentID: "doc-001", Status: "done"},
			wantErr: true,
		},
		{
			name:    "missing document id",
			record:  MigrationRecord{TenantID: "tenant-a", Status: StatusPending},
			wantErr: true,
		},
		{
			name:    "missing tenant id",
			record:  MigrationRecord{DocumentID: "doc-001", Status: StatusPending},
			wantErr: true,
		},
		{
			name:    "negative attempts",
			record:  MigrationRecord{TenantID: "tenant-a", DocumentID: "doc-001", Status: StatusPending, AttemptsCount: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecordAttempt(t *testing.T) {
	t.Run("success completes the record", func(t *testing.T) {
		record := MigrationRecord{TenantID: "tenant-a", DocumentID: "doc-001", Status: StatusPending}
		now := time.Now().UTC()

		record.RecordAttempt(now, nil)

		assert.Equal(t, StatusCompleted, record.Status)
		assert.Equal(t, 1, record.AttemptsCount)
		require.NotNil(t, record.LastAttemptAt)
		assert.Equal(t, now, *record.LastAttemptAt)
		assert.Empty(t, record.ErrorMessage)
	})

	t.Run("failure marks failed and records the message", func(t *testing.T) {
		record := MigrationRecord{TenantID: "tenant-a", DocumentID: "doc-001", Status: StatusPending}

		record.RecordAttempt(time.Now().UTC(), errors.New("source index unavailable"))

		assert.Equal(t, StatusFailed, record.Status)
		assert.Equal(t, 1, record.AttemptsCount)
		assert.Equal(t, "attempt 1: source index unavailable", record.ErrorMessage)
	})

	t.Run("later failures append, earlier diagnostics survive", func(t *testing.T) {
		record := MigrationRecord{TenantID: "tenant-a", DocumentID: "doc-001", Status: StatusPending}

		record.RecordAttempt(time.Now().UTC(), errors.New("timeout"))
		record.RecordAttempt(time.Now().UTC(), errors.New("chunk count mismatch"))

		assert.Equal(t, 2, record.AttemptsCount)
		assert.Equal(t, "attempt 1: timeout\nattempt 2: chunk count mismatch", record.ErrorMessage)
	})

	t.Run("success after failures clears status but keeps history", func(t *testing.T) {
		record := MigrationRecord{TenantID: "tenant-a", DocumentID: "doc-001", Status: StatusPending}

		record.RecordAttempt(time.Now().UTC(), errors.New("timeout"))
		record.RecordAttempt(time.Now().UTC(), nil)

		assert.Equal(t, StatusCompleted, record.Status)
		assert.Equal(t, 2, record.AttemptsCount)
		assert.Equal(t, "attempt 1: timeout", record.ErrorMessage)
	})
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, (&MigrationRecord{Status: StatusPending}).IsTerminal())
	assert.False(t, (&MigrationRecord{Status: StatusFailed}).IsTerminal())
	assert.True(t, (&MigrationRecord{Status: StatusCompleted}).IsTerminal())
	assert.True(t, (&MigrationRecord{Status: StatusPermanentlyFailed}).IsTerminal())
}

func TestIsValidStatus(t *testing.T) {
	for _, status := range []string{StatusPending, StatusCompleted, StatusFailed, StatusPermanentlyFailed} {
		assert.True(t, IsValidStatus(status), status)
	}
	assert.False(t, IsValidStatus("PENDING"))
	assert.False(t, IsValidStatus(""))
	assert.False(t, IsValidStatus("done"))
}

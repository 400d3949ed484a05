package models

import (
	"time"
)

// Document mirrors the indexing pipeline's view of a source document. The
// migrator only ever reads this table: ChunkCount is the authoritative number
// of chunks the source index holds and stays nil while the document is still
// being indexed.
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   string    `gorm:"uniqueIndex:idx_documents_tenant_document;not null" json:"tenant_id"`
	DocumentID string    `gorm:"uniqueIndex:idx_documents_tenant_document;not null" json:"document_id"`
	ChunkCount *int      `json:"chunk_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName ensures consistent table naming
func (Document) TableName() string {
	return "documents"
}

// Chunk is one searchable fragment of a document as stored in an index.
// SchemaVersion distinguishes the source layout from the destination layout
// produced by the transformer.
type Chunk struct {
	DocumentID    string                 `json:"document_id"`
	TenantID      string                 `json:"tenant_id"`
	Position      int                    `json:"position"`
	Title         string                 `json:"title,omitempty"`
	Text          string                 `json:"text"`
	SchemaVersion string                 `json:"schema_version"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Chunk schema versions
const (
	ChunkSchemaV1 = "v1"
	ChunkSchemaV2 = "v2"
)

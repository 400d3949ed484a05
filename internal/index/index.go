// Package index talks to the source and destination document indices for one
// tenant. The migrator treats both sides as opaque chunk stores: it reads every
// chunk of a document from the source, reshapes them, and bulk-writes them to
// the destination.
package index

import (
	"context"

	"github.com/ksred/index-migrator/internal/models"
)

// SourceIndex reads document chunks from the index being migrated away from
type SourceIndex interface {
	// ReadChunks returns every chunk stored for the document, in position
	// order. An empty slice means the document is absent from the source.
	ReadChunks(ctx context.Context, documentID string) ([]models.Chunk, error)
}

// DestinationIndex writes document chunks to the index being migrated to
type DestinationIndex interface {
	// WriteChunks indexes the chunks, replacing any prior copies of the same
	// document positions so re-attempts stay idempotent. It returns the number
	// of chunks the destination acknowledged, which callers verify against the
	// document's expected chunk count.
	WriteChunks(ctx context.Context, chunks []models.Chunk) (int, error)
}

// Provider builds tenant-scoped index handles. The migration job constructs
// the handles once per tick, not once per document.
type Provider interface {
	SourceForTenant(tenantID string) SourceIndex
	DestinationForTenant(tenantID string) DestinationIndex
}

// Transformer converts source-format chunks into destination-format chunks.
// A conforming implementation is 1:1 on chunk count; the migration job treats
// any count change as an internal invariant violation.
type Transformer interface {
	Transform(chunks []models.Chunk, tenantID string) ([]models.Chunk, error)
}

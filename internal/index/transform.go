package index

import (
	"fmt"

	"github.com/ksred/index-migrator/internal/models"
)

// ChunkTransformer upgrades chunks from the source schema to the destination
// schema. The mapping is strictly 1:1: every source chunk yields exactly one
// destination chunk at the same position.
type ChunkTransformer struct{}

// NewChunkTransformer creates the default v1 to v2 transformer
func NewChunkTransformer() *ChunkTransformer {
	return &ChunkTransformer{}
}

// Transform implements Transformer
func (t *ChunkTransformer) Transform(chunks []models.Chunk, tenantID string) ([]models.Chunk, error) {
	out := make([]models.Chunk, 0, len(chunks))

	for _, chunk := range chunks {
		if chunk.SchemaVersion != "" && chunk.SchemaVersion != models.ChunkSchemaV1 {
			return nil, fmt.Errorf("unexpected source chunk schema %q for document %s position %d",
				chunk.SchemaVersion, chunk.DocumentID, chunk.Position)
		}

		upgraded := chunk
		upgraded.SchemaVersion = models.ChunkSchemaV2
		upgraded.TenantID = tenantID

		// The v2 layout folds the v1 title field into metadata so the text
		// field is the only analyzed field.
		if chunk.Title != "" {
			if upgraded.Metadata == nil {
				upgraded.Metadata = make(map[string]interface{}, 1)
			} else {
				meta := make(map[string]interface{}, len(chunk.Metadata)+1)
				for k, v := range chunk.Metadata {
					meta[k] = v
				}
				upgraded.Metadata = meta
			}
			upgraded.Metadata["title"] = chunk.Title
			upgraded.Title = ""
		}

		out = append(out, upgraded)
	}

	return out, nil
}

package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/rs/zerolog"

	"github.com/ksred/index-migrator/internal/models"
	"github.com/ksred/index-migrator/internal/utils"
)

// chunkPageSize bounds a single document's chunk read. Documents are chunked
// well below this by the indexing pipeline.
const chunkPageSize = 10000

// OpenSearchProvider builds tenant-scoped clients over two opensearch
// clusters (or two index generations on the same cluster).
type OpenSearchProvider struct {
	source       *opensearch.Client
	destination  *opensearch.Client
	sourcePrefix string
	destPrefix   string
	timeout      time.Duration
	logger       zerolog.Logger
}

// ProviderConfig carries the connection settings for both sides
type ProviderConfig struct {
	SourceAddresses      []string
	DestinationAddresses []string
	Username             string
	Password             string
	SourceIndexPrefix    string
	DestIndexPrefix      string
	RequestTimeout       time.Duration
}

// NewOpenSearchProvider creates clients for the source and destination
// clusters
func NewOpenSearchProvider(cfg ProviderConfig, logger zerolog.Logger) (*OpenSearchProvider, error) {
	source, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.SourceAddresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create source index client: %w", err)
	}

	destination, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.DestinationAddresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create destination index client: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenSearchProvider{
		source:       source,
		destination:  destination,
		sourcePrefix: cfg.SourceIndexPrefix,
		destPrefix:   cfg.DestIndexPrefix,
		timeout:      timeout,
		logger:       logger,
	}, nil
}

// SourceForTenant implements Provider
func (p *OpenSearchProvider) SourceForTenant(tenantID string) SourceIndex {
	return &openSearchSource{
		client:  p.source,
		index:   fmt.Sprintf("%s-%s", p.sourcePrefix, tenantID),
		timeout: p.timeout,
		logger:  p.logger,
	}
}

// DestinationForTenant implements Provider
func (p *OpenSearchProvider) DestinationForTenant(tenantID string) DestinationIndex {
	return &openSearchDestination{
		client:  p.destination,
		index:   fmt.Sprintf("%s-%s", p.destPrefix, tenantID),
		timeout: p.timeout,
		logger:  p.logger,
	}
}

type openSearchSource struct {
	client  *opensearch.Client
	index   string
	timeout time.Duration
	logger  zerolog.Logger
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.Chunk `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// ReadChunks implements SourceIndex
func (s *openSearchSource) ReadChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := map[string]interface{}{
		"size": chunkPageSize,
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"document_id": documentID,
			},
		},
		"sort": []map[string]interface{}{
			{"position": "asc"},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, utils.WrapIndexError(s.index, "marshal search query", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, utils.WrapIndexError(s.index, "search chunks", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, utils.WrapIndexError(s.index, "search chunks", fmt.Errorf("%s", res.String()))
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, utils.WrapIndexError(s.index, "read search response", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, utils.WrapIndexError(s.index, "unmarshal search response", err)
	}

	chunks := make([]models.Chunk, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		chunks = append(chunks, hit.Source)
	}

	// The sort clause already orders by position; keep the guarantee even if
	// the index mapping lacks the field.
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Position < chunks[j].Position
	})

	return chunks, nil
}

type openSearchDestination struct {
	client  *opensearch.Client
	index   string
	timeout time.Duration
	logger  zerolog.Logger
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// WriteChunks implements DestinationIndex. Chunk ids are derived from
// document id and position, so re-indexing the same document overwrites
// rather than duplicates. The returned count is the number of items the bulk
// response acknowledged with a 2xx status.
func (d *openSearchDestination) WriteChunks(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var buf bytes.Buffer
	for _, chunk := range chunks {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": d.index,
				"_id":    fmt.Sprintf("%s:%d", chunk.DocumentID, chunk.Position),
			},
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return 0, utils.WrapIndexError(d.index, "marshal bulk action", err)
		}
		docLine, err := json.Marshal(chunk)
		if err != nil {
			return 0, utils.WrapIndexError(d.index, "marshal chunk", err)
		}

		buf.Write(actionLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	req := opensearchapi.BulkRequest{
		Body:    &buf,
		Refresh: "true",
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return 0, utils.WrapIndexError(d.index, "bulk index chunks", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, utils.WrapIndexError(d.index, "bulk index chunks", fmt.Errorf("%s", res.String()))
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, utils.WrapIndexError(d.index, "read bulk response", err)
	}

	var parsed bulkResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return 0, utils.WrapIndexError(d.index, "unmarshal bulk response", err)
	}

	written := 0
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Status >= 200 && result.Status < 300 {
				written++
			}
		}
	}

	if parsed.Errors {
		for _, item := range parsed.Items {
			for _, result := range item {
				if result.Error != nil {
					return written, utils.WrapIndexError(d.index, "bulk index chunks",
						fmt.Errorf("%s: %s", result.Error.Type, result.Error.Reason))
				}
			}
		}
		return written, utils.WrapIndexError(d.index, "bulk index chunks", fmt.Errorf("partial bulk failure"))
	}

	d.logger.Debug().Str("index", d.index).Int("chunks", written).Msg("indexed chunks")
	return written, nil
}

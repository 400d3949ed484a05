package migrate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/index-migrator/internal/index"
	"github.com/ksred/index-migrator/internal/models"
	"github.com/ksred/index-migrator/internal/store"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Document{}, &models.MigrationRecord{})
	require.NoError(t, err)

	return db
}

func setupStore(t *testing.T) (*store.RecordStore, *gorm.DB) {
	db := setupTestDB(t)
	return store.NewRecordStore(db, testLogger()), db
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func testOptions(tenant string) Options {
	return Options{
		Enabled:     true,
		Tenant:      tenant,
		BatchSize:   100,
		LockTTL:     time.Minute,
		LockMaxWait: 10 * time.Millisecond,
	}
}

func seedDocument(t *testing.T, db *gorm.DB, tenantID, documentID string, chunkCount *int) {
	doc := models.Document{TenantID: tenantID, DocumentID: documentID, ChunkCount: chunkCount}
	require.NoError(t, db.Create(&doc).Error)
}

func seedRecord(t *testing.T, db *gorm.DB, tenantID, documentID, status string, attempts int) {
	record := models.MigrationRecord{
		TenantID:      tenantID,
		DocumentID:    documentID,
		Status:        status,
		AttemptsCount: attempts,
	}
	require.NoError(t, db.Create(&record).Error)
}

func intPtr(n int) *int {
	return &n
}

// fakeLocker is a Locker whose behavior is scripted per test
type fakeLocker struct {
	acquired bool
	err      error

	acquireCalls int
	releaseCalls int
	lastName     string
}

func grantedLocker() *fakeLocker {
	return &fakeLocker{acquired: true}
}

func (l *fakeLocker) TryAcquire(ctx context.Context, name string, ttl, maxWait time.Duration) (bool, error) {
	l.acquireCalls++
	l.lastName = name
	return l.acquired, l.err
}

func (l *fakeLocker) Release(ctx context.Context) error {
	l.releaseCalls++
	return nil
}

// fakeCounters records the no-work progress signals
type fakeCounters struct {
	mu                 sync.Mutex
	noNewDocuments     int
	noPendingMigration int
}

func (c *fakeCounters) IncNoNewDocuments(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.noNewDocuments++
}

func (c *fakeCounters) IncNoPendingMigrations(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.noPendingMigration++
}

// fakeSource serves scripted chunks per document id
type fakeSource struct {
	chunks map[string][]models.Chunk
	errs   map[string]error
	reads  []string
}

func (s *fakeSource) ReadChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	s.reads = append(s.reads, documentID)
	if err := s.errs[documentID]; err != nil {
		return nil, err
	}
	return s.chunks[documentID], nil
}

// fakeDestination captures everything written to it. short makes it
// acknowledge that many fewer chunks than it was given.
type fakeDestination struct {
	written map[string][]models.Chunk
	err     error
	short   int
	writes  int
}

func (d *fakeDestination) WriteChunks(ctx context.Context, chunks []models.Chunk) (int, error) {
	d.writes++
	if d.err != nil {
		return 0, d.err
	}
	if d.written == nil {
		d.written = make(map[string][]models.Chunk)
	}
	for _, chunk := range chunks {
		d.written[chunk.DocumentID] = append(d.written[chunk.DocumentID], chunk)
	}
	return len(chunks) - d.short, nil
}

// fakeTransformer misbehaves on demand: drop trims that many chunks from the
// output, err fails the transform outright
type fakeTransformer struct {
	drop int
	err  error
}

func (f *fakeTransformer) Transform(chunks []models.Chunk, tenantID string) ([]models.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.drop >= len(chunks) {
		return nil, nil
	}
	return chunks[:len(chunks)-f.drop], nil
}

// fakeProvider hands out the same source and destination for every tenant
type fakeProvider struct {
	source      *fakeSource
	destination *fakeDestination
}

func (p *fakeProvider) SourceForTenant(tenantID string) index.SourceIndex {
	return p.source
}

func (p *fakeProvider) DestinationForTenant(tenantID string) index.DestinationIndex {
	return p.destination
}

// sourceChunks builds n v1 chunks for a document
func sourceChunks(documentID string, n int) []models.Chunk {
	chunks := make([]models.Chunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, models.Chunk{
			DocumentID:    documentID,
			Position:      i,
			Title:         "section",
			Text:          "chunk text",
			SchemaVersion: models.ChunkSchemaV1,
		})
	}
	return chunks
}

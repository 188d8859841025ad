package index

import (
	"context"
	"strconv"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/db"
	"github.com/kailas-cloud/ragline/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hSetFn        func(ctx context.Context, key string, fields map[string]string) error
	hSetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	hGetAllFn     func(ctx context.Context, key string) (map[string]string, error)
	hDelFn        func(ctx context.Context, key string, fields ...string) error
	delMultiFn    func(ctx context.Context, keys []string) error
	scanFn        func(ctx context.Context, pattern string) ([]string, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hSetFn != nil {
		return m.hSetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hSetMultiFn != nil {
		return m.hSetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hGetAllFn != nil {
		return m.hGetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HDel(ctx context.Context, key string, fields ...string) error {
	if m.hDelFn != nil {
		return m.hDelFn(ctx, key, fields...)
	}
	return nil
}

func (m *mockStore) DelMulti(ctx context.Context, keys []string) error {
	if m.delMultiFn != nil {
		return m.delMultiFn(ctx, keys)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	cfg := domain.DefaultVectorConfig()
	cfg.Dimensions = 4
	return New(ms, cfg, zap.NewNop()), ms
}

func testVector() []float32 {
	return []float32{0.1, 0.2, 0.3, 0.4}
}

func testRecords(docID string, version, n int) []domain.IndexRecord {
	records := make([]domain.IndexRecord, n)
	for i := range records {
		records[i] = domain.IndexRecord{
			ChunkID:    domain.ChunkID(docID, version, i),
			DocumentID: docID,
			Version:    version,
			Seq:        i,
			Vector:     testVector(),
			Text:       "chunk text",
			Start:      i * 100,
			End:        (i + 1) * 100,
			FirstBlock: 1,
			LastBlock:  1,
		}
	}
	return records
}

func knnEntry(docID string, version, seq int, score float64) db.SearchEntry {
	id := domain.ChunkID(docID, version, seq)
	return db.SearchEntry{
		Key:   chunkPrefix + id,
		Score: score,
		Fields: map[string]string{
			"document_id": docID,
			"version":     strconv.Itoa(version),
			"seq":         strconv.Itoa(seq),
			"text":        "text of " + id,
			"start":       "0",
			"end":         "100",
			"first_block": "1",
			"last_block":  "1",
		},
	}
}

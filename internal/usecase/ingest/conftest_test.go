package ingest

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/extract"
)

type mockExtractor struct {
	extractFn func(ctx context.Context, data []byte, format domain.Format, filename string) (extract.Result, error)
}

func (m *mockExtractor) Extract(
	ctx context.Context, data []byte, format domain.Format, filename string,
) (extract.Result, error) {
	if m.extractFn != nil {
		return m.extractFn(ctx, data, format, filename)
	}
	text := string(data)
	return extract.Result{
		Text:   text,
		Blocks: []domain.TextBlock{{Index: 1, Text: text, Start: 0, End: len(text)}},
	}, nil
}

type mockEmbedder struct {
	batchFn    func(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
	batchCalls int
}

func (m *mockEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	if m.batchFn != nil {
		return m.batchFn(ctx, texts)
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{0.1, 0.2, 0.3, 0.4}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings, TotalTokens: 7 * len(texts)}, nil
}

type mockIndex struct {
	upsertFn func(ctx context.Context, docID string, version int, records []domain.IndexRecord) error
	deleteFn func(ctx context.Context, docID string) error
}

func (m *mockIndex) Upsert(ctx context.Context, docID string, version int, records []domain.IndexRecord) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, docID, version, records)
	}
	return nil
}

func (m *mockIndex) Delete(ctx context.Context, docID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, docID)
	}
	return nil
}

type mockCatalog struct {
	upsertFn  func(ctx context.Context, doc *domain.Document) (bool, error)
	getFn     func(ctx context.Context, id string) (domain.Document, error)
	listFn    func(ctx context.Context, cursor string, limit int) ([]domain.Document, string, error)
	deleteFn  func(ctx context.Context, id string) error
	putTextFn func(ctx context.Context, id, text string) error
	getTextFn func(ctx context.Context, id string) (string, error)
}

func (m *mockCatalog) Upsert(ctx context.Context, doc *domain.Document) (bool, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, doc)
	}
	return true, nil
}

func (m *mockCatalog) Get(ctx context.Context, id string) (domain.Document, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return domain.Document{}, domain.ErrDocumentNotFound
}

func (m *mockCatalog) List(ctx context.Context, cursor string, limit int) ([]domain.Document, string, error) {
	if m.listFn != nil {
		return m.listFn(ctx, cursor, limit)
	}
	return nil, "", nil
}

func (m *mockCatalog) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockCatalog) PutText(ctx context.Context, id, text string) error {
	if m.putTextFn != nil {
		return m.putTextFn(ctx, id, text)
	}
	return nil
}

func (m *mockCatalog) GetText(ctx context.Context, id string) (string, error) {
	if m.getTextFn != nil {
		return m.getTextFn(ctx, id)
	}
	return "", domain.ErrDocumentNotFound
}

type testMocks struct {
	extractor *mockExtractor
	embedder  *mockEmbedder
	index     *mockIndex
	catalog   *mockCatalog
}

func newTestService(t *testing.T) (*Service, *testMocks) {
	t.Helper()
	m := &testMocks{
		extractor: &mockExtractor{},
		embedder:  &mockEmbedder{},
		index:     &mockIndex{},
		catalog:   &mockCatalog{},
	}
	chunker, err := NewChunker(domain.ChunkingConfig{MaxChunkSize: 100, OverlapSize: 20})
	if err != nil {
		t.Fatalf("NewChunker failed: %v", err)
	}
	svc := New(m.extractor, chunker, m.embedder, m.index, m.catalog, zap.NewNop())
	return svc, m
}

func existingDoc(t *testing.T, id string, liveVersion int) domain.Document {
	t.Helper()
	doc, err := domain.NewDocument(id, "Existing", domain.FormatText, 100)
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	doc.SetLive(liveVersion, 3, 1700000000000)
	return doc
}

package research

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
)

type mockSearcher struct {
	searchFn func(ctx context.Context, query string, k int) ([]domain.SearchHit, error)
}

func (m *mockSearcher) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, k)
	}
	return nil, nil
}

type mockFetcher struct {
	fetchFn func(ctx context.Context, url string) (domain.Page, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (domain.Page, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, url)
	}
	return domain.Page{URL: url, Title: "Title", Text: "fetched body text"}, nil
}

type mockChunker struct {
	chunkFn func(docID, text string, blocks []domain.TextBlock) ([]domain.Chunk, error)
}

func (m *mockChunker) Chunk(docID, text string, blocks []domain.TextBlock) ([]domain.Chunk, error) {
	if m.chunkFn != nil {
		return m.chunkFn(docID, text, blocks)
	}
	return []domain.Chunk{{DocumentID: docID, Seq: 0, Text: text, Start: 0, End: len(text)}}, nil
}

type testMocks struct {
	searcher *mockSearcher
	fetcher  *mockFetcher
	chunker  *mockChunker
}

func newTestService(t *testing.T, cfg Config) (*Service, *testMocks) {
	t.Helper()
	m := &testMocks{
		searcher: &mockSearcher{},
		fetcher:  &mockFetcher{},
		chunker:  &mockChunker{},
	}
	return New(m.searcher, m.fetcher, m.chunker, cfg, zap.NewNop()), m
}

func testHits(urls ...string) []domain.SearchHit {
	hits := make([]domain.SearchHit, len(urls))
	for i, u := range urls {
		hits[i] = domain.SearchHit{URL: u, Title: "Hit " + u, Snippet: "snippet of " + u, Rank: i}
	}
	return hits
}

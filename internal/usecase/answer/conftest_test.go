package answer

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/usecase/rank"
	"github.com/kailas-cloud/ragline/internal/usecase/synthesis"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3, 0.4}, TotalTokens: 5}, nil
}

type mockIndex struct {
	queryFn func(ctx context.Context, vector []float32, k int, filter domain.QueryFilter) ([]domain.RetrievedChunk, error)
	calls   int
}

func (m *mockIndex) Query(ctx context.Context, vector []float32, k int, filter domain.QueryFilter) ([]domain.RetrievedChunk, error) {
	m.calls++
	if m.queryFn != nil {
		return m.queryFn(ctx, vector, k, filter)
	}
	return []domain.RetrievedChunk{{
		ChunkID:    "doc-1:1:0",
		DocumentID: "doc-1",
		Version:    1,
		Text:       "indexed evidence",
		Score:      0.9,
	}}, nil
}

type mockResearcher struct {
	researchFn func(ctx context.Context, query string, k int) (domain.ResearchResult, error)
	calls      int
}

func (m *mockResearcher) Research(ctx context.Context, query string, k int) (domain.ResearchResult, error) {
	m.calls++
	if m.researchFn != nil {
		return m.researchFn(ctx, query, k)
	}
	return domain.ResearchResult{
		Candidates: []domain.WebCandidate{{
			Hit:    domain.SearchHit{URL: "https://a.example", Title: "A"},
			Status: domain.FetchOK,
			Text:   "web evidence",
			Chunks: []domain.Chunk{{DocumentID: "https://a.example", Text: "web evidence", End: 12}},
		}},
		Fetched: 1,
	}, nil
}

type mockRanker struct {
	rankFn func(ctx context.Context, vector []float32, indexed []domain.RetrievedChunk,
		web []domain.WebCandidate, opts rank.Options) ([]domain.RankedCandidate, error)
	lastIndexed []domain.RetrievedChunk
	lastWeb     []domain.WebCandidate
	lastOpts    rank.Options
}

func (m *mockRanker) Rank(ctx context.Context, vector []float32, indexed []domain.RetrievedChunk,
	web []domain.WebCandidate, opts rank.Options,
) ([]domain.RankedCandidate, error) {
	m.lastIndexed, m.lastWeb, m.lastOpts = indexed, web, opts
	if m.rankFn != nil {
		return m.rankFn(ctx, vector, indexed, web, opts)
	}
	var ranked []domain.RankedCandidate
	for _, c := range indexed {
		ranked = append(ranked, domain.RankedCandidate{
			ID: c.ChunkID, Kind: domain.SourceIndex, DocumentID: c.DocumentID,
			Text: c.Text, Score: c.Score,
		})
	}
	for _, c := range web {
		ranked = append(ranked, domain.RankedCandidate{
			ID: c.Hit.URL + "#0", Kind: domain.SourceWeb, URL: c.Hit.URL,
			Text: c.Text, Score: 0.5,
		})
	}
	return ranked, nil
}

type mockSynthesizer struct {
	synthesizeFn func(ctx context.Context, query string, ranked []domain.RankedCandidate,
		opts synthesis.Options) (domain.Answer, error)
	lastRanked []domain.RankedCandidate
	lastOpts   synthesis.Options
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, query string,
	ranked []domain.RankedCandidate, opts synthesis.Options,
) (domain.Answer, error) {
	m.lastRanked, m.lastOpts = ranked, opts
	if m.synthesizeFn != nil {
		return m.synthesizeFn(ctx, query, ranked, opts)
	}
	return domain.Answer{
		Query:       query,
		Markdown:    "The answer. [^1]",
		Citations:   []domain.Citation{{Ordinal: 1}},
		SourcesUsed: 1,
		Grounding:   domain.Grounding{CitedSentences: 1},
	}, nil
}

type testMocks struct {
	embedder    *mockEmbedder
	index       *mockIndex
	researcher  *mockResearcher
	ranker      *mockRanker
	synthesizer *mockSynthesizer
}

func newTestService(t *testing.T, cfg Config) (*Service, *testMocks) {
	t.Helper()
	m := &testMocks{
		embedder:    &mockEmbedder{},
		index:       &mockIndex{},
		researcher:  &mockResearcher{},
		ranker:      &mockRanker{},
		synthesizer: &mockSynthesizer{},
	}
	svc := New(m.embedder, m.index, m.researcher, m.ranker, m.synthesizer, cfg, zap.NewNop())
	return svc, m
}

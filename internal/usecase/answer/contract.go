package answer

import (
	"context"

	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/usecase/rank"
	"github.com/kailas-cloud/ragline/internal/usecase/synthesis"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index serves vector similarity retrieval over ingested documents.
type Index interface {
	Query(ctx context.Context, vector []float32, k int, filter domain.QueryFilter) ([]domain.RetrievedChunk, error)
}

// Researcher gathers transient web evidence for the query.
type Researcher interface {
	Research(ctx context.Context, query string, k int) (domain.ResearchResult, error)
}

// Ranker merges indexed and web evidence into one ordered candidate list.
type Ranker interface {
	Rank(ctx context.Context, queryVector []float32, indexed []domain.RetrievedChunk,
		web []domain.WebCandidate, opts rank.Options) ([]domain.RankedCandidate, error)
}

// Synthesizer turns ranked evidence into a cited answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, ranked []domain.RankedCandidate,
		opts synthesis.Options) (domain.Answer, error)
}

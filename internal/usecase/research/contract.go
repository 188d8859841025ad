package research

import (
	"context"

	"github.com/kailas-cloud/ragline/internal/domain"
)

// Searcher queries the web search provider.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error)
}

// Fetcher retrieves and text-extracts one candidate URL. Failures are typed
// with the domain fetch sentinels.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.Page, error)
}

// Chunker splits fetched page text into passages.
type Chunker interface {
	Chunk(docID, text string, blocks []domain.TextBlock) ([]domain.Chunk, error)
}

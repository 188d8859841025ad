package ingest

import (
	"context"

	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/extract"
)

// Extractor turns raw bytes into normalized text blocks.
type Extractor interface {
	Extract(ctx context.Context, data []byte, format domain.Format, filename string) (extract.Result, error)
}

// Embedder vectorizes chunk texts, one vector per input.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Index is the vector store gateway contract for ingestion.
type Index interface {
	Upsert(ctx context.Context, docID string, version int, records []domain.IndexRecord) error
	Delete(ctx context.Context, docID string) error
}

// Catalog persists document metadata and the normalized text.
type Catalog interface {
	Upsert(ctx context.Context, doc *domain.Document) (created bool, err error)
	Get(ctx context.Context, id string) (domain.Document, error)
	List(ctx context.Context, cursor string, limit int) ([]domain.Document, string, error)
	Delete(ctx context.Context, id string) error
	PutText(ctx context.Context, id, text string) error
	GetText(ctx context.Context, id string) (string, error)
}

// Package ingest runs the ingestion pipeline: extract, chunk, embed, index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/metrics"
)

const defaultMaxDocumentBytes = 25 << 20 // 25 MB

// Request describes one document to ingest. An empty ID gets a generated
// uuid; Version 0 means "bump the live version by one".
type Request struct {
	ID       string
	Version  int
	Title    string
	Filename string
	Format   domain.Format
	Content  []byte
}

// Receipt reports a completed ingestion.
type Receipt struct {
	DocumentID string
	Version    int
	Chunks     int
	Vectors    int
	TokensUsed int
}

// Service handles document ingestion, re-indexing and deletion.
type Service struct {
	extractor Extractor
	chunker   *Chunker
	embedder  Embedder
	index     Index
	catalog   Catalog
	logger    *zap.Logger

	maxDocumentBytes int
	defaultPageSize  int
	maxPageSize      int

	locks keyedMutex
}

// New creates an ingestion service.
func New(
	extractor Extractor,
	chunker *Chunker,
	embedder Embedder,
	index Index,
	catalog Catalog,
	logger *zap.Logger,
) *Service {
	return &Service{
		extractor:        extractor,
		chunker:          chunker,
		embedder:         embedder,
		index:            index,
		catalog:          catalog,
		logger:           logger,
		maxDocumentBytes: defaultMaxDocumentBytes,
		defaultPageSize:  20,
		maxPageSize:      100,
	}
}

// WithMaxDocumentBytes overrides the upload size cap.
func (s *Service) WithMaxDocumentBytes(n int) *Service {
	if n > 0 {
		s.maxDocumentBytes = n
	}
	return s
}

// WithPagination overrides the listing page size bounds.
func (s *Service) WithPagination(defaultSize, maxSize int) *Service {
	if defaultSize > 0 {
		s.defaultPageSize = defaultSize
	}
	if maxSize > 0 {
		s.maxPageSize = maxSize
	}
	return s
}

// Ingest runs the full pipeline for one document. Ingestions of the same
// document are serialized; different documents proceed concurrently.
func (s *Service) Ingest(ctx context.Context, req Request) (Receipt, error) {
	if len(req.Content) == 0 {
		return Receipt{}, fmt.Errorf("empty document: %w", domain.ErrExtractionFailed)
	}
	if len(req.Content) > s.maxDocumentBytes {
		return Receipt{}, fmt.Errorf("document is %d bytes, cap %d: %w",
			len(req.Content), s.maxDocumentBytes, domain.ErrDocumentTooLarge)
	}

	format := req.Format
	if format == "" {
		detected, err := domain.DetectFormat("", req.Filename)
		if err != nil {
			return Receipt{}, err
		}
		format = detected
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	doc, err := domain.NewDocument(id, titleOrFilename(req.Title, req.Filename), format, len(req.Content))
	if err != nil {
		return Receipt{}, fmt.Errorf("invalid document: %w", err)
	}

	unlock := s.locks.lock(id)
	defer unlock()

	res, err := s.extractor.Extract(ctx, req.Content, format, req.Filename)
	if err != nil {
		s.countIngest("extract_failed")
		return Receipt{}, fmt.Errorf("extract %s: %w", id, err)
	}

	version := req.Version
	if version <= 0 {
		version, err = s.nextVersion(ctx, id)
		if err != nil {
			return Receipt{}, err
		}
	}

	receipt, err := s.indexText(ctx, &doc, version, res.Text, res.Blocks)
	if err != nil {
		return Receipt{}, err
	}

	if err := s.catalog.PutText(ctx, id, res.Text); err != nil {
		return Receipt{}, fmt.Errorf("store text %s: %w", id, err)
	}

	s.logger.Info("document ingested",
		zap.String("document_id", id),
		zap.Int("version", receipt.Version),
		zap.Int("chunks", receipt.Chunks),
		zap.Int("tokens", receipt.TokensUsed))
	return receipt, nil
}

// Reindex re-chunks and re-embeds the stored normalized text as a new live
// version. Useful after chunking or embedding configuration changes.
func (s *Service) Reindex(ctx context.Context, id string) (Receipt, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	doc, err := s.catalog.Get(ctx, id)
	if err != nil {
		return Receipt{}, fmt.Errorf("get document %s: %w", id, err)
	}
	text, err := s.catalog.GetText(ctx, id)
	if err != nil {
		return Receipt{}, fmt.Errorf("get text %s: %w", id, err)
	}
	if text == "" {
		return Receipt{}, fmt.Errorf("document %s has no stored text: %w", id, domain.ErrExtractionFailed)
	}

	receipt, err := s.indexText(ctx, &doc, doc.LiveVersion()+1, text, nil)
	if err != nil {
		return Receipt{}, err
	}

	s.logger.Info("document reindexed",
		zap.String("document_id", id),
		zap.Int("version", receipt.Version),
		zap.Int("chunks", receipt.Chunks))
	return receipt, nil
}

// indexText chunks, embeds and writes one document version, then updates the
// catalog record.
func (s *Service) indexText(
	ctx context.Context, doc *domain.Document, version int, text string, blocks []domain.TextBlock,
) (Receipt, error) {
	id := doc.ID()

	chunks, err := s.chunker.Chunk(id, text, blocks)
	if err != nil {
		s.countIngest("chunk_failed")
		return Receipt{}, fmt.Errorf("chunk %s: %w", id, err)
	}
	if len(chunks) == 0 {
		s.countIngest("chunk_failed")
		return Receipt{}, fmt.Errorf("no text to index in %s: %w", id, domain.ErrExtractionFailed)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embedded, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		s.countIngest("embed_failed")
		return Receipt{}, fmt.Errorf("embed %s: %w", id, err)
	}

	records, err := domain.RecordsFromChunks(id, version, chunks, embedded.Embeddings)
	if err != nil {
		s.countIngest("embed_failed")
		return Receipt{}, fmt.Errorf("assemble records %s: %w", id, err)
	}

	if err := s.index.Upsert(ctx, id, version, records); err != nil {
		s.countIngest("index_failed")
		return Receipt{}, fmt.Errorf("index %s v%d: %w", id, version, err)
	}

	doc.SetLive(version, len(chunks), time.Now().UnixMilli())
	if _, err := s.catalog.Upsert(ctx, doc); err != nil {
		return Receipt{}, fmt.Errorf("catalog upsert %s: %w", id, err)
	}

	s.countIngest("success")
	metrics.IngestChunksTotal.Add(float64(len(chunks)))

	return Receipt{
		DocumentID: id,
		Version:    version,
		Chunks:     len(chunks),
		Vectors:    len(records),
		TokensUsed: embedded.TotalTokens,
	}, nil
}

// Delete removes a document from the index and the catalog.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.catalog.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if err := s.index.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete chunks %s: %w", id, err)
	}
	return nil
}

// Get returns a document's catalog record.
func (s *Service) Get(ctx context.Context, id string) (domain.Document, error) {
	doc, err := s.catalog.Get(ctx, id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// List returns a paginated document listing.
func (s *Service) List(ctx context.Context, cursor string, limit int) ([]domain.Document, string, error) {
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	docs, next, err := s.catalog.List(ctx, cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("list documents: %w", err)
	}
	return docs, next, nil
}

func (s *Service) nextVersion(ctx context.Context, id string) (int, error) {
	doc, err := s.catalog.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return 1, nil
		}
		return 0, fmt.Errorf("resolve version %s: %w", id, err)
	}
	return doc.LiveVersion() + 1, nil
}

func (s *Service) countIngest(status string) {
	metrics.IngestDocumentsTotal.WithLabelValues(status).Inc()
}

func titleOrFilename(title, filename string) string {
	if title != "" {
		return title
	}
	return filename
}

// keyedMutex serializes work per document id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*entry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

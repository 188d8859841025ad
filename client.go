package ragline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/db"
	dbRedis "github.com/kailas-cloud/ragline/internal/db/redis"
	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/extract"
	catalogrepo "github.com/kailas-cloud/ragline/internal/repository/catalog"
	"github.com/kailas-cloud/ragline/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/ragline/internal/repository/index"
	"github.com/kailas-cloud/ragline/internal/transport/fetch"
	openaiTransport "github.com/kailas-cloud/ragline/internal/transport/openai"
	answeruc "github.com/kailas-cloud/ragline/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/ragline/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ragline/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragline/internal/usecase/ingest"
	rankuc "github.com/kailas-cloud/ragline/internal/usecase/rank"
	researchuc "github.com/kailas-cloud/ragline/internal/usecase/research"
	"github.com/kailas-cloud/ragline/internal/usecase/synthesis"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the embedded ragline entry point: the full ingestion and query
// pipelines wired against a Redis store, without the HTTP layer.
type Client struct {
	store     db.Store
	ingestSvc *ingestuc.Service
	answerSvc *answeruc.Service
	healthSvc *healthuc.Service
}

// New creates a Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		embeddingModel:  "text-embedding-3-large",
		generationModel: "gpt-4o-mini",
		dimensions:      domain.DefaultVectorConfig().Dimensions,
		logger:          zap.NewNop(),
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("ragline: database address required (use WithRedis)")
	}
	if cfg.embedder == nil && cfg.openAIKey == "" {
		return nil, errors.New("ragline: embedding provider required (use WithOpenAI or WithEmbedder)")
	}
	if cfg.generator == nil && cfg.openAIKey == "" {
		return nil, errors.New("ragline: generation provider required (use WithOpenAI or WithGenerator)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("ragline: create redis store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("ragline: database not ready: %w", err)
	}

	c, err := wireClient(ctx, store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig) (*Client, error) {
	embedder := buildClientEmbedder(cfg, store)

	vecCfg := domain.VectorConfig{
		Model:          cfg.embeddingModel,
		Dimensions:     cfg.dimensions,
		DistanceMetric: "cosine",
	}
	indexRepo := indexrepo.New(store, vecCfg, cfg.logger)
	if cfg.hnswM > 0 || cfg.hnswEFConstruct > 0 {
		indexRepo = indexRepo.WithHNSW(indexrepo.HNSWConfig{
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		})
	}
	if err := indexRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ragline: ensure index schema: %w", err)
	}
	catalogRepo := catalogrepo.New(store)

	chunkCfg := domain.DefaultChunkingConfig()
	if cfg.maxChunkSize > 0 {
		chunkCfg.MaxChunkSize = cfg.maxChunkSize
		chunkCfg.OverlapSize = cfg.overlapSize
	}
	chunker, err := ingestuc.NewChunker(chunkCfg)
	if err != nil {
		return nil, fmt.Errorf("ragline: chunking config: %w", err)
	}

	ingestSvc := ingestuc.New(extract.New(), chunker, embedder, indexRepo, catalogRepo, cfg.logger).
		WithMaxDocumentBytes(cfg.maxDocumentBytes)

	var researcher answeruc.Researcher
	if cfg.searcher != nil {
		webChunker, werr := ingestuc.NewChunker(domain.DefaultWebChunkingConfig())
		if werr != nil {
			return nil, fmt.Errorf("ragline: web chunking config: %w", werr)
		}
		researcher = researchuc.New(
			&searcherAdapter{inner: cfg.searcher},
			fetch.New(&fetch.Options{Logger: cfg.logger}),
			webChunker,
			researchuc.Config{},
			cfg.logger,
		)
	}

	generator := buildClientGenerator(cfg)
	answerSvc := answeruc.New(
		embedder, indexRepo, researcher,
		rankuc.New(embedder, cfg.logger),
		synthesis.New(generator, cfg.logger),
		answeruc.Config{
			DefaultTimeout: time.Duration(cfg.defaultTimeoutSec) * time.Second,
			DefaultTopK:    cfg.defaultTopK,
			Temperature:    cfg.temperature,
		},
		cfg.logger,
	)

	healthSvc := healthuc.New(store, &embedderHealthAdapter{embedder: embedder})

	return &Client{
		store:     store,
		ingestSvc: ingestSvc,
		answerSvc: answerSvc,
		healthSvc: healthSvc,
	}, nil
}

// clientEmbedder is what the pipelines need from a vectorizer.
type clientEmbedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

func buildClientEmbedder(cfg *clientConfig, store db.Store) clientEmbedder {
	var base domain.Embedder
	provider := "custom"
	if cfg.embedder != nil {
		base = &embedderAdapter{inner: cfg.embedder}
	} else {
		provider = "openai"
		base = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.openAIKey,
			BaseURL:    cfg.openAIBaseURL,
			Model:      cfg.embeddingModel,
			Dimensions: cfg.dimensions,
			Provider:   provider,
			Logger:     cfg.logger,
		})
	}

	cached := embcache.New(base, store, nil, cfg.logger)
	return embeddinguc.NewInstrumentedEmbedder(cached, provider, cfg.embeddingModel, cfg.logger)
}

func buildClientGenerator(cfg *clientConfig) domain.Generator {
	if cfg.generator != nil {
		return &generatorAdapter{inner: cfg.generator}
	}
	return openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:  cfg.openAIKey,
		BaseURL: cfg.openAIBaseURL,
		Model:   cfg.generationModel,
		Logger:  cfg.logger,
	})
}

// Ingest runs the ingestion pipeline for one document.
func (c *Client) Ingest(ctx context.Context, req IngestRequest) (Receipt, error) {
	receipt, err := c.ingestSvc.Ingest(ctx, ingestuc.Request{
		ID:       req.ID,
		Version:  req.Version,
		Title:    req.Title,
		Filename: req.Filename,
		Format:   domain.Format(req.Format),
		Content:  req.Content,
	})
	if err != nil {
		return Receipt{}, err
	}
	return receiptFromInternal(receipt), nil
}

// Reindex re-chunks and re-embeds a document from its stored text under a new
// version.
func (c *Client) Reindex(ctx context.Context, id string) (Receipt, error) {
	receipt, err := c.ingestSvc.Reindex(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	return receiptFromInternal(receipt), nil
}

// DeleteDocument removes a document, its chunks and vectors.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.ingestSvc.Delete(ctx, id)
}

// GetDocument returns catalog metadata for one document.
func (c *Client) GetDocument(ctx context.Context, id string) (Document, error) {
	doc, err := c.ingestSvc.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	return documentFromInternal(doc), nil
}

// ListDocuments pages through the catalog. An empty cursor starts from the
// beginning; the returned cursor is empty on the last page.
func (c *Client) ListDocuments(ctx context.Context, cursor string, limit int) ([]Document, string, error) {
	docs, next, err := c.ingestSvc.List(ctx, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	out := make([]Document, len(docs))
	for i := range docs {
		out[i] = documentFromInternal(docs[i])
	}
	return out, next, nil
}

// Ask runs the query pipeline and returns a cited answer.
func (c *Client) Ask(ctx context.Context, req AskRequest) (Answer, error) {
	ans, err := c.answerSvc.Answer(ctx, answeruc.AskRequest{
		Query:            req.Query,
		UseIndex:         req.UseIndex,
		UseWeb:           req.UseWeb,
		TopK:             req.TopK,
		MinScore:         req.MinScore,
		DocumentIDs:      req.DocumentIDs,
		MaxContextTokens: req.MaxContextTokens,
		MaxAnswerTokens:  req.MaxAnswerTokens,
		Timeout:          time.Duration(req.TimeoutSec) * time.Second,
	})
	if err != nil {
		return Answer{}, err
	}
	return answerFromInternal(ans), nil
}

// Health reports component health.
func (c *Client) Health(ctx context.Context) HealthReport {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for name, result := range report.Checks {
		checks[name] = string(result)
	}
	return HealthReport{Status: string(report.Status), Checks: checks}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Package embedding decorates an embedder with sub-batch splitting and
// observability. Transport metrics (requests, duration, tokens) are recorded
// in transport/openai; this layer owns batching and logging.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragline/internal/domain"
)

// DefaultMaxAPIBatchSize caps the number of texts sent in one API request.
const DefaultMaxAPIBatchSize = 256

// DefaultBatchConcurrency caps concurrent sub-batch requests.
const DefaultBatchConcurrency = 4

// InstrumentedEmbedder wraps an Embedder with API batch-size splitting and
// request logging. Oversized batches are split into sub-batches embedded
// concurrently, order preserved.
type InstrumentedEmbedder struct {
	inner        domain.Embedder
	provider     string
	model        string
	maxBatchSize int
	concurrency  int
	logger       *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with batching and observability.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:        inner,
		provider:     provider,
		model:        model,
		maxBatchSize: DefaultMaxAPIBatchSize,
		concurrency:  DefaultBatchConcurrency,
		logger:       logger,
	}
}

// WithMaxBatchSize overrides the per-request text cap.
func (p *InstrumentedEmbedder) WithMaxBatchSize(n int) *InstrumentedEmbedder {
	if n > 0 {
		p.maxBatchSize = n
	}
	return p
}

// WithConcurrency overrides the concurrent sub-batch cap.
func (p *InstrumentedEmbedder) WithConcurrency(n int) *InstrumentedEmbedder {
	if n > 0 {
		p.concurrency = n
	}
	return p
}

// Embed delegates to the inner embedder with request logging.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed splits oversized batches into sub-batches and embeds them with
// bounded concurrency. One vector per input in input order, or the whole
// batch fails.
func (p *InstrumentedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()

	result, err := p.embedChunked(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// embedChunked fans sub-batches of maxBatchSize out to the inner embedder and
// reassembles results in input order.
func (p *InstrumentedEmbedder) embedChunked(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	chunks := (len(texts) + p.maxBatchSize - 1) / p.maxBatchSize
	if chunks == 1 {
		return p.embedInner(ctx, texts)
	}

	results := make([]domain.BatchEmbeddingResult, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := 0; i < chunks; i++ {
		i := i
		g.Go(func() error {
			offset := i * p.maxBatchSize
			end := offset + p.maxBatchSize
			if end > len(texts) {
				end = len(texts)
			}

			res, err := p.embedInner(gctx, texts[offset:end])
			if err != nil {
				p.logger.Error("Batch embedding request failed",
					zap.String("provider", p.provider),
					zap.String("model", p.model),
					zap.Int("chunk_offset", offset),
					zap.Int("chunk_size", end-offset),
					zap.Error(err),
				)
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}

	var merged domain.BatchEmbeddingResult
	for _, res := range results {
		merged.Embeddings = append(merged.Embeddings, res.Embeddings...)
		merged.PromptTokens += res.PromptTokens
		merged.TotalTokens += res.TotalTokens
	}
	return merged, nil
}

func (p *InstrumentedEmbedder) embedInner(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if be, ok := p.inner.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch embed: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, p.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch fallback: %w", err)
	}
	return res, nil
}

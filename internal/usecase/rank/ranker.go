// Package rank scores indexed and web evidence on a common cosine scale
// and produces the deterministic ordering the synthesizer packs from.
package rank

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
)

// Embedder vectorizes web chunk texts, one vector per input.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Options bound the ranked result.
type Options struct {
	TopK     int
	MinScore float64
}

// Ranker merges evidence from both retrieval paths into one ranked list.
type Ranker struct {
	embedder Embedder
	logger   *zap.Logger
}

// New creates a ranker.
func New(embedder Embedder, logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{embedder: embedder, logger: logger}
}

// Rank unifies indexed chunks (which already carry store-computed cosine
// similarity in the same embedding space) with web chunks (embedded here in
// one batch), sorts by score descending with candidate id as the tie-break,
// drops scores below MinScore and truncates to TopK.
//
// A web embedding failure drops the web evidence instead of failing the
// query when indexed evidence exists; with nothing else to rank it
// propagates.
func (r *Ranker) Rank(
	ctx context.Context,
	queryVector []float32,
	indexed []domain.RetrievedChunk,
	web []domain.WebCandidate,
	opts Options,
) ([]domain.RankedCandidate, error) {
	candidates := make([]domain.RankedCandidate, 0, len(indexed))
	for _, chunk := range indexed {
		candidates = append(candidates, domain.RankedCandidate{
			ID:         chunk.ChunkID,
			Kind:       domain.SourceIndex,
			DocumentID: chunk.DocumentID,
			Text:       chunk.Text,
			Score:      chunk.Score,
		})
	}

	webRanked, err := r.rankWeb(ctx, queryVector, web)
	if err != nil {
		if len(candidates) == 0 {
			return nil, err
		}
		r.logger.Warn("dropping web evidence", zap.Error(err))
	}
	candidates = append(candidates, webRanked...)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})

	kept := candidates[:0]
	for _, c := range candidates {
		if c.Score < opts.MinScore {
			continue
		}
		kept = append(kept, c)
	}
	if opts.TopK > 0 && len(kept) > opts.TopK {
		kept = kept[:opts.TopK]
	}

	for i := range kept {
		kept[i].Rank = i
	}
	return kept, nil
}

// rankWeb embeds all web chunks in one batch and scores them against the
// query vector.
func (r *Ranker) rankWeb(
	ctx context.Context, queryVector []float32, web []domain.WebCandidate,
) ([]domain.RankedCandidate, error) {
	var texts []string
	var owners []webChunkRef
	for ci := range web {
		for si, chunk := range web[ci].Chunks {
			texts = append(texts, chunk.Text)
			owners = append(owners, webChunkRef{candidate: ci, seq: si})
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}

	res, err := r.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d web chunks: %w", len(texts), err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed returned %d vectors for %d web chunks", len(res.Embeddings), len(texts))
	}

	ranked := make([]domain.RankedCandidate, len(texts))
	for i, ref := range owners {
		cand := web[ref.candidate]
		ranked[i] = domain.RankedCandidate{
			ID:    fmt.Sprintf("%s#%d", cand.Hit.URL, ref.seq),
			Kind:  domain.SourceWeb,
			URL:   cand.Hit.URL,
			Title: cand.Hit.Title,
			Text:  texts[i],
			Score: CosineSimilarity(queryVector, res.Embeddings[i]),
		}
	}
	return ranked, nil
}

type webChunkRef struct {
	candidate int
	seq       int
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// Zero-norm vectors and length disagreements score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

package synthesis

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
)

type mockGenerator struct {
	generateFn func(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
	calls      int
	requests   []domain.GenerationRequest
}

func (m *mockGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	m.calls++
	m.requests = append(m.requests, req)
	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	return domain.GenerationResult{Text: "The answer. [^1]", PromptTokens: 40, CompletionTokens: 8}, nil
}

func newTestService(t *testing.T) (*Service, *mockGenerator) {
	t.Helper()
	gen := &mockGenerator{}
	return New(gen, zap.NewNop()), gen
}

func indexCandidate(id, docID, text string, score float64) domain.RankedCandidate {
	return domain.RankedCandidate{
		ID:         id,
		Kind:       domain.SourceIndex,
		DocumentID: docID,
		Title:      "Doc " + docID,
		Text:       text,
		Score:      score,
	}
}

func webCandidate(url, text string, score float64) domain.RankedCandidate {
	return domain.RankedCandidate{
		ID:    url + "#0",
		Kind:  domain.SourceWeb,
		URL:   url,
		Title: "Page at " + url,
		Text:  text,
		Score: score,
	}
}

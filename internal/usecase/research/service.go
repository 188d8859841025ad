// Package research builds transient web evidence for a query: one search
// call, bounded-concurrency candidate fetches, passage chunking.
package research

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/metrics"
)

// Config bounds one research pass.
type Config struct {
	FetchConcurrency int
	MinSuccessful    int
	// SnippetFallback lets a failed candidate contribute its search snippet
	// as a single chunk instead of dropping out entirely.
	SnippetFallback bool
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 4
	}
	if c.MinSuccessful <= 0 {
		c.MinSuccessful = 2
	}
}

// Service orchestrates web research.
type Service struct {
	searcher Searcher
	fetcher  Fetcher
	chunker  Chunker
	cfg      Config
	logger   *zap.Logger
}

// New creates a research service. The chunker should carry the web passage
// configuration, which runs larger windows than document ingestion.
func New(searcher Searcher, fetcher Fetcher, chunker Chunker, cfg Config, logger *zap.Logger) *Service {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		searcher: searcher,
		fetcher:  fetcher,
		chunker:  chunker,
		cfg:      cfg,
		logger:   logger,
	}
}

// Research searches the web for the query, fetches all candidates
// concurrently and chunks each success into passages. Per-candidate fetch
// failures never abort the batch; fewer than MinSuccessful contributing
// candidates flags the result Partial. Provider order is retained.
func (s *Service) Research(ctx context.Context, query string, k int) (domain.ResearchResult, error) {
	hits, err := s.searcher.Search(ctx, query, k)
	if err != nil {
		return domain.ResearchResult{}, fmt.Errorf("search %q: %w", query, err)
	}
	if len(hits) == 0 {
		return domain.ResearchResult{Partial: true}, nil
	}

	candidates := make([]domain.WebCandidate, len(hits))
	for i, hit := range hits {
		candidates[i] = domain.WebCandidate{Hit: hit, Status: domain.FetchPending}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.FetchConcurrency)
	for i := range candidates {
		wg.Add(1)
		go func(c *domain.WebCandidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			s.fetchCandidate(ctx, c)
		}(&candidates[i])
	}
	wg.Wait()

	fetched := 0
	for _, c := range candidates {
		if c.Status == domain.FetchOK || c.Status == domain.FetchSnippet {
			fetched++
		}
	}

	result := domain.ResearchResult{
		Candidates: candidates,
		Fetched:    fetched,
		Partial:    fetched < s.cfg.MinSuccessful,
	}
	if result.Partial {
		metrics.ResearchPartialTotal.Inc()
		s.logger.Warn("partial research result",
			zap.String("query", query),
			zap.Int("fetched", fetched),
			zap.Int("min_successful", s.cfg.MinSuccessful))
	}
	return result, nil
}

// fetchCandidate resolves one candidate in place: fetched text chunked into
// passages, or a typed failure, or the snippet fallback.
func (s *Service) fetchCandidate(ctx context.Context, c *domain.WebCandidate) {
	page, err := s.fetcher.Fetch(ctx, c.Hit.URL)
	if err != nil {
		s.failCandidate(c, err)
		return
	}
	if page.Text == "" {
		s.failCandidate(c, fmt.Errorf("%s: no extractable text: %w", c.Hit.URL, domain.ErrFetchError))
		return
	}

	chunks, err := s.chunker.Chunk(c.Hit.URL, page.Text, nil)
	if err != nil {
		s.failCandidate(c, fmt.Errorf("chunk %s: %w", c.Hit.URL, err))
		return
	}

	c.Status = domain.FetchOK
	c.Text = page.Text
	c.Chunks = chunks
	if page.Title != "" {
		c.Hit.Title = page.Title
	}
}

func (s *Service) failCandidate(c *domain.WebCandidate, err error) {
	s.logger.Debug("candidate fetch failed", zap.String("url", c.Hit.URL), zap.Error(err))

	if s.cfg.SnippetFallback && c.Hit.Snippet != "" {
		c.Status = domain.FetchSnippet
		c.Text = c.Hit.Snippet
		c.Chunks = []domain.Chunk{{
			DocumentID: c.Hit.URL,
			Seq:        0,
			Text:       c.Hit.Snippet,
			Start:      0,
			End:        len(c.Hit.Snippet),
		}}
		return
	}

	c.Status = domain.FetchFailed
	c.Err = err
}

// Package answer orchestrates the query pipeline: query embedding, parallel
// index retrieval and web research, ranking, synthesis.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/metrics"
	"github.com/kailas-cloud/ragline/internal/usecase/rank"
	"github.com/kailas-cloud/ragline/internal/usecase/synthesis"
)

// ErrBadRequest signals an Ask request the pipeline cannot run.
var ErrBadRequest = errors.New("bad request")

// Config carries the pipeline defaults and the phase share of the request
// timeout granted to each stage.
type Config struct {
	DefaultTimeout time.Duration
	DefaultTopK    int
	SearchShare    float64
	FetchShare     float64
	RankShare      float64
	GenerateShare  float64

	// Synthesis defaults, applied when the request leaves them unset.
	DefaultMaxContextTokens int
	DefaultMaxAnswerTokens  int
	Temperature             float32
}

// ApplyDefaults fills unset fields with the stock 40/30/15/15 split.
func (c *Config) ApplyDefaults() {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = 8
	}
	if c.SearchShare <= 0 {
		c.SearchShare = 0.40
	}
	if c.FetchShare <= 0 {
		c.FetchShare = 0.30
	}
	if c.RankShare <= 0 {
		c.RankShare = 0.15
	}
	if c.GenerateShare <= 0 {
		c.GenerateShare = 0.15
	}
}

// AskRequest describes one answer request. Zero TopK and Timeout fall back to
// the service defaults; at least one of UseIndex/UseWeb must be set.
type AskRequest struct {
	Query            string
	UseIndex         bool
	UseWeb           bool
	TopK             int
	MinScore         float64
	DocumentIDs      []string
	MaxContextTokens int
	MaxAnswerTokens  int
	Timeout          time.Duration
}

// Service runs the query pipeline.
type Service struct {
	embedder    Embedder
	index       Index
	researcher  Researcher
	ranker      Ranker
	synthesizer Synthesizer
	cfg         Config
	logger      *zap.Logger
}

// New creates an answer service. The index and researcher may each be nil when
// the corresponding retrieval path is never enabled.
func New(
	embedder Embedder,
	index Index,
	researcher Researcher,
	ranker Ranker,
	synthesizer Synthesizer,
	cfg Config,
	logger *zap.Logger,
) *Service {
	cfg.ApplyDefaults()
	return &Service{
		embedder:    embedder,
		index:       index,
		researcher:  researcher,
		ranker:      ranker,
		synthesizer: synthesizer,
		cfg:         cfg,
		logger:      logger,
	}
}

// Answer runs embedding, retrieval, ranking and synthesis under the request
// timeout, carving each phase's deadline from the configured shares. When both
// retrieval paths are enabled they run in parallel, and a failure on one path
// degrades the answer to the surviving evidence instead of failing the query.
func (s *Service) Answer(ctx context.Context, req AskRequest) (domain.Answer, error) {
	if strings.TrimSpace(req.Query) == "" {
		return domain.Answer{}, fmt.Errorf("empty query: %w", ErrBadRequest)
	}
	if !req.UseIndex && !req.UseWeb {
		return domain.Answer{}, fmt.Errorf("no retrieval source enabled: %w", ErrBadRequest)
	}
	if req.UseIndex && s.index == nil {
		return domain.Answer{}, fmt.Errorf("index retrieval not configured: %w", ErrBadRequest)
	}
	if req.UseWeb && s.researcher == nil {
		return domain.Answer{}, fmt.Errorf("web research not configured: %w", ErrBadRequest)
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.DefaultTopK
	}
	if req.Timeout <= 0 {
		req.Timeout = s.cfg.DefaultTimeout
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	emb, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		s.countAnswer("embed_failed")
		return domain.Answer{}, fmt.Errorf("embed query: %w", err)
	}

	retrievalStart := time.Now()
	indexed, research, degraded, err := s.retrieve(ctx, req, emb.Embedding)
	if err != nil {
		s.countAnswer("retrieval_failed")
		return domain.Answer{}, err
	}

	var timings domain.Timings
	timings.SearchMS, timings.FetchMS = retrievalTimings(req, retrievalStart)

	ranked, rankMS, err := s.rank(ctx, req, emb.Embedding, indexed, research.Candidates)
	if err != nil {
		s.countAnswer("rank_failed")
		return domain.Answer{}, err
	}
	timings.RankMS = rankMS

	ans, generateMS, err := s.synthesize(ctx, req, ranked)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientEvidence) {
			s.countAnswer("insufficient_evidence")
		} else {
			s.countAnswer("synthesis_failed")
		}
		return domain.Answer{}, err
	}
	timings.GenerateMS = generateMS
	timings.TotalMS = time.Since(start).Milliseconds()

	ans.Partial = research.Partial || degraded
	ans.Timings = timings

	s.countAnswer("success")
	s.logger.Info("answer produced",
		zap.String("query", req.Query),
		zap.Int("sources_used", ans.SourcesUsed),
		zap.Bool("partial", ans.Partial),
		zap.Int64("total_ms", timings.TotalMS))
	return ans, nil
}

// retrieve runs the enabled retrieval paths, in parallel when both are on.
// With both paths enabled a single-path failure degrades rather than fails;
// degraded reports that some requested evidence is missing.
func (s *Service) retrieve(
	ctx context.Context, req AskRequest, vector []float32,
) ([]domain.RetrievedChunk, domain.ResearchResult, bool, error) {
	var (
		indexed  []domain.RetrievedChunk
		research domain.ResearchResult
		indexErr error
		webErr   error
	)

	var wg sync.WaitGroup
	if req.UseIndex {
		wg.Add(1)
		go func() {
			defer wg.Done()
			qctx, cancel := context.WithTimeout(ctx, s.phaseBudget(req, s.cfg.SearchShare))
			defer cancel()

			t0 := time.Now()
			indexed, indexErr = s.index.Query(qctx, vector, req.TopK,
				domain.QueryFilter{DocumentIDs: req.DocumentIDs})
			metrics.AnswerPhaseDuration.WithLabelValues("search").Observe(time.Since(t0).Seconds())
		}()
	}
	if req.UseWeb {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// research spans its own search plus the fetch fan-out
			budget := s.phaseBudget(req, s.cfg.SearchShare+s.cfg.FetchShare)
			rctx, cancel := context.WithTimeout(ctx, budget)
			defer cancel()

			t0 := time.Now()
			research, webErr = s.researcher.Research(rctx, req.Query, req.TopK)
			metrics.AnswerPhaseDuration.WithLabelValues("fetch").Observe(time.Since(t0).Seconds())
		}()
	}
	wg.Wait()

	degraded := false
	switch {
	case indexErr != nil && webErr != nil:
		return nil, domain.ResearchResult{}, false, fmt.Errorf("retrieval: %w", indexErr)
	case indexErr != nil && !req.UseWeb:
		return nil, domain.ResearchResult{}, false, fmt.Errorf("index query: %w", indexErr)
	case webErr != nil && !req.UseIndex:
		return nil, domain.ResearchResult{}, false, fmt.Errorf("web research: %w", webErr)
	case indexErr != nil:
		s.logger.Warn("index retrieval failed, continuing on web evidence", zap.Error(indexErr))
		indexed, degraded = nil, true
	case webErr != nil:
		s.logger.Warn("web research failed, continuing on indexed evidence", zap.Error(webErr))
		research, degraded = domain.ResearchResult{}, true
	}
	return indexed, research, degraded, nil
}

func (s *Service) rank(
	ctx context.Context, req AskRequest, vector []float32,
	indexed []domain.RetrievedChunk, web []domain.WebCandidate,
) ([]domain.RankedCandidate, int64, error) {
	rctx, cancel := context.WithTimeout(ctx, s.phaseBudget(req, s.cfg.RankShare))
	defer cancel()

	t0 := time.Now()
	ranked, err := s.ranker.Rank(rctx, vector, indexed, web,
		rank.Options{TopK: req.TopK, MinScore: req.MinScore})
	elapsed := time.Since(t0)
	metrics.AnswerPhaseDuration.WithLabelValues("rank").Observe(elapsed.Seconds())
	if err != nil {
		return nil, 0, fmt.Errorf("rank evidence: %w", err)
	}
	return ranked, elapsed.Milliseconds(), nil
}

func (s *Service) synthesize(
	ctx context.Context, req AskRequest, ranked []domain.RankedCandidate,
) (domain.Answer, int64, error) {
	gctx, cancel := context.WithTimeout(ctx, s.phaseBudget(req, s.cfg.GenerateShare))
	defer cancel()

	t0 := time.Now()
	maxContext := req.MaxContextTokens
	if maxContext <= 0 {
		maxContext = s.cfg.DefaultMaxContextTokens
	}
	maxAnswer := req.MaxAnswerTokens
	if maxAnswer <= 0 {
		maxAnswer = s.cfg.DefaultMaxAnswerTokens
	}
	ans, err := s.synthesizer.Synthesize(gctx, req.Query, ranked, synthesis.Options{
		MaxContextTokens: maxContext,
		MaxAnswerTokens:  maxAnswer,
		Temperature:      s.cfg.Temperature,
	})
	elapsed := time.Since(t0)
	metrics.AnswerPhaseDuration.WithLabelValues("generate").Observe(elapsed.Seconds())
	if err != nil {
		return domain.Answer{}, 0, err
	}
	return ans, elapsed.Milliseconds(), nil
}

func (s *Service) phaseBudget(req AskRequest, share float64) time.Duration {
	return time.Duration(float64(req.Timeout) * share)
}

func (s *Service) countAnswer(status string) {
	metrics.AnswerRequestsTotal.WithLabelValues(status).Inc()
}

// retrievalTimings attributes elapsed retrieval time to the enabled paths.
// Index queries report as search time, research as fetch time.
func retrievalTimings(req AskRequest, start time.Time) (searchMS, fetchMS int64) {
	elapsed := time.Since(start).Milliseconds()
	if req.UseIndex {
		searchMS = elapsed
	}
	if req.UseWeb {
		fetchMS = elapsed
	}
	return searchMS, fetchMS
}

// Package synthesis packs ranked evidence into a generation context and
// turns the model response into a cited, grounded answer.
package synthesis

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
)

const systemPrompt = `You are a precise research assistant. Answer the question using ONLY the numbered sources provided. After every factual sentence add a citation marker of the form [^N] where N is the number of the supporting source. If the sources do not contain the answer, say so plainly. Do not invent sources or facts.`

const correctiveInstruction = ` Your previous response was empty or unusable. Respond again with a concise answer, citing sources as [^N].`

const snippetLimit = 200

var (
	citationMarker = regexp.MustCompile(`\[\^(\d+)\]`)
	sentenceSplit  = regexp.MustCompile(`[.!?](?:\s+|$)`)
	leadingMarkers = regexp.MustCompile(`^(?:\[\^\d+\]\s*)+`)
)

// Options bound one synthesis call.
type Options struct {
	MaxContextTokens int
	MaxAnswerTokens  int
	Temperature      float32
	// TokenDivisor is the chars-per-token estimate used for packing.
	TokenDivisor int
}

func (o *Options) applyDefaults() {
	if o.MaxContextTokens <= 0 {
		o.MaxContextTokens = 3000
	}
	if o.MaxAnswerTokens <= 0 {
		o.MaxAnswerTokens = 500
	}
	if o.TokenDivisor <= 0 {
		o.TokenDivisor = 4
	}
}

// Service synthesizes answers from ranked evidence.
type Service struct {
	generator domain.Generator
	logger    *zap.Logger
}

// New creates a synthesis service.
func New(generator domain.Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{generator: generator, logger: logger}
}

// packedSource is one candidate that made it into the generation context.
type packedSource struct {
	ordinal   int
	candidate domain.RankedCandidate
}

// Synthesize packs candidates greedily in rank order, calls the generator,
// and parses the response into answer text plus citations. Citation markers
// referencing unknown sources are stripped and their sentences counted
// ungrounded. An empty response is retried once; a cited answer is the only
// success.
func (s *Service) Synthesize(
	ctx context.Context, query string, ranked []domain.RankedCandidate, opts Options,
) (domain.Answer, error) {
	opts.applyDefaults()

	packed := pack(ranked, opts.MaxContextTokens, opts.TokenDivisor)
	if len(packed) == 0 {
		return domain.Answer{}, fmt.Errorf("no evidence fits the context budget: %w", domain.ErrInsufficientEvidence)
	}

	user := buildUserPrompt(query, packed)

	result, err := s.generate(ctx, systemPrompt, user, opts)
	if err != nil {
		return domain.Answer{}, err
	}
	if result.Text == "" {
		s.logger.Warn("empty generation, retrying with corrective instruction")
		result, err = s.generate(ctx, systemPrompt+correctiveInstruction, user, opts)
		if err != nil {
			return domain.Answer{}, err
		}
		if result.Text == "" {
			return domain.Answer{}, fmt.Errorf("empty generation after retry: %w", domain.ErrSynthesisUnavailable)
		}
	}

	text, used, grounding := parseCitations(result.Text, len(packed))
	if len(used) == 0 {
		return domain.Answer{}, fmt.Errorf("generation cited no sources: %w", domain.ErrInsufficientEvidence)
	}

	return domain.Answer{
		Query:            query,
		Markdown:         text,
		Citations:        buildCitations(packed, used),
		SourcesUsed:      len(used),
		Grounding:        grounding,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}, nil
}

func (s *Service) generate(
	ctx context.Context, system, user string, opts Options,
) (domain.GenerationResult, error) {
	result, err := s.generator.Generate(ctx, domain.GenerationRequest{
		System:      system,
		User:        user,
		MaxTokens:   opts.MaxAnswerTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate answer: %w", err)
	}
	return result, nil
}

// pack selects candidates greedily in rank order under the token budget.
// An oversized candidate is dropped whole; later smaller ones may still fit.
func pack(ranked []domain.RankedCandidate, budget, divisor int) []packedSource {
	var packed []packedSource
	remaining := budget
	for _, c := range ranked {
		if c.Text == "" {
			continue
		}
		est := len(c.Text)/divisor + 1
		if est > remaining {
			continue
		}
		remaining -= est
		packed = append(packed, packedSource{ordinal: len(packed) + 1, candidate: c})
	}
	return packed
}

func buildUserPrompt(query string, packed []packedSource) string {
	var sb strings.Builder
	sb.WriteString("Sources:\n\n")
	for _, p := range packed {
		sb.WriteString("[")
		sb.WriteString(strconv.Itoa(p.ordinal))
		sb.WriteString("] ")
		sb.WriteString(sourceLabel(p.candidate))
		sb.WriteString("\n")
		sb.WriteString(p.candidate.Text)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)
	return sb.String()
}

func sourceLabel(c domain.RankedCandidate) string {
	switch {
	case c.Kind == domain.SourceWeb && c.Title != "":
		return c.Title + " (" + c.URL + ")"
	case c.Kind == domain.SourceWeb:
		return c.URL
	case c.Title != "":
		return c.Title
	default:
		return "document " + c.DocumentID
	}
}

// parseCitations strips markers referencing unknown ordinals and reports
// which valid ordinals the text uses, plus sentence-level grounding counts.
func parseCitations(text string, sources int) (string, []int, domain.Grounding) {
	usedSet := map[int]bool{}

	cleaned := citationMarker.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.Atoi(citationMarker.FindStringSubmatch(m)[1])
		if err != nil || n < 1 || n > sources {
			return ""
		}
		usedSet[n] = true
		return m
	})
	cleaned = strings.TrimSpace(cleaned)

	var grounding domain.Grounding
	for _, sentence := range splitSentences(cleaned) {
		if citationMarker.MatchString(sentence) {
			grounding.CitedSentences++
		} else {
			grounding.UngroundedSentences++
		}
	}

	used := make([]int, 0, len(usedSet))
	for n := range usedSet {
		used = append(used, n)
	}
	sort.Ints(used)
	return cleaned, used, grounding
}

// splitSentences breaks text at sentence terminators, re-attaching citation
// markers that trail the terminator ("claim. [^1]") to the sentence they cite.
func splitSentences(text string) []string {
	var sentences []string
	for _, seg := range sentenceSplit.Split(text, -1) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if lead := leadingMarkers.FindString(seg); lead != "" && len(sentences) > 0 {
			sentences[len(sentences)-1] += " " + strings.TrimSpace(lead)
			seg = strings.TrimSpace(seg[len(lead):])
			if seg == "" {
				continue
			}
		}
		sentences = append(sentences, seg)
	}
	return sentences
}

func buildCitations(packed []packedSource, used []int) []domain.Citation {
	byOrdinal := make(map[int]domain.RankedCandidate, len(packed))
	for _, p := range packed {
		byOrdinal[p.ordinal] = p.candidate
	}

	citations := make([]domain.Citation, 0, len(used))
	for _, n := range used {
		c := byOrdinal[n]
		citations = append(citations, domain.Citation{
			Ordinal:    n,
			Kind:       c.Kind,
			DocumentID: c.DocumentID,
			ChunkID:    chunkIDFor(c),
			URL:        c.URL,
			Title:      c.Title,
			Snippet:    snippet(c.Text),
			Score:      c.Score,
		})
	}
	return citations
}

func chunkIDFor(c domain.RankedCandidate) string {
	if c.Kind == domain.SourceIndex {
		return c.ID
	}
	return ""
}

func snippet(text string) string {
	if len(text) <= snippetLimit {
		return text
	}
	return text[:snippetLimit] + "…"
}

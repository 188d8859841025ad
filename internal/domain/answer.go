package domain

// SourceKind tells where a ranked candidate came from.
type SourceKind string

const (
	// SourceIndex marks evidence retrieved from the vector index.
	SourceIndex SourceKind = "index"
	// SourceWeb marks evidence built by live web research.
	SourceWeb SourceKind = "web"
)

// RankedCandidate is the unified evidence unit the ranker produces: an
// indexed chunk or a web-derived chunk plus its relevance score.
type RankedCandidate struct {
	ID         string // chunk id for index evidence, "<url>#<seq>" for web evidence
	Kind       SourceKind
	DocumentID string // index evidence only
	URL        string // web evidence only
	Title      string
	Text       string
	Score      float64
	Rank       int // 0-based position after sorting
}

// Citation links an answer claim back to one packed evidence source.
// Ordinal is the 1-based id the source carried in the packed context.
type Citation struct {
	Ordinal    int
	Kind       SourceKind
	DocumentID string
	ChunkID    string
	URL        string
	Title      string
	Snippet    string
	Score      float64
}

// Grounding counts how much of the answer is backed by citations.
type Grounding struct {
	CitedSentences      int
	UngroundedSentences int
}

// Timings records per-phase latency of one answer request, in milliseconds.
type Timings struct {
	SearchMS   int64
	FetchMS    int64
	RankMS     int64
	GenerateMS int64
	TotalMS    int64
}

// Answer is the final synthesized output: markdown text with [^i] citation
// markers, the citations actually used, and bookkeeping. Not persisted.
type Answer struct {
	Query            string
	Markdown         string
	Citations        []Citation // only ids used in the text, ascending ordinal
	SourcesUsed      int
	Partial          bool // research evidence fell below the configured minimum
	Grounding        Grounding
	PromptTokens     int
	CompletionTokens int
	Timings          Timings
}

package ragline

import "context"

// Embedder is the pluggable text vectorization provider for the embedded
// client. Implementations must return one vector per call with the configured
// dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries one embedding vector and its token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Generator is the pluggable text generation provider used for answer
// synthesis.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// GenerationRequest carries the prompts and sampling settings for one call.
type GenerationRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// GenerationResult carries the generated text and token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Searcher is the pluggable web search provider for the research path.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]SearchHit, error)
}

// SearchHit is one web search result in provider order.
type SearchHit struct {
	URL     string
	Title   string
	Snippet string
	Rank    int
	Score   float64
}

// IngestRequest describes one document to ingest. Content is required; an
// empty ID mints a fresh one, an empty Format is detected from the filename.
type IngestRequest struct {
	ID       string
	Version  int
	Title    string
	Filename string
	Format   string // "pdf", "markdown", "html" or "text"
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

// Document is the catalog view of an ingested document.
type Document struct {
	ID          string
	Title       string
	Format      string
	SizeBytes   int
	LiveVersion int
	ChunkCount  int
	IngestedAt  int64 // unix milliseconds, zero before first successful ingest
}

// AskRequest describes one answer request. Zero TopK and Timeout fall back to
// the client defaults.
type AskRequest struct {
	Query            string
	UseIndex         bool
	UseWeb           bool
	TopK             int
	MinScore         float64
	DocumentIDs      []string
	MaxContextTokens int
	MaxAnswerTokens  int
	TimeoutSec       int
}

// Citation points one answer marker at its evidence source.
type Citation struct {
	Ordinal    int
	Kind       string // "index" or "web"
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

// Answer is the synthesized output: markdown text with [^i] citation markers
// and the citations they resolve to.
type Answer struct {
	Query            string
	Markdown         string
	Citations        []Citation
	SourcesUsed      int
	Partial          bool
	Grounding        Grounding
	PromptTokens     int
	CompletionTokens int
	Timings          Timings
}

// HealthReport summarizes component health.
type HealthReport struct {
	Status string // "ok", "degraded" or "error"
	Checks map[string]string
}

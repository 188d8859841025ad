package sdk

import "time"

// IngestRequest is the JSON ingestion body: inline text content.
type IngestRequest struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Format  string `json:"format,omitempty"`
	Version int    `json:"version,omitempty"`
	Content string `json:"content"`
}

// Receipt reports a completed ingestion.
type Receipt struct {
	DocumentID string `json:"document_id"`
	Version    int    `json:"version"`
	Chunks     int    `json:"chunks"`
	Vectors    int    `json:"vectors"`
	TokensUsed int    `json:"tokens_used"`
}

// Document is the catalog view of an ingested document.
type Document struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Format      string     `json:"format"`
	SizeBytes   int        `json:"size_bytes"`
	LiveVersion int        `json:"live_version"`
	ChunkCount  int        `json:"chunk_count"`
	IngestedAt  *time.Time `json:"ingested_at,omitempty"`
}

// DocumentList is one page of the catalog.
type DocumentList struct {
	Items      []Document `json:"items"`
	HasMore    bool       `json:"has_more"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// AskRequest is the POST /answers body. Nil UseIndex defaults to true, nil
// UseWeb to false.
type AskRequest struct {
	Query            string   `json:"query"`
	UseIndex         *bool    `json:"use_index,omitempty"`
	UseWeb           *bool    `json:"use_web,omitempty"`
	TopK             int      `json:"top_k,omitempty"`
	MinScore         float64  `json:"min_score,omitempty"`
	DocumentIDs      []string `json:"document_ids,omitempty"`
	MaxContextTokens int      `json:"max_context_tokens,omitempty"`
	MaxAnswerTokens  int      `json:"max_answer_tokens,omitempty"`
	TimeoutSec       int      `json:"timeout_sec,omitempty"`
}

// Citation points one answer marker at its evidence source.
type Citation struct {
	Ordinal    int     `json:"ordinal"`
	Kind       string  `json:"kind"`
	DocumentID string  `json:"document_id,omitempty"`
	ChunkID    string  `json:"chunk_id,omitempty"`
	URL        string  `json:"url,omitempty"`
	Title      string  `json:"title,omitempty"`
	Snippet    string  `json:"snippet,omitempty"`
	Score      float64 `json:"score"`
}

// Grounding counts how much of the answer is backed by citations.
type Grounding struct {
	CitedSentences      int `json:"cited_sentences"`
	UngroundedSentences int `json:"ungrounded_sentences"`
}

// Timings records per-phase latency of one answer request, in milliseconds.
type Timings struct {
	SearchMS   int64 `json:"search_ms"`
	FetchMS    int64 `json:"fetch_ms"`
	RankMS     int64 `json:"rank_ms"`
	GenerateMS int64 `json:"generate_ms"`
	TotalMS    int64 `json:"total_ms"`
}

// Answer is the synthesized output with its citations.
type Answer struct {
	Query            string     `json:"query"`
	Answer           string     `json:"answer"`
	Citations        []Citation `json:"citations"`
	SourcesUsed      int        `json:"sources_used"`
	Partial          bool       `json:"partial"`
	Grounding        Grounding  `json:"grounding"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
	Timings          Timings    `json:"timings"`
}

// Health summarizes component health.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

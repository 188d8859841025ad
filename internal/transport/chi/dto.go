package chi

import (
	"time"

	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/usecase/ingest"
)

// errorCode is the machine-readable error discriminator in error responses.
type errorCode string

const (
	codeBadRequest           errorCode = "bad_request"
	codeValidationFailed     errorCode = "validation_failed"
	codeDocumentNotFound     errorCode = "document_not_found"
	codeUnsupportedFormat    errorCode = "unsupported_format"
	codeDocumentTooLarge     errorCode = "document_too_large"
	codeInsufficientEvidence errorCode = "insufficient_evidence"
	codeEmbeddingUnavailable errorCode = "embedding_unavailable"
	codeSearchUnavailable    errorCode = "search_unavailable"
	codeSynthesisUnavailable errorCode = "synthesis_unavailable"
	codeIndexUnavailable     errorCode = "index_unavailable"
	codeRateLimited          errorCode = "rate_limited"
	codeInternalError        errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// ingestJSONRequest is the non-multipart ingestion body: inline text content.
type ingestJSONRequest struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Format  string `json:"format,omitempty"`
	Version int    `json:"version,omitempty"`
	Content string `json:"content"`
}

type receiptResponse struct {
	DocumentID string `json:"document_id"`
	Version    int    `json:"version"`
	Chunks     int    `json:"chunks"`
	Vectors    int    `json:"vectors"`
	TokensUsed int    `json:"tokens_used"`
}

func receiptToDTO(r ingest.Receipt) receiptResponse {
	return receiptResponse{
		DocumentID: r.DocumentID,
		Version:    r.Version,
		Chunks:     r.Chunks,
		Vectors:    r.Vectors,
		TokensUsed: r.TokensUsed,
	}
}

type documentResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Format      string     `json:"format"`
	SizeBytes   int        `json:"size_bytes"`
	LiveVersion int        `json:"live_version"`
	ChunkCount  int        `json:"chunk_count"`
	IngestedAt  *time.Time `json:"ingested_at,omitempty"`
}

func documentToDTO(d *domain.Document) documentResponse {
	resp := documentResponse{
		ID:          d.ID(),
		Title:       d.Title(),
		Format:      string(d.Format()),
		SizeBytes:   d.SizeBytes(),
		LiveVersion: d.LiveVersion(),
		ChunkCount:  d.ChunkCount(),
	}
	if d.IngestedAt() > 0 {
		ts := time.UnixMilli(d.IngestedAt()).UTC()
		resp.IngestedAt = &ts
	}
	return resp
}

type documentListResponse struct {
	Items      []documentResponse `json:"items"`
	HasMore    bool               `json:"has_more"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// askRequest is the POST /answers body.
type askRequest struct {
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

type citationDTO struct {
	Ordinal    int     `json:"ordinal"`
	Kind       string  `json:"kind"`
	DocumentID string  `json:"document_id,omitempty"`
	ChunkID    string  `json:"chunk_id,omitempty"`
	URL        string  `json:"url,omitempty"`
	Title      string  `json:"title,omitempty"`
	Snippet    string  `json:"snippet,omitempty"`
	Score      float64 `json:"score"`
}

type groundingDTO struct {
	CitedSentences      int `json:"cited_sentences"`
	UngroundedSentences int `json:"ungrounded_sentences"`
}

type timingsDTO struct {
	SearchMS   int64 `json:"search_ms"`
	FetchMS    int64 `json:"fetch_ms"`
	RankMS     int64 `json:"rank_ms"`
	GenerateMS int64 `json:"generate_ms"`
	TotalMS    int64 `json:"total_ms"`
}

type answerResponse struct {
	Query            string        `json:"query"`
	Answer           string        `json:"answer"`
	Citations        []citationDTO `json:"citations"`
	SourcesUsed      int           `json:"sources_used"`
	Partial          bool          `json:"partial"`
	Grounding        groundingDTO  `json:"grounding"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Timings          timingsDTO    `json:"timings"`
}

func answerToDTO(a domain.Answer) answerResponse {
	citations := make([]citationDTO, len(a.Citations))
	for i, c := range a.Citations {
		citations[i] = citationDTO{
			Ordinal:    c.Ordinal,
			Kind:       string(c.Kind),
			DocumentID: c.DocumentID,
			ChunkID:    c.ChunkID,
			URL:        c.URL,
			Title:      c.Title,
			Snippet:    c.Snippet,
			Score:      c.Score,
		}
	}
	return answerResponse{
		Query:            a.Query,
		Answer:           a.Markdown,
		Citations:        citations,
		SourcesUsed:      a.SourcesUsed,
		Partial:          a.Partial,
		Grounding: groundingDTO{
			CitedSentences:      a.Grounding.CitedSentences,
			UngroundedSentences: a.Grounding.UngroundedSentences,
		},
		PromptTokens:     a.PromptTokens,
		CompletionTokens: a.CompletionTokens,
		Timings: timingsDTO{
			SearchMS:   a.Timings.SearchMS,
			FetchMS:    a.Timings.FetchMS,
			RankMS:     a.Timings.RankMS,
			GenerateMS: a.Timings.GenerateMS,
			TotalMS:    a.Timings.TotalMS,
		},
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

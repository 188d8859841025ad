package domain

// SearchHit is a single result from the web search provider, in provider order.
type SearchHit struct {
	URL     string
	Title   string
	Snippet string
	Rank    int // 0-based provider position
	Score   float64
}

// Page is the fetched and text-extracted content of one web candidate.
type Page struct {
	URL   string // final URL after redirects
	Title string
	Text  string
}

// FetchStatus classifies the outcome of fetching one web candidate.
type FetchStatus string

const (
	// FetchPending means the candidate has not been fetched yet.
	FetchPending FetchStatus = "pending"
	// FetchOK means the candidate's content was fetched and extracted.
	FetchOK FetchStatus = "ok"
	// FetchFailed means the fetch failed; Err carries the typed reason.
	FetchFailed FetchStatus = "failed"
	// FetchSnippet means the candidate contributes its search snippet only.
	FetchSnippet FetchStatus = "snippet"
)

// WebCandidate is one web source considered during research. Ephemeral,
// lives only for the duration of a single query.
type WebCandidate struct {
	Hit    SearchHit
	Status FetchStatus
	Err    error // typed per-candidate fetch failure, nil unless Status == FetchFailed
	Text   string
	Chunks []Chunk
}

// ResearchResult is the transient evidence set built by web research.
type ResearchResult struct {
	Candidates []WebCandidate
	Fetched    int  // candidates that contributed text (ok or snippet)
	Partial    bool // fewer than the configured minimum fetched successfully
}

package domain

import "errors"

var (
	// ErrUnsupportedFormat signals a content type the extractor does not recognize.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrExtractionFailed signals a recognized but corrupt or unreadable document.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrInvalidConfiguration signals component configuration that cannot work.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentTooLarge signals an upload above the configured size cap.
	ErrDocumentTooLarge = errors.New("document too large")

	// ErrEmbeddingUnavailable signals an embedding batch that failed after retries.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrDimensionMismatch signals a vector whose length disagrees with the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrIndexUnavailable signals a persistent vector index failure after retry.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrSearchUnavailable signals a failed web search call after retries.
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrFetchTimeout signals a single candidate fetch that exceeded its deadline.
	ErrFetchTimeout = errors.New("fetch timeout")
	// ErrFetchError signals a single candidate fetch that failed mid-transfer.
	ErrFetchError = errors.New("fetch error")
	// ErrUnreachable signals a candidate URL that could not be connected to at all.
	ErrUnreachable = errors.New("unreachable")

	// ErrInsufficientEvidence signals that no candidate cleared the relevance cutoff.
	ErrInsufficientEvidence = errors.New("insufficient evidence")
	// ErrSynthesisUnavailable signals a generative call that failed after retry.
	ErrSynthesisUnavailable = errors.New("synthesis unavailable")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

package sdk

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped from API error codes.
// Use errors.Is() to check.
var (
	ErrBadRequest           = errors.New("bad request")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrUnsupportedFormat    = errors.New("unsupported format")
	ErrDocumentTooLarge     = errors.New("document too large")
	ErrInsufficientEvidence = errors.New("insufficient evidence")
	ErrRateLimited          = errors.New("rate limited")
	ErrServiceUnavailable   = errors.New("service unavailable")
)

// APIError is the decoded error body of a failed request. It wraps the
// matching sentinel so errors.Is works on the return value.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ragline api: %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "bad_request", "validation_failed":
		return ErrBadRequest
	case "document_not_found":
		return ErrDocumentNotFound
	case "unsupported_format":
		return ErrUnsupportedFormat
	case "document_too_large":
		return ErrDocumentTooLarge
	case "insufficient_evidence":
		return ErrInsufficientEvidence
	case "rate_limited":
		return ErrRateLimited
	case "embedding_unavailable", "search_unavailable", "synthesis_unavailable", "index_unavailable":
		return ErrServiceUnavailable
	}
	return nil
}

package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIngest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/documents" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization header: got %q", got)
		}

		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Title != "Handbook" || req.Format != "markdown" || req.Content != "# Hello" {
			t.Errorf("unexpected request body: %+v", req)
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Receipt{DocumentID: "doc-1", Version: 1, Chunks: 2, Vectors: 2, TokensUsed: 9})
	}))
	defer srv.Close()

	client := New(srv.URL, WithAPIKey("secret"))
	receipt, err := client.Ingest(context.Background(), IngestRequest{
		Title: "Handbook", Format: "markdown", Content: "# Hello",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if receipt.DocumentID != "doc-1" || receipt.Chunks != 2 {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
}

func TestIngestFile_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()

		if header.Filename != "report.pdf" {
			t.Errorf("filename: got %q", header.Filename)
		}
		if r.FormValue("id") != "report" || r.FormValue("version") != "2" {
			t.Errorf("form fields: id=%q version=%q", r.FormValue("id"), r.FormValue("version"))
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Receipt{DocumentID: "report", Version: 2})
	}))
	defer srv.Close()

	client := New(srv.URL)
	receipt, err := client.IngestFile(context.Background(), "report.pdf",
		strings.NewReader("%PDF-1.4"), IngestRequest{ID: "report", Version: 2})
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if receipt.DocumentID != "report" || receipt.Version != 2 {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
}

func TestListDocuments_QueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cursor"); got != "abc" {
			t.Errorf("cursor: got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit: got %q", got)
		}
		_ = json.NewEncoder(w).Encode(DocumentList{
			Items:   []Document{{ID: "doc-1", Format: "text"}},
			HasMore: true, NextCursor: "def",
		})
	}))
	defer srv.Close()

	list, err := New(srv.URL).ListDocuments(context.Background(), "abc", 50)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(list.Items) != 1 || !list.HasMore || list.NextCursor != "def" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestDeleteDocument_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/documents/doc-1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := New(srv.URL).DeleteDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
}

func TestAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/answers" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		var req AskRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Query != "what is the policy?" || req.TopK != 5 {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(Answer{
			Query:  req.Query,
			Answer: "The policy. [^1]",
			Citations: []Citation{
				{Ordinal: 1, Kind: "index", DocumentID: "doc-1", ChunkID: "doc-1:1:0", Score: 0.9},
			},
			SourcesUsed: 1,
		})
	}))
	defer srv.Close()

	answer, err := New(srv.URL).Ask(context.Background(), AskRequest{Query: "what is the policy?", TopK: 5})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Answer != "The policy. [^1]" || len(answer.Citations) != 1 {
		t.Errorf("unexpected answer: %+v", answer)
	}
	if answer.Citations[0].ChunkID != "doc-1:1:0" {
		t.Errorf("unexpected citation: %+v", answer.Citations[0])
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		code     string
		sentinel error
	}{
		{"not found", http.StatusNotFound, "document_not_found", ErrDocumentNotFound},
		{"unsupported", http.StatusUnsupportedMediaType, "unsupported_format", ErrUnsupportedFormat},
		{"too large", http.StatusRequestEntityTooLarge, "document_too_large", ErrDocumentTooLarge},
		{"insufficient", http.StatusUnprocessableEntity, "insufficient_evidence", ErrInsufficientEvidence},
		{"rate limited", http.StatusTooManyRequests, "rate_limited", ErrRateLimited},
		{"index down", http.StatusServiceUnavailable, "index_unavailable", ErrServiceUnavailable},
		{"validation", http.StatusBadRequest, "validation_failed", ErrBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"code": tc.code, "message": tc.name})
			}))
			defer srv.Close()

			_, err := New(srv.URL).GetDocument(context.Background(), "doc-1")
			if !errors.Is(err, tc.sentinel) {
				t.Errorf("expected sentinel for %s, got %v", tc.code, err)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T", err)
			}
			if apiErr.Status != tc.status || apiErr.Code != tc.code {
				t.Errorf("unexpected APIError: %+v", apiErr)
			}
		})
	}
}

func TestErrorWithUnparsableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>upstream error</html>"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetDocument(context.Background(), "doc-1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Code != "internal_error" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestHealthReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/ready" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Health{
			Status: "degraded",
			Checks: map[string]string{"store": "ok", "embedding": "error"},
		})
	}))
	defer srv.Close()

	health, err := New(srv.URL).HealthReady(context.Background())
	if err != nil {
		t.Fatalf("HealthReady: %v", err)
	}
	if health.Status != "degraded" || health.Checks["embedding"] != "error" {
		t.Errorf("unexpected health: %+v", health)
	}
}

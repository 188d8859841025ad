// Package chi exposes the ingestion and query pipelines over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
	answeruc "github.com/kailas-cloud/ragline/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/ragline/internal/usecase/health"
	"github.com/kailas-cloud/ragline/internal/usecase/ingest"
)

const defaultMaxUploadBytes = 25 << 20

// Answer request clamps.
const (
	minTopK, maxTopK                 = 3, 15
	minAnswerTokens, maxAnswerTokens = 100, 2000
	minTimeoutSec, maxTimeoutSec     = 5, 60
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Ingestor serves the document lifecycle.
type Ingestor interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Receipt, error)
	Reindex(ctx context.Context, id string) (ingest.Receipt, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (domain.Document, error)
	List(ctx context.Context, cursor string, limit int) ([]domain.Document, string, error)
}

// Answerer serves the query pipeline.
type Answerer interface {
	Answer(ctx context.Context, req answeruc.AskRequest) (domain.Answer, error)
}

// HealthChecker reports component readiness.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server routes HTTP requests to the pipeline services.
type Server struct {
	ingestion      Ingestor
	answers        Answerer
	health         HealthChecker
	logger         *zap.Logger
	maxUploadBytes int64
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingestion Ingestor,
	answers Answerer,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingestion:      ingestion,
		answers:        answers,
		health:         health,
		logger:         logger,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, codeUnsupportedFormat),
		sentinelHandler(domain.ErrDocumentTooLarge, http.StatusRequestEntityTooLarge, codeDocumentTooLarge),
		sentinelHandler(domain.ErrExtractionFailed, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(answeruc.ErrBadRequest, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrInsufficientEvidence, http.StatusUnprocessableEntity, codeInsufficientEvidence),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, codeEmbeddingUnavailable),
		sentinelHandler(domain.ErrSearchUnavailable, http.StatusBadGateway, codeSearchUnavailable),
		sentinelHandler(domain.ErrSynthesisUnavailable, http.StatusBadGateway, codeSynthesisUnavailable),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
	}
	return s
}

// WithMaxUploadBytes overrides the upload size cap.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// Routes mounts all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/documents", s.IngestDocument)
		r.Get("/documents", s.ListDocuments)
		r.Get("/documents/{id}", s.GetDocument)
		r.Delete("/documents/{id}", s.DeleteDocument)
		r.Post("/documents/{id}/reindex", s.ReindexDocument)
		r.Post("/answers", s.Ask)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/health/ready", s.ReadyCheck)
	r.Get("/metrics", s.Metrics)
}

// IngestDocument handles POST /api/v1/documents: either a multipart upload
// (file field plus optional id/title/version/format fields) or a JSON body
// with inline text content.
func (s *Server) IngestDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeIngestRequest(w, r)
	if !ok {
		return
	}

	receipt, err := s.ingestion.Ingest(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/documents/"+receipt.DocumentID)
	writeJSON(w, http.StatusCreated, receiptToDTO(receipt))
}

func (s *Server) decodeIngestRequest(w http.ResponseWriter, r *http.Request) (ingest.Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		return s.decodeMultipart(w, r)
	}

	var body ingestJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return ingest.Request{}, false
	}
	if body.Content == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "content is required")
		return ingest.Request{}, false
	}

	format := domain.Format(body.Format)
	if format == "" {
		format = domain.FormatText
	}
	return ingest.Request{
		ID:      body.ID,
		Version: body.Version,
		Title:   body.Title,
		Format:  format,
		Content: []byte(body.Content),
	}, true
}

func (s *Server) decodeMultipart(w http.ResponseWriter, r *http.Request) (ingest.Request, bool) {
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		if isBodyTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, codeDocumentTooLarge, "upload exceeds size cap")
			return ingest.Request{}, false
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid multipart body: "+err.Error())
		return ingest.Request{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "file field is required")
		return ingest.Request{}, false
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, codeDocumentTooLarge, "upload exceeds size cap")
			return ingest.Request{}, false
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "read upload: "+err.Error())
		return ingest.Request{}, false
	}

	version := 0
	if v := r.FormValue("version"); v != "" {
		version, err = strconv.Atoi(v)
		if err != nil || version < 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "version must be a non-negative integer")
			return ingest.Request{}, false
		}
	}

	return ingest.Request{
		ID:       r.FormValue("id"),
		Version:  version,
		Title:    r.FormValue("title"),
		Filename: header.Filename,
		Format:   domain.Format(r.FormValue("format")),
		Content:  content,
	}, true
}

// GetDocument handles GET /api/v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ingestion.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToDTO(&doc))
}

// ListDocuments handles GET /api/v1/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	docs, nextCursor, err := s.ingestion.List(r.Context(), cursor, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]documentResponse, len(docs))
	for i := range docs {
		items[i] = documentToDTO(&docs[i])
	}
	writeJSON(w, http.StatusOK, documentListResponse{
		Items:      items,
		HasMore:    nextCursor != "",
		NextCursor: nextCursor,
	})
}

// DeleteDocument handles DELETE /api/v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.ingestion.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReindexDocument handles POST /api/v1/documents/{id}/reindex.
func (s *Server) ReindexDocument(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.ingestion.Reindex(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptToDTO(receipt))
}

// Ask handles POST /api/v1/answers.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var body askRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if body.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	req := askFromDTO(body)
	ans, err := s.answers.Answer(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerToDTO(ans))
}

// askFromDTO applies defaults and clamps the tunables to their allowed ranges.
func askFromDTO(body askRequest) answeruc.AskRequest {
	req := answeruc.AskRequest{
		Query:            body.Query,
		UseIndex:         true,
		UseWeb:           false,
		MinScore:         body.MinScore,
		DocumentIDs:      body.DocumentIDs,
		MaxContextTokens: body.MaxContextTokens,
	}
	if body.UseIndex != nil {
		req.UseIndex = *body.UseIndex
	}
	if body.UseWeb != nil {
		req.UseWeb = *body.UseWeb
	}
	if body.TopK != 0 {
		req.TopK = clampInt(body.TopK, minTopK, maxTopK)
	}
	if body.MaxAnswerTokens != 0 {
		req.MaxAnswerTokens = clampInt(body.MaxAnswerTokens, minAnswerTokens, maxAnswerTokens)
	}
	if body.TimeoutSec != 0 {
		req.Timeout = time.Duration(clampInt(body.TimeoutSec, minTimeoutSec, maxTimeoutSec)) * time.Second
	}
	return req
}

// HealthCheck handles GET /health: liveness, always 200 while serving.
func (s *Server) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: string(healthuc.Healthy)})
}

// ReadyCheck handles GET /health/ready: dependency-aware readiness.
func (s *Server) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrUnsupportedFormat,
		domain.ErrDocumentTooLarge,
		domain.ErrExtractionFailed,
		answeruc.ErrBadRequest,
		domain.ErrInsufficientEvidence,
		domain.ErrEmbeddingUnavailable,
		domain.ErrSearchUnavailable,
		domain.ErrSynthesisUnavailable,
		domain.ErrIndexUnavailable,
		domain.ErrRateLimited,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

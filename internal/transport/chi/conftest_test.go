package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
	answeruc "github.com/kailas-cloud/ragline/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/ragline/internal/usecase/health"
	"github.com/kailas-cloud/ragline/internal/usecase/ingest"
)

type mockIngestor struct {
	ingestFn  func(ctx context.Context, req ingest.Request) (ingest.Receipt, error)
	reindexFn func(ctx context.Context, id string) (ingest.Receipt, error)
	deleteFn  func(ctx context.Context, id string) error
	getFn     func(ctx context.Context, id string) (domain.Document, error)
	listFn    func(ctx context.Context, cursor string, limit int) ([]domain.Document, string, error)
}

func (m *mockIngestor) Ingest(ctx context.Context, req ingest.Request) (ingest.Receipt, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, req)
	}
	return ingest.Receipt{DocumentID: "doc-1", Version: 1, Chunks: 3, Vectors: 3, TokensUsed: 21}, nil
}

func (m *mockIngestor) Reindex(ctx context.Context, id string) (ingest.Receipt, error) {
	if m.reindexFn != nil {
		return m.reindexFn(ctx, id)
	}
	return ingest.Receipt{DocumentID: id, Version: 2, Chunks: 3, Vectors: 3}, nil
}

func (m *mockIngestor) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockIngestor) Get(ctx context.Context, id string) (domain.Document, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return testDocument(id), nil
}

func (m *mockIngestor) List(ctx context.Context, cursor string, limit int) ([]domain.Document, string, error) {
	if m.listFn != nil {
		return m.listFn(ctx, cursor, limit)
	}
	return []domain.Document{testDocument("doc-1")}, "", nil
}

type mockAnswerer struct {
	answerFn func(ctx context.Context, req answeruc.AskRequest) (domain.Answer, error)
	lastReq  answeruc.AskRequest
}

func (m *mockAnswerer) Answer(ctx context.Context, req answeruc.AskRequest) (domain.Answer, error) {
	m.lastReq = req
	if m.answerFn != nil {
		return m.answerFn(ctx, req)
	}
	return domain.Answer{
		Query:    req.Query,
		Markdown: "The answer. [^1]",
		Citations: []domain.Citation{{
			Ordinal: 1, Kind: domain.SourceIndex, DocumentID: "doc-1", ChunkID: "doc-1:1:0", Score: 0.9,
		}},
		SourcesUsed: 1,
		Grounding:   domain.Grounding{CitedSentences: 1},
	}, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report {
	if m.report.Status == "" {
		return healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"store": healthuc.CheckOK},
		}
	}
	return m.report
}

type testMocks struct {
	ingestor *mockIngestor
	answerer *mockAnswerer
	health   *mockHealth
}

func newTestRouter(t *testing.T) (http.Handler, *testMocks) {
	t.Helper()
	m := &testMocks{
		ingestor: &mockIngestor{},
		answerer: &mockAnswerer{},
		health:   &mockHealth{},
	}
	srv := NewServer(m.ingestor, m.answerer, m.health, zap.NewNop())
	r := chi.NewRouter()
	srv.Routes(r)
	return r, m
}

func testDocument(id string) domain.Document {
	doc, _ := domain.NewDocument(id, "Title of "+id, domain.FormatText, 1024)
	doc.SetLive(1, 3, 1700000000000)
	return doc
}

func doRequest(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

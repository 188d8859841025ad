package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()
	os.Exit(m.Run())
}

// embeddingDatum mirrors one element of the OpenAI embedding response.
type embeddingDatum struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// openaiEmbeddingResponse mirrors the OpenAI-compatible API embedding response.
type openaiEmbeddingResponse struct {
	Object string           `json:"object"`
	Data   []embeddingDatum `json:"data"`
	Model  string           `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func embeddingServer(t *testing.T, handler func(r *http.Request, inputs int) (openaiEmbeddingResponse, int)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		resp, status := handler(r, len(req.Input))
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"detail":"boom"}`))
			return
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func okResponse(dims, inputs int) openaiEmbeddingResponse {
	resp := openaiEmbeddingResponse{Object: "list", Model: "test-model"}
	for i := 0; i < inputs; i++ {
		vec := make([]float32, dims)
		for j := range vec {
			vec[j] = float32(i) + 0.1
		}
		resp.Data = append(resp.Data, embeddingDatum{Object: "embedding", Embedding: vec, Index: i})
	}
	resp.Usage.PromptTokens = inputs * 5
	resp.Usage.TotalTokens = inputs * 5
	return resp
}

func TestEmbedder_Embed(t *testing.T) {
	server := embeddingServer(t, func(r *http.Request, inputs int) (openaiEmbeddingResponse, int) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		return okResponse(4, inputs), http.StatusOK
	})
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "test-model",
		Dimensions: 4,
		Provider:   "test",
		Logger:     zap.NewNop(),
	})

	result, err := emb.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(result.Embedding) != 4 {
		t.Fatalf("expected 4 dimensions, got %d", len(result.Embedding))
	}
	if result.PromptTokens != 5 || result.TotalTokens != 5 {
		t.Errorf("unexpected usage: %+v", result)
	}
}

func TestEmbedder_BatchEmbed_SplitsSubBatches(t *testing.T) {
	var calls int32
	server := embeddingServer(t, func(_ *http.Request, inputs int) (openaiEmbeddingResponse, int) {
		atomic.AddInt32(&calls, 1)
		if inputs > 2 {
			t.Errorf("sub-batch exceeded cap: %d inputs", inputs)
		}
		return okResponse(2, inputs), http.StatusOK
	})
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		Model:        "test-model",
		Dimensions:   2,
		MaxBatchSize: 2,
		Logger:       zap.NewNop(),
	})

	result, err := emb.BatchEmbed(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}
	if len(result.Embeddings) != 5 {
		t.Fatalf("expected 5 vectors, got %d", len(result.Embeddings))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 sub-batch calls, got %d", got)
	}
	if result.PromptTokens != 25 {
		t.Errorf("expected aggregated usage 25, got %d", result.PromptTokens)
	}
}

func TestEmbedder_BatchEmbed_Empty(t *testing.T) {
	emb := NewEmbedder(&Config{APIKey: "k", Model: "m"})
	result, err := emb.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embeddings) != 0 {
		t.Errorf("expected no vectors, got %d", len(result.Embeddings))
	}
}

func TestEmbedder_BatchEmbed_DimensionMismatch(t *testing.T) {
	server := embeddingServer(t, func(_ *http.Request, inputs int) (openaiEmbeddingResponse, int) {
		return okResponse(3, inputs), http.StatusOK
	})
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "test-model",
		Dimensions: 8, // server returns 3-dim vectors
		Logger:     zap.NewNop(),
	})

	_, err := emb.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEmbedder_BatchEmbed_RetriesOn429(t *testing.T) {
	var calls int32
	server := embeddingServer(t, func(_ *http.Request, inputs int) (openaiEmbeddingResponse, int) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return openaiEmbeddingResponse{}, http.StatusTooManyRequests
		}
		return okResponse(2, inputs), http.StatusOK
	})
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "test-model",
		Dimensions: 2,
		MaxRetries: 2,
		Logger:     zap.NewNop(),
	})

	result, err := emb.BatchEmbed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(result.Embeddings) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(result.Embeddings))
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestEmbedder_BatchEmbed_ExhaustedRetries(t *testing.T) {
	server := embeddingServer(t, func(_ *http.Request, _ int) (openaiEmbeddingResponse, int) {
		return openaiEmbeddingResponse{}, http.StatusInternalServerError
	})
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "test-model",
		MaxRetries: 1,
		Logger:     zap.NewNop(),
	})

	_, err := emb.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestEmbedder_BatchEmbed_NoRetryOnBadRequest(t *testing.T) {
	var calls int32
	server := embeddingServer(t, func(_ *http.Request, _ int) (openaiEmbeddingResponse, int) {
		atomic.AddInt32(&calls, 1)
		return openaiEmbeddingResponse{}, http.StatusBadRequest
	})
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "test-model",
		MaxRetries: 3,
		Logger:     zap.NewNop(),
	})

	_, err := emb.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("client errors must not retry, got %d calls", calls)
	}
}

func TestEmbedder_IncompleteResponse(t *testing.T) {
	server := embeddingServer(t, func(_ *http.Request, _ int) (openaiEmbeddingResponse, int) {
		return okResponse(2, 1), http.StatusOK // one vector for two inputs
	})
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Logger:  zap.NewNop(),
	})

	_, err := emb.BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragline/internal/domain"
)

// openaiChatResponse mirrors the OpenAI-compatible chat completion response.
type openaiChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func chatResponse(text string, prompt, completion int) openaiChatResponse {
	var resp openaiChatResponse
	resp.Choices = append(resp.Choices, struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	}{})
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = text
	resp.Choices[0].FinishReason = "stop"
	resp.Usage.PromptTokens = prompt
	resp.Usage.CompletionTokens = completion
	resp.Usage.TotalTokens = prompt + completion
	return resp
}

func TestGenerator_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.MaxTokens != 500 {
			t.Errorf("expected max_tokens 500, got %d", req.MaxTokens)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("The answer. [^1]", 100, 20))
	}))
	defer server.Close()

	gen := NewGenerator(&GeneratorConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Logger:  zap.NewNop(),
	})

	result, err := gen.Generate(context.Background(), domain.GenerationRequest{
		System:    "be helpful",
		User:      "question",
		MaxTokens: 500,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Text != "The answer. [^1]" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if result.PromptTokens != 100 || result.CompletionTokens != 20 {
		t.Errorf("unexpected usage: %+v", result)
	}
}

func TestGenerator_RetriesOn503(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("ok", 1, 1))
	}))
	defer server.Close()

	gen := NewGenerator(&GeneratorConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "test-model",
		MaxRetries: 2,
		Logger:     zap.NewNop(),
	})

	result, err := gen.Generate(context.Background(), domain.GenerationRequest{User: "q", MaxTokens: 10})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if result.Text != "ok" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestGenerator_ExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	gen := NewGenerator(&GeneratorConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "test-model",
		MaxRetries: 1,
		Logger:     zap.NewNop(),
	})

	_, err := gen.Generate(context.Background(), domain.GenerationRequest{User: "q", MaxTokens: 10})
	if !errors.Is(err, domain.ErrSynthesisUnavailable) {
		t.Errorf("expected ErrSynthesisUnavailable, got %v", err)
	}
}

func TestGenerator_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openaiChatResponse{})
	}))
	defer server.Close()

	gen := NewGenerator(&GeneratorConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Logger:  zap.NewNop(),
	})

	_, err := gen.Generate(context.Background(), domain.GenerationRequest{User: "q", MaxTokens: 10})
	if !errors.Is(err, domain.ErrSynthesisUnavailable) {
		t.Errorf("expected ErrSynthesisUnavailable, got %v", err)
	}
}

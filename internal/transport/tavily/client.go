// Package tavily implements the web search provider client.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/ragline/internal/domain"
	"github.com/kailas-cloud/ragline/internal/metrics"
)

const (
	defaultBaseURL    = "https://api.tavily.com/search"
	defaultMaxRetries = 3

	// Provider bounds on max_results.
	minResults = 3
	maxResults = 15
)

// Client calls the Tavily search API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Config holds the search provider settings.
type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
	Logger            *zap.Logger
}

// New creates a Tavily search client.
func New(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		limiter:    limiter,
		logger:     cfg.Logger,
	}
}

type searchRequest struct {
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	MaxResults        int      `json:"max_results"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
	IncludeDomains    []string `json:"include_domains"`
	ExcludeDomains    []string `json:"exclude_domains"`
}

type searchResponse struct {
	Results []struct {
		URL     string  `json:"url"`
		Title   string  `json:"title"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs one web search and returns ranked hits. k is clamped to the
// provider's [3,15] bounds. Rate limits and transport failures are retried
// with backoff; exhausted retries map to domain.ErrSearchUnavailable.
func (c *Client) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	k = max(minResults, min(maxResults, k))

	body, err := json.Marshal(searchRequest{
		Query:             query,
		SearchDepth:       "advanced",
		MaxResults:        k,
		IncludeDomains:    []string{},
		ExcludeDomains:    []string{},
		IncludeRawContent: false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	start := time.Now()
	resp, err := c.doWithRetry(ctx, body)
	if err != nil {
		metrics.WebSearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.WebSearchRequestsTotal.WithLabelValues("success").Inc()
	metrics.WebSearchRequestDuration.Observe(time.Since(start).Seconds())

	hits := make([]domain.SearchHit, 0, len(resp.Results))
	for i, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		score := r.Score
		if score == 0 {
			score = 1.0 - float64(i)/float64(len(resp.Results)) // position fallback
		}
		hits = append(hits, domain.SearchHit{
			URL:     r.URL,
			Title:   titleOrHost(r.Title, r.URL),
			Snippet: r.Content,
			Rank:    i,
			Score:   score,
		})
	}

	return hits, nil
}

func (c *Client) doWithRetry(ctx context.Context, body []byte) (*searchResponse, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1))*time.Second +
				time.Duration(rand.Int63n(int64(time.Second)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, retryable, err := c.doOnce(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		if c.logger != nil {
			c.logger.Warn("web search attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
	}

	return nil, fmt.Errorf("web search failed: %v: %w", lastErr, domain.ErrSearchUnavailable)
}

func (c *Client) doOnce(ctx context.Context, body []byte) (*searchResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("search request: %w", err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusOK:
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= http.StatusInternalServerError:
		io.Copy(io.Discard, httpResp.Body)
		return nil, true, fmt.Errorf("search API status %d", httpResp.StatusCode)
	default:
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return nil, false, fmt.Errorf("search API status %d: %s", httpResp.StatusCode, data)
	}

	var parsed searchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return nil, true, fmt.Errorf("decode search response: %w", err)
	}

	return &parsed, false, nil
}

// titleOrHost falls back to the URL host when the provider returned no title.
func titleOrHost(title, rawURL string) string {
	if title != "" {
		return title
	}
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return rawURL
}

// Package sdk is a typed HTTP client for the ragline REST API.
//
//	client := sdk.New("http://localhost:8080", sdk.WithAPIKey(key))
//	receipt, err := client.Ingest(ctx, sdk.IngestRequest{
//	    Title:   "Handbook",
//	    Format:  "markdown",
//	    Content: text,
//	})
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiPrefix = "/api/v1"

// Client talks to a ragline instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the given base URL (scheme and host, no path).
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Ingest uploads inline text content as a document.
func (c *Client) Ingest(ctx context.Context, req IngestRequest) (Receipt, error) {
	var receipt Receipt
	err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/documents", req, &receipt)
	return receipt, err
}

// IngestFile uploads a binary document (PDF, DOCX, HTML, markdown or text)
// as a multipart form.
func (c *Client) IngestFile(ctx context.Context, filename string, content io.Reader, req IngestRequest) (Receipt, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Receipt{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return Receipt{}, fmt.Errorf("copy file content: %w", err)
	}
	for field, value := range map[string]string{
		"id":      req.ID,
		"title":   req.Title,
		"format":  req.Format,
		"version": formVersion(req.Version),
	} {
		if value == "" {
			continue
		}
		if err := mw.WriteField(field, value); err != nil {
			return Receipt{}, fmt.Errorf("write form field %s: %w", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return Receipt{}, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+"/documents", &buf)
	if err != nil {
		return Receipt{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var receipt Receipt
	if err := c.send(httpReq, &receipt); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

func formVersion(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// GetDocument returns catalog metadata for one document.
func (c *Client) GetDocument(ctx context.Context, id string) (Document, error) {
	var doc Document
	err := c.doJSON(ctx, http.MethodGet, apiPrefix+"/documents/"+url.PathEscape(id), nil, &doc)
	return doc, err
}

// ListDocuments pages through the catalog. An empty cursor starts from the
// beginning; zero limit uses the server default.
func (c *Client) ListDocuments(ctx context.Context, cursor string, limit int) (DocumentList, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := apiPrefix + "/documents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list DocumentList
	err := c.doJSON(ctx, http.MethodGet, path, nil, &list)
	return list, err
}

// DeleteDocument removes a document, its chunks and vectors.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, apiPrefix+"/documents/"+url.PathEscape(id), nil, nil)
}

// Reindex re-chunks and re-embeds a document from its stored text under a
// new version.
func (c *Client) Reindex(ctx context.Context, id string) (Receipt, error) {
	var receipt Receipt
	err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/documents/"+url.PathEscape(id)+"/reindex", nil, &receipt)
	return receipt, err
}

// Ask runs the query pipeline and returns a cited answer.
func (c *Client) Ask(ctx context.Context, req AskRequest) (Answer, error) {
	var answer Answer
	err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/answers", req, &answer)
	return answer, err
}

// HealthReady reports readiness including per-component checks.
func (c *Client) HealthReady(ctx context.Context) (Health, error) {
	var health Health
	err := c.doJSON(ctx, http.MethodGet, "/health/ready", nil, &health)
	return health, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil && body.Code != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	} else {
		apiErr.Code = "internal_error"
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

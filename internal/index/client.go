package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client communicates with the vector index service over HTTP. The
// service owns embedding and nearest-neighbor search; this client only
// ships text plus metadata and issues queries.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Metadata is carried verbatim alongside each chunk and returned with
// query hits. Visuals is the JSON-serialized visual-element list.
type Metadata struct {
	SourceID string `json:"source_id"`
	Page     int    `json:"page"`
	Visuals  string `json:"visuals,omitempty"`
}

// Chunk is one upsert unit: text plus its metadata.
type Chunk struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Retrieved is one ranked query hit.
type Retrieved struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// ResetCollection drops and recreates the collection. Ingestion always
// starts with a reset: the index is a full replace, never a merge.
func (c *Client) ResetCollection(ctx context.Context) error {
	if err := c.post(ctx, fmt.Sprintf("/collections/%s/reset", c.collection), nil, nil); err != nil {
		return fmt.Errorf("reset collection %s: %w", c.collection, err)
	}
	return nil
}

// Upsert inserts one batch of chunks.
func (c *Client) Upsert(ctx context.Context, chunks []Chunk) error {
	body := map[string]any{"chunks": chunks}
	if err := c.post(ctx, fmt.Sprintf("/collections/%s/upsert", c.collection), body, nil); err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// Query returns the k nearest chunks for a query text.
func (c *Client) Query(ctx context.Context, text string, k int) ([]Retrieved, error) {
	body := map[string]any{"text": text, "k": k}
	var resp struct {
		Results []Retrieved `json:"results"`
	}
	if err := c.post(ctx, fmt.Sprintf("/collections/%s/query", c.collection), body, &resp); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return resp.Results, nil
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("index api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		if isRetryableStatus(resp.StatusCode, respBody) {
			return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// isRetryableStatus classifies rate-limit and quota failures among
// error responses. The body check catches services that report quota
// exhaustion with a 400; it must never run on success responses, whose
// bodies echo arbitrary document text.
func isRetryableStatus(status int, body []byte) bool {
	if status == http.StatusTooManyRequests || status >= 500 {
		return true
	}
	return strings.Contains(strings.ToLower(string(body)), "quota")
}

// RetryableError indicates a transient index failure worth retrying
// with backoff.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

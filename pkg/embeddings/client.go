// Package embeddings implements the aggregator's boundary with the external
// embedding inference runtime: an HTTP client speaking the
// Text-Embeddings-Inference (TEI) wire protocol, a content-addressed
// on-disk cache per upstream server, and the lazy, coalesced client
// initialisation described in spec.md §4.2.
package embeddings

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

const embedPath = "/embed"

// Client generates embeddings by calling an external inference runtime.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// TEIClient talks to a Hugging Face Text-Embeddings-Inference-compatible
// server over HTTP.
type TEIClient struct {
	baseURL   string
	model     string
	dimension int
	httpClient *http.Client
}

// NewTEIClient builds a client for the embedding runtime at baseURL.
// model is sent only as an informational header; dimension is the expected
// output width (default 384, matching Xenova/all-MiniLM-L6-v2).
func NewTEIClient(baseURL, model string, dimension int, timeout time.Duration) *TEIClient {
	if dimension <= 0 {
		dimension = 384
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TEIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

// Embed requests a single embedding.
func (c *TEIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	results, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("embeddings: empty response for text")
	}
	return results[0], nil
}

// EmbedBatch requests embeddings for many strings in one round trip.
func (c *TEIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("embeddings: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+embedPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embeddings: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.model != "" {
		req.Header.Set("X-Embedding-Model", c.model)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embeddings: TEI returned status %d: %s", resp.StatusCode, string(data))
	}

	var out [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embeddings: decode response: %w", err)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("embeddings: expected %d vectors, got %d", len(texts), len(out))
	}
	return out, nil
}

// Dimension reports the vector width this client is configured for.
func (c *TEIClient) Dimension() int {
	return c.dimension
}

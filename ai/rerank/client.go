// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package rerank is a client for cross-encoder rerank services that expose
// the de facto POST /rerank API shared by Jina, Cohere, TEI and vLLM:
//
//	request:  {"model": "...", "query": "...", "documents": ["..."], "top_n": N}
//	response: {"results": [{"index": 0, "relevance_score": 0.93}, ...]}
//
// Results may arrive in any order; the client maps them back to input order.
package rerank

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/poiesic/lectio/ai"
	"golang.org/x/time/rate"
)

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 512

var (
	// ErrUnexpectedStatus is returned when the service answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("rerank: unexpected status")

	// ErrIncompleteResponse is returned when the service does not score every document.
	ErrIncompleteResponse = errors.New("rerank: incomplete response")
)

type request struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n"`
	ReturnDocuments bool     `json:"return_documents"`
}

type result struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type response struct {
	Results []result `json:"results"`
}

// Client implements ai.Scorer over HTTP.
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var _ ai.Scorer = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// NewClient creates a rerank client from the AI configuration.
// The config must have a rerank host.
func NewClient(config *ai.Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.RerankEnabled() {
		return nil, errors.New("ai config: RerankHost is required for the rerank client")
	}

	limit := rate.Inf
	if config.RerankRequestsPerSecond > 0 {
		limit = rate.Limit(config.RerankRequestsPerSecond)
	}

	c := &Client{
		endpoint:   config.RerankHost + "/rerank",
		model:      config.RerankModel,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		limiter:    rate.NewLimiter(limit, config.RerankBurst),
		logger:     slog.Default().With("component", "rerank-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ModelName returns the configured rerank model.
func (c *Client) ModelName() string {
	return c.model
}

// Score sends one rerank request for all documents and returns their scores
// in input order.
func (c *Client) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rerank: rate limiter: %w", err)
	}

	body, err := sonic.Marshal(&request{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      len(documents),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("scoring documents", "count", len(documents), "model", c.model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var decoded response
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("rerank: decode response: %w", err)
	}

	scores := make([]float64, len(documents))
	seen := make([]bool, len(documents))
	for _, r := range decoded.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrIncompleteResponse, r.Index)
		}
		if math.IsNaN(r.RelevanceScore) {
			return nil, fmt.Errorf("%w: NaN score at index %d", ErrIncompleteResponse, r.Index)
		}
		scores[r.Index] = r.RelevanceScore
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: no score for document %d", ErrIncompleteResponse, i)
		}
	}

	return scores, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

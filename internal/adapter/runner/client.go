// Package runner provides the HTTP client for the remote pipeline-runner
// API, the optional delegation target of the executing phase.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a remote pipeline-runner service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a runner client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// StartRequest is the payload for delegating a whole pipeline run.
type StartRequest struct {
	RepoURL   string `json:"repoUrl"`
	Goal      string `json:"goal"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Token     string `json:"token,omitempty"`
	MaxAgents int    `json:"maxAgents,omitempty"`
}

// StartResponse identifies the remotely started pipeline.
type StartResponse struct {
	PipelineID string `json:"pipelineId"`
}

// Start delegates a pipeline run to the remote runner. Any error here is
// expected to trigger a local-execution fallback in the caller.
func (c *Client) Start(ctx context.Context, req StartRequest) (*StartResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("runner: marshal start request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/start", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("runner: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("runner: start: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("runner: start returned %d: %s", resp.StatusCode, msg)
	}

	var out StartResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("runner: decode response: %w", err)
	}
	return &out, nil
}

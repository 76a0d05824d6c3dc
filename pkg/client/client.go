// Package client provides a Go client for the kektorgraph HTTP API.
//
// It covers synchronous and asynchronous traversals, task polling and
// server introspection.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/query"
)

// --- Custom Errors ---

// APIError represents an error returned by the server (status >= 400).
type APIError struct {
	StatusCode int
	Message    string
	// Kind is the traversal error kind reported by the server, if any.
	Kind string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// --- JSON Structs ---

// TraverseRequest is the body of a traversal call.
type TraverseRequest struct {
	ID          string           `json:"id,omitempty"`
	Start       []types.VertexID `json:"start"`
	Steps       []query.Step     `json:"steps"`
	TimeoutMs   int64            `json:"timeout_ms,omitempty"`
	MaxFrontier int              `json:"max_frontier,omitempty"`
	Async       bool             `json:"async,omitempty"`
}

// StepStats mirrors the per-step counters returned by the server.
type StepStats struct {
	Step     int            `json:"step"`
	Frontier int            `json:"frontier"`
	Requests int            `json:"requests"`
	Skipped  int            `json:"skipped"`
	Edges    int            `json:"edges"`
	Failed   int            `json:"failed_requests"`
	Backends map[string]int `json:"backends,omitempty"`
}

// TraverseResult is a finished traversal.
type TraverseResult struct {
	TraversalID    string                `json:"traversal_id"`
	QueryID        string                `json:"query_id,omitempty"`
	Edges          []types.EdgeWithScore `json:"edges"`
	Steps          []StepStats           `json:"steps"`
	FailedRequests int                   `json:"failed_requests"`
	Partial        bool                  `json:"partial"`
	ElapsedMs      float64               `json:"elapsed_ms"`
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Task represents an asynchronous traversal on the server.
type Task struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Result *TraverseResult `json:"result,omitempty"`
	Error  *errorBody      `json:"error,omitempty"`

	client *Client // Reference to the client for polling.
}

// --- Client ---

// Client is the Go client for a kektorgraph server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client for host:port.
func New(host string, port int) *Client {
	return NewWithURL(fmt.Sprintf("http://%s:%d", host, port))
}

// NewWithURL creates a client for a full base URL (e.g. an httptest server).
func NewWithURL(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// jsonRequest executes a request and returns the raw body of a 2xx reply.
func (c *Client) jsonRequest(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON payload: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Error != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: eb.Error, Kind: eb.Kind}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return respBody, nil
}

func (c *Client) decode(ctx context.Context, method, endpoint string, payload, out any) error {
	body, err := c.jsonRequest(ctx, method, endpoint, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// --- Traversal Methods ---

// Traverse runs a traversal and waits for its result.
func (c *Client) Traverse(ctx context.Context, req TraverseRequest) (*TraverseResult, error) {
	req.Async = false
	var res TraverseResult
	if err := c.decode(ctx, http.MethodPost, "/v1/traverse", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// TraverseAsync starts a traversal and returns its task.
func (c *Client) TraverseAsync(ctx context.Context, req TraverseRequest) (*Task, error) {
	req.Async = true
	var task Task
	if err := c.decode(ctx, http.MethodPost, "/v1/traverse", req, &task); err != nil {
		return nil, err
	}
	task.client = c
	return &task, nil
}

// GetTask fetches the current state of a task.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := c.decode(ctx, http.MethodGet, "/v1/tasks/"+id, nil, &task); err != nil {
		return nil, err
	}
	task.client = c
	return &task, nil
}

// Refresh updates the task's status by querying the server.
func (t *Task) Refresh(ctx context.Context) error {
	if t.client == nil {
		return fmt.Errorf("client is not associated with the task")
	}
	updated, err := t.client.GetTask(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Status = updated.Status
	t.Result = updated.Result
	t.Error = updated.Error
	return nil
}

// Wait polls the task until it completes, fails or ctx ends.
func (t *Task) Wait(ctx context.Context, interval time.Duration) (*TraverseResult, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		switch t.Status {
		case "completed":
			return t.Result, nil
		case "failed":
			if t.Error != nil {
				return nil, &APIError{StatusCode: http.StatusOK, Message: t.Error.Error, Kind: t.Error.Kind}
			}
			return nil, fmt.Errorf("task %s failed", t.ID)
		case "running":
			// Continue waiting.
		default:
			return nil, fmt.Errorf("unknown task status: %s", t.Status)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for task %s: %w", t.ID, ctx.Err())
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil {
				return nil, err
			}
		}
	}
}

// --- System Methods ---

// Backends lists the server's configured backends.
func (c *Client) Backends(ctx context.Context) ([]string, error) {
	var out struct {
		Backends []string `json:"backends"`
	}
	if err := c.decode(ctx, http.MethodGet, "/v1/backends", nil, &out); err != nil {
		return nil, err
	}
	return out.Backends, nil
}

// Health returns nil when the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.jsonRequest(ctx, http.MethodGet, "/healthz", nil)
	return err
}

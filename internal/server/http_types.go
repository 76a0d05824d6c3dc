package server

import (
	"time"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/engine"
	"github.com/sanonone/kektorgraph/pkg/query"
)

// TraverseRequest is the body of POST /v1/traverse.
type TraverseRequest struct {
	ID          string           `json:"id,omitempty"`
	Start       []types.VertexID `json:"start"`
	Steps       []query.Step     `json:"steps"`
	TimeoutMs   int64            `json:"timeout_ms,omitempty"`
	MaxFrontier int              `json:"max_frontier,omitempty"`
	// Async returns a task id immediately; poll GET /v1/tasks/{id}.
	Async bool `json:"async,omitempty"`
}

// Query converts the request into the engine's input.
func (r *TraverseRequest) Query() query.Query {
	return query.Query{
		ID:          r.ID,
		Start:       r.Start,
		Steps:       r.Steps,
		Timeout:     time.Duration(r.TimeoutMs) * time.Millisecond,
		MaxFrontier: r.MaxFrontier,
	}
}

// TraverseResponse is the body of a successful traversal.
type TraverseResponse struct {
	TraversalID    string                `json:"traversal_id"`
	QueryID        string                `json:"query_id,omitempty"`
	Edges          []types.EdgeWithScore `json:"edges"`
	Steps          []engine.StepStats    `json:"steps"`
	FailedRequests int                   `json:"failed_requests"`
	Partial        bool                  `json:"partial"`
	ElapsedMs      float64               `json:"elapsed_ms"`
}

func newTraverseResponse(res *engine.Result) *TraverseResponse {
	return &TraverseResponse{
		TraversalID:    res.TraversalID,
		QueryID:        res.QueryID,
		Edges:          res.Edges,
		Steps:          res.Steps,
		FailedRequests: res.Failed,
		Partial:        res.Partial(),
		ElapsedMs:      float64(res.Elapsed.Microseconds()) / 1000,
	}
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// BackendsResponse lists the configured backends.
type BackendsResponse struct {
	Backends []string `json:"backends"`
}

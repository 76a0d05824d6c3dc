package query

import (
	"fmt"
	"time"

	"github.com/sanonone/kektorgraph/pkg/core/types"
)

// DedupPolicy decides what happens when several edges of one step reach the
// same (label, target) pair.
type DedupPolicy string

const (
	// DedupRaw keeps every edge.
	DedupRaw DedupPolicy = "raw"
	// DedupFirst keeps the first edge in merge order.
	DedupFirst DedupPolicy = "first"
	// DedupSum keeps the first edge with the sum of all duplicate scores.
	DedupSum DedupPolicy = "sum"
	// DedupMax keeps the highest scoring edge.
	DedupMax DedupPolicy = "max"
)

func (d DedupPolicy) valid() bool {
	switch d {
	case "", DedupRaw, DedupFirst, DedupSum, DedupMax:
		return true
	}
	return false
}

// Step is one round of fetches. Every Param runs against the whole frontier.
type Step struct {
	Params []Param `json:"params" yaml:"params"`
	// Retain keeps this step's edges in the final result even when it is not the last step.
	Retain bool        `json:"retain,omitempty" yaml:"retain,omitempty"`
	Dedup  DedupPolicy `json:"dedup,omitempty" yaml:"dedup,omitempty"`
}

// Query is a full traversal plan.
type Query struct {
	ID    string           `json:"id,omitempty" yaml:"id,omitempty"`
	Start []types.VertexID `json:"start" yaml:"start"`
	Steps []Step           `json:"steps" yaml:"steps"`
	// Timeout overrides the engine default when positive.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// MaxFrontier caps the number of vertices expanded per step (0 = no cap).
	MaxFrontier int `json:"max_frontier,omitempty" yaml:"max_frontier,omitempty"`
}

// Validate checks the plan structure. An empty start set is valid and
// yields an empty result.
func (q *Query) Validate() error {
	if len(q.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrInvalid)
	}
	for i, v := range q.Start {
		if v.IsZero() || v.ID == "" {
			return fmt.Errorf("%w: start vertex %d is empty", ErrInvalid, i)
		}
	}
	for i, s := range q.Steps {
		if len(s.Params) == 0 {
			return fmt.Errorf("%w: step %d has no params", ErrInvalid, i)
		}
		if !s.Dedup.valid() {
			return fmt.Errorf("%w: step %d: unknown dedup policy %q", ErrInvalid, i, s.Dedup)
		}
		for j := range s.Params {
			if err := s.Params[j].Validate(); err != nil {
				return fmt.Errorf("step %d param %d: %w", i, j, err)
			}
		}
	}
	if q.Timeout < 0 || q.MaxFrontier < 0 {
		return fmt.Errorf("%w: negative timeout or max_frontier", ErrInvalid)
	}
	return nil
}

// PrevEdges holds the previous step's edges keyed by the vertex they reached.
type PrevEdges map[types.VertexID][]types.EdgeWithScore

// Request is one (vertex, Param) unit of fetch work.
type Request struct {
	Vertex types.VertexID
	Param  *Param
	Step   int
	// Parents are the previous step's edges that reached Vertex. Empty on the first step.
	Parents []types.EdgeWithScore
}

// ParentScore is the score carried into this request: 1 for a start vertex,
// otherwise the maximum score among the parent edges.
func (r Request) ParentScore() float64 {
	if len(r.Parents) == 0 {
		return 1
	}
	best := r.Parents[0].Score
	for _, p := range r.Parents[1:] {
		if p.Score > best {
			best = p.Score
		}
	}
	return best
}

// BuildRequests creates one request per frontier vertex and param, vertex-major.
func BuildRequests(step int, frontier []types.VertexID, params []*Param, prev PrevEdges) []Request {
	reqs := make([]Request, 0, len(frontier)*len(params))
	for _, v := range frontier {
		for _, p := range params {
			reqs = append(reqs, Request{
				Vertex:  v,
				Param:   p,
				Step:    step,
				Parents: prev[v],
			})
		}
	}
	return reqs
}

package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/engine"
	"github.com/sanonone/kektorgraph/pkg/query"
)

type Service struct {
	engine *engine.Engine
}

func NewService(eng *engine.Engine) *Service {
	return &Service{engine: eng}
}

// --- Tool Handlers ---

func (s *Service) Traverse(ctx context.Context, req *mcp.CallToolRequest, args TraverseArgs) (*mcp.CallToolResult, TraverseResult, error) {
	q, err := args.query()
	if err != nil {
		return nil, TraverseResult{}, err
	}
	return s.run(ctx, q)
}

func (s *Service) Neighbors(ctx context.Context, req *mcp.CallToolRequest, args NeighborsArgs) (*mcp.CallToolResult, TraverseResult, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}
	q, err := TraverseArgs{
		Start: []string{args.Vertex},
		Steps: []StepArgs{{Params: []ParamArgs{{Label: args.Label, Direction: args.Direction, Limit: limit}}}},
	}.query()
	if err != nil {
		return nil, TraverseResult{}, err
	}
	return s.run(ctx, q)
}

func (s *Service) ListBackends(ctx context.Context, req *mcp.CallToolRequest, _ ListBackendsArgs) (*mcp.CallToolResult, ListBackendsResult, error) {
	return nil, ListBackendsResult{Backends: s.engine.Registry().Names()}, nil
}

func (s *Service) run(ctx context.Context, q query.Query) (*mcp.CallToolResult, TraverseResult, error) {
	res, err := s.engine.Traverse(ctx, q)
	if err != nil {
		return nil, TraverseResult{}, err
	}
	out := TraverseResult{
		TraversalID:    res.TraversalID,
		Edges:          make([]EdgeView, 0, len(res.Edges)),
		FailedRequests: res.Failed,
		Partial:        res.Partial(),
	}
	for _, e := range res.Edges {
		out.Edges = append(out.Edges, EdgeView{
			Src:       e.Src.Key(),
			Tgt:       e.Tgt.Key(),
			Label:     e.Label,
			Direction: string(e.Dir),
			Score:     e.Score,
			Step:      e.Step,
		})
	}
	return nil, out, nil
}

// query converts tool arguments into an engine query.
func (a TraverseArgs) query() (query.Query, error) {
	q := query.Query{Timeout: time.Duration(a.TimeoutMs) * time.Millisecond}
	for _, s := range a.Start {
		v, err := types.ParseVertexID(s)
		if err != nil {
			return query.Query{}, err
		}
		q.Start = append(q.Start, v)
	}
	for i, st := range a.Steps {
		step := query.Step{Retain: st.Retain, Dedup: query.DedupPolicy(st.Dedup)}
		for _, p := range st.Params {
			param := query.Param{Label: p.Label, Limit: p.Limit, Threshold: p.Threshold, Where: p.Where}
			if p.Direction != "" {
				dir, err := types.ParseDirection(p.Direction)
				if err != nil {
					return query.Query{}, fmt.Errorf("step %d: %w", i, err)
				}
				param.Direction = dir
			}
			step.Params = append(step.Params, param)
		}
		q.Steps = append(q.Steps, step)
	}
	return q, nil
}

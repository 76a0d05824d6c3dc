package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
	"github.com/sanonone/kektorgraph/pkg/metadata"
	"github.com/sanonone/kektorgraph/pkg/metrics"
	"github.com/sanonone/kektorgraph/pkg/query"
)

// Result is the outcome of a successful traversal.
type Result struct {
	TraversalID string `json:"traversal_id"`
	QueryID     string `json:"query_id,omitempty"`
	// Edges holds the retained steps' edges followed by the final step's edges.
	Edges []types.EdgeWithScore `json:"edges"`
	Steps []StepStats           `json:"steps"`
	// Failed counts requests that backends absorbed as partial failures.
	Failed  int           `json:"failed_requests"`
	Elapsed time.Duration `json:"elapsed"`
}

// Partial reports whether some requests failed and contributed no edges.
func (r *Result) Partial() bool { return r.Failed > 0 }

// StepStats describes one executed step.
type StepStats struct {
	Step     int `json:"step"`
	Frontier int `json:"frontier"`
	Requests int `json:"requests"`
	// Skipped counts (vertex, param) pairs the label cannot start from.
	Skipped  int            `json:"skipped,omitempty"`
	Edges    int            `json:"edges"`
	Failed   int            `json:"failed_requests,omitempty"`
	Backends map[string]int `json:"backends"`
	Elapsed  time.Duration  `json:"elapsed"`
}

// plannedParam is a Param resolved against metadata and the registry.
type plannedParam struct {
	param   *query.Param
	info    metadata.LabelInfo
	backend string
	fetcher fetcher.Fetcher
}

type plannedStep struct {
	params []plannedParam
	step   query.Step
}

// Traverse runs q. It returns either a complete Result or a *TraversalError.
func (e *Engine) Traverse(ctx context.Context, q query.Query) (*Result, error) {
	start := time.Now()
	id := uuid.NewString()
	logger := e.logger.With("traversal_id", id)

	res, err := e.traverse(ctx, id, q, logger)
	elapsed := time.Since(start)
	metrics.TraversalDuration.Observe(elapsed.Seconds())
	if err != nil {
		metrics.TraversalsTotal.WithLabelValues(string(KindOf(err))).Inc()
		logger.Error("Traversal failed", "query_id", q.ID, "error", err, "elapsed", elapsed)
		return nil, err
	}
	res.Elapsed = elapsed
	status := "ok"
	if len(res.Edges) == 0 {
		status = "empty"
	}
	metrics.TraversalsTotal.WithLabelValues(status).Inc()
	logger.Debug("Traversal finished", "query_id", q.ID, "edges", len(res.Edges), "failed", res.Failed, "elapsed", elapsed)
	return res, nil
}

func (e *Engine) traverse(ctx context.Context, id string, q query.Query, logger *slog.Logger) (*Result, error) {
	if e.isClosed.Load() {
		return nil, &TraversalError{Kind: KindClosed, Step: -1, Err: ErrClosed}
	}
	res := &Result{TraversalID: id, QueryID: q.ID, Edges: []types.EdgeWithScore{}, Steps: []StepStats{}}
	if len(q.Start) == 0 {
		return res, nil
	}
	if err := q.Validate(); err != nil {
		return nil, invalid(-1, err)
	}
	for _, v := range q.Start {
		if err := e.dir.ValidateVertex(v); err != nil {
			return nil, invalid(-1, err)
		}
	}
	plan, err := e.plan(q)
	if err != nil {
		return nil, err
	}

	timeout := e.opts.QueryTimeout
	if q.Timeout > 0 {
		timeout = q.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	maxFrontier := e.opts.MaxFrontier
	if q.MaxFrontier > 0 {
		maxFrontier = q.MaxFrontier
	}

	frontier := distinct(q.Start)
	prev := query.PrevEdges{}
	var retained []types.EdgeWithScore
	last := len(plan) - 1

	for i, ps := range plan {
		if maxFrontier > 0 && len(frontier) > maxFrontier {
			logger.Debug("Frontier truncated", "step", i, "size", len(frontier), "max", maxFrontier)
			frontier = frontier[:maxFrontier]
		}
		merged, stats, err := e.runStep(ctx, i, ps, frontier, prev, logger)
		if err != nil {
			return nil, err
		}
		res.Steps = append(res.Steps, stats)
		res.Failed += merged.Failed
		if merged.Len() == 0 {
			logger.Debug("Step produced no edges, stopping", "step", i)
			return res, nil
		}
		if i == last || ps.step.Retain {
			retained = append(retained, merged.Edges...)
		}
		frontier = merged.Frontier()
		prev = merged.ByTarget()
	}
	res.Edges = retained
	return res, nil
}

// plan resolves every param once per traversal: default direction from
// metadata, compiled filters and the responsible backend.
func (e *Engine) plan(q query.Query) ([]plannedStep, error) {
	plan := make([]plannedStep, len(q.Steps))
	for i, s := range q.Steps {
		plan[i].step = s
		for j := range s.Params {
			p := s.Params[j]
			info, err := e.dir.Label(p.Label)
			if err != nil {
				return nil, invalid(i, err)
			}
			if p.Direction == "" {
				p.Direction = info.Direction
			}
			compiled, err := p.Compile()
			if err != nil {
				return nil, invalid(i, err)
			}
			backend := info.Backend
			var f fetcher.Fetcher
			if backend != "" {
				var ok bool
				if f, ok = e.reg.Get(backend); !ok {
					return nil, &TraversalError{Kind: KindConfiguration, Step: i, Backend: backend,
						Err: fmt.Errorf("%w: label %q routed to unknown backend", fetcher.ErrConfiguration, p.Label)}
				}
			} else if backend, f, err = e.reg.For(p.Label); err != nil {
				return nil, &TraversalError{Kind: KindConfiguration, Step: i, Err: err}
			}
			plan[i].params = append(plan[i].params, plannedParam{param: compiled, info: info, backend: backend, fetcher: f})
		}
	}
	return plan, nil
}

// partition is the slice of a step's requests served by one backend. pos
// maps each request back to its index in the step.
type partition struct {
	backend string
	fetcher fetcher.Fetcher
	reqs    []query.Request
	pos     []int
}

// runStep fans the step out to its backends and merges the results in
// request order (frontier order, then param order).
func (e *Engine) runStep(ctx context.Context, idx int, ps plannedStep, frontier []types.VertexID, prev query.PrevEdges, logger *slog.Logger) (query.StepResult, StepStats, error) {
	started := time.Now()
	stats := StepStats{Step: idx, Frontier: len(frontier), Backends: map[string]int{}}

	params := make([]*query.Param, len(ps.params))
	for i, pp := range ps.params {
		params[i] = pp.param
	}

	// Requests are vertex-major, so request k uses ps.params[k%len(params)].
	var parts []*partition
	byBackend := map[string]*partition{}
	n := 0
	for k, req := range query.BuildRequests(idx, frontier, params, prev) {
		pp := ps.params[k%len(params)]
		if !pp.info.Connects(req.Vertex, pp.param.Direction) {
			stats.Skipped++
			continue
		}
		p, ok := byBackend[pp.backend]
		if !ok {
			p = &partition{backend: pp.backend, fetcher: pp.fetcher}
			byBackend[pp.backend] = p
			parts = append(parts, p)
		}
		p.reqs = append(p.reqs, req)
		p.pos = append(p.pos, n)
		n++
	}
	stats.Requests = n

	results := make([]query.StepResult, n)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range parts {
		stats.Backends[p.backend] = len(p.reqs)
		metrics.StepRequestsTotal.WithLabelValues(p.backend).Add(float64(len(p.reqs)))
		g.Go(func() error {
			t := time.Now()
			out, err := p.fetcher.Fetches(gctx, p.reqs, prev)
			metrics.PartitionDuration.WithLabelValues(p.backend).Observe(time.Since(t).Seconds())
			if err == nil && len(out) != len(p.reqs) {
				err = fmt.Errorf("%w: %d results for %d requests", errResultCount, len(out), len(p.reqs))
			}
			if err != nil {
				return partitionError(idx, p.backend, err)
			}
			for i, r := range out {
				results[p.pos[i]] = r
			}
			return nil
		})
	}

	// Waiting happens off the caller's goroutine so a timeout abandons
	// partitions that are still running.
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			if ctx.Err() != nil {
				return query.StepResult{}, stats, contextError(ctx, idx)
			}
			return query.StepResult{}, stats, err
		}
	case <-ctx.Done():
		return query.StepResult{}, stats, contextError(ctx, idx)
	}

	merged := query.Merge(results...)
	merged.Dedup(ps.step.Dedup)
	stats.Edges = merged.Len()
	stats.Failed = merged.Failed
	stats.Elapsed = time.Since(started)
	metrics.StepEdges.Observe(float64(stats.Edges))
	logger.Debug("Step finished", "step", idx, "frontier", stats.Frontier, "requests", n,
		"edges", stats.Edges, "failed", stats.Failed, "elapsed", stats.Elapsed)
	return merged, stats, nil
}

// distinct drops repeated vertices, keeping first occurrences in order.
func distinct(vs []types.VertexID) []types.VertexID {
	seen := make(map[types.VertexID]struct{}, len(vs))
	out := make([]types.VertexID, 0, len(vs))
	for _, v := range vs {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

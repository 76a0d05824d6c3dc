package query

import (
	"github.com/sanonone/kektorgraph/pkg/core/types"
)

// StepResult is the scored output of a step, or of a single request inside it.
type StepResult struct {
	Edges []types.EdgeWithScore
	// Failed counts requests whose fetch failed and contributed nothing.
	Failed int
	// Degrees holds, per source vertex, how many stored edges the backend saw
	// before filters and limits.
	Degrees map[types.VertexID]int
	// Err is the cause of a single-request failure. Merge drops it.
	Err error
}

// Failure builds the result of a request that could not be served.
func Failure(err error) StepResult {
	return StepResult{Failed: 1, Err: err}
}

// Len returns the number of edges.
func (r *StepResult) Len() int { return len(r.Edges) }

// Merge concatenates results in argument order, summing failures and degrees.
func Merge(results ...StepResult) StepResult {
	n := 0
	for i := range results {
		n += len(results[i].Edges)
	}
	out := StepResult{
		Edges:   make([]types.EdgeWithScore, 0, n),
		Degrees: make(map[types.VertexID]int),
	}
	for i := range results {
		out.Edges = append(out.Edges, results[i].Edges...)
		out.Failed += results[i].Failed
		for v, d := range results[i].Degrees {
			out.Degrees[v] += d
		}
	}
	return out
}

// ByTarget groups edges by the vertex they reached. This is the PrevEdges
// input of the next step.
func (r *StepResult) ByTarget() PrevEdges {
	m := make(PrevEdges)
	for _, e := range r.Edges {
		m[e.Tgt] = append(m[e.Tgt], e)
	}
	return m
}

// Frontier returns the distinct target vertices in first-seen order.
func (r *StepResult) Frontier() []types.VertexID {
	seen := make(map[types.VertexID]struct{}, len(r.Edges))
	out := make([]types.VertexID, 0, len(r.Edges))
	for _, e := range r.Edges {
		if _, ok := seen[e.Tgt]; ok {
			continue
		}
		seen[e.Tgt] = struct{}{}
		out = append(out, e.Tgt)
	}
	return out
}

type dedupKey struct {
	label string
	tgt   types.VertexID
}

// Dedup collapses edges reaching the same (label, target) according to policy.
// The surviving edge keeps the position of the first occurrence.
func (r *StepResult) Dedup(policy DedupPolicy) {
	if policy == "" || policy == DedupRaw {
		return
	}
	pos := make(map[dedupKey]int, len(r.Edges))
	out := r.Edges[:0:0]
	for _, e := range r.Edges {
		k := dedupKey{label: e.Label, tgt: e.Tgt}
		i, ok := pos[k]
		if !ok {
			pos[k] = len(out)
			out = append(out, e)
			continue
		}
		switch policy {
		case DedupSum:
			out[i].Score += e.Score
		case DedupMax:
			if e.Score > out[i].Score {
				out[i] = e
			}
		}
	}
	r.Edges = out
}

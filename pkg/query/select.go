package query

import (
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/sanonone/kektorgraph/pkg/core/types"
)

// Select turns the raw edges a backend found for req.Vertex into the scored,
// filtered and limited contribution of the request.
//
// Score of an edge = req.ParentScore() × Weight × rank(edge). The returned
// degree is the number of candidates before any filter or limit.
func (p *Param) Select(req Request, candidates []types.Edge, prev PrevEdges) ([]types.EdgeWithScore, int, error) {
	degree := len(candidates)
	parent := req.ParentScore()
	weight := p.effectiveWeight()

	out := make([]types.EdgeWithScore, 0, len(candidates))
	for _, e := range candidates {
		if e.Label != p.Label {
			continue
		}
		if p.Exclude {
			if _, seen := prev[e.Tgt]; seen {
				continue
			}
		}
		ok, err := p.accept(e)
		if err != nil {
			return nil, degree, err
		}
		if !ok {
			continue
		}
		score := parent * weight * p.rank(e)
		if p.Threshold != nil && score < *p.Threshold {
			continue
		}
		out = append(out, types.EdgeWithScore{Edge: e, Score: score, Step: req.Step})
	}

	SortEdges(out)

	if p.Offset > 0 {
		if p.Offset >= len(out) {
			return out[:0], degree, nil
		}
		out = out[p.Offset:]
	}
	if p.Sample > 0 && len(out) > p.Sample {
		out = sample(out, p.Sample, string(req.Vertex.AppendKey(nil))+p.Label)
	}
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, degree, nil
}

// rank is the edge weight (0 counts as 1) when no rank params are set,
// otherwise the dot product of rank weights and numeric edge properties.
// The "weight" key falls back to the edge weight when no such prop exists.
func (p *Param) rank(e types.Edge) float64 {
	if len(p.Rank) == 0 {
		if e.Weight == 0 {
			return 1
		}
		return e.Weight
	}
	keys := make([]string, 0, len(p.Rank))
	for k := range p.Rank {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := make([]float64, len(keys))
	vals := make([]float64, len(keys))
	for i, k := range keys {
		w[i] = p.Rank[k]
		if v, ok := types.Number(e.Props[k]); ok {
			vals[i] = v
		} else if k == "weight" {
			vals[i] = e.Weight
		}
	}
	return floats.Dot(w, vals)
}

// SortEdges orders edges by score descending, then by target vertex, label and
// direction so the order is total.
func SortEdges(edges []types.EdgeWithScore) {
	slices.SortStableFunc(edges, func(a, b types.EdgeWithScore) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		if c := a.Tgt.Compare(b.Tgt); c != 0 {
			return c
		}
		if c := strings.Compare(a.Label, b.Label); c != 0 {
			return c
		}
		return strings.Compare(string(a.Dir), string(b.Dir))
	})
}

// sample keeps n edges chosen by a generator seeded from seedKey, preserving
// their relative order. Same input, same output.
func sample(edges []types.EdgeWithScore, n int, seedKey string) []types.EdgeWithScore {
	h := fnv.New64a()
	h.Write([]byte(seedKey))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	idx := r.Perm(len(edges))[:n]
	sort.Ints(idx)
	out := make([]types.EdgeWithScore, n)
	for i, j := range idx {
		out[i] = edges[j]
	}
	return out
}

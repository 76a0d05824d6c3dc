package mcp

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/engine"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
	"github.com/sanonone/kektorgraph/pkg/fetcher/memory"
)

func newService(t *testing.T) *Service {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := types.VertexID{Service: "social", Column: "user_id", ID: "v"}
	store := memory.NewStore()
	require.NoError(t, store.AddEdges([]types.Edge{
		{Src: v, Tgt: types.VertexID{Service: "social", Column: "user_id", ID: "a"}, Label: "knows", Weight: 0.9},
		{Src: v, Tgt: types.VertexID{Service: "social", Column: "user_id", ID: "b"}, Label: "knows", Weight: 0.5},
	}))
	reg := fetcher.NewRegistry(quiet)
	require.NoError(t, reg.Add("mem", fetcher.WrapSource("mem", store, quiet)))
	eng := engine.New(reg, nil, engine.Options{Logger: quiet})
	t.Cleanup(func() { eng.Close() })
	return NewService(eng)
}

func TestTraverseTool(t *testing.T) {
	s := newService(t)
	_, out, err := s.Traverse(context.Background(), nil, TraverseArgs{
		Start: []string{"social/user_id/v"},
		Steps: []StepArgs{{Params: []ParamArgs{{Label: "knows", Direction: "out", Limit: 1}}}},
	})
	require.NoError(t, err)
	require.Len(t, out.Edges, 1)
	assert.Equal(t, "social/user_id/a", out.Edges[0].Tgt)
	assert.InDelta(t, 0.9, out.Edges[0].Score, 1e-9)
	assert.False(t, out.Partial)
}

func TestTraverseToolRejectsBadInput(t *testing.T) {
	s := newService(t)
	_, _, err := s.Traverse(context.Background(), nil, TraverseArgs{Start: []string{"not-a-vertex"}})
	assert.ErrorIs(t, err, types.ErrInvalidVertex)

	_, _, err = s.Traverse(context.Background(), nil, TraverseArgs{
		Start: []string{"social/user_id/v"},
		Steps: []StepArgs{{Params: []ParamArgs{{Label: "knows", Direction: "up"}}}},
	})
	assert.ErrorIs(t, err, types.ErrInvalidDirection)
}

func TestNeighborsAndBackends(t *testing.T) {
	s := newService(t)
	_, out, err := s.Neighbors(context.Background(), nil, NeighborsArgs{Vertex: "social/user_id/v", Label: "knows"})
	require.NoError(t, err)
	assert.Len(t, out.Edges, 2)

	_, backends, err := s.ListBackends(context.Background(), nil, ListBackendsArgs{})
	require.NoError(t, err)
	assert.Equal(t, []string{"mem"}, backends.Backends)
}

func TestNewMCPServer(t *testing.T) {
	assert.NotNil(t, NewMCPServer(newService(t).engine, "test"))
}

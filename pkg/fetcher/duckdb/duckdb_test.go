package duckdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
)

func vid(id string) types.VertexID {
	return types.VertexID{Service: "social", Column: "user_id", ID: id}
}

func TestNeighborsSQL(t *testing.T) {
	q := neighborsSQL("edges", types.In)
	assert.Contains(t, q, "SELECT src_service, src_column, src_id")
	assert.Contains(t, q, "WHERE tgt_service = ?")
}

func TestOpenRejectsBadTable(t *testing.T) {
	_, err := Open(context.Background(), "", "edges; DROP TABLE x", true)
	assert.ErrorIs(t, err, fetcher.ErrConfiguration)
}

func TestInMemoryNeighbors(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", "edges", true)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AddEdges([]types.Edge{
		{Src: vid("v"), Tgt: vid("b"), Label: "knows", Weight: 0.5},
		{Src: vid("v"), Tgt: vid("a"), Label: "knows", Weight: 0.9, Timestamp: 7, Props: map[string]any{"since": "2020"}},
		{Src: vid("x"), Tgt: vid("v"), Label: "knows", Weight: 0.3},
	}))
	// Upsert replaces the stored weight.
	require.NoError(t, s.AddEdges([]types.Edge{{Src: vid("v"), Tgt: vid("b"), Label: "knows", Weight: 0.4}}))

	out, err := s.Neighbors(ctx, vid("v"), "knows", types.Out)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, vid("a"), out[0].Tgt)
	assert.Equal(t, int64(7), out[0].Timestamp)
	assert.Equal(t, "2020", out[0].Props["since"])
	assert.Equal(t, 0.4, out[1].Weight)

	in, err := s.Neighbors(ctx, vid("v"), "knows", types.In)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, vid("x"), in[0].Tgt)
	assert.Equal(t, types.In, in[0].Dir)
}

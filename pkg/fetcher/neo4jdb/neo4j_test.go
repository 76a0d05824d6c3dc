package neo4jdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
)

func TestNeighborsCypher(t *testing.T) {
	out := neighborsCypher("Vertex", "knows", types.Out)
	assert.Contains(t, out, "MATCH (s:`Vertex` {service: $service, column: $column, id: $id})-[r:`knows`]->(t:`Vertex`)")
	assert.Contains(t, out, "ORDER BY service, column, id")

	in := neighborsCypher("Vertex", "knows", types.In)
	assert.Contains(t, in, "<-[r:`knows`]-(t:`Vertex`)")
}

func TestQuoteIdentEscapesBackticks(t *testing.T) {
	assert.Equal(t, "`a``b`", quoteIdent("a`b"))
	assert.Contains(t, neighborsCypher("V", "x`]->() DETACH DELETE (n", types.Out), "`x``]->() DETACH DELETE (n`")
}

func TestMergeCypher(t *testing.T) {
	q := mergeCypher("Vertex", "likes")
	assert.Contains(t, q, "UNWIND $rows AS row")
	assert.Contains(t, q, "MERGE (s)-[r:`likes`]->(t)")
}

func TestEdgeFromRow(t *testing.T) {
	v := types.VertexID{Service: "social", Column: "user_id", ID: "v"}
	e, err := edgeFromRow(v, "knows", types.In, map[string]any{
		"service": "social", "column": "user_id", "id": "a",
		"props": map[string]any{"weight": int64(2), "ts": int64(99), "since": "2020"},
	})
	require.NoError(t, err)
	assert.Equal(t, v, e.Src)
	assert.Equal(t, "a", e.Tgt.ID)
	assert.Equal(t, types.In, e.Dir)
	assert.Equal(t, 2.0, e.Weight)
	assert.Equal(t, int64(99), e.Timestamp)
	assert.Equal(t, map[string]any{"since": "2020"}, e.Props)

	_, err = edgeFromRow(v, "knows", types.Out, map[string]any{"service": "social"})
	assert.Error(t, err)
}

func TestOpenRequiresURI(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	assert.ErrorIs(t, err, fetcher.ErrConfiguration)
}

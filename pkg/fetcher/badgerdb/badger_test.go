package badgerdb

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func vid(id string) types.VertexID {
	return types.VertexID{Service: "social", Column: "user_id", ID: id}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true, Logger: quiet})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNeighborsBothDirections(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddEdges([]types.Edge{
		{Src: vid("v"), Tgt: vid("b"), Label: "knows", Weight: 0.5},
		{Src: vid("v"), Tgt: vid("a"), Label: "knows", Weight: 0.9, Timestamp: 42, Props: map[string]any{"via": "school"}},
		{Src: vid("v"), Tgt: vid("c"), Label: "likes", Weight: 0.1},
		{Src: vid("x"), Tgt: vid("v"), Label: "knows", Weight: 0.3},
	}))

	out, err := s.Neighbors(ctx, vid("v"), "knows", types.Out)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, vid("a"), out[0].Tgt)
	assert.Equal(t, 0.9, out[0].Weight)
	assert.Equal(t, int64(42), out[0].Timestamp)
	assert.Equal(t, "school", out[0].Props["via"])
	assert.Equal(t, vid("b"), out[1].Tgt)

	in, err := s.Neighbors(ctx, vid("v"), "knows", types.In)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, vid("v"), in[0].Src)
	assert.Equal(t, vid("x"), in[0].Tgt)
	assert.Equal(t, types.In, in[0].Dir)

	// "knows" must not match a longer label sharing the prefix.
	require.NoError(t, s.AddEdge(types.Edge{Src: vid("v"), Tgt: vid("z"), Label: "knows_of"}))
	out, err = s.Neighbors(ctx, vid("v"), "knows", types.Out)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestSeparatorsDoNotAlias(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	a := types.VertexID{Service: "a", Column: "b/c", ID: "d"}
	b := types.VertexID{Service: "a/b", Column: "c", ID: "d"}
	require.NoError(t, s.AddEdge(types.Edge{Src: b, Tgt: vid("x"), Label: "knows"}))
	// A label carrying the separator byte must not reach into another label's keys.
	require.NoError(t, s.AddEdge(types.Edge{Src: a, Tgt: vid("y"), Label: "knows\x00out"}))

	out, err := s.Neighbors(ctx, a, "knows", types.Out)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = s.Neighbors(ctx, b, "knows", types.Out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, b, out[0].Src)
}

func TestDeleteEdge(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddEdge(types.Edge{Src: vid("v"), Tgt: vid("a"), Label: "knows"}))
	require.NoError(t, s.DeleteEdge(vid("v"), vid("a"), "knows"))

	out, err := s.Neighbors(ctx, vid("v"), "knows", types.Out)
	require.NoError(t, err)
	assert.Empty(t, out)
	in, err := s.Neighbors(ctx, vid("a"), "knows", types.In)
	require.NoError(t, err)
	assert.Empty(t, in)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s, err := Open(Options{InMemory: true, Logger: quiet})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Neighbors(context.Background(), vid("v"), "knows", types.Out)
	assert.ErrorIs(t, err, fetcher.ErrUnavailable)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Options{})
	assert.ErrorIs(t, err, fetcher.ErrConfiguration)
}

func TestRegisteredBackendOnDisk(t *testing.T) {
	reg := fetcher.NewRegistry(quiet)
	require.NoError(t, reg.Open(context.Background(), "kv", "badger", fetcher.Config{"path": t.TempDir()}))
	f, ok := reg.Get("kv")
	require.True(t, ok)
	_, isStore := f.(*fetcher.SourceFetcher).Source().(*Store)
	assert.True(t, isStore)
	require.NoError(t, reg.Close())
}

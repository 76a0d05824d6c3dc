package memory

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
	"github.com/sanonone/kektorgraph/pkg/query"
)

func vid(id string) types.VertexID {
	return types.VertexID{Service: "social", Column: "user_id", ID: id}
}

func edge(src, tgt, label string, w float64) types.Edge {
	return types.Edge{Src: vid(src), Tgt: vid(tgt), Label: label, Weight: w}
}

func TestStoreNeighbors(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.AddEdge(edge("v", "b", "knows", 0.5)))
	require.NoError(t, s.AddEdge(edge("v", "a", "knows", 0.9)))
	require.NoError(t, s.AddEdge(edge("v", "c", "likes", 0.1)))
	require.NoError(t, s.AddEdge(edge("x", "v", "knows", 0.3)))
	assert.Equal(t, 4, s.Len())

	out, err := s.Neighbors(ctx, vid("v"), "knows", types.Out)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, vid("a"), out[0].Tgt)
	assert.Equal(t, vid("b"), out[1].Tgt)
	assert.Equal(t, types.Out, out[0].Dir)

	in, err := s.Neighbors(ctx, vid("v"), "knows", types.In)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, vid("v"), in[0].Src)
	assert.Equal(t, vid("x"), in[0].Tgt)
	assert.Equal(t, types.In, in[0].Dir)

	none, err := s.Neighbors(ctx, vid("nobody"), "knows", types.Out)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreAddReplacesAndDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.AddEdge(edge("v", "a", "knows", 0.2)))
	require.NoError(t, s.AddEdge(edge("v", "a", "knows", 0.7)))
	assert.Equal(t, 1, s.Len())

	out, err := s.Neighbors(ctx, vid("v"), "knows", types.Out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0.7, out[0].Weight)

	require.NoError(t, s.DeleteEdge(vid("v"), vid("a"), "knows"))
	require.NoError(t, s.DeleteEdge(vid("v"), vid("zzz"), "knows"))
	assert.Equal(t, 0, s.Len())
	in, err := s.Neighbors(ctx, vid("a"), "knows", types.In)
	require.NoError(t, err)
	assert.Empty(t, in)
}

func TestStoreLogReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.log")

	s, err := OpenStore(path)
	require.NoError(t, err)
	e := edge("v", "a", "knows", 0.9)
	e.Timestamp = 1700000000000
	e.Props = map[string]any{"since": "2020"}
	require.NoError(t, s.AddEdge(e))
	require.NoError(t, s.AddEdge(edge("v", "b", "knows", 0.5)))
	require.NoError(t, s.DeleteEdge(vid("v"), vid("b"), "knows"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	reopened, err := OpenStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 1, reopened.Len())

	out, err := reopened.Neighbors(context.Background(), vid("v"), "knows", types.Out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, vid("a"), out[0].Tgt)
	assert.Equal(t, int64(1700000000000), out[0].Timestamp)
	assert.Equal(t, "2020", out[0].Props["since"])
}

func TestStoreCompactAndTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.log")
	s, err := OpenStore(path)
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.AddEdge(edge("v", id, "knows", 0.5)))
	}
	require.NoError(t, s.DeleteEdge(vid("v"), vid("b"), "knows"))
	before, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, s.Compact())
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, after.Size(), before.Size())
	require.NoError(t, s.Close())

	// Simulate a crash in the middle of a write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xA5, 0x01, 0xFF})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s, err = OpenStore(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	require.NoError(t, s.AddEdge(edge("v", "d", "knows", 0.5)))
	require.NoError(t, s.Close())

	s, err = OpenStore(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 3, s.Len(), "writes after a torn tail must survive the next replay")
}

func TestStoreReplayRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.log")
	require.NoError(t, os.WriteFile(path, []byte("not a log"), 0o644))
	_, err := OpenStore(path)
	assert.Error(t, err)
}

func TestRegisteredBackend(t *testing.T) {
	reg := fetcher.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer reg.Close()
	path := filepath.Join(t.TempDir(), "edges.log")
	require.NoError(t, reg.Open(context.Background(), "mem", "memory", fetcher.Config{"log_path": path}))

	f, ok := reg.Get("mem")
	require.True(t, ok)
	store := f.(*fetcher.SourceFetcher).Source().(*Store)
	require.NoError(t, store.AddEdge(edge("v", "a", "knows", 0.9)))

	p, err := query.Param{Label: "knows"}.Compile()
	require.NoError(t, err)
	results, err := f.Fetches(context.Background(), query.BuildRequests(0, []types.VertexID{vid("v")}, []*query.Param{p}, nil), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Edges, 1)
	assert.InDelta(t, 0.9, results[0].Edges[0].Score, 1e-9)
}

func TestStoreSeparatorsDoNotAlias(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := types.VertexID{Service: "a", Column: "b/c", ID: "d"}
	b := types.VertexID{Service: "a/b", Column: "c", ID: "d"}
	require.Equal(t, a.Key(), b.Key(), "both render the same display key")
	require.NoError(t, s.AddEdge(types.Edge{Src: b, Tgt: vid("x"), Label: "knows"}))

	out, err := s.Neighbors(ctx, a, "knows", types.Out)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = s.Neighbors(ctx, b, "knows", types.Out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, b, out[0].Src)

	in, err := s.Neighbors(ctx, vid("x"), "knows", types.In)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, b, in[0].Tgt)
}

func TestStoreWritesFailAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.log")
	s, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, s.AddEdge(edge("v", "a", "knows", 1)))
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.AddEdge(edge("v", "b", "knows", 1)), fetcher.ErrClosed)
	assert.ErrorIs(t, s.AddEdges([]types.Edge{edge("v", "c", "knows", 1)}), fetcher.ErrClosed)
	assert.ErrorIs(t, s.DeleteEdge(vid("v"), vid("a"), "knows"), fetcher.ErrClosed)
	assert.Equal(t, 1, s.Len(), "rejected writes must not reach the index")

	mem := NewStore()
	require.NoError(t, mem.Close())
	assert.ErrorIs(t, mem.AddEdge(edge("v", "a", "knows", 1)), fetcher.ErrClosed)
}

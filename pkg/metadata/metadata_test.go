package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/pkg/core/types"
)

func TestStatic(t *testing.T) {
	dir, err := NewStatic(
		map[string][]string{"social": {"user_id"}, "shop": {"item_id"}},
		[]LabelInfo{
			{Name: "knows", SrcService: "social", SrcColumn: "user_id", TgtService: "social", TgtColumn: "user_id"},
			{Name: "bought", Direction: types.Out, Backend: "kv", SrcService: "social", TgtService: "shop", TgtColumn: "item_id"},
		},
	)
	require.NoError(t, err)

	l, err := dir.Label("knows")
	require.NoError(t, err)
	assert.Equal(t, types.Out, l.Direction, "direction defaults to out")

	_, err = dir.Label("hates")
	assert.ErrorIs(t, err, ErrUnknownLabel)

	user := types.VertexID{Service: "social", Column: "user_id", ID: "1"}
	assert.NoError(t, dir.ValidateVertex(user))
	assert.ErrorIs(t, dir.ValidateVertex(types.VertexID{Service: "nope", Column: "x", ID: "1"}), ErrUnknownService)
	assert.ErrorIs(t, dir.ValidateVertex(types.VertexID{Service: "social", Column: "x", ID: "1"}), ErrUnknownColumn)
	assert.ErrorIs(t, dir.ValidateVertex(types.VertexID{Service: "social", Column: "user_id"}), types.ErrInvalidVertex)
	assert.Len(t, dir.Labels(), 2)
}

func TestStaticRejectsBadLabels(t *testing.T) {
	services := map[string][]string{"social": {"user_id"}}
	cases := map[string][]LabelInfo{
		"duplicate":      {{Name: "a"}, {Name: "a"}},
		"no name":        {{}},
		"bad direction":  {{Name: "a", Direction: "sideways"}},
		"unknown column": {{Name: "a", SrcService: "social", SrcColumn: "email"}},
	}
	for name, labels := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewStatic(services, labels)
			assert.Error(t, err)
		})
	}
}

func TestConnects(t *testing.T) {
	l := LabelInfo{Name: "bought", SrcService: "social", TgtService: "shop"}
	user := types.VertexID{Service: "social", Column: "user_id", ID: "1"}
	item := types.VertexID{Service: "shop", Column: "item_id", ID: "9"}

	assert.True(t, l.Connects(user, types.Out))
	assert.False(t, l.Connects(item, types.Out))
	assert.True(t, l.Connects(item, types.In))
	assert.False(t, l.Connects(user, types.In))
	assert.True(t, l.Connects(item, types.Both))
}

func TestPermissive(t *testing.T) {
	var p Permissive
	l, err := p.Label("anything")
	require.NoError(t, err)
	assert.Equal(t, types.Out, l.Direction)
	assert.Error(t, p.ValidateVertex(types.VertexID{}))
}

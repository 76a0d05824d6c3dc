package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexKeys(t *testing.T) {
	a := VertexID{Service: "a", Column: "b/c", ID: "d"}
	b := VertexID{Service: "a/b", Column: "c", ID: "d"}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.AppendKey(nil), b.AppendKey(nil))
	assert.NotZero(t, a.Compare(b))
	assert.Zero(t, a.Compare(a))

	// No encoding may be a prefix of another one.
	short := VertexID{Service: "s", Column: "c", ID: "1"}
	long := VertexID{Service: "s", Column: "c", ID: "12"}
	assert.NotEqual(t, short.AppendKey(nil), long.AppendKey(nil)[:len(short.AppendKey(nil))])

	v, err := ParseVertexID("social/user_id/a/b")
	require.NoError(t, err)
	assert.Equal(t, VertexID{Service: "social", Column: "user_id", ID: "a/b"}, v)
	_, err = ParseVertexID("social//x")
	assert.ErrorIs(t, err, ErrInvalidVertex)
}

func TestVertexCompareOrdersFields(t *testing.T) {
	assert.Negative(t, VertexID{Service: "a", Column: "z", ID: "z"}.Compare(VertexID{Service: "b", Column: "a", ID: "a"}))
	assert.Negative(t, VertexID{Service: "a", Column: "a", ID: "z"}.Compare(VertexID{Service: "a", Column: "b", ID: "a"}))
	assert.Positive(t, VertexID{Service: "a", Column: "a", ID: "b"}.Compare(VertexID{Service: "a", Column: "a", ID: "a"}))
}

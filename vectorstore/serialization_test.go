package vectorstore

import (
	"testing"

	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexBlob_Roundtrip(t *testing.T) {
	in := [][]float32{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
	}

	blob := MarshalIndex(3, in)
	dim, out, err := UnmarshalIndex(blob)
	require.NoError(t, err)
	assert.Equal(t, 3, dim)
	assert.Equal(t, in, out)
}

func TestIndexBlob_EmptyStore(t *testing.T) {
	blob := MarshalIndex(0, nil)
	dim, out, err := UnmarshalIndex(blob)
	require.NoError(t, err)
	assert.Zero(t, dim)
	assert.Empty(t, out)
}

func TestUnmarshalIndex_Garbage(t *testing.T) {
	_, _, err := UnmarshalIndex([]byte("not an index blob"))
	require.ErrorIs(t, err, core.ErrCorruptStore)
}

func TestUnmarshalIndex_DimensionMismatch(t *testing.T) {
	blob := MarshalIndex(4, [][]float32{{0.1, 0.2, 0.3}})
	_, _, err := UnmarshalIndex(blob)
	require.ErrorIs(t, err, core.ErrCorruptStore)
}

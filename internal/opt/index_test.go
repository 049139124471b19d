package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexManager(t *testing.T) {
	m := NewIndexManager(5, 3)
	require.Equal(t, 4+6, m.Size())

	for node := 1; node < 5; node++ {
		idx, err := m.NodeToIndex(node)
		require.NoError(t, err)
		assert.Equal(t, node, m.IndexToNode(idx))
		assert.False(t, m.IsStart(idx))
		assert.False(t, m.IsEnd(idx))
	}

	seen := map[int]bool{}
	for v := 0; v < 3; v++ {
		s, e := m.Start(v), m.End(v)
		assert.True(t, m.IsStart(s))
		assert.True(t, m.IsEnd(e))
		assert.Zero(t, m.IndexToNode(s))
		assert.Zero(t, m.IndexToNode(e))
		assert.False(t, seen[s] || seen[e], "vehicle %d shares a depot index", v)
		seen[s], seen[e] = true, true
	}
	assert.Len(t, seen, 6)

	_, err := m.NodeToIndex(0)
	assert.ErrorIs(t, err, ErrDepotIndexAmbiguous)
	_, err = m.NodeToIndex(5)
	assert.Error(t, err)
}

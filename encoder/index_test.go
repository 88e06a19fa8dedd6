package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_SearchOrdersBySimilarity(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Add(IndexEntry{Dataset: "biker", Idx: 0}, []float32{1, 0}))
	require.NoError(t, ix.Add(IndexEntry{Dataset: "biker", Idx: 1}, []float32{0, 1}))
	require.NoError(t, ix.Add(IndexEntry{Dataset: "biker", Idx: 2}, []float32{0.9, 0.1}))

	hits, err := ix.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Idx)
	assert.Equal(t, 2, hits[1].Idx)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Add(IndexEntry{Dataset: "d", Idx: 0}, []float32{1, 0, 0}))

	assert.Error(t, ix.Add(IndexEntry{Dataset: "d", Idx: 1}, []float32{1, 0}))

	_, err := ix.Search([]float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestIndex_Validation(t *testing.T) {
	ix := NewIndex()
	assert.Error(t, ix.Add(IndexEntry{}, nil))

	_, err := ix.Search(nil, 3)
	assert.Error(t, err)

	hits, err := ix.Search([]float32{1}, 0)
	require.NoError(t, err)
	assert.Nil(t, hits)

	assert.Equal(t, 0, ix.Len())
}

func TestIndex_DeterministicTieBreak(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Add(IndexEntry{Dataset: "b", Idx: 7}, []float32{1, 0}))
	require.NoError(t, ix.Add(IndexEntry{Dataset: "a", Idx: 9}, []float32{1, 0}))

	hits, err := ix.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, "a", hits[0].Dataset)
	assert.Equal(t, "b", hits[1].Dataset)
}

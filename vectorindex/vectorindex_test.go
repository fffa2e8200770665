package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpsertAndKNN(t *testing.T) {
	idx := New(3)
	require.NoError(t, idx.Upsert("a", []float32{1, 0, 0}))
	require.NoError(t, idx.Upsert("b", []float32{0, 1, 0}))
	require.NoError(t, idx.Upsert("c", []float32{0.9, 0.1, 0}))

	matches, err := idx.KNN([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "a", matches[0].ID)
	require.Equal(t, "c", matches[1].ID)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	idx := New(3)
	err := idx.Upsert("a", []float32{1, 0})
	require.Error(t, err)
}

func TestDeleteRemovesFromIterate(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Upsert("a", []float32{1, 0}))
	require.NoError(t, idx.Upsert("b", []float32{0, 1}))
	idx.Delete("a")

	require.Equal(t, []string{"b"}, idx.Iterate())
	require.Equal(t, 1, idx.Len())
}

func TestDropClearsIndex(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Upsert("a", []float32{1, 0}))
	idx.Drop()
	require.Equal(t, 0, idx.Len())
	require.Empty(t, idx.Iterate())
}

func TestStorePerLayerIsolation(t *testing.T) {
	s := NewStore(2, []string{"medium_term", "long_term"})
	require.NoError(t, s.Upsert("medium_term", "m1", []float32{1, 0}))
	require.NoError(t, s.Upsert("long_term", "l1", []float32{0, 1}))

	require.Equal(t, []string{"m1"}, s.Iterate("medium_term"))
	require.Equal(t, []string{"l1"}, s.Iterate("long_term"))
}

func TestCosineSimilarityOfZeroVectorIsZero(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Upsert("zero", []float32{0, 0}))
	matches, err := idx.KNN([]float32{1, 1}, 1)
	require.NoError(t, err)
	require.Equal(t, 0.0, matches[0].Similarity)
}

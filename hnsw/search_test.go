package hnsw

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchEmptyIndexReturnsNil(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())

	results, err := idx.Search([]float32{1, 2, 3}, 5, 50)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestSearchKZeroReturnsEmptySlice(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())
	_, err := idx.Insert([]float32{1, 2, 3}, nil)
	require.NoError(t, err)

	results, err := idx.Search([]float32{1, 2, 3}, 0, 50)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchRejectsInvalidParameters(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())

	_, err := idx.Search([]float32{1}, -1, 10)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = idx.Search([]float32{1}, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestSearchRejectsDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())
	_, err := idx.Insert([]float32{1, 2, 3}, nil)
	require.NoError(t, err)

	_, err = idx.Search([]float32{1, 2}, 1, 10)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearchResultsAreAscendingByDistance(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		v := []float32{rng.Float32() * 100, rng.Float32() * 100, rng.Float32() * 100}
		_, err := idx.Insert(v, nil)
		require.NoError(t, err)
	}

	results, err := idx.Search([]float32{50, 50, 50}, 10, 100)
	require.NoError(t, err)
	require.Len(t, results, 10)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestSelectNeighboursRespectsBudget(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())
	for i := 0; i < 10; i++ {
		_, err := idx.Insert([]float32{float32(i)}, nil)
		require.NoError(t, err)
	}

	candidates := make([]candidate, 10)
	for i := 0; i < 10; i++ {
		candidates[i] = candidate{ID: i, Dist: float32(math.Abs(float64(i)))}
	}

	selected := idx.selectNeighbours(candidates, 3)
	assert.LessOrEqual(t, len(selected), 3)
}

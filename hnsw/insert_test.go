package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, cfg Config) *Index {
	t.Helper()
	idx, err := New(cfg)
	require.NoError(t, err)
	return idx
}

func TestInsertFirstNodeBecomesEntryPoint(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())

	id, err := idx.Insert([]float32{1, 2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, id)
	require.NotNil(t, idx.EntryPoint)
	assert.Equal(t, 0, idx.EntryPoint.ID)
}

func TestInsertAssignsSequentialIDs(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())

	for i := 0; i < 10; i++ {
		id, err := idx.Insert([]float32{float32(i), 0, 0}, nil)
		require.NoError(t, err)
		assert.Equal(t, i, id)
	}
	assert.Len(t, idx.Nodes, 10)
}

func TestInsertRejectsDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())

	_, err := idx.Insert([]float32{1, 2, 3}, nil)
	require.NoError(t, err)

	_, err = idx.Insert([]float32{1, 2}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestInsertStoresMetadata(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())

	meta := map[string]any{"label": "first"}
	id, err := idx.Insert([]float32{0, 0, 0}, meta)
	require.NoError(t, err)
	assert.Equal(t, meta, idx.Nodes[id].Metadata)
}

func TestInsertPromotesEntryPointOnHigherLevel(t *testing.T) {
	seed := uint64(7)
	cfg := DefaultConfig()
	cfg.Seed = &seed
	idx := newTestIndex(t, cfg)

	highestLevel := -1
	var highestID int
	for i := 0; i < 200; i++ {
		id, err := idx.Insert([]float32{float32(i)}, nil)
		require.NoError(t, err)
		if idx.Nodes[id].Level > highestLevel {
			highestLevel = idx.Nodes[id].Level
			highestID = id
		}
	}

	assert.Equal(t, highestID, idx.EntryPoint.ID)
	assert.Equal(t, highestLevel, idx.EntryPoint.Level)
}

func TestInsertBuildsBidirectionalEdges(t *testing.T) {
	idx := newTestIndex(t, DefaultConfig())

	for i := 0; i < 30; i++ {
		_, err := idx.Insert([]float32{float32(i), float32(i % 3)}, nil)
		require.NoError(t, err)
	}

	for _, n := range idx.Nodes {
		for lc, neighbors := range n.Neighbors {
			for _, nb := range neighbors {
				found := false
				for _, back := range nb.Neighbors[lc] {
					if back.ID == n.ID {
						found = true
						break
					}
				}
				assert.Truef(t, found, "edge %d->%d on layer %d is not reciprocated", n.ID, nb.ID, lc)
			}
		}
	}
}

func TestInsertRespectsDegreeBudgetWithPruning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.M = 4
	cfg.Mmax0 = 8
	cfg.PruneExisting = true
	idx := newTestIndex(t, cfg)

	for i := 0; i < 100; i++ {
		_, err := idx.Insert([]float32{float32(i)}, nil)
		require.NoError(t, err)
	}

	for _, n := range idx.Nodes {
		for lc, neighbors := range n.Neighbors {
			budget := cfg.M
			if lc == 0 {
				budget = cfg.Mmax0
			}
			assert.LessOrEqualf(t, len(neighbors), budget, "node %d layer %d exceeds degree budget", n.ID, lc)
		}
	}
}

func TestInsertWithoutPruningAllowsDegreeBudgetOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.M = 2
	cfg.Mmax0 = 4
	cfg.PruneExisting = false
	idx := newTestIndex(t, cfg)

	// A hub at the origin, then five points on the unit circle 72 degrees
	// apart. Every circle point is closer to the hub (distance 1) than to any
	// other circle point (distance > 1.17), so each one selects only the hub
	// and the hub's layer-0 list grows to 5, past Mmax0=4.
	points := [][]float32{
		{0, 0},
		{1, 0},
		{0.309017, 0.951057},
		{-0.809017, 0.587785},
		{-0.809017, -0.587785},
		{0.309017, -0.951057},
	}
	for _, p := range points {
		_, err := idx.Insert(p, nil)
		require.NoError(t, err)
	}

	overflowed := false
	for _, n := range idx.Nodes {
		for lc, neighbors := range n.Neighbors {
			budget := cfg.M
			if lc == 0 {
				budget = cfg.Mmax0
			}
			if len(neighbors) > budget {
				overflowed = true
			}
		}
	}

	assert.Truef(t, overflowed, "expected at least one node to exceed its degree budget with PruneExisting=false")
}

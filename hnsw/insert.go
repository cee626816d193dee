package hnsw

import (
	"container/heap"

	"go.uber.org/zap"

	"github.com/arborvec/hnsw/structs"
)

// Insert adds vector (with its associated metadata) to the index and
// returns the ID assigned to it. IDs are 0-based and assigned in
// monotonically increasing insertion order.
//
// Insertion proceeds in two phases once a random level has been sampled
// for the new node:
//  1. greedy descent from the current entry point down to the layer just
//     above the new node's level, to find a good local entry point;
//  2. at each layer from there down to layer 0, a bounded beam search
//     finds candidate neighbors, selectNeighbours prunes them to the
//     layer's degree budget, and bidirectional edges are formed.
//
// The entry point is promoted to the new node if its sampled level exceeds
// every previously occupied level.
//
// Insert is not reentrant: it must not be called concurrently with itself
// or with Search on the same index.
func (idx *Index) Insert(vector []float32, metadata map[string]any) (int, error) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	if !idx.dimensionSet {
		idx.dimension = len(vector)
		idx.dimensionSet = true
	} else if len(vector) != idx.dimension {
		return 0, wrapErr(ErrDimensionMismatch, "insert vector dimension does not match index dimension")
	}

	id := len(idx.Nodes)
	level := idx.RandomLevel()
	q := structs.NewNode(id, vector, metadata, level, idx.M, idx.Mmax0)

	idx.growLayerCount(level)
	idx.Nodes = append(idx.Nodes, q)

	if idx.EntryPoint == nil {
		idx.EntryPoint = q
		idx.logger.Debug("insert: first node", zap.Int("id", id), zap.Int("level", level))
		return id, nil
	}

	ep := idx.EntryPoint
	topLevel := ep.Level

	// Phase 1: greedy descent to the layer just above the new node's level.
	for lc := topLevel; lc > level; lc-- {
		ep = idx.greedySearchLayer(q.Vector, ep, lc)
	}

	// Phase 2: connect at every layer from min(topLevel, level) down to 0.
	maxLayer := level
	if topLevel < maxLayer {
		maxLayer = topLevel
	}
	for lc := maxLayer; lc >= 0; lc-- {
		if idx.layerCount[lc] == 1 {
			// q is the only node on this layer; nothing to connect to.
			continue
		}

		found := idx.searchLayer(q.Vector, ep, idx.EfConstruction, lc)

		budget := idx.M
		if lc == 0 {
			budget = idx.Mmax0
		}

		selected := idx.selectNeighbours(found, budget)
		idx.connectBidirectional(q, selected, lc, budget)

		if len(selected) > 0 {
			ep = idx.Nodes[selected[0].ID]
		}
	}

	if level > topLevel {
		idx.EntryPoint = q
	}

	idx.logger.Debug("insert complete", zap.Int("id", id), zap.Int("level", level))
	return id, nil
}

// growLayerCount extends layerCount (if needed) and accounts for the new
// node occupying layers 0..level.
func (idx *Index) growLayerCount(level int) {
	if level+1 > len(idx.layerCount) {
		grown := make([]int, level+1)
		copy(grown, idx.layerCount)
		idx.layerCount = grown
	}
	for l := 0; l <= level; l++ {
		idx.layerCount[l]++
	}
}

// connectBidirectional wires q to each of selected on layer level, and
// each of selected back to q. When PruneExisting is set, a neighbor whose
// list overflows its budget after gaining the new edge is re-pruned with
// selectNeighbours, treating the neighbor itself as the query, so no
// node's degree silently grows past its budget over many insertions.
func (idx *Index) connectBidirectional(q *structs.Node, selected []candidate, level, budget int) {
	q.Neighbors[level] = make([]*structs.Node, 0, len(selected))

	for _, c := range selected {
		neighbor := idx.Nodes[c.ID]
		q.Neighbors[level] = append(q.Neighbors[level], neighbor)
		neighbor.Neighbors[level] = append(neighbor.Neighbors[level], q)

		if idx.PruneExisting && len(neighbor.Neighbors[level]) > budget {
			idx.pruneNeighborList(neighbor, level, budget)
		}
	}
}

// pruneNeighborList re-selects neighbor's own out-neighbor list on level
// down to budget entries, treating neighbor's vector as the query for the
// diversity heuristic.
func (idx *Index) pruneNeighborList(neighbor *structs.Node, level, budget int) {
	tmp := idx.heapPool.GetMinHeap()
	defer idx.heapPool.PutMinHeap(tmp)

	for _, n := range neighbor.Neighbors[level] {
		dist := idx.distance(neighbor.Vector, n.Vector)
		heap.Push(tmp, structs.EncodeHeapItem(dist, n.ID))
	}

	sorted := make([]candidate, tmp.Len())
	for i := range sorted {
		item := heap.Pop(tmp).(uint64)
		dist, id := structs.DecodeHeapItem(item)
		sorted[i] = candidate{Dist: dist, ID: id}
	}

	kept := idx.selectNeighbours(sorted, budget)
	newList := make([]*structs.Node, len(kept))
	for i, c := range kept {
		newList[i] = idx.Nodes[c.ID]
	}
	neighbor.Neighbors[level] = newList
}

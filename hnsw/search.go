package hnsw

import (
	"container/heap"

	"go.uber.org/zap"

	"github.com/arborvec/hnsw/structs"
)

// searchLayer performs a bounded best-first (beam) search on a single
// layer, starting from entry, returning up to ef nodes closest to query
// sorted by ascending distance.
//
// Two heaps drive the search: a min-heap frontier of candidates still to
// expand, and a bounded max-heap of the best ef results seen so far (its
// root is the "worst-of-best"). A node is visited at most once. The search
// stops once the nearest remaining candidate is farther than the
// worst-of-best and the result set is full — every node still in the
// frontier at that point can only get worse.
//
// If entry has no neighbors on this layer, the result is the single
// element [(d(query, entry), entry.ID)].
func (idx *Index) searchLayer(query []float32, entry *structs.Node, ef, level int) []candidate {
	visited := idx.visitedPool.Get()
	defer idx.visitedPool.Put(visited)

	frontier := idx.heapPool.GetMinHeap()
	defer idx.heapPool.PutMinHeap(frontier)

	best := idx.heapPool.GetMaxHeap()
	defer idx.heapPool.PutMaxHeap(best)

	entryDist := idx.distance(query, entry.Vector)
	heap.Push(frontier, structs.EncodeHeapItem(entryDist, entry.ID))
	best.Push(idx.nodeHeapPool.Get(entryDist, entry.ID))
	visited[entry.ID] = struct{}{}

	for frontier.Len() > 0 {
		item := heap.Pop(frontier).(uint64)
		currentDist, currentID := structs.DecodeHeapItem(item)

		if best.Len() >= ef {
			if worst := best.Peek(); currentDist > worst.Dist {
				break
			}
		}

		current := idx.Nodes[currentID]
		if level > len(current.Neighbors)-1 {
			continue
		}

		for _, neighbor := range current.Neighbors[level] {
			if _, seen := visited[neighbor.ID]; seen {
				continue
			}
			visited[neighbor.ID] = struct{}{}

			dist := idx.distance(query, neighbor.Vector)
			worst := best.Peek()
			if best.Len() < ef || (worst != nil && dist < worst.Dist) {
				heap.Push(frontier, structs.EncodeHeapItem(dist, neighbor.ID))
				best.Push(idx.nodeHeapPool.Get(dist, neighbor.ID))
				if best.Len() > ef {
					idx.nodeHeapPool.Put(best.Pop())
				}
			}
		}
	}

	results := make([]candidate, best.Len())
	for i := len(results) - 1; i >= 0; i-- {
		nh := best.Pop()
		results[i] = candidate{Dist: nh.Dist, ID: nh.Id}
		idx.nodeHeapPool.Put(nh)
	}
	return results
}

// greedySearchLayer performs a single-step (ef=1) hill-climb from entry:
// repeatedly move to the closest strictly-improving neighbor until none
// improves. Used for the upper-layer descent in both Insert and Search,
// where beam width 1 makes the general searchLayer unnecessarily costly.
func (idx *Index) greedySearchLayer(query []float32, entry *structs.Node, level int) *structs.Node {
	current := entry
	bestDist := idx.distance(query, current.Vector)

	for {
		improved := false
		if level <= len(current.Neighbors)-1 {
			for _, neighbor := range current.Neighbors[level] {
				dist := idx.distance(query, neighbor.Vector)
				if dist < bestDist {
					bestDist = dist
					current = neighbor
					improved = true
				}
			}
		}
		if !improved {
			return current
		}
	}
}

// selectNeighbours implements a diversity heuristic over candidates in
// ascending-distance order, accepting c only if every already-selected s
// is at least as far from c as the query is (d(c,s) >= d(c,query)). This
// favors long-range "highway" edges over neighbors clustered in the same
// direction. Stops once budget entries are selected.
func (idx *Index) selectNeighbours(candidates []candidate, budget int) []candidate {
	selected := make([]candidate, 0, budget)

candidateLoop:
	for _, c := range candidates {
		cVec := idx.Nodes[c.ID].Vector
		for _, s := range selected {
			if idx.distance(cVec, idx.Nodes[s.ID].Vector) < c.Dist {
				continue candidateLoop
			}
		}
		selected = append(selected, c)
		if len(selected) == budget {
			break
		}
	}

	return selected
}

// Search returns up to k nodes nearest to query, in ascending-distance
// order. Returns an empty (nil) result, not an error, for an empty index.
// efSearch controls the base-layer beam width; efSearch < k is raised to k.
func (idx *Index) Search(query []float32, k, efSearch int) ([]Result, error) {
	if k < 0 {
		return nil, errInvalidParam("k must be >= 0")
	}
	if efSearch < 1 {
		return nil, errInvalidParam("efSearch must be >= 1")
	}
	if efSearch < k {
		efSearch = k
	}

	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	if idx.EntryPoint == nil {
		return nil, nil
	}
	if idx.dimensionSet && len(query) != idx.dimension {
		return nil, wrapErr(ErrDimensionMismatch, "search query dimension does not match index dimension")
	}
	if k == 0 {
		return []Result{}, nil
	}

	entry := idx.EntryPoint
	for lc := entry.Level; lc > 0; lc-- {
		entry = idx.greedySearchLayer(query, entry, lc)
	}

	candidates := idx.searchLayer(query, entry, efSearch, 0)

	n := k
	if n > len(candidates) {
		n = len(candidates)
	}

	results := make([]Result, n)
	for i := 0; i < n; i++ {
		node := idx.Nodes[candidates[i].ID]
		results[i] = Result{
			ID:       node.ID,
			Vector:   node.Vector,
			Metadata: node.Metadata,
			Distance: candidates[i].Dist,
		}
	}

	idx.logger.Debug("search complete",
		zap.Int("k", k),
		zap.Int("ef_search", efSearch),
		zap.Int("results", len(results)),
	)

	return results, nil
}

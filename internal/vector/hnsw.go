package vector

import (
	"container/heap"
	"math"
	"math/rand"
)

// HNSW parameters: fan-out of 16 links per node (doubled at layer 0), with the
// usual construction/search beam widths.
const (
	hnswM              = 16
	hnswEfConstruction = 200
	hnswEfSearch       = 64
	hnswSeed           = 5489
)

// HNSWIndex is a hierarchical navigable small world graph. Nodes are inserted
// incrementally at a random level; search descends greedily from the top layer
// and runs a beam search at layer 0. No training step.
// Fields are exported for gob persistence; the RNG is rebuilt after load.
type HNSWIndex struct {
	Dimension      int
	M              int
	EfConstruction int
	EfSearch       int
	Vectors        [][]float32
	Levels         []int
	// Neighbors[node][layer] lists linked positions. Layer 0 allows 2*M links.
	Neighbors  [][][]int32
	EntryPoint int
	MaxLevel   int

	rng *rand.Rand
}

// NewHNSWIndex creates an empty HNSW index with the given dimension.
func NewHNSWIndex(dim int) *HNSWIndex {
	return &HNSWIndex{
		Dimension:      dim,
		M:              hnswM,
		EfConstruction: hnswEfConstruction,
		EfSearch:       hnswEfSearch,
		EntryPoint:     -1,
		MaxLevel:       -1,
		rng:            rand.New(rand.NewSource(hnswSeed)),
	}
}

// Dim returns the configured vector dimension.
func (h *HNSWIndex) Dim() int { return h.Dimension }

// Ntotal returns the number of stored vectors.
func (h *HNSWIndex) Ntotal() int { return len(h.Vectors) }

// NeedsTraining returns false; HNSW inserts are incremental.
func (h *HNSWIndex) NeedsTraining() bool { return false }

// Trained returns true; HNSW has no training step.
func (h *HNSWIndex) Trained() bool { return true }

// Train is a no-op for HNSW.
func (h *HNSWIndex) Train(vectors [][]float32) error { return nil }

// ensureRng rebuilds the level RNG after gob decoding (unexported fields are
// not persisted). Seeded with the node count so reload does not replay levels.
func (h *HNSWIndex) ensureRng() {
	if h.rng == nil {
		h.rng = rand.New(rand.NewSource(hnswSeed + int64(len(h.Vectors))))
	}
}

// randomLevel draws a node level from the standard exponential distribution.
func (h *HNSWIndex) randomLevel() int {
	levelMult := 1.0 / math.Log(float64(h.M))
	r := h.rng.Float64()
	for r == 0 {
		r = h.rng.Float64()
	}
	return int(-math.Log(r) * levelMult)
}

// maxConn returns the link budget for a layer.
func (h *HNSWIndex) maxConn(layer int) int {
	if layer == 0 {
		return h.M * 2
	}
	return h.M
}

// Add inserts vectors one at a time, linking each into the graph.
func (h *HNSWIndex) Add(vectors [][]float32) error {
	if err := validateDims(vectors, h.Dimension); err != nil {
		return err
	}
	h.ensureRng()
	for _, v := range vectors {
		h.insert(cloneVector(v))
	}
	return nil
}

func (h *HNSWIndex) insert(v []float32) {
	pos := len(h.Vectors)
	level := h.randomLevel()
	h.Vectors = append(h.Vectors, v)
	h.Levels = append(h.Levels, level)
	layers := make([][]int32, level+1)
	h.Neighbors = append(h.Neighbors, layers)

	if h.EntryPoint < 0 {
		h.EntryPoint = pos
		h.MaxLevel = level
		return
	}

	ep := h.EntryPoint
	epDist := squaredL2(v, h.Vectors[ep])
	for layer := h.MaxLevel; layer > level; layer-- {
		ep, epDist = h.greedyDescend(v, ep, epDist, layer)
	}

	top := level
	if top > h.MaxLevel {
		top = h.MaxLevel
	}
	for layer := top; layer >= 0; layer-- {
		found := h.searchLayer(v, ep, h.EfConstruction, layer)
		m := h.M
		if m > len(found) {
			m = len(found)
		}
		for _, n := range found[:m] {
			h.link(pos, n.pos, layer)
			h.link(n.pos, pos, layer)
		}
		if len(found) > 0 {
			ep = found[0].pos
		}
	}

	if level > h.MaxLevel {
		h.MaxLevel = level
		h.EntryPoint = pos
	}
}

// link adds dst to src's neighbor list at layer, pruning to the link budget by
// keeping the closest neighbors.
func (h *HNSWIndex) link(src, dst int, layer int) {
	if src == dst {
		return
	}
	list := h.Neighbors[src][layer]
	for _, n := range list {
		if int(n) == dst {
			return
		}
	}
	list = append(list, int32(dst))
	if budget := h.maxConn(layer); len(list) > budget {
		candidates := make([]neighbor, len(list))
		for i, n := range list {
			candidates[i] = neighbor{pos: int(n), dist: squaredL2(h.Vectors[src], h.Vectors[n])}
		}
		_, positions := topK(candidates, budget)
		list = make([]int32, len(positions))
		for i, p := range positions {
			list[i] = int32(p)
		}
	}
	h.Neighbors[src][layer] = list
}

// greedyDescend moves to the closest neighbor at the given layer until no
// neighbor improves on the current distance.
func (h *HNSWIndex) greedyDescend(query []float32, ep int, epDist float32, layer int) (int, float32) {
	for {
		improved := false
		if layer < len(h.Neighbors[ep]) {
			for _, n := range h.Neighbors[ep][layer] {
				if d := squaredL2(query, h.Vectors[n]); d < epDist {
					ep = int(n)
					epDist = d
					improved = true
				}
			}
		}
		if !improved {
			return ep, epDist
		}
	}
}

// searchLayer runs a beam search of width ef at the given layer, returning up
// to ef nearest candidates in ascending distance order.
func (h *HNSWIndex) searchLayer(query []float32, ep int, ef int, layer int) []neighbor {
	visited := map[int]bool{ep: true}
	start := neighbor{pos: ep, dist: squaredL2(query, h.Vectors[ep])}

	candidates := &hnswMinHeap{start}
	results := &hnswMaxHeap{start}

	for candidates.Len() > 0 {
		cur := heap.Pop(candidates).(neighbor)
		if cur.dist > (*results)[0].dist && results.Len() >= ef {
			break
		}
		if layer >= len(h.Neighbors[cur.pos]) {
			continue
		}
		for _, n := range h.Neighbors[cur.pos][layer] {
			if visited[int(n)] {
				continue
			}
			visited[int(n)] = true
			d := squaredL2(query, h.Vectors[n])
			if results.Len() < ef || d < (*results)[0].dist {
				next := neighbor{pos: int(n), dist: d}
				heap.Push(candidates, next)
				heap.Push(results, next)
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]neighbor, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(neighbor)
	}
	return out
}

// Search descends from the entry point and beam-searches layer 0, returning up
// to k nearest neighbors by ascending distance.
func (h *HNSWIndex) Search(query []float32, k int) ([]float32, []int, error) {
	if len(query) != h.Dimension {
		return nil, nil, ErrDimensionMismatch
	}
	if k <= 0 || len(h.Vectors) == 0 {
		return nil, nil, nil
	}
	ep := h.EntryPoint
	epDist := squaredL2(query, h.Vectors[ep])
	for layer := h.MaxLevel; layer > 0; layer-- {
		ep, epDist = h.greedyDescend(query, ep, epDist, layer)
	}
	ef := h.EfSearch
	if ef < k {
		ef = k
	}
	found := h.searchLayer(query, ep, ef, 0)
	distances, positions := topK(found, k)
	return distances, positions, nil
}

type hnswMinHeap []neighbor

func (q hnswMinHeap) Len() int           { return len(q) }
func (q hnswMinHeap) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q hnswMinHeap) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *hnswMinHeap) Push(x any)        { *q = append(*q, x.(neighbor)) }
func (q *hnswMinHeap) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

type hnswMaxHeap []neighbor

func (q hnswMaxHeap) Len() int           { return len(q) }
func (q hnswMaxHeap) Less(i, j int) bool { return q[i].dist > q[j].dist }
func (q hnswMaxHeap) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *hnswMaxHeap) Push(x any)        { *q = append(*q, x.(neighbor)) }
func (q *hnswMaxHeap) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

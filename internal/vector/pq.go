package vector

import "fmt"

// Product quantization parameters. Each vector is split into pqSubspaces
// sub-vectors, each encoded as the index of its nearest codebook centroid.
// With 8 bits per code a vector compresses to pqSubspaces bytes.
const (
	pqSubspaces       = 8
	pqBitsPerCode     = 8
	pqCentroidsPerSub = 1 << pqBitsPerCode
	pqTrainIterCap    = 5000 // cap on per-subspace training sample count
)

// IVFPQIndex is an inverted-file index whose list entries are product-quantized
// residuals instead of full vectors: memory drops by dim*4/pqSubspaces at some
// recall cost. Distances are approximated with per-subspace lookup tables.
// Fields are exported for gob persistence.
type IVFPQIndex struct {
	Dimension int
	NList     int
	NProbe    int
	IsTrained bool
	Centroids [][]float32
	// Codebooks[s][j] is centroid j of subspace s, learned on residuals.
	Codebooks [][][]float32
	// ListCodes[c][i] is the pqSubspaces-byte code of the i-th entry in
	// cluster c; ListPositions holds the matching global positions.
	ListPositions [][]int32
	ListCodes     [][][]byte
	Count         int
}

// NewIVFPQIndex creates an untrained IVF-PQ index. The dimension must divide
// evenly into the fixed subspace count.
func NewIVFPQIndex(dim, nlist int) (*IVFPQIndex, error) {
	if nlist <= 0 {
		return nil, fmt.Errorf("vector: nlist must be positive, got %d", nlist)
	}
	if dim%pqSubspaces != 0 {
		return nil, fmt.Errorf("vector: dimension %d is not divisible by %d subspaces", dim, pqSubspaces)
	}
	return &IVFPQIndex{
		Dimension: dim,
		NList:     nlist,
		NProbe:    DefaultNProbe,
	}, nil
}

func (idx *IVFPQIndex) subDim() int { return idx.Dimension / pqSubspaces }

// Dim returns the configured vector dimension.
func (idx *IVFPQIndex) Dim() int { return idx.Dimension }

// Ntotal returns the number of stored vectors.
func (idx *IVFPQIndex) Ntotal() int { return idx.Count }

// NeedsTraining returns true; both the coarse quantizer and the codebooks are learned.
func (idx *IVFPQIndex) NeedsTraining() bool { return true }

// Trained reports whether centroids and codebooks have been trained.
func (idx *IVFPQIndex) Trained() bool { return idx.IsTrained }

// Train learns coarse centroids, then per-subspace codebooks on the residuals
// (vector minus its coarse centroid). A second call is a no-op.
func (idx *IVFPQIndex) Train(vectors [][]float32) error {
	if idx.IsTrained {
		return nil
	}
	if len(vectors) == 0 {
		return fmt.Errorf("vector: cannot train on an empty batch")
	}
	if err := validateDims(vectors, idx.Dimension); err != nil {
		return err
	}
	nlist := idx.NList
	if len(vectors) < nlist {
		nlist = len(vectors)
	}
	idx.Centroids = kMeans(vectors, nlist)

	residuals := make([][]float32, len(vectors))
	for i, v := range vectors {
		c, _ := nearestCentroid(v, idx.Centroids)
		residuals[i] = subtract(v, idx.Centroids[c])
	}
	if len(residuals) > pqTrainIterCap {
		residuals = residuals[:pqTrainIterCap]
	}

	sub := idx.subDim()
	idx.Codebooks = make([][][]float32, pqSubspaces)
	for s := 0; s < pqSubspaces; s++ {
		slice := make([][]float32, len(residuals))
		for i, r := range residuals {
			slice[i] = r[s*sub : (s+1)*sub]
		}
		k := pqCentroidsPerSub
		if len(slice) < k {
			k = len(slice)
		}
		idx.Codebooks[s] = kMeans(slice, k)
	}

	idx.ListPositions = make([][]int32, len(idx.Centroids))
	idx.ListCodes = make([][][]byte, len(idx.Centroids))
	idx.IsTrained = true
	return nil
}

// Add encodes each vector's residual and stores the code in the nearest cluster.
func (idx *IVFPQIndex) Add(vectors [][]float32) error {
	if !idx.IsTrained {
		return ErrNotTrained
	}
	if err := validateDims(vectors, idx.Dimension); err != nil {
		return err
	}
	sub := idx.subDim()
	for _, v := range vectors {
		c, _ := nearestCentroid(v, idx.Centroids)
		residual := subtract(v, idx.Centroids[c])
		code := make([]byte, pqSubspaces)
		for s := 0; s < pqSubspaces; s++ {
			j, _ := nearestCentroid(residual[s*sub:(s+1)*sub], idx.Codebooks[s])
			code[s] = byte(j)
		}
		idx.ListPositions[c] = append(idx.ListPositions[c], int32(idx.Count))
		idx.ListCodes[c] = append(idx.ListCodes[c], code)
		idx.Count++
	}
	return nil
}

// Search probes the NProbe nearest clusters and ranks entries by asymmetric
// distance: per cluster, a lookup table of squared distances between the query
// residual and every codebook centroid is built once, then each entry's
// distance is the sum of its per-subspace table cells.
func (idx *IVFPQIndex) Search(query []float32, k int) ([]float32, []int, error) {
	if len(query) != idx.Dimension {
		return nil, nil, ErrDimensionMismatch
	}
	if !idx.IsTrained || k <= 0 || idx.Count == 0 {
		return nil, nil, nil
	}
	nprobe := idx.NProbe
	if nprobe <= 0 {
		nprobe = DefaultNProbe
	}
	if nprobe > len(idx.Centroids) {
		nprobe = len(idx.Centroids)
	}
	sub := idx.subDim()
	var candidates []neighbor
	for _, c := range nearestCentroids(query, idx.Centroids, nprobe) {
		if len(idx.ListCodes[c]) == 0 {
			continue
		}
		residual := subtract(query, idx.Centroids[c])
		table := make([][]float32, pqSubspaces)
		for s := 0; s < pqSubspaces; s++ {
			qs := residual[s*sub : (s+1)*sub]
			table[s] = make([]float32, len(idx.Codebooks[s]))
			for j, centroid := range idx.Codebooks[s] {
				table[s][j] = squaredL2(qs, centroid)
			}
		}
		for i, code := range idx.ListCodes[c] {
			var dist float32
			for s := 0; s < pqSubspaces; s++ {
				dist += table[s][code[s]]
			}
			candidates = append(candidates, neighbor{
				pos:  int(idx.ListPositions[c][i]),
				dist: dist,
			})
		}
	}
	distances, positions := topK(candidates, k)
	return distances, positions, nil
}

func subtract(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

package vector

import "fmt"

// DefaultNProbe is the number of coarse clusters scanned per query.
const DefaultNProbe = 10

// IVFFlatIndex partitions vectors into NList coarse clusters learned by
// k-means. A query only scans the NProbe nearest clusters, trading recall for
// speed. Requires one-time training before vectors can be added.
// Fields are exported for gob persistence.
type IVFFlatIndex struct {
	Dimension int
	NList     int
	NProbe    int
	IsTrained bool
	Centroids [][]float32
	// ListPositions[c][i] is the global insertion position of the i-th vector
	// assigned to cluster c; ListVectors holds the vectors in the same order.
	ListPositions [][]int32
	ListVectors   [][][]float32
	Count         int
}

// NewIVFFlatIndex creates an untrained IVF flat index.
func NewIVFFlatIndex(dim, nlist int) (*IVFFlatIndex, error) {
	if nlist <= 0 {
		return nil, fmt.Errorf("vector: nlist must be positive, got %d", nlist)
	}
	return &IVFFlatIndex{
		Dimension: dim,
		NList:     nlist,
		NProbe:    DefaultNProbe,
	}, nil
}

// Dim returns the configured vector dimension.
func (idx *IVFFlatIndex) Dim() int { return idx.Dimension }

// Ntotal returns the number of stored vectors.
func (idx *IVFFlatIndex) Ntotal() int { return idx.Count }

// NeedsTraining returns true; IVF indexes learn coarse centroids first.
func (idx *IVFFlatIndex) NeedsTraining() bool { return true }

// Trained reports whether the coarse quantizer has been trained.
func (idx *IVFFlatIndex) Trained() bool { return idx.IsTrained }

// Train learns the coarse centroids from the given batch. A second call is a
// no-op: adds never retrain. When the batch holds fewer than NList vectors the
// effective cluster count is reduced instead of failing.
func (idx *IVFFlatIndex) Train(vectors [][]float32) error {
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
	idx.ListPositions = make([][]int32, len(idx.Centroids))
	idx.ListVectors = make([][][]float32, len(idx.Centroids))
	idx.IsTrained = true
	return nil
}

// Add assigns each vector to its nearest coarse cluster.
func (idx *IVFFlatIndex) Add(vectors [][]float32) error {
	if !idx.IsTrained {
		return ErrNotTrained
	}
	if err := validateDims(vectors, idx.Dimension); err != nil {
		return err
	}
	for _, v := range vectors {
		c, _ := nearestCentroid(v, idx.Centroids)
		idx.ListPositions[c] = append(idx.ListPositions[c], int32(idx.Count))
		idx.ListVectors[c] = append(idx.ListVectors[c], cloneVector(v))
		idx.Count++
	}
	return nil
}

// Search scans the NProbe nearest clusters and returns up to k nearest
// neighbors by ascending squared L2 distance. May return fewer than k when the
// probed clusters hold fewer vectors.
func (idx *IVFFlatIndex) Search(query []float32, k int) ([]float32, []int, error) {
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
	var candidates []neighbor
	for _, c := range nearestCentroids(query, idx.Centroids, nprobe) {
		for i, v := range idx.ListVectors[c] {
			candidates = append(candidates, neighbor{
				pos:  int(idx.ListPositions[c][i]),
				dist: squaredL2(query, v),
			})
		}
	}
	distances, positions := topK(candidates, k)
	return distances, positions, nil
}

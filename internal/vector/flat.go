package vector

// FlatIndex is an exact L2 index that scans every stored vector. No training
// step; suitable for small corpora where exact results matter more than speed.
// Fields are exported for gob persistence.
type FlatIndex struct {
	Dimension int
	Vectors   [][]float32
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{Dimension: dim}
}

// Dim returns the configured vector dimension.
func (f *FlatIndex) Dim() int { return f.Dimension }

// Ntotal returns the number of stored vectors.
func (f *FlatIndex) Ntotal() int { return len(f.Vectors) }

// NeedsTraining returns false; flat indexes are always ready.
func (f *FlatIndex) NeedsTraining() bool { return false }

// Trained returns true; flat indexes have no training step.
func (f *FlatIndex) Trained() bool { return true }

// Train is a no-op for flat indexes.
func (f *FlatIndex) Train(vectors [][]float32) error { return nil }

// Add appends vectors to the index.
func (f *FlatIndex) Add(vectors [][]float32) error {
	if err := validateDims(vectors, f.Dimension); err != nil {
		return err
	}
	f.Vectors = append(f.Vectors, copyVectors(vectors)...)
	return nil
}

// Search scans all vectors and returns up to k nearest by squared L2 distance.
func (f *FlatIndex) Search(query []float32, k int) ([]float32, []int, error) {
	if len(query) != f.Dimension {
		return nil, nil, ErrDimensionMismatch
	}
	if k <= 0 || len(f.Vectors) == 0 {
		return nil, nil, nil
	}
	candidates := make([]neighbor, len(f.Vectors))
	for i, v := range f.Vectors {
		candidates[i] = neighbor{pos: i, dist: squaredL2(query, v)}
	}
	distances, positions := topK(candidates, k)
	return distances, positions, nil
}

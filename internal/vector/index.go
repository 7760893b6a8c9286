// Package vector provides nearest-neighbor index implementations for embedding
// search: exact flat scan, inverted-file (IVF) with optional product
// quantization, and an HNSW graph. Indexes are not safe for concurrent use;
// the database layer serializes access.
package vector

import (
	"errors"
	"fmt"
)

// Sentinel errors for index operations. Use errors.Is() to check error types.
var (
	// ErrUnsupportedIndexType indicates an unrecognized index type string.
	ErrUnsupportedIndexType = errors.New("vector: unsupported index type")

	// ErrDimensionMismatch indicates a vector width different from the index dimension.
	ErrDimensionMismatch = errors.New("vector: dimension mismatch")

	// ErrNotTrained indicates an add or search on a partitioned index before training.
	ErrNotTrained = errors.New("vector: index is not trained")
)

// Index types recognized by New.
const (
	TypeFlat    = "flat"
	TypeIVFFlat = "ivfflat"
	TypeIVFPQ   = "ivfpq"
	TypeHNSW    = "hnsw"
)

// Index is a nearest-neighbor structure over fixed-dimension vectors.
// Positions returned by Search are insertion order (0-based) and never
// reordered, so position i always refers to the i-th vector added.
type Index interface {
	// Dim returns the configured vector dimension.
	Dim() int
	// Ntotal returns the number of stored vectors.
	Ntotal() int
	// NeedsTraining reports whether the index type has a training step.
	NeedsTraining() bool
	// Trained reports whether the index is ready to accept vectors.
	// Always true for types without a training step.
	Trained() bool
	// Train learns the index structure from the given vectors. No-op when the
	// index does not need training or is already trained.
	Train(vectors [][]float32) error
	// Add appends vectors in order. Fails with ErrDimensionMismatch when a
	// vector width differs from Dim, and ErrNotTrained when training is pending.
	Add(vectors [][]float32) error
	// Search returns up to k nearest neighbors by ascending squared L2
	// distance. An empty index returns empty results without error.
	Search(query []float32, k int) (distances []float32, positions []int, err error)
}

// New creates an index of the given type. nlist is only meaningful for the
// partitioned types (ivfflat, ivfpq).
func New(indexType string, dim, nlist int) (Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector: dimension must be positive, got %d", dim)
	}
	switch indexType {
	case TypeFlat:
		return NewFlatIndex(dim), nil
	case TypeIVFFlat:
		return NewIVFFlatIndex(dim, nlist)
	case TypeIVFPQ:
		return NewIVFPQIndex(dim, nlist)
	case TypeHNSW:
		return NewHNSWIndex(dim), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedIndexType, indexType)
	}
}

// MinRecommendedTrainSize returns the recommended minimum number of training
// vectors for stable clustering with nlist coarse centroids.
func MinRecommendedTrainSize(nlist int) int {
	return nlist * 39
}

// validateDims checks that every vector has the expected width.
func validateDims(vectors [][]float32, dim int) error {
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has width %d, index expects %d",
				ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}

// copyVectors deep-copies a batch so callers cannot mutate stored vectors.
func copyVectors(vectors [][]float32) [][]float32 {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		c := make([]float32, len(v))
		copy(c, v)
		out[i] = c
	}
	return out
}

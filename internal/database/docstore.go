// Package database provides the vector database: document storage, similarity
// search with thresholding, context assembly, and persistence.
package database

import (
	"errors"
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrIndexOutOfRange indicates a positional lookup beyond the store size.
var ErrIndexOutOfRange = errors.New("database: position out of range")

// DocumentStore holds document text, metadata, and stable integer IDs in
// parallel slices aligned positionally with the vector index. IDs come from a
// global monotonic counter and are never reused. No update or delete.
type DocumentStore struct {
	documents []string
	metadata  []models.Metadata
	ids       []int64
	nextID    int64
}

// NewDocumentStore returns an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{}
}

// Append stores documents and assigns each the next sequential ID. Metadata
// shorter than the batch is padded with {id} defaults; extra entries are
// ignored. Every stored metadata map carries the assigned ID under "id".
// Returns the assigned IDs in order.
func (s *DocumentStore) Append(documents []string, metadata []models.Metadata) []int64 {
	assigned := make([]int64, len(documents))
	for i, doc := range documents {
		id := s.nextID
		s.nextID++
		assigned[i] = id

		var meta models.Metadata
		if i < len(metadata) && metadata[i] != nil {
			meta = make(models.Metadata, len(metadata[i])+1)
			for k, v := range metadata[i] {
				meta[k] = v
			}
		} else {
			meta = make(models.Metadata, 1)
		}
		meta["id"] = id

		s.documents = append(s.documents, doc)
		s.metadata = append(s.metadata, meta)
		s.ids = append(s.ids, id)
	}
	return assigned
}

// Get returns the document, metadata, and ID at the given position.
func (s *DocumentStore) Get(position int) (string, models.Metadata, int64, error) {
	if position < 0 || position >= len(s.documents) {
		return "", nil, 0, fmt.Errorf("%w: %d (size %d)", ErrIndexOutOfRange, position, len(s.documents))
	}
	return s.documents[position], s.metadata[position], s.ids[position], nil
}

// Len returns the number of stored documents.
func (s *DocumentStore) Len() int { return len(s.documents) }

// NextID returns the next ID the store will assign.
func (s *DocumentStore) NextID() int64 { return s.nextID }

// restore replaces the store contents from persisted state.
func (s *DocumentStore) restore(documents []string, metadata []models.Metadata, ids []int64, nextID int64) {
	s.documents = documents
	s.metadata = metadata
	s.ids = ids
	s.nextID = nextID
}

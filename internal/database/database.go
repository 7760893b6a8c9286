package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// ErrWritesFrozen indicates the database detected positional misalignment
// between the index and the document store and refuses further writes until
// reloaded from durable state.
var ErrWritesFrozen = errors.New("database: writes frozen after consistency fault, reload from disk")

// maxDocumentContextLen is the per-document cap applied during context assembly.
const maxDocumentContextLen = 500

// VectorDatabase coordinates a vector index and a document store. The two are
// appended in lockstep: vector at position i and document at position i always
// describe the same entry. Writers take the exclusive lock; searches share a
// read lock. Embeddings must be computed before calling into the database so
// slow model calls never run under the lock.
type VectorDatabase struct {
	mu sync.RWMutex

	dim       int
	nlist     int
	nprobe    int
	indexType string

	index vector.Index
	store *DocumentStore
	// embeddings mirrors the index contents; kept for potential re-training,
	// never used for search.
	embeddings [][]float32

	frozen bool
	logger *zap.Logger
}

// New creates an empty vector database. The index itself is created lazily on
// the first AddEmbeddings call. Unknown index types are rejected immediately.
func New(dim, nlist, nprobe int, indexType string, logger *zap.Logger) (*VectorDatabase, error) {
	switch indexType {
	case vector.TypeFlat, vector.TypeIVFFlat, vector.TypeIVFPQ, vector.TypeHNSW:
	default:
		return nil, fmt.Errorf("%w: %q", vector.ErrUnsupportedIndexType, indexType)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("database: dimension must be positive, got %d", dim)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db := &VectorDatabase{
		dim:       dim,
		nlist:     nlist,
		nprobe:    nprobe,
		indexType: indexType,
		store:     NewDocumentStore(),
		logger:    logger,
	}
	db.logger.Info("vector database initialized",
		zap.Int("dim", dim), zap.Int("nlist", nlist), zap.String("index_type", indexType))
	return db, nil
}

// Similarity converts a squared L2 distance to a similarity in (0, 1].
func Similarity(distance float32) float64 {
	return 1.0 / (1.0 + float64(distance))
}

// createIndex builds the configured index type. Caller holds the write lock.
func (db *VectorDatabase) createIndex() error {
	idx, err := vector.New(db.indexType, db.dim, db.nlist)
	if err != nil {
		return err
	}
	db.applyNProbe(idx)
	db.index = idx
	db.logger.Info("created index", zap.String("index_type", db.indexType))
	return nil
}

func (db *VectorDatabase) applyNProbe(idx vector.Index) {
	if db.nprobe <= 0 {
		return
	}
	switch concrete := idx.(type) {
	case *vector.IVFFlatIndex:
		concrete.NProbe = db.nprobe
	case *vector.IVFPQIndex:
		concrete.NProbe = db.nprobe
	}
}

// AddEmbeddings appends vectors and their documents as a paired unit. The
// index is created lazily and trained on the first batch when the type needs
// it. All inputs are validated before either structure is touched, so a commit
// never leaves the index and the store misaligned; if it ever does, writes
// freeze until the database is reloaded.
func (db *VectorDatabase) AddEmbeddings(embeddings [][]float32, documents []string, metadata []models.Metadata) ([]int64, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if len(embeddings) != len(documents) {
		return nil, fmt.Errorf("database: %d embeddings for %d documents", len(embeddings), len(documents))
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.frozen {
		return nil, ErrWritesFrozen
	}
	// Stage: validate everything up front so the paired append cannot fail
	// halfway through.
	for i, emb := range embeddings {
		if len(emb) != db.dim {
			return nil, fmt.Errorf("%w: embedding %d has width %d, expected %d",
				vector.ErrDimensionMismatch, i, len(emb), db.dim)
		}
	}

	if db.index == nil {
		if err := db.createIndex(); err != nil {
			return nil, err
		}
	}
	if db.index.NeedsTraining() && !db.index.Trained() {
		if min := vector.MinRecommendedTrainSize(db.nlist); len(embeddings) < min {
			db.logger.Warn("training batch smaller than recommended",
				zap.Int("batch", len(embeddings)), zap.Int("recommended", min))
		}
		db.logger.Info("training index", zap.Int("samples", len(embeddings)))
		if err := db.index.Train(embeddings); err != nil {
			return nil, fmt.Errorf("train index: %w", err)
		}
	}

	// Commit.
	if err := db.index.Add(embeddings); err != nil {
		return nil, fmt.Errorf("add vectors: %w", err)
	}
	ids := db.store.Append(documents, metadata)
	for _, emb := range embeddings {
		c := make([]float32, len(emb))
		copy(c, emb)
		db.embeddings = append(db.embeddings, c)
	}

	if err := db.checkAlignment(); err != nil {
		return nil, err
	}
	db.logger.Info("added documents",
		zap.Int("count", len(documents)), zap.Int("total", db.store.Len()))
	return ids, nil
}

// checkAlignment verifies the positional invariant after a mutation. Caller
// holds the write lock.
func (db *VectorDatabase) checkAlignment() error {
	total := 0
	if db.index != nil {
		total = db.index.Ntotal()
	}
	if total != db.store.Len() || total != len(db.embeddings) {
		db.frozen = true
		db.logger.Error("index and document store misaligned, freezing writes",
			zap.Int("vectors", total),
			zap.Int("documents", db.store.Len()),
			zap.Int("cached_embeddings", len(db.embeddings)))
		return fmt.Errorf("%w: %d vectors vs %d documents", ErrWritesFrozen, total, db.store.Len())
	}
	return nil
}

// SearchResult holds one retrieved document with its distance and similarity.
type SearchResult struct {
	Distance   float32
	Similarity float64
	ID         int64
	Document   string
	Metadata   models.Metadata
}

// Search returns up to k nearest documents by ascending distance. Candidates
// below the similarity threshold (when non-nil) and sentinel positions are
// discarded. An empty or uninitialized database returns an empty slice.
func (db *VectorDatabase) Search(query []float32, k int, threshold *float64) ([]SearchResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.searchLocked(query, k, threshold)
}

func (db *VectorDatabase) searchLocked(query []float32, k int, threshold *float64) ([]SearchResult, error) {
	if db.index == nil || db.index.Ntotal() == 0 {
		return []SearchResult{}, nil
	}
	if k > db.index.Ntotal() {
		k = db.index.Ntotal()
	}
	distances, positions, err := db.index.Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	results := make([]SearchResult, 0, len(positions))
	for i, pos := range positions {
		// Sentinel position from the index when fewer than k true neighbors exist.
		if pos < 0 {
			continue
		}
		sim := Similarity(distances[i])
		if threshold != nil && sim < *threshold {
			continue
		}
		doc, meta, id, err := db.store.Get(pos)
		if err != nil {
			return nil, fmt.Errorf("document lookup for position %d: %w", pos, err)
		}
		results = append(results, SearchResult{
			Distance:   distances[i],
			Similarity: sim,
			ID:         id,
			Document:   doc,
			Metadata:   meta,
		})
	}
	return results, nil
}

// GetContext retrieves up to k documents (no threshold) and assembles them
// into a prompt context. Each document is formatted as
// "[similarity: 0.123] text" with long documents truncated to 500 characters,
// parts joined by blank lines. Assembly stops at the first document that would
// push the running total past maxLength; that document is dropped entirely.
func (db *VectorDatabase) GetContext(query []float32, k int, maxLength int) (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	results, err := db.searchLocked(query, k, nil)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}

	var parts []string
	total := 0
	for _, r := range results {
		doc := utils.Truncate(r.Document, maxDocumentContextLen)
		part := fmt.Sprintf("[similarity: %.3f] %s", r.Similarity, doc)
		if total+len(part) > maxLength {
			break
		}
		parts = append(parts, part)
		total += len(part)
	}

	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n\n"
		}
		out += p
	}
	return out, nil
}

// Save persists the index to <path>.idx and the documents, metadata, IDs,
// counter, config, and embeddings cache to <path>_data.db. Save errors
// propagate; there is no partial tolerance on the write side.
func (db *VectorDatabase) Save(path string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	if db.index != nil {
		f, err := os.Create(path + ".idx")
		if err != nil {
			return fmt.Errorf("create index file: %w", err)
		}
		if err := vector.WriteIndex(f, db.index); err != nil {
			_ = f.Close()
			return fmt.Errorf("write index: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close index file: %w", err)
		}
	}

	snap := &dataSnapshot{
		Documents:  db.store.documents,
		Metadata:   db.store.metadata,
		IDs:        db.store.ids,
		NextID:     db.store.nextID,
		Dim:        db.dim,
		NList:      db.nlist,
		IndexType:  db.indexType,
		Embeddings: db.embeddings,
	}
	if err := saveData(path+dataFileSuffix, snap); err != nil {
		return err
	}
	db.logger.Info("vector database saved", zap.String("path", path))
	return nil
}

// Load restores state saved by Save. The two files are independent: a missing
// index file leaves the index unset with a warning, a missing data file leaves
// the document store empty with a warning. Corrupt files are errors.
func (db *VectorDatabase) Load(path string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	indexPath := path + ".idx"
	if f, err := os.Open(indexPath); err == nil {
		idx, rerr := vector.ReadIndex(f)
		_ = f.Close()
		if rerr != nil {
			return fmt.Errorf("read index: %w", rerr)
		}
		db.applyNProbe(idx)
		db.index = idx
	} else if os.IsNotExist(err) {
		db.logger.Warn("index file does not exist", zap.String("path", indexPath))
		db.index = nil
	} else {
		return fmt.Errorf("open index file: %w", err)
	}

	dataPath := path + dataFileSuffix
	if _, err := os.Stat(dataPath); os.IsNotExist(err) {
		db.logger.Warn("data file does not exist", zap.String("path", dataPath))
	} else {
		snap, err := loadData(dataPath)
		if err != nil {
			return fmt.Errorf("load data: %w", err)
		}
		db.store.restore(snap.Documents, snap.Metadata, snap.IDs, snap.NextID)
		db.dim = snap.Dim
		db.nlist = snap.NList
		db.indexType = snap.IndexType
		db.embeddings = snap.Embeddings
		db.logger.Info("vector database loaded", zap.Int("documents", db.store.Len()))
	}

	db.frozen = false
	return nil
}

// Stats returns the current database statistics.
func (db *VectorDatabase) Stats() models.Stats {
	db.mu.RLock()
	defer db.mu.RUnlock()

	total := 0
	if db.index != nil {
		total = db.index.Ntotal()
	}
	return models.Stats{
		TotalDocuments: db.store.Len(),
		TotalVectors:   total,
		Dimension:      db.dim,
		IndexType:      db.indexType,
		NList:          db.nlist,
	}
}

// Dimension returns the configured embedding dimension.
func (db *VectorDatabase) Dimension() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.dim
}

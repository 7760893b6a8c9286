package database

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// axisVectors builds n orthogonal-ish test vectors of width dim: vector i has
// value 1 at position i%dim and i/1000 elsewhere to keep them distinct.
func axisVectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		v[i%dim] = 1
		v[(i+1)%dim] = float32(i) * 0.001
		out[i] = v
	}
	return out
}

func newTestDB(t *testing.T) *VectorDatabase {
	t.Helper()
	db, err := New(4, 2, 2, vector.TypeFlat, nil)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New(4, 2, 2, "annoy", nil)
	if !errors.Is(err, vector.ErrUnsupportedIndexType) {
		t.Fatalf("expected ErrUnsupportedIndexType, got %v", err)
	}
}

func TestSimilarity(t *testing.T) {
	if s := Similarity(0); s != 1.0 {
		t.Errorf("Similarity(0)=%f", s)
	}
	if s := Similarity(1); s != 0.5 {
		t.Errorf("Similarity(1)=%f", s)
	}
	if s := Similarity(9); math.Abs(s-0.1) > 1e-9 {
		t.Errorf("Similarity(9)=%f", s)
	}
}

func TestAddEmbeddings_AssignsIDs(t *testing.T) {
	db := newTestDB(t)
	vecs := axisVectors(3, 4)
	ids, err := db.AddEmbeddings(vecs, []string{"a", "b", "c"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != 0 || ids[2] != 2 {
		t.Errorf("ids=%v", ids)
	}
	stats := db.Stats()
	if stats.TotalDocuments != 3 || stats.TotalVectors != 3 {
		t.Errorf("stats=%+v", stats)
	}
}

func TestAddEmbeddings_CountMismatch(t *testing.T) {
	db := newTestDB(t)
	_, err := db.AddEmbeddings(axisVectors(2, 4), []string{"a"}, nil)
	if err == nil {
		t.Fatal("expected error for mismatched counts")
	}
}

func TestAddEmbeddings_DimensionMismatch(t *testing.T) {
	db := newTestDB(t)
	_, err := db.AddEmbeddings([][]float32{{1, 2}}, []string{"a"}, nil)
	if !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	// The failed batch must not leave partial state behind.
	stats := db.Stats()
	if stats.TotalDocuments != 0 || stats.TotalVectors != 0 {
		t.Errorf("partial state after failed add: %+v", stats)
	}
}

func TestSearch_Empty(t *testing.T) {
	db := newTestDB(t)
	results, err := db.Search([]float32{1, 0, 0, 0}, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearch_OrderAndPairing(t *testing.T) {
	db := newTestDB(t)
	vecs := axisVectors(4, 4)
	docs := []string{"doc0", "doc1", "doc2", "doc3"}
	if _, err := db.AddEmbeddings(vecs, docs, nil); err != nil {
		t.Fatal(err)
	}

	results, err := db.Search(vecs[2], 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Document != "doc2" || results[0].ID != 2 {
		t.Errorf("top result %+v", results[0])
	}
	if results[0].Distance != 0 || results[0].Similarity != 1 {
		t.Errorf("exact match distance=%f similarity=%f", results[0].Distance, results[0].Similarity)
	}
	if results[1].Distance < results[0].Distance {
		t.Errorf("results not ascending by distance")
	}
}

func TestSearch_KClampedToSize(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.AddEmbeddings(axisVectors(2, 4), []string{"a", "b"}, nil); err != nil {
		t.Fatal(err)
	}
	results, err := db.Search([]float32{1, 0, 0, 0}, 50, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestSearch_Threshold(t *testing.T) {
	db := newTestDB(t)
	vecs := [][]float32{
		{1, 0, 0, 0},
		{5, 5, 5, 5}, // far away, similarity well below 0.5
	}
	if _, err := db.AddEmbeddings(vecs, []string{"near", "far"}, nil); err != nil {
		t.Fatal(err)
	}

	half := 0.5
	results, err := db.Search([]float32{1, 0, 0, 0}, 2, &half)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Document != "near" {
		t.Errorf("threshold filtering failed: %+v", results)
	}

	// Explicit zero threshold keeps everything.
	zero := 0.0
	results, err = db.Search([]float32{1, 0, 0, 0}, 2, &zero)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("zero threshold should keep all, got %d", len(results))
	}
}

func TestGetContext_Format(t *testing.T) {
	db := newTestDB(t)
	vecs := axisVectors(2, 4)
	if _, err := db.AddEmbeddings(vecs, []string{"first doc", "second doc"}, nil); err != nil {
		t.Fatal(err)
	}

	ctx, err := db.GetContext(vecs[0], 2, 2000)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ctx, "[similarity: 1.000] first doc") {
		t.Errorf("context=%q", ctx)
	}
	parts := strings.Split(ctx, "\n\n")
	if len(parts) != 2 {
		t.Errorf("expected 2 parts, got %d: %q", len(parts), ctx)
	}
}

func TestGetContext_LengthBound(t *testing.T) {
	db := newTestDB(t)
	long := strings.Repeat("x", 400)
	vecs := axisVectors(3, 4)
	if _, err := db.AddEmbeddings(vecs, []string{long, long, long}, nil); err != nil {
		t.Fatal(err)
	}

	maxLength := 500
	ctx, err := db.GetContext(vecs[0], 3, maxLength)
	if err != nil {
		t.Fatal(err)
	}
	// One 400-char doc fits; adding a second would exceed the budget.
	if len(ctx) > maxLength {
		t.Errorf("context length %d exceeds %d", len(ctx), maxLength)
	}
	if !strings.Contains(ctx, long) {
		t.Error("first document missing from context")
	}
}

func TestGetContext_TruncatesLongDocuments(t *testing.T) {
	db := newTestDB(t)
	long := strings.Repeat("y", 900)
	vecs := axisVectors(1, 4)
	if _, err := db.AddEmbeddings(vecs, []string{long}, nil); err != nil {
		t.Fatal(err)
	}
	ctx, err := db.GetContext(vecs[0], 1, 5000)
	if err != nil {
		t.Fatal(err)
	}
	const prefix = "[similarity: 1.000] "
	if !strings.HasPrefix(ctx, prefix) {
		t.Fatalf("unexpected context prefix: %q", ctx[:20])
	}
	doc := strings.TrimPrefix(ctx, prefix)
	if strings.Count(doc, "y") != 500 {
		t.Errorf("document not truncated to 500 chars: len=%d", len(doc))
	}
	if !strings.HasSuffix(ctx, "...") {
		t.Errorf("truncated document should end with ellipsis: %q", ctx[len(ctx)-10:])
	}
}

func TestGetContext_Empty(t *testing.T) {
	db := newTestDB(t)
	ctx, err := db.GetContext([]float32{1, 0, 0, 0}, 3, 2000)
	if err != nil {
		t.Fatal(err)
	}
	if ctx != "" {
		t.Errorf("expected empty context, got %q", ctx)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vector_db")

	db := newTestDB(t)
	vecs := axisVectors(3, 4)
	meta := []models.Metadata{{"source": "s0"}, {"source": "s1"}, {"source": "s2"}}
	if _, err := db.AddEmbeddings(vecs, []string{"a", "b", "c"}, meta); err != nil {
		t.Fatal(err)
	}
	if err := db.Save(path); err != nil {
		t.Fatal(err)
	}

	restored, err := New(4, 2, 2, vector.TypeFlat, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := restored.Load(path); err != nil {
		t.Fatal(err)
	}

	stats := restored.Stats()
	if stats.TotalDocuments != 3 || stats.TotalVectors != 3 {
		t.Fatalf("stats after load: %+v", stats)
	}

	results, err := restored.Search(vecs[1], 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Document != "b" || results[0].ID != 1 {
		t.Errorf("search after load: %+v", results)
	}
	if results[0].Metadata["source"] != "s1" {
		t.Errorf("metadata after load: %v", results[0].Metadata)
	}

	// New writes continue the ID sequence from the loaded counter.
	ids, err := restored.AddEmbeddings(axisVectors(1, 4), []string{"d"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ids[0] != 3 {
		t.Errorf("expected id 3 after load, got %d", ids[0])
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	db := newTestDB(t)
	// Nothing saved at this path: Load warns and leaves the database empty.
	if err := db.Load(filepath.Join(t.TempDir(), "nothing")); err != nil {
		t.Fatal(err)
	}
	stats := db.Stats()
	if stats.TotalDocuments != 0 || stats.TotalVectors != 0 {
		t.Errorf("stats after empty load: %+v", stats)
	}
}

func TestSaveLoad_IVFFlat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vector_db")

	db, err := New(4, 2, 2, vector.TypeIVFFlat, nil)
	if err != nil {
		t.Fatal(err)
	}
	vecs := axisVectors(20, 4)
	docs := make([]string, 20)
	for i := range docs {
		docs[i] = strings.Repeat("d", i+1)
	}
	if _, err := db.AddEmbeddings(vecs, docs, nil); err != nil {
		t.Fatal(err)
	}
	if err := db.Save(path); err != nil {
		t.Fatal(err)
	}

	restored, err := New(4, 2, 2, vector.TypeIVFFlat, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := restored.Load(path); err != nil {
		t.Fatal(err)
	}

	want, err := db.Search(vecs[5], 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := restored.Search(vecs[5], 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("result count %d != %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Distance != want[i].Distance {
			t.Errorf("result %d differs after reload: %+v vs %+v", i, got[i], want[i])
		}
	}
}

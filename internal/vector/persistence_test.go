package vector

import (
	"bytes"
	"testing"
)

// roundTrip serializes idx and reads it back.
func roundTrip(t *testing.T, idx Index) Index {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteIndex(&buf, idx); err != nil {
		t.Fatal(err)
	}
	restored, err := ReadIndex(&buf)
	if err != nil {
		t.Fatal(err)
	}
	return restored
}

func TestWriteReadIndex_Flat(t *testing.T) {
	idx := NewFlatIndex(4)
	vecs := randomVectors(20, 4, 2)
	if err := idx.Add(vecs); err != nil {
		t.Fatal(err)
	}

	restored := roundTrip(t, idx)
	if restored.Ntotal() != 20 || restored.Dim() != 4 {
		t.Fatalf("Ntotal=%d Dim=%d", restored.Ntotal(), restored.Dim())
	}
	_, positions, err := restored.Search(vecs[7], 1)
	if err != nil {
		t.Fatal(err)
	}
	if positions[0] != 7 {
		t.Errorf("expected position 7, got %d", positions[0])
	}
}

func TestWriteReadIndex_IVFFlat(t *testing.T) {
	idx, _ := NewIVFFlatIndex(8, 4)
	vecs := randomVectors(100, 8, 5)
	if err := idx.Train(vecs); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(vecs); err != nil {
		t.Fatal(err)
	}

	restored := roundTrip(t, idx).(*IVFFlatIndex)
	if !restored.Trained() {
		t.Fatal("restored index lost training")
	}
	restored.NProbe = 4
	idx.NProbe = 4
	wantD, wantP, _ := idx.Search(vecs[3], 5)
	gotD, gotP, err := restored.Search(vecs[3], 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotP) != len(wantP) {
		t.Fatalf("result count %d != %d", len(gotP), len(wantP))
	}
	for i := range wantP {
		if gotP[i] != wantP[i] || gotD[i] != wantD[i] {
			t.Errorf("result %d differs after reload", i)
		}
	}
}

func TestWriteReadIndex_HNSW(t *testing.T) {
	idx := NewHNSWIndex(4)
	vecs := randomVectors(150, 4, 23)
	if err := idx.Add(vecs); err != nil {
		t.Fatal(err)
	}

	restored := roundTrip(t, idx).(*HNSWIndex)
	_, positions, err := restored.Search(vecs[50], 1)
	if err != nil {
		t.Fatal(err)
	}
	if positions[0] != 50 {
		t.Errorf("expected position 50, got %d", positions[0])
	}
	// The restored graph must keep accepting inserts (RNG is rebuilt on load).
	if err := restored.Add(randomVectors(10, 4, 24)); err != nil {
		t.Fatal(err)
	}
	if restored.Ntotal() != 160 {
		t.Errorf("Ntotal=%d", restored.Ntotal())
	}
}

func TestReadIndex_BadMagic(t *testing.T) {
	if _, err := ReadIndex(bytes.NewReader([]byte("not an index file"))); err == nil {
		t.Fatal("expected error for corrupt data")
	}
}

func TestTypeOf(t *testing.T) {
	if got := TypeOf(NewFlatIndex(2)); got != TypeFlat {
		t.Errorf("TypeOf flat=%q", got)
	}
	if got := TypeOf(NewHNSWIndex(2)); got != TypeHNSW {
		t.Errorf("TypeOf hnsw=%q", got)
	}
}

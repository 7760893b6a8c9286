package vector

import "testing"

func TestKMeans_SeparatedClusters(t *testing.T) {
	// Two well-separated blobs: each centroid must land inside one of them.
	var vecs [][]float32
	for i := 0; i < 20; i++ {
		vecs = append(vecs, []float32{float32(i) * 0.01, 0})
		vecs = append(vecs, []float32{10 + float32(i)*0.01, 10})
	}
	centroids := kMeans(vecs, 2)
	if len(centroids) != 2 {
		t.Fatalf("expected 2 centroids, got %d", len(centroids))
	}
	low, high := 0, 0
	for _, c := range centroids {
		if c[0] < 5 {
			low++
		} else {
			high++
		}
	}
	if low != 1 || high != 1 {
		t.Errorf("centroids not split across blobs: %v", centroids)
	}
}

func TestKMeans_Deterministic(t *testing.T) {
	vecs := randomVectors(100, 4, 9)
	a := kMeans(vecs, 4)
	b := kMeans(vecs, 4)
	for c := range a {
		for d := range a[c] {
			if a[c][d] != b[c][d] {
				t.Fatal("kMeans not deterministic for identical input")
			}
		}
	}
}

func TestKMeans_DuplicateVectors(t *testing.T) {
	vecs := [][]float32{{1, 1}, {1, 1}, {1, 1}}
	centroids := kMeans(vecs, 3)
	if len(centroids) != 3 {
		t.Fatalf("expected 3 centroids, got %d", len(centroids))
	}
}

func TestNearestCentroid(t *testing.T) {
	centroids := [][]float32{{0, 0}, {10, 10}}
	c, dist := nearestCentroid([]float32{1, 1}, centroids)
	if c != 0 {
		t.Errorf("expected centroid 0, got %d", c)
	}
	if dist != 2 {
		t.Errorf("expected distance 2, got %f", dist)
	}
}

func TestNearestCentroids_Order(t *testing.T) {
	centroids := [][]float32{{10, 0}, {0, 0}, {5, 0}}
	got := nearestCentroids([]float32{0, 0}, centroids, 2)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected [1 2], got %v", got)
	}
}

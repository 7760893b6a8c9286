package vector

import "sort"

// squaredL2 returns the squared Euclidean distance between a and b.
// Squared distances preserve ordering and avoid the sqrt per candidate.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// neighbor pairs a stored position with its distance to the query.
type neighbor struct {
	pos  int
	dist float32
}

// topK sorts candidates by ascending distance (position as tie-break for
// deterministic output) and returns the first k as parallel slices.
func topK(candidates []neighbor, k int) ([]float32, []int) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].pos < candidates[j].pos
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	distances := make([]float32, k)
	positions := make([]int, k)
	for i := 0; i < k; i++ {
		distances[i] = candidates[i].dist
		positions[i] = candidates[i].pos
	}
	return distances, positions
}

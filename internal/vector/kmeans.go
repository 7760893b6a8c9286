package vector

import "math/rand"

// kmeansIterations is the number of Lloyd iterations used for centroid training.
const kmeansIterations = 25

// kmeansSeed fixes the RNG so training is reproducible for a given batch.
const kmeansSeed = 1234

// kMeans clusters vectors into k centroids with k-means++ seeding followed by
// Lloyd iterations. When fewer than k vectors are available the caller is
// expected to have reduced k already; k must be >= 1 and <= len(vectors).
func kMeans(vectors [][]float32, k int) [][]float32 {
	rng := rand.New(rand.NewSource(kmeansSeed))
	centroids := kmeansppInit(vectors, k, rng)
	dim := len(vectors[0])
	assignments := make([]int, len(vectors))

	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best, _ := nearestCentroid(v, centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		sums := make([][]float32, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float32, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d := range v {
				sums[c][d] += v[d]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster: reseed from a random vector to keep k centroids.
				centroids[c] = cloneVector(vectors[rng.Intn(len(vectors))])
				continue
			}
			inv := 1.0 / float32(counts[c])
			for d := 0; d < dim; d++ {
				centroids[c][d] = sums[c][d] * inv
			}
		}
	}
	return centroids
}

// kmeansppInit selects k initial centroids: the first uniformly at random, the
// rest weighted by squared distance to the nearest centroid chosen so far.
func kmeansppInit(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, 0, k)
	centroids = append(centroids, cloneVector(vectors[rng.Intn(len(vectors))]))

	dists := make([]float64, len(vectors))
	for len(centroids) < k {
		var total float64
		last := centroids[len(centroids)-1]
		for i, v := range vectors {
			d := float64(squaredL2(v, last))
			if len(centroids) == 1 || d < dists[i] {
				dists[i] = d
			}
			total += dists[i]
		}
		if total == 0 {
			// All remaining vectors coincide with a centroid; duplicate one.
			centroids = append(centroids, cloneVector(vectors[rng.Intn(len(vectors))]))
			continue
		}
		target := rng.Float64() * total
		var cum float64
		chosen := len(vectors) - 1
		for i := range vectors {
			cum += dists[i]
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, cloneVector(vectors[chosen]))
	}
	return centroids
}

// nearestCentroid returns the index of the closest centroid and its squared distance.
func nearestCentroid(v []float32, centroids [][]float32) (int, float32) {
	best := 0
	bestDist := squaredL2(v, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := squaredL2(v, centroids[c]); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best, bestDist
}

// nearestCentroids returns the indexes of the n closest centroids, ascending by distance.
func nearestCentroids(v []float32, centroids [][]float32, n int) []int {
	candidates := make([]neighbor, len(centroids))
	for c, centroid := range centroids {
		candidates[c] = neighbor{pos: c, dist: squaredL2(v, centroid)}
	}
	_, positions := topK(candidates, n)
	return positions
}

func cloneVector(v []float32) []float32 {
	c := make([]float32, len(v))
	copy(c, v)
	return c
}

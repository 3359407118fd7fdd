// ABOUTME: Plain k-means on euclidean distance for narrative vectors
// ABOUTME: Deterministic seeding by spread-out initial centroids
package temporal

import (
	"math"

	"github.com/florinutz/narra/internal/vmath"
)

const (
	kmeansMaxIterations = 300
	kmeansTolerance     = 1e-4
)

// kmeansResult holds assignments and distances for one clustering run
type kmeansResult struct {
	centroids   [][]float64
	assignments []int
	distances   []float64
}

// runKMeans clusters points into k groups. Points must be non-empty and
// k must satisfy 1 <= k <= len(points).
func runKMeans(points [][]float64, k int) *kmeansResult {
	n := len(points)
	dim := len(points[0])

	centroids := seedCentroids(points, k)
	assignments := make([]int, n)
	distances := make([]float64, n)

	for iter := 0; iter < kmeansMaxIterations; iter++ {
		// Assign each point to its nearest centroid
		for i, p := range points {
			best, bestDist := 0, math.Inf(1)
			for c := range centroids {
				d := vmath.EuclideanDistance(p, centroids[c])
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			assignments[i] = best
			distances[i] = bestDist
		}

		// Recompute centroids
		next := make([][]float64, k)
		counts := make([]int, k)
		for c := range next {
			next[c] = make([]float64, dim)
		}
		for i, p := range points {
			c := assignments[i]
			counts[c]++
			for d, v := range p {
				next[c][d] += v
			}
		}
		for c := range next {
			if counts[c] == 0 {
				// Empty cluster keeps its old centroid
				copy(next[c], centroids[c])
				continue
			}
			for d := range next[c] {
				next[c][d] /= float64(counts[c])
			}
		}

		// Converged when no centroid moved past tolerance
		moved := 0.0
		for c := range centroids {
			moved += vmath.EuclideanDistance(centroids[c], next[c])
		}
		centroids = next
		if moved < kmeansTolerance {
			break
		}
	}

	// Final assignment pass against the settled centroids
	for i, p := range points {
		best, bestDist := 0, math.Inf(1)
		for c := range centroids {
			d := vmath.EuclideanDistance(p, centroids[c])
			if d < bestDist {
				best, bestDist = c, d
			}
		}
		assignments[i] = best
		distances[i] = bestDist
	}

	return &kmeansResult{
		centroids:   centroids,
		assignments: assignments,
		distances:   distances,
	}
}

// seedCentroids picks k spread-out points: the first point, then
// repeatedly the point farthest from all chosen centroids. Deterministic
// for a given input order.
func seedCentroids(points [][]float64, k int) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[0]))

	for len(centroids) < k {
		bestIdx, bestDist := 0, -1.0
		for i, p := range points {
			nearest := math.Inf(1)
			for _, c := range centroids {
				if d := vmath.EuclideanDistance(p, c); d < nearest {
					nearest = d
				}
			}
			if nearest > bestDist {
				bestIdx, bestDist = i, nearest
			}
		}
		centroids = append(centroids, clone(points[bestIdx]))
	}
	return centroids
}

// autoK picks a cluster count when the caller gave none: ceil(sqrt(n/2)),
// clamped to [2, n-1].
func autoK(n int) int {
	k := int(math.Ceil(math.Sqrt(float64(n) / 2)))
	return clampK(k, n)
}

func clampK(k, n int) int {
	if k < 2 {
		k = 2
	}
	if k > n-1 {
		k = n - 1
	}
	if k < 1 {
		k = 1
	}
	return k
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

package routing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/verdant/internal/optimization"
)

const (
	// MaxPasses caps the full 2-opt passes of one optimization.
	MaxPasses = 200
	// Epsilon is the minimum distance gain for a 2-opt swap to be accepted.
	Epsilon = 0.001
)

// fillDistances writes the Euclidean distance of every node pair into dist,
// which must already be sized len(nodes).
func fillDistances(dist *mat.SymDense, nodes []Node) {
	for i := range nodes {
		for j := i; j < len(nodes); j++ {
			dist.SetSym(i, j, optimization.Distance(nodes[i].Position, nodes[j].Position))
		}
	}
}

// RouteDistance returns the length of the closed tour: the walk across tour
// plus the edge from its last entry back to its first.
func RouteDistance(dist mat.Symmetric, tour []int) float64 {
	if len(tour) < 2 {
		return 0
	}
	total := 0.0
	for i := 0; i < len(tour)-1; i++ {
		total += dist.At(tour[i], tour[i+1])
	}
	return total + dist.At(tour[len(tour)-1], tour[0])
}

// NearestNeighborTour fills tour with a greedy tour starting at node 0. The
// first unvisited node with the strictly smallest distance is taken at every
// step.
func NearestNeighborTour(dist mat.Symmetric, tour []int) {
	n := len(tour)
	if n == 0 {
		return
	}
	visited := make([]bool, n)
	tour[0] = 0
	visited[0] = true

	for i := 1; i < n; i++ {
		current := tour[i-1]
		nearest := -1
		minDist := math.Inf(1)
		for j := 1; j < n; j++ {
			if visited[j] {
				continue
			}
			if d := dist.At(current, j); nearest < 0 || d < minDist {
				minDist = d
				nearest = j
			}
		}
		tour[i] = nearest
		visited[nearest] = true
	}
}

// reverseSegment writes tour into out with the positions i..j reversed.
func reverseSegment(tour, out []int, i, j int) {
	copy(out[:i], tour[:i])
	for k, idx := j, i; k >= i; k, idx = k-1, idx+1 {
		out[idx] = tour[k]
	}
	copy(out[j+1:], tour[j+1:])
}

// TwoOpt improves tour in place with first-improvement 2-opt. Every pair of
// positions 1 <= i < j < len(tour) is tried by reversing tour[i..j] into
// candidate; a candidate shorter by more than Epsilon replaces the tour at
// once and the pass continues on the updated tour. Passes repeat until one
// finds no improvement or maxPasses have run. Position 0 never moves.
//
// It returns the final tour distance and the number of passes executed.
func TwoOpt(dist mat.Symmetric, tour, candidate []int, maxPasses int) (float64, int) {
	n := len(tour)
	best := RouteDistance(dist, tour)

	passes := 0
	improved := true
	for improved && passes < maxPasses {
		improved = false
		passes++

		for i := 1; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				reverseSegment(tour, candidate, i, j)
				if d := RouteDistance(dist, candidate); d < best-Epsilon {
					copy(tour, candidate)
					best = d
					improved = true
				}
			}
		}
	}
	return best, passes
}

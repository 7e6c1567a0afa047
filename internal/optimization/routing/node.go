package routing

import (
	"math/rand"

	"github.com/copyleftdev/verdant/internal/optimization"
)

const (
	// MinStops is the smallest stop count a plan accepts before substitution.
	MinStops = 2
	// DefaultStops replaces stop counts below MinStops.
	DefaultStops = 5
	// MaxStops caps the stop count of a plan.
	MaxStops = 100
	// GridSize is the side length of the square the locations are drawn from.
	GridSize = 100
)

// Kind tells the hub apart from delivery drops.
type Kind int

const (
	// Drop is a delivery location.
	Drop Kind = iota
	// Hub is the depot the tour leaves from and returns to.
	Hub
)

// String returns the payload name of the kind.
func (k Kind) String() string {
	if k == Hub {
		return "HUB"
	}
	return "DROP"
}

// Node is one stop of a delivery route.
type Node struct {
	ID       int
	Position optimization.Point
	Kind     Kind
}

// ClampStops maps a requested stop count into [MinStops, MaxStops]. Counts
// below the minimum are replaced by DefaultStops rather than raised to it.
func ClampStops(n int) int {
	if n < MinStops {
		return DefaultStops
	}
	if n > MaxStops {
		return MaxStops
	}
	return n
}

// GenerateLocations places the hub at the centre of the grid and draws
// count-1 drops on integer grid cells. The same seed always yields the same
// locations.
func GenerateLocations(count int, seed int64) []Node {
	if count <= 0 {
		return []Node{}
	}

	rng := rand.New(rand.NewSource(seed))
	nodes := make([]Node, count)
	nodes[0] = Node{
		ID:       0,
		Position: optimization.Point{X: GridSize / 2.0, Y: GridSize / 2.0},
		Kind:     Hub,
	}
	for i := 1; i < count; i++ {
		nodes[i] = Node{
			ID: i,
			Position: optimization.Point{
				X: float64(rng.Intn(GridSize)),
				Y: float64(rng.Intn(GridSize)),
			},
			Kind: Drop,
		}
	}
	return nodes
}

// Package segmentation partitions customers into the Bronze, Silver, Gold and
// Titanium tiers with a damped k-means over (eco score, wallet balance).
//
// A Model owns the four centroid positions and keeps them between calls, so
// repeated segmentation drifts the tiers towards the observed population.
// A Model is not safe for concurrent use; hosts that share one Model across
// goroutines must serialize calls themselves.
package segmentation

import (
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/verdant/internal/optimization"
)

const (
	// DefaultMaxRounds caps the assignment/update rounds of one Segment call.
	DefaultMaxRounds = 50
	// DefaultDamping is the weight given to the new member mean in an update.
	DefaultDamping = 0.7
	// DefaultThreshold is the centroid displacement below which a round counts
	// as converged.
	DefaultThreshold = 0.01
)

// seedCentroids are the business chosen starting positions, indexed by Tier.
var seedCentroids = [NumTiers]optimization.Point{
	Bronze:   {X: 30, Y: 30},
	Silver:   {X: 150, Y: 30},
	Gold:     {X: 30, Y: 500},
	Titanium: {X: 500, Y: 1000},
}

// Observation is one customer.
type Observation struct {
	EcoScore      int
	WalletBalance int
}

// Point returns the observation in centroid space.
func (o Observation) Point() optimization.Point {
	return optimization.Point{X: float64(o.EcoScore), Y: float64(o.WalletBalance)}
}

// Centroid is the current position of one tier.
type Centroid struct {
	Tier     Tier
	Position optimization.Point
}

// Record is the per-customer segmentation outcome.
type Record struct {
	X     int
	Y     int
	Tier  Tier
	Churn float64
}

// Result is the outcome of one Segment call.
type Result struct {
	Records   []Record
	Rounds    int
	Converged bool
}

// Model is a four-tier segmentation model with persistent centroids.
type Model struct {
	centroids [NumTiers]optimization.Point
	seeds     [NumTiers]optimization.Point

	maxRounds int
	damping   float64
	threshold float64
}

// Option configures a Model.
type Option func(*Model)

// WithMaxRounds overrides the round cap. Values below 1 are ignored.
func WithMaxRounds(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.maxRounds = n
		}
	}
}

// WithDamping overrides the weight of the new mean. Values outside (0, 1] are
// ignored.
func WithDamping(w float64) Option {
	return func(m *Model) {
		if w > 0 && w <= 1 {
			m.damping = w
		}
	}
}

// WithThreshold overrides the convergence displacement. Negative values are
// ignored.
func WithThreshold(d float64) Option {
	return func(m *Model) {
		if d >= 0 {
			m.threshold = d
		}
	}
}

// WithCentroids replaces the seeded starting positions. Reset returns to
// these positions.
func WithCentroids(c [NumTiers]optimization.Point) Option {
	return func(m *Model) {
		m.seeds = c
	}
}

// NewModel creates a Model positioned at the seeded centroids.
func NewModel(opts ...Option) *Model {
	m := &Model{
		seeds:     seedCentroids,
		maxRounds: DefaultMaxRounds,
		damping:   DefaultDamping,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.centroids = m.seeds
	return m
}

// Centroids returns a copy of the current centroid positions.
func (m *Model) Centroids() [NumTiers]Centroid {
	var out [NumTiers]Centroid
	for k, p := range m.centroids {
		out[k] = Centroid{Tier: Tier(k), Position: p}
	}
	return out
}

// Reset moves every centroid back to its seeded position.
func (m *Model) Reset() {
	m.centroids = m.seeds
}

// Assign stores the nearest centroid index of every observation in
// assignments, which must be at least as long as obs. Ties keep the lowest
// index. It reports whether any entry changed.
func (m *Model) Assign(obs []Observation, assignments []int) bool {
	changed := false
	for i, o := range obs {
		p := o.Point()

		best := 0
		bestDist := optimization.Distance(p, m.centroids[0])
		for k := 1; k < NumTiers; k++ {
			if d := optimization.Distance(p, m.centroids[k]); d < bestDist {
				bestDist = d
				best = k
			}
		}

		if assignments[i] != best {
			assignments[i] = best
			changed = true
		}
	}
	return changed
}

// Update moves every centroid that has at least one member towards the mean
// of its members and returns the largest displacement. Centroids without
// members stay where they are. Assignments that name no tier are skipped.
func (m *Model) Update(obs []Observation, assignments []int) float64 {
	var xs, ys [NumTiers][]float64
	for i, o := range obs {
		k := assignments[i]
		if !Tier(k).Valid() {
			continue
		}
		xs[k] = append(xs[k], float64(o.EcoScore))
		ys[k] = append(ys[k], float64(o.WalletBalance))
	}

	maxShift := 0.0
	for k := range m.centroids {
		if len(xs[k]) == 0 {
			continue
		}
		mean := optimization.Point{
			X: stat.Mean(xs[k], nil),
			Y: stat.Mean(ys[k], nil),
		}
		next := optimization.Lerp(mean, m.centroids[k], m.damping)
		if shift := optimization.Distance(m.centroids[k], next); shift > maxShift {
			maxShift = shift
		}
		m.centroids[k] = next
	}
	return maxShift
}

// Segment runs assignment and update rounds until no assignment changes, the
// largest centroid displacement drops below the threshold, or the round cap
// is reached. Every observation starts assigned to Bronze. Records are
// returned in input order.
func (m *Model) Segment(obs []Observation) Result {
	if len(obs) == 0 {
		return Result{Records: []Record{}}
	}

	assignments := make([]int, len(obs))
	var (
		rounds    int
		converged bool
	)
	for rounds < m.maxRounds && !converged {
		changed := m.Assign(obs, assignments)
		shift := m.Update(obs, assignments)
		rounds++

		if !changed || shift < m.threshold {
			converged = true
		}
	}

	records := make([]Record, len(obs))
	for i, o := range obs {
		records[i] = Record{
			X:     o.EcoScore,
			Y:     o.WalletBalance,
			Tier:  Tier(assignments[i]),
			Churn: ChurnRisk(o.WalletBalance),
		}
	}

	return Result{
		Records:   records,
		Rounds:    rounds,
		Converged: converged,
	}
}

// Package routing builds short closed delivery tours from a hub over a small
// set of drops: a nearest neighbour tour improved by first-improvement 2-opt.
//
// Location synthesis and optimization are separate steps. Optimize works on
// any caller supplied nodes; Plan draws seeded locations first.
package routing

import (
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/verdant/internal/optimization"
)

// Result is an optimized tour.
type Result struct {
	// TotalDistance is the closed tour length after local search.
	TotalDistance float64
	// InitialDistance is the nearest neighbour tour length.
	InitialDistance float64
	// Passes is the number of 2-opt passes executed.
	Passes int
	// Stops lists the nodes in tour order, starting at the hub.
	Stops []Node
}

// Optimizer runs route optimizations inside workspaces drawn from a Pool.
// It is safe for concurrent use when the pool is.
type Optimizer struct {
	pool      *Pool
	maxPasses int
	logger    *zap.Logger
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithMaxPasses overrides the 2-opt pass cap. Values below 1 are ignored.
func WithMaxPasses(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.maxPasses = n
		}
	}
}

// WithLogger sets the logger used for per-call debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOptimizer creates an Optimizer. A nil pool gets a single-workspace pool.
func NewOptimizer(pool *Pool, opts ...Option) *Optimizer {
	if pool == nil {
		pool = NewPool(1)
	}
	o := &Optimizer{
		pool:      pool,
		maxPasses: MaxPasses,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Pool returns the workspace pool of the optimizer.
func (o *Optimizer) Pool() *Pool {
	return o.pool
}

// Plan clamps the stop count, generates seeded locations and optimizes them.
func (o *Optimizer) Plan(stops int, seed int64) (*Result, error) {
	n := ClampStops(stops)
	if n != stops {
		o.logger.Debug("stop count clamped", zap.Int("requested", stops), zap.Int("stops", n))
	}
	return o.Optimize(GenerateLocations(n, seed))
}

// Optimize returns a short closed tour over nodes. nodes[0] must be the only
// hub. The input slice is not modified.
func (o *Optimizer) Optimize(nodes []Node) (*Result, error) {
	if err := validateNodes(nodes); err != nil {
		return nil, err
	}

	ws, err := o.pool.Acquire(len(nodes))
	if err != nil {
		return nil, err
	}
	defer o.pool.Release(ws)

	copy(ws.nodes, nodes)
	fillDistances(ws.dist, ws.nodes)

	NearestNeighborTour(ws.dist, ws.tour)
	initial := RouteDistance(ws.dist, ws.tour)
	total, passes := TwoOpt(ws.dist, ws.tour, ws.candidate, o.maxPasses)

	stops := make([]Node, len(ws.tour))
	for i, idx := range ws.tour {
		stops[i] = ws.nodes[idx]
	}

	o.logger.Debug("route optimized",
		zap.Int("stops", len(stops)),
		zap.Int("passes", passes),
		zap.Float64("initial_distance", initial),
		zap.Float64("total_distance", total),
	)

	return &Result{
		TotalDistance:   total,
		InitialDistance: initial,
		Passes:          passes,
		Stops:           stops,
	}, nil
}

func validateNodes(nodes []Node) error {
	if len(nodes) == 0 {
		return optimization.NewError("no nodes to route").
			WithComponent("routing").WithOperation("optimize")
	}
	if len(nodes) > MaxStops {
		return optimization.NewErrorf("%d nodes exceeds the limit of %d", len(nodes), MaxStops).
			WithComponent("routing").WithOperation("optimize")
	}
	seen := make(map[int]bool, len(nodes))
	for i, n := range nodes {
		if seen[n.ID] {
			return optimization.NewErrorf("node id %d appears more than once", n.ID).
				WithComponent("routing").WithOperation("optimize")
		}
		seen[n.ID] = true
		if (i == 0) != (n.Kind == Hub) {
			return optimization.NewErrorf("node %d: the hub must be the first and only hub node", n.ID).
				WithComponent("routing").WithOperation("optimize")
		}
		if !finite(n.Position.X) || !finite(n.Position.Y) {
			return optimization.NewErrorf("node %d has non-finite coordinates", n.ID).
				WithComponent("routing").WithOperation("optimize")
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

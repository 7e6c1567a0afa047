package routing

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/verdant/internal/optimization"
)

func TestClampStops(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-3, DefaultStops},
		{0, DefaultStops},
		{1, DefaultStops},
		{2, 2},
		{12, 12},
		{100, 100},
		{101, MaxStops},
		{500, MaxStops},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampStops(tt.in), "stops=%d", tt.in)
	}
}

func TestGenerateLocations(t *testing.T) {
	nodes := GenerateLocations(25, 1234)
	require.Len(t, nodes, 25)

	hub := nodes[0]
	assert.Equal(t, 0, hub.ID)
	assert.Equal(t, Hub, hub.Kind)
	assert.Equal(t, optimization.Point{X: 50, Y: 50}, hub.Position)

	for i, n := range nodes[1:] {
		assert.Equal(t, i+1, n.ID)
		assert.Equal(t, Drop, n.Kind)
		for _, v := range []float64{n.Position.X, n.Position.Y} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, float64(GridSize))
			assert.Equal(t, math.Trunc(v), v, "locations sit on integer grid cells")
		}
	}

	assert.Equal(t, nodes, GenerateLocations(25, 1234), "same seed, same locations")
	assert.NotEqual(t, nodes, GenerateLocations(25, 4321))
	assert.Empty(t, GenerateLocations(0, 1))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "HUB", Hub.String())
	assert.Equal(t, "DROP", Drop.String())
}

func TestOptimizeProperties(t *testing.T) {
	opt := NewOptimizer(NewPool(1))

	for _, stops := range []int{2, 3, 5, 12, 30, 60} {
		for seed := int64(1); seed <= 5; seed++ {
			nodes := GenerateLocations(stops, seed)
			res, err := opt.Optimize(nodes)
			require.NoError(t, err)
			require.Len(t, res.Stops, stops)

			// Stops form a permutation of the node ids with the hub first.
			ids := make([]int, len(res.Stops))
			hubs := 0
			for i, s := range res.Stops {
				ids[i] = s.ID
				if s.Kind == Hub {
					hubs++
				}
			}
			assert.Equal(t, Hub, res.Stops[0].Kind)
			assert.Equal(t, 1, hubs)
			sort.Ints(ids)
			for i, id := range ids {
				assert.Equal(t, i, id, "stops=%d seed=%d", stops, seed)
			}

			assert.LessOrEqual(t, res.TotalDistance, res.InitialDistance+1e-9)
			assert.GreaterOrEqual(t, res.Passes, 1)
			assert.LessOrEqual(t, res.Passes, MaxPasses)

			// The reported distance matches the reported order.
			tour := make([]int, len(res.Stops))
			for i, s := range res.Stops {
				tour[i] = s.ID
			}
			dist := mat.NewSymDense(len(nodes), nil)
			fillDistances(dist, nodes)
			assert.InDelta(t, res.TotalDistance, RouteDistance(dist, tour), 1e-6)

			// A converged tour is a fixed point of 2-opt.
			if res.Passes < MaxPasses {
				again, passes := TwoOpt(dist, tour, make([]int, len(tour)), MaxPasses)
				assert.Equal(t, 1, passes)
				assert.InDelta(t, res.TotalDistance, again, 1e-9)
			}
		}
	}
}

func TestOptimizeLeavesInputUntouched(t *testing.T) {
	nodes := GenerateLocations(20, 8)
	before := append([]Node(nil), nodes...)

	_, err := NewOptimizer(nil).Optimize(nodes)
	require.NoError(t, err)
	assert.Equal(t, before, nodes)
}

func TestOptimizeValidation(t *testing.T) {
	hub := Node{ID: 0, Position: optimization.Point{X: 50, Y: 50}, Kind: Hub}
	drop := Node{ID: 1, Position: optimization.Point{X: 1, Y: 2}, Kind: Drop}

	tests := []struct {
		name  string
		nodes []Node
	}{
		{"no nodes", nil},
		{"hub not first", []Node{drop, hub}},
		{"two hubs", []Node{hub, {ID: 1, Kind: Hub}}},
		{"nan coordinate", []Node{hub, {ID: 1, Position: optimization.Point{X: math.NaN()}}}},
		{"too many nodes", GenerateLocations(MaxStops+1, 1)},
		{"duplicate ids", []Node{hub, {ID: 3, Kind: Drop}, {ID: 3, Position: optimization.Point{X: 9, Y: 9}, Kind: Drop}}},
		{"drop reuses hub id", []Node{hub, {ID: 0, Kind: Drop}}},
	}

	pool := NewPool(1)
	opt := NewOptimizer(pool)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := opt.Optimize(tt.nodes)
			assert.Nil(t, res)
			require.Error(t, err)

			oerr, ok := optimization.IsOptimizationError(err)
			require.True(t, ok)
			assert.Equal(t, "routing", oerr.Component)
			assert.False(t, errors.Is(err, optimization.ErrResourceExhausted))
			assert.Zero(t, pool.InUse())
		})
	}
}

func TestPlanClampsStops(t *testing.T) {
	opt := NewOptimizer(NewPool(1))

	res, err := opt.Plan(1, 42)
	require.NoError(t, err)
	assert.Len(t, res.Stops, DefaultStops)

	res, err = opt.Plan(500, 42)
	require.NoError(t, err)
	assert.Len(t, res.Stops, MaxStops)

	a, err := opt.Plan(15, 7)
	require.NoError(t, err)
	b, err := opt.Plan(15, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b, "plans are reproducible for a seed")
}

func TestOptimizeWorkspaceExhausted(t *testing.T) {
	pool := NewPool(1)
	held, err := pool.Acquire(5)
	require.NoError(t, err)

	opt := NewOptimizer(pool)
	res, err := opt.Plan(10, 1)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimization.ErrResourceExhausted))
	assert.Equal(t, 1, pool.InUse())

	pool.Release(held)
	res, err = opt.Plan(10, 1)
	require.NoError(t, err)
	assert.Len(t, res.Stops, 10)
	assert.Zero(t, pool.InUse(), "workspaces are released after every call")
}

func TestPoolReusesWorkspaces(t *testing.T) {
	pool := NewPool(2)
	assert.Equal(t, 2, pool.Capacity())

	w1, err := pool.Acquire(10)
	require.NoError(t, err)
	assert.Len(t, w1.tour, 10)
	r, c := w1.dist.Dims()
	assert.Equal(t, 10, r)
	assert.Equal(t, 10, c)
	pool.Release(w1)

	w2, err := pool.Acquire(4)
	require.NoError(t, err)
	assert.Same(t, w1, w2)
	assert.Len(t, w2.nodes, 4)
	assert.Len(t, w2.candidate, 4)
	assert.Equal(t, 4, w2.dist.SymmetricDim())
	pool.Release(w2)

	_, err = pool.Acquire(0)
	assert.True(t, errors.Is(err, optimization.ErrResourceExhausted))
	assert.Equal(t, 1, NewPool(0).Capacity())

	assert.NotPanics(t, func() { pool.Release(nil) })
}

func TestOptimizerConcurrentPlans(t *testing.T) {
	const workers = 4
	opt := NewOptimizer(NewPool(workers))

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = opt.Plan(30, int64(i))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Zero(t, opt.Pool().InUse())
}

func BenchmarkPlan(b *testing.B) {
	for _, stops := range []int{12, 50, 100} {
		opt := NewOptimizer(NewPool(1))
		b.Run("stops="+strconv.Itoa(stops), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := opt.Plan(stops, int64(i)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

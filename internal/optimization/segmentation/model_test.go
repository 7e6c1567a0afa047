package segmentation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/verdant/internal/optimization"
)

// randomObservations returns n observations spread over the tier regions.
func randomObservations(rng *rand.Rand, n int) []Observation {
	obs := make([]Observation, n)
	for i := range obs {
		obs[i] = Observation{
			EcoScore:      rng.Intn(700),
			WalletBalance: rng.Intn(1500),
		}
	}
	return obs
}

func TestNewModel(t *testing.T) {
	tests := []struct {
		name          string
		opts          []Option
		wantRounds    int
		wantDamping   float64
		wantThreshold float64
	}{
		{
			name:          "defaults",
			wantRounds:    DefaultMaxRounds,
			wantDamping:   DefaultDamping,
			wantThreshold: DefaultThreshold,
		},
		{
			name:          "valid overrides",
			opts:          []Option{WithMaxRounds(5), WithDamping(0.5), WithThreshold(0.1)},
			wantRounds:    5,
			wantDamping:   0.5,
			wantThreshold: 0.1,
		},
		{
			name:          "invalid overrides are ignored",
			opts:          []Option{WithMaxRounds(0), WithDamping(1.5), WithThreshold(-1)},
			wantRounds:    DefaultMaxRounds,
			wantDamping:   DefaultDamping,
			wantThreshold: DefaultThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(tt.opts...)
			assert.Equal(t, tt.wantRounds, m.maxRounds)
			assert.Equal(t, tt.wantDamping, m.damping)
			assert.Equal(t, tt.wantThreshold, m.threshold)
			assert.Equal(t, seedCentroids, m.centroids)
		})
	}
}

func TestCentroidsKeepTierOrder(t *testing.T) {
	m := NewModel()
	centroids := m.Centroids()

	for k, c := range centroids {
		assert.Equal(t, Tier(k), c.Tier)
	}
	assert.Equal(t, "Bronze", centroids[0].Tier.String())
	assert.Equal(t, "Titanium", centroids[3].Tier.String())
	assert.Equal(t, optimization.Point{X: 500, Y: 1000}, centroids[Titanium].Position)
}

func TestAssignTieBreaksTowardsLowestIndex(t *testing.T) {
	m := NewModel()

	// (90, 30) is exactly 60 away from both Bronze and Silver.
	obs := []Observation{{EcoScore: 90, WalletBalance: 30}}
	assignments := []int{int(Titanium)}

	changed := m.Assign(obs, assignments)
	assert.True(t, changed)
	assert.Equal(t, int(Bronze), assignments[0])

	changed = m.Assign(obs, assignments)
	assert.False(t, changed, "a second pass over unchanged centroids must be stable")
}

func TestUpdateIsDamped(t *testing.T) {
	m := NewModel()
	obs := []Observation{{EcoScore: 0, WalletBalance: 0}}
	assignments := []int{int(Bronze)}

	shift := m.Update(obs, assignments)

	bronze := m.Centroids()[Bronze].Position
	assert.InDelta(t, 9.0, bronze.X, 1e-9)
	assert.InDelta(t, 9.0, bronze.Y, 1e-9)
	assert.InDelta(t, optimization.Distance(optimization.Point{X: 30, Y: 30}, bronze), shift, 1e-9)

	// Tiers without members do not move.
	assert.Equal(t, seedCentroids[Silver], m.Centroids()[Silver].Position)
	assert.Equal(t, seedCentroids[Gold], m.Centroids()[Gold].Position)
	assert.Equal(t, seedCentroids[Titanium], m.Centroids()[Titanium].Position)
}

func TestUpdateSkipsUnknownTiers(t *testing.T) {
	m := NewModel()
	obs := []Observation{
		{EcoScore: 0, WalletBalance: 0},
		{EcoScore: 900, WalletBalance: 900},
		{EcoScore: 900, WalletBalance: 900},
	}

	var shift float64
	require.NotPanics(t, func() {
		shift = m.Update(obs, []int{int(Bronze), 7, -1})
	})

	bronze := m.Centroids()[Bronze].Position
	assert.InDelta(t, 9.0, bronze.X, 1e-9)
	assert.InDelta(t, 9.0, bronze.Y, 1e-9)
	assert.InDelta(t, optimization.Distance(optimization.Point{X: 30, Y: 30}, bronze), shift, 1e-9)
	assert.Equal(t, seedCentroids[Titanium], m.Centroids()[Titanium].Position)
}

func TestUpdateNeverOvershootsMean(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 20; trial++ {
		m := NewModel()
		obs := randomObservations(rng, 1+rng.Intn(150))
		assignments := make([]int, len(obs))
		m.Assign(obs, assignments)

		var sum [NumTiers]optimization.Point
		var count [NumTiers]int
		for i, o := range obs {
			k := assignments[i]
			sum[k].X += float64(o.EcoScore)
			sum[k].Y += float64(o.WalletBalance)
			count[k]++
		}

		before := m.Centroids()
		m.Update(obs, assignments)
		after := m.Centroids()

		for k := 0; k < NumTiers; k++ {
			moved := optimization.Distance(before[k].Position, after[k].Position)
			if count[k] == 0 {
				assert.Zero(t, moved)
				continue
			}
			mean := optimization.Point{X: sum[k].X / float64(count[k]), Y: sum[k].Y / float64(count[k])}
			toMean := optimization.Distance(before[k].Position, mean)
			assert.LessOrEqual(t, moved, toMean+1e-9)
			assert.InDelta(t, DefaultDamping*toMean, moved, 1e-6)
		}
	}
}

func TestSegment(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		m := NewModel()
		res := m.Segment(nil)
		assert.NotNil(t, res.Records)
		assert.Empty(t, res.Records)
		assert.Zero(t, res.Rounds)
		assert.Equal(t, seedCentroids, m.centroids)
	})

	t.Run("one point per tier", func(t *testing.T) {
		m := NewModel()
		obs := []Observation{
			{EcoScore: 10, WalletBalance: 10},
			{EcoScore: 200, WalletBalance: 20},
			{EcoScore: 20, WalletBalance: 600},
			{EcoScore: 600, WalletBalance: 1200},
		}

		res := m.Segment(obs)
		require.Len(t, res.Records, 4)

		assert.Equal(t, []Tier{Bronze, Silver, Gold, Titanium}, []Tier{
			res.Records[0].Tier, res.Records[1].Tier, res.Records[2].Tier, res.Records[3].Tier,
		})
		assert.Equal(t, 2, res.Rounds)
		assert.True(t, res.Converged)

		bronze := m.Centroids()[Bronze].Position
		assert.InDelta(t, 0.7*10+0.3*(0.7*10+0.3*30), bronze.X, 1e-9)
	})

	t.Run("unchanged first assignment stops after one round", func(t *testing.T) {
		m := NewModel()
		obs := []Observation{{EcoScore: 0, WalletBalance: 0}, {EcoScore: 5, WalletBalance: 5}}
		res := m.Segment(obs)
		assert.Equal(t, 1, res.Rounds)
		assert.True(t, res.Converged)
	})

	t.Run("round cap", func(t *testing.T) {
		m := NewModel(WithMaxRounds(1), WithThreshold(0))
		obs := randomObservations(rand.New(rand.NewSource(3)), 100)
		res := m.Segment(obs)
		assert.Equal(t, 1, res.Rounds)
		assert.Len(t, res.Records, 100)
	})
}

func TestSegmentRecordsFollowInput(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for _, n := range []int{1, 2, 5, 50, 200} {
		m := NewModel()
		obs := randomObservations(rng, n)
		res := m.Segment(obs)

		require.Len(t, res.Records, n)
		for i, r := range res.Records {
			assert.Equal(t, obs[i].EcoScore, r.X)
			assert.Equal(t, obs[i].WalletBalance, r.Y)
			assert.True(t, r.Tier.Valid(), "tier %d out of range", r.Tier)
			assert.Equal(t, ChurnRisk(obs[i].WalletBalance), r.Churn)
		}
		assert.LessOrEqual(t, res.Rounds, DefaultMaxRounds)
	}
}

func TestSegmentChurnDependsOnWalletOnly(t *testing.T) {
	m := NewModel()
	obs := []Observation{
		{EcoScore: 0, WalletBalance: 10},
		{EcoScore: 500, WalletBalance: 100},
		{EcoScore: 20, WalletBalance: 600},
		{EcoScore: 999, WalletBalance: 900},
	}

	res := m.Segment(obs)
	churn := make([]float64, len(res.Records))
	for i, r := range res.Records {
		churn[i] = r.Churn
	}
	assert.Equal(t, []float64{85.0, 55.0, 5.0, 5.0}, churn)
}

func TestSegmentDeterministicForSameState(t *testing.T) {
	obs := randomObservations(rand.New(rand.NewSource(42)), 120)

	a := NewModel()
	b := NewModel()
	assert.Equal(t, a.Segment(obs), b.Segment(obs))
	assert.Equal(t, a.Centroids(), b.Centroids())

	// Resetting restores the starting state, so the replay matches as well.
	first := NewModel()
	r1 := first.Segment(obs)
	first.Reset()
	r2 := first.Segment(obs)
	assert.Equal(t, r1, r2)
}

func TestCentroidStatePersistsAcrossCalls(t *testing.T) {
	m := NewModel()
	obs := []Observation{{EcoScore: 10, WalletBalance: 10}, {EcoScore: 20, WalletBalance: 0}}

	m.Segment(obs)
	drifted := m.Centroids()
	assert.NotEqual(t, seedCentroids[Bronze], drifted[Bronze].Position)

	m.Segment(obs)
	assert.NotEqual(t, drifted[Bronze].Position, m.Centroids()[Bronze].Position,
		"a second call continues from the drifted centroids")

	m.Reset()
	assert.Equal(t, seedCentroids, m.centroids)
}

func TestWithCentroids(t *testing.T) {
	custom := [NumTiers]optimization.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}}
	m := NewModel(WithCentroids(custom))

	res := m.Segment([]Observation{{EcoScore: 9, WalletBalance: 9}})
	assert.Equal(t, Titanium, res.Records[0].Tier)

	m.Reset()
	assert.Equal(t, custom, m.centroids)
}

func BenchmarkSegment(b *testing.B) {
	obs := randomObservations(rand.New(rand.NewSource(1)), 200)
	m := NewModel()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Reset()
		_ = m.Segment(obs)
	}
}

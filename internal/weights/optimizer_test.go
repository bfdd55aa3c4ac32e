package weights

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/crediblend/crediblend/internal/blend"
	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisyModels builds a binary target with two informative models of
// different quality (a, b) and one pure noise model (c).
func noisyModels(n int, seed int64) *models.AlignedMatrix {
	rng := rand.New(rand.NewSource(seed))
	m := &models.AlignedMatrix{
		Models:  []string{"a", "b", "c"},
		Columns: [][]float64{make([]float64, n), make([]float64, n), make([]float64, n)},
		Targets: make([]float64, n),
		IDs:     make([]string, n),
	}
	for i := 0; i < n; i++ {
		t := float64(rng.Intn(2))
		m.IDs[i] = strconv.Itoa(i)
		m.Targets[i] = t
		m.Columns[0][i] = t + 1.2*rng.NormFloat64()
		m.Columns[1][i] = t + 0.7*rng.NormFloat64()
		m.Columns[2][i] = rng.NormFloat64()
	}
	return m
}

func TestOptimize_NoiseModelGetsLittleWeight(t *testing.T) {
	m := noisyModels(2000, 7)
	res, err := NewOptimizer(Config{Metric: metrics.AUC, Seed: 42}).Optimize(context.Background(), m)
	require.NoError(t, err)

	require.NoError(t, blend.CheckSimplex(res.Weights, 3))
	assert.Less(t, res.Weights[2], 0.15)
	assert.Less(t, res.Weights[2], res.Weights[0])
	assert.Less(t, res.Weights[2], res.Weights[1])

	bScore := metrics.MustScore(metrics.AUC, m.Columns[1], m.Targets)
	assert.GreaterOrEqual(t, res.Score, bScore-0.01)

	blended := blend.WeightedSum(m.Columns, res.Weights, nil)
	assert.InDelta(t, res.Score, metrics.MustScore(metrics.AUC, blended, m.Targets), 1e-12)
}

func TestOptimize_DeterministicAcrossJobs(t *testing.T) {
	m := noisyModels(300, 3)
	var results []*Result
	for _, jobs := range []int{1, 2, 8} {
		res, err := NewOptimizer(Config{Seed: 11, Restarts: 6, Iterations: 50, Jobs: jobs}).Optimize(context.Background(), m)
		require.NoError(t, err)
		results = append(results, res)
	}
	for _, res := range results[1:] {
		assert.Equal(t, results[0].Weights, res.Weights)
		assert.Equal(t, results[0].Score, res.Score)
		assert.Equal(t, results[0].RestartScores, res.RestartScores)
		assert.Equal(t, results[0].BestRestart, res.BestRestart)
	}
}

func TestOptimize_SeedChangesStarts(t *testing.T) {
	m := noisyModels(200, 5)
	a, err := NewOptimizer(Config{Seed: 1, Restarts: 2, Iterations: 1}).Optimize(context.Background(), m)
	require.NoError(t, err)
	b, err := NewOptimizer(Config{Seed: 2, Restarts: 2, Iterations: 1}).Optimize(context.Background(), m)
	require.NoError(t, err)
	assert.NotEqual(t, a.Weights, b.Weights)
}

func TestRestartSeeds(t *testing.T) {
	assert.Equal(t, RestartSeeds(7, 16), RestartSeeds(7, 16))
	assert.Equal(t, RestartSeeds(7, 16)[:4], RestartSeeds(7, 4), "adding restarts keeps the earlier ones")

	seen := make(map[int64]int64)
	for seed := int64(0); seed < 8; seed++ {
		for _, s := range RestartSeeds(seed, 16) {
			prev, dup := seen[s]
			require.False(t, dup, "run seeds %d and %d share a restart seed", prev, seed)
			seen[s] = seed
		}
	}
}

func TestOptimize_NeighbouringSeedsShareNoRestarts(t *testing.T) {
	m := noisyModels(200, 5)
	a, err := NewOptimizer(Config{Seed: 1, Restarts: 4, Iterations: 20}).Optimize(context.Background(), m)
	require.NoError(t, err)
	b, err := NewOptimizer(Config{Seed: 2, Restarts: 4, Iterations: 20}).Optimize(context.Background(), m)
	require.NoError(t, err)
	assert.NotEqual(t, a.RestartScores[1:], b.RestartScores[:3])
}

func TestOptimize_LowerIsBetterMetric(t *testing.T) {
	n := 200
	rng := rand.New(rand.NewSource(9))
	m := &models.AlignedMatrix{
		Models:  []string{"good", "bad"},
		Columns: [][]float64{make([]float64, n), make([]float64, n)},
		Targets: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		y := rng.Float64()
		m.Targets[i] = y
		m.Columns[0][i] = y + 0.01*rng.NormFloat64()
		m.Columns[1][i] = rng.Float64()
	}

	res, err := NewOptimizer(Config{Metric: metrics.MSE, Seed: 1, Restarts: 4}).Optimize(context.Background(), m)
	require.NoError(t, err)
	assert.Greater(t, res.Weights[0], 0.9)
	assert.LessOrEqual(t, res.Score, metrics.MustScore(metrics.MSE, m.Columns[0], m.Targets)+1e-12)
}

func TestOptimize_Result(t *testing.T) {
	m := noisyModels(100, 1)
	res, err := NewOptimizer(Config{Seed: 5, Restarts: 3, Iterations: 10}).Optimize(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, res.Models)
	assert.Equal(t, int64(5), res.Seed)
	assert.Equal(t, 3, res.Restarts)
	require.Len(t, res.RestartScores, 3)
	require.Len(t, res.Iterations, 3)
	for r, s := range res.RestartScores {
		assert.LessOrEqual(t, s, res.Score)
		assert.LessOrEqual(t, res.Iterations[r], 10)
		assert.GreaterOrEqual(t, res.Iterations[r], 1)
	}
	assert.Equal(t, res.Score, res.RestartScores[res.BestRestart])
}

func TestOptimize_Errors(t *testing.T) {
	opt := NewOptimizer(Config{})

	one := &models.AlignedMatrix{Models: []string{"a"}, Columns: [][]float64{{0.1}}, Targets: []float64{1}}
	_, err := opt.Optimize(context.Background(), one)
	var insufficient *models.InsufficientModelsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 1, insufficient.Have)

	unlabeled := &models.AlignedMatrix{Models: []string{"a", "b"}, Columns: [][]float64{{0.1}, {0.2}}}
	_, err = opt.Optimize(context.Background(), unlabeled)
	var schemaErr *models.SchemaError
	assert.True(t, errors.As(err, &schemaErr))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = opt.Optimize(ctx, noisyModels(50, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProject(t *testing.T) {
	w := []float64{-0.2, 0.6, 0.6}
	require.True(t, project(w))
	assert.Equal(t, []float64{0, 0.5, 0.5}, w)

	assert.False(t, project([]float64{-1, 0}))
}

func TestDirichlet(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		w := dirichlet(rng, 4)
		sum := 0.0
		for _, v := range w {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
		assert.False(t, math.IsNaN(sum))
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := NewOptimizer(Config{}).Config()
	assert.Equal(t, metrics.AUC, cfg.Metric)
	assert.Equal(t, DefaultRestarts, cfg.Restarts)
	assert.Equal(t, DefaultIterations, cfg.Iterations)
	assert.Equal(t, DefaultStep, cfg.Step)
	assert.Equal(t, DefaultDecay, cfg.Decay)
	assert.Positive(t, cfg.Jobs)
}

package statistics

import (
	"testing"

	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapCI_EmptyAndSingle(t *testing.T) {
	ci := Bootstrap{Seed: 1}.CI(nil)
	assert.Equal(t, ConfidenceInterval{ConfidenceLevel: DefaultConfidenceLevel}, ci)

	ci = Bootstrap{Seed: 1}.CI([]float64{0.75})
	assert.Equal(t, 0.75, ci.Mean)
	assert.Equal(t, 0.75, ci.Lower)
	assert.Equal(t, 0.75, ci.Upper)
	assert.Zero(t, ci.NumBootstraps)
}

func TestBootstrapCI_IdenticalValues(t *testing.T) {
	ci := Bootstrap{Seed: 42}.CI([]float64{0.5, 0.5, 0.5, 0.5})
	assert.InDelta(t, 0.5, ci.Lower, 1e-12)
	assert.InDelta(t, 0.5, ci.Upper, 1e-12)
}

func TestBootstrapCI_KnownDistribution(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	ci := Bootstrap{Seed: 42}.CI(scores)

	assert.InDelta(t, 0.55, ci.Mean, 1e-12)
	assert.Less(t, ci.Lower, ci.Mean)
	assert.Greater(t, ci.Upper, ci.Mean)
	assert.GreaterOrEqual(t, ci.Lower, 0.1)
	assert.LessOrEqual(t, ci.Upper, 1.0)
	assert.Equal(t, DefaultBootstrapIterations, ci.NumBootstraps)
	assert.Equal(t, 0.95, ci.ConfidenceLevel)
}

func TestBootstrapCI_NarrowerAtHigherN(t *testing.T) {
	small := []float64{0.3, 0.5, 0.7}
	large := []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.3, 0.4, 0.5, 0.6, 0.7,
		0.3, 0.4, 0.5, 0.6, 0.7, 0.3, 0.4, 0.5, 0.6, 0.7}

	b := Bootstrap{Seed: 42, Iterations: 2000}
	ciSmall, ciLarge := b.CI(small), b.CI(large)
	assert.Less(t, ciLarge.Upper-ciLarge.Lower, ciSmall.Upper-ciSmall.Lower)
}

func TestBootstrapCI_Deterministic(t *testing.T) {
	scores := []float64{0.2, 0.4, 0.6, 0.8}
	b := Bootstrap{Seed: 99, Iterations: 500, Level: 0.9}
	assert.Equal(t, b.CI(scores), b.CI(scores))
	assert.Equal(t, 0.9, b.CI(scores).ConfidenceLevel)
}

func TestIsSignificant(t *testing.T) {
	tests := []struct {
		name string
		ci   ConfidenceInterval
		want bool
	}{
		{"both positive", ConfidenceInterval{Lower: 0.1, Upper: 0.5}, true},
		{"both negative", ConfidenceInterval{Lower: -0.5, Upper: -0.1}, true},
		{"crosses zero", ConfidenceInterval{Lower: -0.1, Upper: 0.3}, false},
		{"lower at zero", ConfidenceInterval{Lower: 0.0, Upper: 0.5}, false},
		{"both zero", ConfidenceInterval{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSignificant(tt.ci))
		})
	}
}

func TestNormalizedGain(t *testing.T) {
	tests := []struct {
		name      string
		pre, post float64
		want      float64
	}{
		{"basic gain", 0.4, 0.7, 0.5},
		{"no change", 0.5, 0.5, 0.0},
		{"reaches ceiling", 0.5, 1.0, 1.0},
		{"pre at ceiling", 1.0, 1.0, 0.0},
		{"high pre small gain", 0.9, 0.95, 0.5},
		{"negative gain", 0.5, 0.3, -0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NormalizedGain(tt.pre, tt.post), 1e-9)
		})
	}
}

func TestCompare(t *testing.T) {
	targets := []float64{0, 1, 0, 1, 0, 1, 0, 1}
	folds := []int{0, 0, 0, 0, 1, 1, 1, 1}
	perfect := Pair{Name: "weighted", Preds: []float64{0.1, 0.9, 0.2, 0.8, 0.3, 0.7, 0.1, 0.6}}
	weak := Pair{Name: "b", Preds: []float64{0.6, 0.9, 0.2, 0.4, 0.3, 0.7, 0.8, 0.6}}

	imp := Compare(metrics.AUC, perfect, weak, targets, folds, Bootstrap{Seed: 1, Iterations: 200})
	assert.Equal(t, "weighted", imp.Blend)
	assert.Equal(t, "b", imp.Baseline)
	assert.Equal(t, 1.0, imp.BlendScore)
	assert.Greater(t, imp.Delta, 0.0)
	require.NotNil(t, imp.NormalizedGain)
	assert.Equal(t, 1.0, *imp.NormalizedGain)
	assert.Equal(t, []int{0, 1}, imp.Folds)
	require.Len(t, imp.FoldDeltas, 2)
	require.NotNil(t, imp.CI)
	assert.Equal(t, 200, imp.CI.NumBootstraps)

	noFolds := Compare(metrics.MSE, perfect, weak, targets, nil, Bootstrap{})
	assert.Nil(t, noFolds.CI)
	assert.Nil(t, noFolds.NormalizedGain)
	assert.Greater(t, noFolds.Delta, 0.0, "lower error counts as a positive delta")
}

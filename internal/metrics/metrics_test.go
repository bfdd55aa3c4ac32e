package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/crediblend/crediblend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name    string
		preds   []float64
		targets []float64
		want    float64
	}{
		{"perfect", []float64{0.1, 0.2, 0.8, 0.9}, []float64{0, 0, 1, 1}, 1.0},
		{"inverted", []float64{0.9, 0.8, 0.2, 0.1}, []float64{0, 0, 1, 1}, 0.0},
		{"textbook", []float64{0.1, 0.4, 0.35, 0.8}, []float64{0, 0, 1, 1}, 0.75},
		{"all tied", []float64{0.5, 0.5, 0.5, 0.5}, []float64{0, 1, 0, 1}, 0.5},
		{"partial tie", []float64{0.2, 0.5, 0.5, 0.9}, []float64{0, 0, 1, 1}, 0.875},
		{"single class positive", []float64{0.1, 0.7, 0.3}, []float64{1, 1, 1}, 0.5},
		{"single class negative", []float64{0.1, 0.7, 0.3}, []float64{0, 0, 0}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ROCAUC(tt.preds, tt.targets), 1e-12)
		})
	}
}

func TestROCAUC_MonotonicInvariance(t *testing.T) {
	preds := []float64{0.12, 0.55, 0.31, 0.87, 0.44, 0.05, 0.66, 0.91, 0.23, 0.5}
	targets := []float64{0, 1, 0, 1, 1, 0, 0, 1, 0, 1}
	base := ROCAUC(preds, targets)

	transforms := map[string]func(float64) float64{
		"exp":    math.Exp,
		"cube":   func(x float64) float64 { return x * x * x },
		"affine": func(x float64) float64 { return 3*x - 7 },
		"logit":  func(x float64) float64 { return math.Log(x / (1 - x)) },
	}
	for name, fn := range transforms {
		t.Run(name, func(t *testing.T) {
			moved := make([]float64, len(preds))
			for i, p := range preds {
				moved[i] = fn(p)
			}
			assert.Equal(t, base, ROCAUC(moved, targets))
		})
	}
}

func TestScore(t *testing.T) {
	preds := []float64{0.5, 1.5, 3}
	targets := []float64{1, 1, 1}

	mse, err := Score(MSE, preds, targets)
	require.NoError(t, err)
	assert.InDelta(t, (0.25+0.25+4.0)/3, mse, 1e-12)

	mae, err := Score(MAE, preds, targets)
	require.NoError(t, err)
	assert.InDelta(t, (0.5+0.5+2.0)/3, mae, 1e-12)

	auc, err := Score(AUC, preds, targets)
	require.NoError(t, err)
	assert.Equal(t, 0.5, auc)
}

func TestScore_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		preds   []float64
		targets []float64
	}{
		{"length mismatch", []float64{1, 2}, []float64{1}},
		{"empty", nil, nil},
		{"nan prediction", []float64{math.NaN()}, []float64{1}},
		{"infinite target", []float64{0.2}, []float64{math.Inf(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Score(AUC, tt.preds, tt.targets)
			require.Error(t, err)
			var schemaErr *models.SchemaError
			assert.True(t, errors.As(err, &schemaErr))
		})
	}
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric(" AUC ")
	require.NoError(t, err)
	assert.Equal(t, AUC, m)
	assert.True(t, m.HigherIsBetter())

	m, err = ParseMetric("mae")
	require.NoError(t, err)
	assert.False(t, m.HigherIsBetter())
	assert.True(t, m.Better(0.1, 0.2))
	assert.InDelta(t, 0.1, m.Gain(0.1, 0.2), 1e-12)

	_, err = ParseMetric("logloss")
	require.Error(t, err)
}

func TestRanks(t *testing.T) {
	got := Ranks([]float64{10, 20, 10, 30, 20})
	assert.Equal(t, []float64{1.5, 3.5, 1.5, 5, 3.5}, got)
	assert.Empty(t, Ranks(nil))
}

func TestHasBothClasses(t *testing.T) {
	assert.True(t, HasBothClasses([]float64{0, 1}))
	assert.False(t, HasBothClasses([]float64{1, 1}))
	assert.False(t, HasBothClasses(nil))
	assert.True(t, IsBinary([]float64{0, 1, 1}))
	assert.False(t, IsBinary([]float64{0, 0.5}))
}

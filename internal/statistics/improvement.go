// Package statistics quantifies how much a blend improves over the best
// single model and how reliable that improvement is.
package statistics

import (
	"github.com/crediblend/crediblend/internal/metrics"
)

// Improvement compares a blend with the best single model.
type Improvement struct {
	Metric        metrics.Metric `json:"metric"`
	Blend         string         `json:"blend"`
	Baseline      string         `json:"baseline"`
	BlendScore    float64        `json:"blend_score"`
	BaselineScore float64        `json:"baseline_score"`
	// Delta is positive when the blend is better, whatever the metric's
	// direction.
	Delta float64 `json:"delta"`
	// NormalizedGain is only set for AUC, where the ceiling is 1.
	NormalizedGain *float64 `json:"normalized_gain,omitempty"`
	// Folds and FoldDeltas are parallel and empty when the rows carry no
	// folds.
	Folds       []int               `json:"folds,omitempty"`
	FoldDeltas  []float64           `json:"fold_deltas,omitempty"`
	CI          *ConfidenceInterval `json:"ci,omitempty"`
	Significant bool                `json:"significant"`
}

// Pair names one prediction column.
type Pair struct {
	Name  string
	Preds []float64
}

// Compare scores blend and baseline against targets. When folds are
// given the per-fold deltas are bootstrapped into a confidence interval.
func Compare(metric metrics.Metric, blend, baseline Pair, targets []float64, folds []int, b Bootstrap) Improvement {
	imp := Improvement{
		Metric:        metric,
		Blend:         blend.Name,
		Baseline:      baseline.Name,
		BlendScore:    metrics.MustScore(metric, blend.Preds, targets),
		BaselineScore: metrics.MustScore(metric, baseline.Preds, targets),
	}
	imp.Delta = metric.Gain(imp.BlendScore, imp.BaselineScore)
	if metric == metrics.AUC {
		g := NormalizedGain(imp.BaselineScore, imp.BlendScore)
		imp.NormalizedGain = &g
	}

	if folds == nil {
		return imp
	}
	ids, blendFolds := metrics.FoldScores(metric, blend.Preds, targets, folds)
	_, baseFolds := metrics.FoldScores(metric, baseline.Preds, targets, folds)
	if len(ids) < 2 {
		return imp
	}
	imp.Folds = ids
	imp.FoldDeltas = make([]float64, len(ids))
	for k := range ids {
		imp.FoldDeltas[k] = metric.Gain(blendFolds[k], baseFolds[k])
	}
	ci := b.CI(imp.FoldDeltas)
	imp.CI = &ci
	imp.Significant = IsSignificant(ci)
	return imp
}

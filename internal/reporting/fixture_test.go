package reporting

import (
	"time"

	"github.com/crediblend/crediblend/internal/align"
	"github.com/crediblend/crediblend/internal/engine"
	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/models"
	"github.com/crediblend/crediblend/internal/statistics"
	"github.com/crediblend/crediblend/internal/timeslice"
	"github.com/crediblend/crediblend/internal/weights"
)

func newTestReport() *engine.Report {
	gain := 0.1
	return &engine.Report{
		RunID:     "run-1",
		Metric:    metrics.AUC,
		StartedAt: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		Duration:  3500 * time.Millisecond,
		Outcome:   models.OutcomeWarned,
		Alignment: engine.Alignment{OOF: align.Stats{TotalIDs: 5, CommonIDs: 4, Dropped: 1}},
		Models: []models.ModelScore{
			{Model: "lgbm", Score: 0.81, FoldScores: []float64{0.8, 0.82}, FoldMean: 0.81, FoldStdDev: 0.01, Kept: true, Cluster: 1},
			{Model: "xgb", Score: 0.79, Kept: true, Cluster: 2},
		},
		Summary: engine.ScoreSummary{BestModel: "lgbm", Best: 0.81, Worst: 0.79, Mean: 0.8, StdDev: 0.01},
		Methods: []models.MethodScore{
			{Method: "weighted", Score: 0.83, Rank: 1, Models: []string{"lgbm", "xgb"}, Weights: []float64{0.6, 0.4}},
			{Method: "best_single", Score: 0.81, Rank: 2, Models: []string{"lgbm"}, Model: "lgbm"},
			{Method: "stacking", Score: 0.80, Rank: 3, Models: []string{"lgbm", "xgb"}, Fallback: "mean"},
		},
		Best: engine.BestPrediction{
			Method:      "weighted",
			Source:      "oof",
			IDs:         []string{"a", "b", "c", "d"},
			Predictions: []float64{0.1, 0.25, 0.5, 0.875},
		},
		WeightSearch: &weights.Result{Models: []string{"lgbm", "xgb"}, Weights: []float64{0.6, 0.4}, Score: 0.83, Seed: 42, Restarts: 4},
		TimeSlice: &timeslice.Result{
			Frequency: timeslice.Monthly,
			Models:    []string{"lgbm", "xgb"},
			Windows: []timeslice.Window{
				{Label: "2024-01", Rows: 3, Positives: 1, Evaluable: true, AUC: []float64{1, 0.5}, Dominant: "lgbm"},
				{Label: "2024-02", Rows: 1, Positives: 0},
			},
			Stability: []timeslice.ModelStability{
				{Model: "lgbm", PooledAUC: 0.81, Windows: 1},
				{Model: "xgb", PooledAUC: 0.79, Windows: 1},
			},
		},
		Improvement: statistics.Improvement{
			Metric:         metrics.AUC,
			Blend:          "weighted",
			Baseline:       "lgbm",
			BlendScore:     0.83,
			BaselineScore:  0.81,
			Delta:          0.02,
			NormalizedGain: &gain,
		},
		Epsilon: engine.DefaultImprovementEpsilon,
		Warnings: []models.Warning{
			{Code: models.WarnStackingFailure, Method: "stacking", Fallback: "mean", Message: "training rows contain a single class"},
		},
	}
}

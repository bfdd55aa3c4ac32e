package engine

import (
	"time"

	"github.com/crediblend/crediblend/internal/align"
	"github.com/crediblend/crediblend/internal/decorrelate"
	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/models"
	"github.com/crediblend/crediblend/internal/stacking"
	"github.com/crediblend/crediblend/internal/statistics"
	"github.com/crediblend/crediblend/internal/timeslice"
	"github.com/crediblend/crediblend/internal/weights"
)

// Report is everything a run produced.
type Report struct {
	RunID     string         `json:"run_id"`
	Metric    metrics.Metric `json:"metric"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration_ns"`
	Outcome   models.Outcome `json:"outcome"`

	Alignment     Alignment              `json:"alignment"`
	Models        []models.ModelScore    `json:"models"`
	Summary       ScoreSummary           `json:"summary"`
	Decorrelation *decorrelate.Result    `json:"decorrelation,omitempty"`
	Methods       []models.MethodScore   `json:"methods"`
	Best          BestPrediction         `json:"best"`
	WeightSearch  *weights.Result        `json:"weight_search,omitempty"`
	Stacking      *stacking.Result       `json:"stacking,omitempty"`
	TimeSlice     *timeslice.Result      `json:"time_slice,omitempty"`
	Improvement   statistics.Improvement `json:"improvement"`
	// Epsilon is the margin Improvement.Delta must exceed.
	Epsilon  float64          `json:"improvement_epsilon"`
	Warnings []models.Warning `json:"warnings"`
}

// Alignment summarises the joins of one run.
type Alignment struct {
	OOF        align.Stats  `json:"oof"`
	Submission *align.Stats `json:"submission,omitempty"`
	// DroppedModels lists models that had only OOF or only submission
	// predictions.
	DroppedModels []string `json:"dropped_models,omitempty"`
}

// ScoreSummary describes the spread of standalone model scores.
type ScoreSummary struct {
	BestModel string  `json:"best_model"`
	Best      float64 `json:"best"`
	Worst     float64 `json:"worst"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
}

// BestPrediction is the winning blend keyed by id. Source is "submission"
// when submission predictions were blended, "oof" otherwise.
type BestPrediction struct {
	Method      string    `json:"method"`
	Source      string    `json:"source"`
	IDs         []string  `json:"-"`
	Predictions []float64 `json:"-"`
}

// MethodScore returns the ranked entry for method, if it ran.
func (r *Report) MethodScore(method string) (models.MethodScore, bool) {
	for _, m := range r.Methods {
		if m.Method == method {
			return m, true
		}
	}
	return models.MethodScore{}, false
}

// HasWarning reports whether a warning with code was recorded.
func (r *Report) HasWarning(code models.WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Decide derives the run outcome: any warning wins, then an improvement
// larger than epsilon, then no improvement.
func Decide(warnings []models.Warning, improvement statistics.Improvement, epsilon float64) models.Outcome {
	switch {
	case len(warnings) > 0:
		return models.OutcomeWarned
	case improvement.Delta > epsilon:
		return models.OutcomeImproved
	default:
		return models.OutcomeNoImprovement
	}
}

// Package metrics scores prediction vectors against targets.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/crediblend/crediblend/internal/models"
)

// Metric is the evaluation metric used to score models and blends.
type Metric string

const (
	AUC Metric = "auc"
	MSE Metric = "mse"
	MAE Metric = "mae"
)

// ParseMetric resolves a metric name, case-insensitively.
func ParseMetric(name string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(name))); m {
	case AUC, MSE, MAE:
		return m, nil
	default:
		return "", fmt.Errorf("unknown metric %q: must be one of auc, mse, mae", name)
	}
}

// HigherIsBetter reports the optimisation direction of the metric.
func (m Metric) HigherIsBetter() bool {
	return m == AUC
}

// IsClassification reports whether the metric expects binary targets.
func (m Metric) IsClassification() bool {
	return m == AUC
}

// Better reports whether score a is strictly better than score b.
func (m Metric) Better(a, b float64) bool {
	if m.HigherIsBetter() {
		return a > b
	}
	return a < b
}

// Worst returns a score that every finite score beats.
func (m Metric) Worst() float64 {
	if m.HigherIsBetter() {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

// Gain returns how much better a is than b, positive when a is better.
func (m Metric) Gain(a, b float64) float64 {
	if m.HigherIsBetter() {
		return a - b
	}
	return b - a
}

// Score computes the metric after checking the inputs are equal-length
// finite sequences.
func Score(m Metric, preds, targets []float64) (float64, error) {
	if err := checkInputs(preds, targets); err != nil {
		return 0, err
	}
	switch m {
	case AUC:
		return ROCAUC(preds, targets), nil
	case MSE:
		return MeanSquaredError(preds, targets), nil
	case MAE:
		return MeanAbsoluteError(preds, targets), nil
	default:
		return 0, fmt.Errorf("unknown metric %q", m)
	}
}

// MustScore is Score for inputs already known to be valid, such as
// columns of a validated aligned matrix.
func MustScore(m Metric, preds, targets []float64) float64 {
	switch m {
	case MSE:
		return MeanSquaredError(preds, targets)
	case MAE:
		return MeanAbsoluteError(preds, targets)
	default:
		return ROCAUC(preds, targets)
	}
}

func checkInputs(preds, targets []float64) error {
	if len(preds) != len(targets) {
		return &models.SchemaError{Column: "pred", Message: fmt.Sprintf("%d predictions for %d targets", len(preds), len(targets))}
	}
	if len(preds) == 0 {
		return &models.SchemaError{Column: "pred", Message: "no rows to score"}
	}
	for i := range preds {
		if math.IsNaN(preds[i]) || math.IsInf(preds[i], 0) {
			return &models.SchemaError{Column: "pred", Row: i + 1, Message: "prediction is not finite"}
		}
		if math.IsNaN(targets[i]) || math.IsInf(targets[i], 0) {
			return &models.SchemaError{Column: "target", Row: i + 1, Message: "target is not finite"}
		}
	}
	return nil
}

// ROCAUC is the probability that a random positive is ranked above a
// random negative, with tied predictions sharing credit through mid-ranks.
// Targets above 0.5 are positives. A single-class target yields 0.5.
func ROCAUC(preds, targets []float64) float64 {
	ranks := Ranks(preds)
	var nPos, nNeg, rankSum float64
	for i, t := range targets {
		if t > 0.5 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}

// MeanSquaredError returns the mean of squared residuals.
func MeanSquaredError(preds, targets []float64) float64 {
	if len(preds) == 0 {
		return 0
	}
	sum := 0.0
	for i := range preds {
		d := preds[i] - targets[i]
		sum += d * d
	}
	return sum / float64(len(preds))
}

// MeanAbsoluteError returns the mean of absolute residuals.
func MeanAbsoluteError(preds, targets []float64) float64 {
	if len(preds) == 0 {
		return 0
	}
	sum := 0.0
	for i := range preds {
		sum += math.Abs(preds[i] - targets[i])
	}
	return sum / float64(len(preds))
}

// Ranks returns 1-based ranks of values; ties receive the mean of the
// positions they span.
func Ranks(values []float64) []float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && values[order[j]] == values[order[i]] {
			j++
		}
		// positions i..j-1 (0-based) hold ranks i+1..j
		mid := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = mid
		}
		i = j
	}
	return ranks
}

// IsBinary reports whether every target is 0 or 1.
func IsBinary(targets []float64) bool {
	for _, t := range targets {
		if t != 0 && t != 1 {
			return false
		}
	}
	return true
}

// HasBothClasses reports whether targets contain at least one positive
// and one negative.
func HasBothClasses(targets []float64) bool {
	var pos, neg bool
	for _, t := range targets {
		if t > 0.5 {
			pos = true
		} else {
			neg = true
		}
		if pos && neg {
			return true
		}
	}
	return false
}

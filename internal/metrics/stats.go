package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean is the arithmetic mean of values, 0 when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// StdDev is the population standard deviation of values, 0 when empty.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(values, nil))
}

// FoldScores scores preds separately on every fold. The returned fold ids
// are sorted ascending and parallel to the scores.
func FoldScores(m Metric, preds, targets []float64, folds []int) ([]int, []float64) {
	if folds == nil {
		return nil, nil
	}
	byFold := make(map[int][]int)
	for i, f := range folds {
		byFold[f] = append(byFold[f], i)
	}

	ids := make([]int, 0, len(byFold))
	for f := range byFold {
		ids = append(ids, f)
	}
	sort.Ints(ids)

	scores := make([]float64, len(ids))
	for k, f := range ids {
		rows := byFold[f]
		p := make([]float64, len(rows))
		t := make([]float64, len(rows))
		for j, i := range rows {
			p[j] = preds[i]
			t[j] = targets[i]
		}
		scores[k] = MustScore(m, p, t)
	}
	return ids, scores
}

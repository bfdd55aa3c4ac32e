// Package decorrelate removes redundant models before blending.
//
// Models are compared by the Spearman correlation of their predictions,
// grouped by average-linkage agglomerative clustering on the distance
// 1-|ρ|, and each cluster is reduced to its best-scoring member.
package decorrelate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/models"
)

// DefaultThreshold is the correlation above which models are considered
// redundant.
const DefaultThreshold = 0.8

// CorrelationMatrix is the model-by-model Spearman correlation matrix.
// Entries are NaN when either column has zero variance; the diagonal is 1.
type CorrelationMatrix struct {
	Models []string    `json:"models"`
	Values [][]float64 `json:"values"`
}

// At returns the correlation between models i and j.
func (c *CorrelationMatrix) At(i, j int) float64 {
	return c.Values[i][j]
}

// Cluster is one group of mutually correlated models.
type Cluster struct {
	ID             int      `json:"id"`
	Members        []string `json:"members"`
	Representative string   `json:"representative"`
}

// Merge records one agglomeration step.
type Merge struct {
	Left     []string `json:"left"`
	Right    []string `json:"right"`
	Distance float64  `json:"distance"`
}

// Result is the outcome of decorrelation. Kept preserves input order.
type Result struct {
	Threshold   float64            `json:"threshold"`
	Correlation CorrelationMatrix  `json:"correlation"`
	Clusters    []Cluster          `json:"clusters"`
	Assignment  map[string]int     `json:"assignment"`
	Scores      map[string]float64 `json:"scores"`
	Merges      []Merge            `json:"merges"`
	Kept        []string           `json:"kept"`
	Dropped     []string           `json:"dropped"`
	// Degenerate is set when more than one model collapsed into a single
	// cluster, which reduces every downstream blend to one model.
	Degenerate bool `json:"degenerate"`
}

// Spearman computes the Spearman correlation matrix of the matrix columns.
func Spearman(m *models.AlignedMatrix) CorrelationMatrix {
	n := m.NumModels()
	ranks := make([][]float64, n)
	for j, col := range m.Columns {
		ranks[j] = metrics.Ranks(col)
	}

	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
		values[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			rho := stat.Correlation(ranks[i], ranks[j], nil)
			if math.IsInf(rho, 0) {
				rho = math.NaN()
			}
			values[i][j] = rho
			values[j][i] = rho
		}
	}
	return CorrelationMatrix{Models: append([]string(nil), m.Models...), Values: values}
}

// Distance converts a correlation into a clustering distance. Undefined
// correlations count as perfectly correlated.
func Distance(rho float64) float64 {
	if math.IsNaN(rho) {
		return 0
	}
	d := 1 - math.Abs(rho)
	if d < 0 {
		return 0
	}
	return d
}

// Decorrelate clusters the models of m and keeps one representative per
// cluster. The representative is the member with the best standalone score
// under metric; ties go to the member that comes first in m.Models.
func Decorrelate(m *models.AlignedMatrix, metric metrics.Metric, threshold float64) (*Result, error) {
	if m.NumModels() == 0 {
		return nil, &models.InsufficientModelsError{Component: "decorrelation", Have: 0, Need: 1}
	}
	if !m.HasTargets() {
		return nil, &models.SchemaError{Column: "target", Message: "decorrelation needs targets to pick cluster representatives"}
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("correlation threshold %g must be in (0, 1]", threshold)
	}

	res := &Result{
		Threshold:   threshold,
		Correlation: Spearman(m),
		Assignment:  make(map[string]int, m.NumModels()),
		Scores:      make(map[string]float64, m.NumModels()),
	}

	scores := make([]float64, m.NumModels())
	for j, col := range m.Columns {
		scores[j] = metrics.MustScore(metric, col, m.Targets)
		res.Scores[m.Models[j]] = scores[j]
	}

	groups, merges := averageLinkage(res.Correlation.Values, 1-threshold)
	for _, mg := range merges {
		res.Merges = append(res.Merges, Merge{
			Left:     names(m.Models, mg.left),
			Right:    names(m.Models, mg.right),
			Distance: mg.distance,
		})
	}

	keep := make([]bool, m.NumModels())
	for id, members := range groups {
		best := members[0]
		for _, j := range members[1:] {
			if metric.Better(scores[j], scores[best]) {
				best = j
			}
		}
		keep[best] = true
		for _, j := range members {
			res.Assignment[m.Models[j]] = id
		}
		res.Clusters = append(res.Clusters, Cluster{
			ID:             id,
			Members:        names(m.Models, members),
			Representative: m.Models[best],
		})
	}

	for j, name := range m.Models {
		if keep[j] {
			res.Kept = append(res.Kept, name)
		} else {
			res.Dropped = append(res.Dropped, name)
		}
	}
	res.Degenerate = m.NumModels() > 1 && len(groups) == 1

	return res, nil
}

// Warning returns the degenerate-clustering warning, or nil when the
// clustering kept more than one model.
func (r *Result) Warning() *models.DegenerateClusteringWarning {
	if !r.Degenerate {
		return nil
	}
	return &models.DegenerateClusteringWarning{
		Models:         len(r.Assignment),
		Representative: r.Kept[0],
		Threshold:      r.Threshold,
	}
}

func names(all []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = all[j]
	}
	return out
}

package statistics

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ConfidenceInterval holds the result of a bootstrap confidence interval computation.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

// Bootstrap defaults.
const (
	DefaultBootstrapIterations = 10000
	DefaultConfidenceLevel     = 0.95
)

// Bootstrap resamples values with replacement to estimate a percentile
// confidence interval of their mean. Resampling is seeded so repeated runs
// report the same interval.
type Bootstrap struct {
	Iterations int
	Level      float64
	Seed       int64
}

// CI computes the interval. Fewer than 2 values yield a degenerate
// interval at their mean with no resamples.
func (b Bootstrap) CI(values []float64) ConfidenceInterval {
	iters := b.Iterations
	if iters <= 0 {
		iters = DefaultBootstrapIterations
	}
	level := b.Level
	if level <= 0 || level >= 1 {
		level = DefaultConfidenceLevel
	}

	n := len(values)
	m := 0.0
	if n > 0 {
		m = stat.Mean(values, nil)
	}
	if n < 2 {
		return ConfidenceInterval{Lower: m, Upper: m, Mean: m, ConfidenceLevel: level}
	}

	rng := rand.New(rand.NewSource(b.Seed))
	means := make([]float64, iters)
	sample := make([]float64, n)
	for i := range means {
		for j := range sample {
			sample[j] = values[rng.Intn(n)]
		}
		means[i] = stat.Mean(sample, nil)
	}
	sort.Float64s(means)

	alpha := 1 - level
	return ConfidenceInterval{
		Lower:           stat.Quantile(alpha/2, stat.Empirical, means, nil),
		Upper:           stat.Quantile(1-alpha/2, stat.Empirical, means, nil),
		Mean:            m,
		ConfidenceLevel: level,
		NumBootstraps:   iters,
	}
}

// IsSignificant returns true if the confidence interval does not contain zero,
// indicating statistical significance at the given confidence level.
func IsSignificant(ci ConfidenceInterval) bool {
	return ci.Lower > 0 || ci.Upper < 0
}

// NormalizedGain is the share of the remaining headroom to a perfect score
// that was closed going from pre to post:
//
//	g = (post - pre) / (1 - pre)
//
// It is 0 when pre is already perfect or nothing changed, and 1 once post
// reaches 1.
func NormalizedGain(pre, post float64) float64 {
	if pre >= 1.0 {
		return 0.0
	}
	if post >= 1.0 {
		return 1.0
	}
	if math.Abs(post-pre) < 1e-12 {
		return 0.0
	}
	return (post - pre) / (1.0 - pre)
}

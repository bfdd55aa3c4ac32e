// Package blend combines the columns of an aligned matrix into a single
// prediction column.
package blend

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/models"
)

// Kind identifies a blending method.
type Kind string

const (
	KindMean       Kind = "mean"
	KindRankMean   Kind = "rank_mean"
	KindLogitMean  Kind = "logit_mean"
	KindBestSingle Kind = "best_single"
	KindWeighted   Kind = "weighted"
	KindStacking   Kind = "stacking"
)

// DefaultKinds is the method list used when none is configured.
var DefaultKinds = []Kind{KindMean, KindRankMean, KindLogitMean, KindBestSingle, KindWeighted, KindStacking}

// DefaultLogitEpsilon bounds probabilities away from 0 and 1 before the
// logit transform.
const DefaultLogitEpsilon = 1e-7

// ParseKind resolves a method name.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case KindMean, KindRankMean, KindLogitMean, KindBestSingle, KindWeighted, KindStacking:
		return k, nil
	default:
		return "", fmt.Errorf("'%s' is not a valid blend method", name)
	}
}

// ParseKinds resolves a list of method names, rejecting duplicates.
func ParseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	seen := make(map[Kind]bool, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			return nil, fmt.Errorf("blend method '%s' listed twice", k)
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no blend methods given")
	}
	return kinds, nil
}

// Params tunes a blend. Zero values select defaults.
type Params struct {
	// Epsilon is the clipping bound of logit_mean.
	Epsilon float64 `mapstructure:"epsilon"`
	// Metric picks the best model for best_single.
	Metric metrics.Metric `mapstructure:"metric"`
	// Model forces best_single to a model chosen elsewhere, typically on
	// OOF predictions before blending submissions.
	Model string `mapstructure:"model"`
	// Weights is the simplex weight vector applied by weighted.
	Weights []float64 `mapstructure:"weights"`
}

// DecodeParams decodes a loosely typed parameter map, as found in the
// project configuration, into Params.
func DecodeParams(raw map[string]any) (Params, error) {
	var p Params
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(raw); err != nil {
		return p, fmt.Errorf("decoding blend params: %w", err)
	}
	if p.Metric != "" {
		m, err := metrics.ParseMetric(string(p.Metric))
		if err != nil {
			return p, err
		}
		p.Metric = m
	}
	return p, nil
}

// Func produces a combined prediction from m. targets may be nil for
// methods that do not need labels.
type Func func(m *models.AlignedMatrix, targets []float64, p Params) (*models.BlendResult, error)

// Resolve returns the blend function for kind. Stacking is fitted rather
// than applied and has no blend function.
func Resolve(kind Kind) (Func, error) {
	switch kind {
	case KindMean:
		return Mean, nil
	case KindRankMean:
		return RankMean, nil
	case KindLogitMean:
		return LogitMean, nil
	case KindBestSingle:
		return BestSingle, nil
	case KindWeighted:
		return Weighted, nil
	case KindStacking:
		return nil, fmt.Errorf("'%s' is fitted by the stacking package", kind)
	default:
		return nil, fmt.Errorf("'%s' is not a valid blend method", kind)
	}
}

// Mean averages the columns row-wise.
func Mean(m *models.AlignedMatrix, _ []float64, _ Params) (*models.BlendResult, error) {
	if err := requireModels(m, 1); err != nil {
		return nil, err
	}
	return result(KindMean, m, rowMean(m.Columns, m.Rows()), models.BlendParams{}), nil
}

// RankMean replaces each column by its fractional ranks in [0, 1] and
// averages them.
func RankMean(m *models.AlignedMatrix, _ []float64, _ Params) (*models.BlendResult, error) {
	if err := requireModels(m, 1); err != nil {
		return nil, err
	}
	ranked := make([][]float64, len(m.Columns))
	for j, col := range m.Columns {
		ranked[j] = FractionalRanks(col)
	}
	return result(KindRankMean, m, rowMean(ranked, m.Rows()), models.BlendParams{}), nil
}

// LogitMean averages predictions in logit space and maps the mean back to
// a probability.
func LogitMean(m *models.AlignedMatrix, _ []float64, p Params) (*models.BlendResult, error) {
	if err := requireModels(m, 1); err != nil {
		return nil, err
	}
	eps := p.Epsilon
	if eps == 0 {
		eps = DefaultLogitEpsilon
	}
	if eps <= 0 || eps >= 0.5 {
		return nil, fmt.Errorf("logit epsilon %g must be in (0, 0.5)", eps)
	}

	n := m.Rows()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for _, col := range m.Columns {
			sum += Logit(Clip(col[i], eps, 1-eps))
		}
		out[i] = Sigmoid(sum / float64(len(m.Columns)))
	}
	return result(KindLogitMean, m, out, models.BlendParams{Epsilon: eps}), nil
}

// BestSingle returns the column of the best model. The model is p.Model
// when set, otherwise the best scorer on targets under p.Metric (AUC when
// unset); ties go to the first model.
func BestSingle(m *models.AlignedMatrix, targets []float64, p Params) (*models.BlendResult, error) {
	if err := requireModels(m, 1); err != nil {
		return nil, err
	}

	name := p.Model
	if name == "" {
		if targets == nil {
			return nil, &models.SchemaError{Column: "target", Message: "best_single needs labeled predictions to choose a model"}
		}
		metric := p.Metric
		if metric == "" {
			metric = metrics.AUC
		}
		var err error
		name, _, err = SelectBest(m, targets, metric)
		if err != nil {
			return nil, err
		}
	}

	col, ok := m.Column(name)
	if !ok {
		return nil, fmt.Errorf("best_single model %q is not in the matrix", name)
	}
	out := append([]float64(nil), col...)
	res := result(KindBestSingle, m, out, models.BlendParams{Model: name})
	res.Models = []string{name}
	return res, nil
}

// SelectBest returns the best-scoring model of m and its score. Ties go
// to the model listed first.
func SelectBest(m *models.AlignedMatrix, targets []float64, metric metrics.Metric) (string, float64, error) {
	best := -1
	bestScore := metric.Worst()
	for j, col := range m.Columns {
		s, err := metrics.Score(metric, col, targets)
		if err != nil {
			return "", 0, fmt.Errorf("scoring %s: %w", m.Models[j], err)
		}
		if best < 0 || metric.Better(s, bestScore) {
			best, bestScore = j, s
		}
	}
	if best < 0 {
		return "", 0, &models.InsufficientModelsError{Component: "best_single", Have: 0, Need: 1}
	}
	return m.Models[best], bestScore, nil
}

// Weighted applies the simplex weight vector p.Weights to the columns.
func Weighted(m *models.AlignedMatrix, _ []float64, p Params) (*models.BlendResult, error) {
	if err := requireModels(m, 1); err != nil {
		return nil, err
	}
	if err := CheckSimplex(p.Weights, m.NumModels()); err != nil {
		return nil, err
	}
	out := WeightedSum(m.Columns, p.Weights, nil)
	return result(KindWeighted, m, out, models.BlendParams{Weights: append([]float64(nil), p.Weights...)}), nil
}

// WeightedSum writes Σ w_j·col_j into dst (allocating when dst is too
// small) and returns it.
func WeightedSum(cols [][]float64, w []float64, dst []float64) []float64 {
	n := 0
	if len(cols) > 0 {
		n = len(cols[0])
	}
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = 0
	}
	for j, col := range cols {
		if w[j] == 0 {
			continue
		}
		for i, v := range col {
			dst[i] += w[j] * v
		}
	}
	return dst
}

// SimplexTolerance is the allowed deviation of a weight vector's sum
// from 1.
const SimplexTolerance = 1e-9

// CheckSimplex verifies w has n non-negative entries summing to 1.
func CheckSimplex(w []float64, n int) error {
	if len(w) != n {
		return fmt.Errorf("weight vector has %d entries for %d models", len(w), n)
	}
	sum := 0.0
	for i, v := range w {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %d is %g, must be a non-negative number", i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > SimplexTolerance {
		return fmt.Errorf("weights sum to %g, must sum to 1", sum)
	}
	return nil
}

// FractionalRanks maps values to (rank-1)/(n-1) with mid-ranks for ties.
// A single value maps to 0.5.
func FractionalRanks(values []float64) []float64 {
	n := len(values)
	ranks := metrics.Ranks(values)
	if n == 1 {
		ranks[0] = 0.5
		return ranks
	}
	for i := range ranks {
		ranks[i] = (ranks[i] - 1) / float64(n-1)
	}
	return ranks
}

// Clip bounds v to [lo, hi].
func Clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Logit is the log-odds of p.
func Logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

// Sigmoid is the inverse of Logit.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// rowMean is the running mean of cols per row, so identical columns
// return the column unchanged.
func rowMean(cols [][]float64, n int) []float64 {
	out := make([]float64, n)
	for j, col := range cols {
		k := float64(j + 1)
		for i, v := range col {
			out[i] += (v - out[i]) / k
		}
	}
	return out
}

func requireModels(m *models.AlignedMatrix, need int) error {
	if m == nil || m.NumModels() < need {
		have := 0
		if m != nil {
			have = m.NumModels()
		}
		return &models.InsufficientModelsError{Component: "blend", Have: have, Need: need}
	}
	return nil
}

func result(kind Kind, m *models.AlignedMatrix, preds []float64, params models.BlendParams) *models.BlendResult {
	return &models.BlendResult{
		Method:      string(kind),
		Models:      append([]string(nil), m.Models...),
		Predictions: preds,
		Params:      params,
	}
}

// Package stacking fits a linear meta-model on top of base model
// predictions.
//
// Classification metrics use L2-penalised logistic regression solved by
// iteratively reweighted least squares; regression metrics use ridge
// regression. The intercept is never penalised.
package stacking

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/crediblend/crediblend/internal/blend"
	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/models"
)

// Fitting defaults.
const (
	DefaultC         = 1.0
	DefaultAlpha     = 1.0
	DefaultMaxIter   = 100
	DefaultTolerance = 1e-8
)

// Learner names the meta-model family.
type Learner string

const (
	Logistic Learner = "logistic"
	Ridge    Learner = "ridge"
)

// Config tunes the meta-learner. Zero values select defaults.
type Config struct {
	Metric metrics.Metric
	// C is the inverse L2 strength of the logistic learner.
	C float64
	// Alpha is the L2 strength of the ridge learner.
	Alpha     float64
	MaxIter   int
	Tolerance float64
}

func (c Config) withDefaults() Config {
	if c.Metric == "" {
		c.Metric = metrics.AUC
	}
	if c.C <= 0 {
		c.C = DefaultC
	}
	if c.Alpha <= 0 {
		c.Alpha = DefaultAlpha
	}
	if c.MaxIter <= 0 {
		c.MaxIter = DefaultMaxIter
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	return c
}

// Learner returns the meta-model family used for the configured metric.
func (c Config) Learner() Learner {
	if c.withDefaults().Metric.IsClassification() {
		return Logistic
	}
	return Ridge
}

// Result is a fitted stacking model.
type Result struct {
	Models       []string  `json:"models"`
	Learner      Learner   `json:"learner"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	// OOF holds the meta-model's out-of-fold predictions, aligned with the
	// rows of the training matrix.
	OOF   []float64 `json:"-"`
	Score float64   `json:"score"`
	// Folds and FoldScores are parallel; both are empty for in-sample fits.
	Folds      []int     `json:"folds,omitempty"`
	FoldScores []float64 `json:"fold_scores,omitempty"`
	// InSample is set when no folds were available and OOF was produced by
	// the same model that was fit on every row.
	InSample bool `json:"in_sample"`
}

// Fit trains the meta-model on m. With two or more distinct folds every
// fold is predicted by a model fit on the remaining folds; the returned
// coefficients always come from a fit on all rows.
func Fit(m *models.AlignedMatrix, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if m.NumModels() < 2 {
		return nil, &models.StackingFailure{
			Reason: "not enough models",
			Err:    &models.InsufficientModelsError{Component: "stacking", Have: m.NumModels(), Need: 2},
		}
	}
	if !m.HasTargets() {
		return nil, &models.SchemaError{Column: "target", Message: "stacking needs targets"}
	}
	if err := checkShape(m); err != nil {
		return nil, err
	}

	learner := cfg.Learner()
	full, err := fitRows(m, allRows(m.Rows()), cfg, learner)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Models:       append([]string(nil), m.Models...),
		Learner:      learner,
		Coefficients: full.coef,
		Intercept:    full.intercept,
		OOF:          make([]float64, m.Rows()),
	}

	folds := foldRows(m.Folds)
	if len(folds) < 2 {
		res.InSample = true
		for i := range res.OOF {
			res.OOF[i] = full.predictRow(m, i)
		}
	} else {
		ids := make([]int, 0, len(folds))
		for f := range folds {
			ids = append(ids, f)
		}
		sort.Ints(ids)

		for _, f := range ids {
			train := make([]int, 0, m.Rows()-len(folds[f]))
			for _, g := range ids {
				if g != f {
					train = append(train, folds[g]...)
				}
			}
			sort.Ints(train)
			fm, err := fitRows(m, train, cfg, learner)
			if err != nil {
				return nil, fmt.Errorf("fold %d: %w", f, err)
			}
			for _, i := range folds[f] {
				res.OOF[i] = fm.predictRow(m, i)
			}
		}
		res.Folds, res.FoldScores = metrics.FoldScores(cfg.Metric, res.OOF, m.Targets, m.Folds)
	}

	res.Score = metrics.MustScore(cfg.Metric, res.OOF, m.Targets)
	return res, nil
}

// Predict applies the full-data meta-model to m, whose models must match
// the fitted models by name.
func (r *Result) Predict(m *models.AlignedMatrix) ([]float64, error) {
	sel, err := m.Select(r.Models)
	if err != nil {
		return nil, &models.StackingFailure{Reason: "prediction matrix is missing fitted models", Err: err}
	}
	if err := checkColumns(sel); err != nil {
		return nil, err
	}
	lm := linearModel{coef: r.Coefficients, intercept: r.Intercept, logistic: r.Learner == Logistic}
	out := make([]float64, sel.Rows())
	for i := range out {
		out[i] = lm.predictRow(sel, i)
	}
	return out, nil
}

// checkShape rejects a training matrix with no rows or with targets or
// folds that disagree with its row count.
func checkShape(m *models.AlignedMatrix) error {
	if err := checkColumns(m); err != nil {
		return err
	}
	if len(m.Targets) != m.Rows() {
		return &models.SchemaError{Column: "target", Message: fmt.Sprintf("%d targets for %d rows", len(m.Targets), m.Rows())}
	}
	if m.Folds != nil && len(m.Folds) != m.Rows() {
		return &models.SchemaError{Column: "fold", Message: fmt.Sprintf("%d folds for %d rows", len(m.Folds), m.Rows())}
	}
	return nil
}

func checkColumns(m *models.AlignedMatrix) error {
	if m.Rows() == 0 {
		return &models.StackingFailure{Reason: "matrix has no rows"}
	}
	for j, col := range m.Columns {
		if len(col) != m.Rows() {
			return &models.SchemaError{
				Column:  m.Models[j],
				Message: fmt.Sprintf("%d predictions for %d rows", len(col), m.Rows()),
			}
		}
	}
	return nil
}

type linearModel struct {
	coef      []float64
	intercept float64
	logistic  bool
}

func (lm linearModel) predictRow(m *models.AlignedMatrix, i int) float64 {
	z := lm.intercept
	for j, col := range m.Columns {
		z += lm.coef[j] * col[i]
	}
	if lm.logistic {
		return blend.Sigmoid(z)
	}
	return z
}

func fitRows(m *models.AlignedMatrix, rows []int, cfg Config, learner Learner) (linearModel, error) {
	k := m.NumModels()
	x := mat.NewDense(len(rows), k+1, nil)
	y := make([]float64, len(rows))
	for r, i := range rows {
		x.Set(r, 0, 1)
		for j, col := range m.Columns {
			x.Set(r, j+1, col[i])
		}
		y[r] = m.Targets[i]
	}

	var beta []float64
	var err error
	if learner == Logistic {
		if !metrics.HasBothClasses(y) {
			return linearModel{}, &models.StackingFailure{Reason: "training rows contain a single class"}
		}
		beta, err = fitLogistic(x, y, 1/cfg.C, cfg.MaxIter, cfg.Tolerance)
	} else {
		beta, err = fitRidge(x, y, cfg.Alpha)
	}
	if err != nil {
		return linearModel{}, err
	}
	return linearModel{coef: beta[1:], intercept: beta[0], logistic: learner == Logistic}, nil
}

// fitLogistic runs Newton iterations on the penalised log-likelihood.
func fitLogistic(x *mat.Dense, y []float64, lambda float64, maxIter int, tol float64) ([]float64, error) {
	n, p := x.Dims()
	beta := mat.NewVecDense(p, nil)
	z := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(p, nil)
	step := mat.NewVecDense(p, nil)
	resid := mat.NewVecDense(n, nil)
	hess := mat.NewSymDense(p, nil)
	weighted := mat.NewDense(n, p, nil)

	for iter := 0; iter < maxIter; iter++ {
		z.MulVec(x, beta)
		for i := 0; i < n; i++ {
			pi := blend.Sigmoid(z.AtVec(i))
			resid.SetVec(i, y[i]-pi)
			w := pi * (1 - pi)
			for j := 0; j < p; j++ {
				weighted.Set(i, j, w*x.At(i, j))
			}
		}

		// gradient of the penalised log-likelihood
		grad.MulVec(x.T(), resid)
		var h mat.Dense
		h.Mul(x.T(), weighted)
		for a := 0; a < p; a++ {
			for b := a; b < p; b++ {
				hess.SetSym(a, b, h.At(a, b))
			}
		}
		for j := 1; j < p; j++ {
			grad.SetVec(j, grad.AtVec(j)-lambda*beta.AtVec(j))
			hess.SetSym(j, j, hess.At(j, j)+lambda)
		}

		if err := solveSPD(hess, grad, step); err != nil {
			return nil, err
		}
		beta.AddVec(beta, step)

		maxDelta := 0.0
		for j := 0; j < p; j++ {
			d := math.Abs(step.AtVec(j))
			if math.IsNaN(d) || math.IsInf(d, 0) {
				return nil, &models.StackingFailure{Reason: "logistic regression diverged"}
			}
			maxDelta = math.Max(maxDelta, d)
		}
		if maxDelta < tol {
			return vecSlice(beta), nil
		}
	}
	return nil, &models.StackingFailure{Reason: fmt.Sprintf("logistic regression did not converge in %d iterations", maxIter)}
}

// fitRidge solves the normal equations (XᵀX + αI')β = Xᵀy, where I' leaves
// the intercept unpenalised.
func fitRidge(x *mat.Dense, y []float64, alpha float64) ([]float64, error) {
	_, p := x.Dims()
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	sym := mat.NewSymDense(p, nil)
	for a := 0; a < p; a++ {
		for b := a; b < p; b++ {
			sym.SetSym(a, b, xtx.At(a, b))
		}
	}
	for j := 1; j < p; j++ {
		sym.SetSym(j, j, sym.At(j, j)+alpha)
	}

	rhs := mat.NewVecDense(p, nil)
	rhs.MulVec(x.T(), mat.NewVecDense(len(y), y))
	beta := mat.NewVecDense(p, nil)
	if err := solveSPD(sym, rhs, beta); err != nil {
		return nil, err
	}
	return vecSlice(beta), nil
}

func solveSPD(a *mat.SymDense, b, dst *mat.VecDense) error {
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return &models.StackingFailure{Reason: "normal equations are singular"}
	}
	if err := chol.SolveVecTo(dst, b); err != nil {
		return &models.StackingFailure{Reason: "normal equations are ill-conditioned", Err: err}
	}
	return nil
}

func vecSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

func foldRows(folds []int) map[int][]int {
	if folds == nil {
		return nil
	}
	out := make(map[int][]int)
	for i, f := range folds {
		out[f] = append(out[f], i)
	}
	return out
}

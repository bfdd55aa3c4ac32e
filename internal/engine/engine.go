// Package engine runs the full blending pipeline: alignment, baselines,
// decorrelation, every configured blend method, ranking, diagnostics and
// the final decision.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crediblend/crediblend/internal/align"
	"github.com/crediblend/crediblend/internal/blend"
	"github.com/crediblend/crediblend/internal/cache"
	"github.com/crediblend/crediblend/internal/decorrelate"
	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/models"
	"github.com/crediblend/crediblend/internal/stacking"
	"github.com/crediblend/crediblend/internal/statistics"
	"github.com/crediblend/crediblend/internal/timeslice"
	"github.com/crediblend/crediblend/internal/weights"
)

type candidate struct {
	score models.MethodScore
	oof   *models.BlendResult
	sub   *models.BlendResult
	order int
}

type runner struct {
	opts   Options
	report *Report
}

// Run blends oof (and sub, when given) according to opts. Contract
// violations in the inputs are returned as *models.AlignmentError or
// *models.SchemaError; recoverable conditions become report warnings.
func Run(ctx context.Context, oof, sub []*models.PredictionFrame, opts Options) (*Report, error) {
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	r := &runner{
		opts: opts,
		report: &Report{
			RunID:     uuid.NewString(),
			Metric:    opts.Metric,
			StartedAt: start.UTC(),
			Epsilon:   opts.ImprovementEpsilon,
			Warnings:  []models.Warning{},
		},
	}
	slog.Debug("starting blend run", "run_id", r.report.RunID, "metric", opts.Metric,
		"oof_frames", len(oof), "sub_frames", len(sub))

	oofM, subM, err := r.align(oof, sub)
	if err != nil {
		return nil, err
	}

	bestModel := r.baselines(oofM)

	working, workingSub, err := r.decorrelate(oofM, subM)
	if err != nil {
		return nil, err
	}

	var candidates []candidate
	for i, kind := range opts.Methods {
		c, err := r.runMethod(ctx, kind, working, workingSub)
		if err != nil {
			return nil, fmt.Errorf("blend method %s: %w", kind, err)
		}
		c.order = i
		candidates = append(candidates, c)
	}
	r.rank(candidates)

	best := candidates[0]
	r.report.Best = BestPrediction{Method: best.score.Method, Source: "oof", IDs: oofM.IDs, Predictions: best.oof.Predictions}
	if best.sub != nil {
		r.report.Best = BestPrediction{Method: best.score.Method, Source: "submission", IDs: subM.IDs, Predictions: best.sub.Predictions}
	}

	baseline, _ := oofM.Column(bestModel)
	r.report.Improvement = statistics.Compare(opts.Metric,
		statistics.Pair{Name: best.score.Method, Preds: best.oof.Predictions},
		statistics.Pair{Name: bestModel, Preds: baseline},
		oofM.Targets, oofM.Folds, opts.Bootstrap)

	if err := r.timeSlice(oofM); err != nil {
		return nil, err
	}

	r.report.Outcome = Decide(r.report.Warnings, r.report.Improvement, opts.ImprovementEpsilon)
	r.report.Duration = time.Since(start)
	slog.Info("blend run finished", "run_id", r.report.RunID, "best_method", best.score.Method,
		"score", best.score.Score, "baseline", bestModel, "delta", r.report.Improvement.Delta,
		"outcome", r.report.Outcome, "warnings", len(r.report.Warnings))
	return r.report, nil
}

func (r *runner) warn(code models.WarningCode, method, fallback, message string) {
	slog.Warn(message, "code", code, "method", method, "fallback", fallback)
	r.report.Warnings = append(r.report.Warnings, models.Warning{
		Code:     code,
		Method:   method,
		Fallback: fallback,
		Message:  message,
	})
}

func (r *runner) align(oof, sub []*models.PredictionFrame) (*models.AlignedMatrix, *models.AlignedMatrix, error) {
	oofM, stats, err := align.Align(oof)
	if err != nil {
		return nil, nil, fmt.Errorf("aligning oof predictions: %w", err)
	}
	r.report.Alignment.OOF = stats
	slog.Info("aligned oof predictions", "models", oofM.NumModels(), "rows", oofM.Rows(), "dropped_ids", stats.Dropped)
	if stats.Dropped > 0 {
		slog.Warn("oof ids missing from some models were dropped", "dropped", stats.Dropped, "kept", stats.CommonIDs)
	}

	if !oofM.HasTargets() {
		return nil, nil, &models.SchemaError{Column: "target", Message: "oof predictions carry no targets"}
	}
	if r.opts.Metric.IsClassification() && !metrics.IsBinary(oofM.Targets) {
		return nil, nil, &models.SchemaError{Column: "target", Message: fmt.Sprintf("%s needs binary 0/1 targets", r.opts.Metric)}
	}

	if len(sub) == 0 {
		return oofM, nil, nil
	}

	subM, subStats, err := align.Align(sub)
	if err != nil {
		return nil, nil, fmt.Errorf("aligning submission predictions: %w", err)
	}
	r.report.Alignment.Submission = &subStats
	if subStats.Dropped > 0 {
		r.warn(models.WarnIDMismatch, "", "", fmt.Sprintf("%d of %d submission ids are missing from some models and were dropped",
			subStats.Dropped, subStats.TotalIDs))
	}

	oofM, subM, dropped, err := align.Pair(oofM, subM)
	r.report.Alignment.DroppedModels = dropped
	if err != nil {
		return nil, nil, fmt.Errorf("pairing oof and submission models: %w", err)
	}
	for _, name := range dropped {
		r.warn(models.WarnModelDropped, "", "", fmt.Sprintf("model %s has only oof or only submission predictions and was dropped", name))
	}
	return oofM, subM, nil
}

// baselines scores every model on its own and returns the best one.
func (r *runner) baselines(m *models.AlignedMatrix) string {
	metric := r.opts.Metric
	scores := make([]float64, m.NumModels())
	best := 0
	for j, col := range m.Columns {
		ms := models.ModelScore{
			Model:   m.Models[j],
			Score:   metrics.MustScore(metric, col, m.Targets),
			Kept:    true,
			Cluster: j,
		}
		if _, folds := metrics.FoldScores(metric, col, m.Targets, m.Folds); len(folds) > 0 {
			ms.FoldScores = folds
			ms.FoldMean = metrics.Mean(folds)
			ms.FoldStdDev = metrics.StdDev(folds)
		}
		scores[j] = ms.Score
		if metric.Better(ms.Score, scores[best]) {
			best = j
		}
		r.report.Models = append(r.report.Models, ms)
	}

	worst := 0
	for j := range scores {
		if metric.Better(scores[worst], scores[j]) {
			worst = j
		}
	}
	r.report.Summary = ScoreSummary{
		BestModel: m.Models[best],
		Best:      scores[best],
		Worst:     scores[worst],
		Mean:      metrics.Mean(scores),
		StdDev:    metrics.StdDev(scores),
	}
	slog.Debug("scored base models", "best_model", m.Models[best], "best", scores[best], "worst", scores[worst])
	return m.Models[best]
}

func (r *runner) decorrelate(oofM, subM *models.AlignedMatrix) (*models.AlignedMatrix, *models.AlignedMatrix, error) {
	if !r.opts.Decorrelate || oofM.NumModels() < 2 {
		return oofM, subM, nil
	}

	dec, err := decorrelate.Decorrelate(oofM, r.opts.Metric, r.opts.Threshold)
	if err != nil {
		return nil, nil, fmt.Errorf("decorrelating models: %w", err)
	}
	r.report.Decorrelation = dec
	if w := dec.Warning(); w != nil {
		r.warn(models.WarnDegenerateClustering, "", "", w.Error())
	}

	kept := make(map[string]bool, len(dec.Kept))
	for _, name := range dec.Kept {
		kept[name] = true
	}
	for i := range r.report.Models {
		ms := &r.report.Models[i]
		ms.Kept = kept[ms.Model]
		ms.Cluster = dec.Assignment[ms.Model]
	}
	slog.Info("decorrelated models", "kept", strings.Join(dec.Kept, ","), "dropped", len(dec.Dropped),
		"clusters", len(dec.Clusters), "threshold", dec.Threshold)

	working, err := oofM.Select(dec.Kept)
	if err != nil {
		return nil, nil, err
	}
	if subM == nil {
		return working, nil, nil
	}
	workingSub, err := subM.Select(dec.Kept)
	if err != nil {
		return nil, nil, err
	}
	return working, workingSub, nil
}

func (r *runner) runMethod(ctx context.Context, kind blend.Kind, m, sub *models.AlignedMatrix) (candidate, error) {
	switch kind {
	case blend.KindWeighted:
		return r.runWeighted(ctx, m, sub)
	case blend.KindStacking:
		return r.runStacking(m, sub)
	default:
		return r.apply(kind, kind, r.opts.params(kind), m, sub)
	}
}

func (r *runner) runWeighted(ctx context.Context, m, sub *models.AlignedMatrix) (candidate, error) {
	res, err := r.searchWeights(ctx, m)
	if err != nil {
		var insufficient *models.InsufficientModelsError
		if !errors.As(err, &insufficient) {
			return candidate{}, err
		}
		r.warn(models.WarnInsufficientModels, string(blend.KindWeighted), string(blend.KindBestSingle), err.Error())
		return r.apply(blend.KindWeighted, blend.KindBestSingle, r.opts.params(blend.KindBestSingle), m, sub)
	}
	r.report.WeightSearch = res

	p := r.opts.params(blend.KindWeighted)
	p.Weights = res.Weights
	return r.apply(blend.KindWeighted, blend.KindWeighted, p, m, sub)
}

func (r *runner) searchWeights(ctx context.Context, m *models.AlignedMatrix) (*weights.Result, error) {
	opt := weights.NewOptimizer(r.opts.Search)
	if m.NumModels() < 2 {
		return nil, &models.InsufficientModelsError{Component: "weight search", Have: m.NumModels(), Need: 2}
	}

	var key string
	if r.opts.Cache != nil {
		var err error
		if key, err = cache.Key(m, opt.Config()); err != nil {
			return nil, fmt.Errorf("computing cache key: %w", err)
		}
		if res, ok := r.opts.Cache.Get(key); ok {
			slog.Info("weight search served from cache", "key", key[:12])
			return res, nil
		}
	}

	res, err := opt.Optimize(ctx, m)
	if err != nil {
		return nil, err
	}
	slog.Info("weight search finished", "score", res.Score, "weights", res.Weights, "best_restart", res.BestRestart)

	if r.opts.Cache != nil {
		if err := r.opts.Cache.Put(key, res); err != nil {
			slog.Warn("failed to cache weight search result", "error", err)
		}
	}
	return res, nil
}

func (r *runner) runStacking(m, sub *models.AlignedMatrix) (candidate, error) {
	fallback := func(err error) (candidate, error) {
		code := models.WarnStackingFailure
		var insufficient *models.InsufficientModelsError
		if errors.As(err, &insufficient) {
			code = models.WarnInsufficientModels
		}
		r.warn(code, string(blend.KindStacking), string(blend.KindMean), err.Error())
		return r.apply(blend.KindStacking, blend.KindMean, r.opts.params(blend.KindMean), m, sub)
	}

	st, err := stacking.Fit(m, r.opts.Stacking)
	if err != nil {
		var failure *models.StackingFailure
		if errors.As(err, &failure) {
			return fallback(err)
		}
		return candidate{}, err
	}

	var subPreds []float64
	if sub != nil {
		if subPreds, err = st.Predict(sub); err != nil {
			return fallback(err)
		}
	}

	r.report.Stacking = st
	if st.InSample {
		r.warn(models.WarnStackingInSample, string(blend.KindStacking), "",
			"oof predictions carry no folds; stacking was fit and scored in-sample")
	}

	intercept := st.Intercept
	params := models.BlendParams{Coefficients: st.Coefficients, Intercept: &intercept}
	c := candidate{
		oof: &models.BlendResult{Method: string(blend.KindStacking), Models: st.Models, Predictions: st.OOF, Params: params},
	}
	if sub != nil {
		c.sub = &models.BlendResult{Method: string(blend.KindStacking), Models: st.Models, Predictions: subPreds, Params: params}
	}
	c.score = models.MethodScore{
		Method:       string(blend.KindStacking),
		Score:        st.Score,
		Models:       st.Models,
		Coefficients: st.Coefficients,
	}
	slog.Info("stacking fit", "learner", st.Learner, "score", st.Score, "in_sample", st.InSample)
	return c, nil
}

// apply runs blend method used on behalf of requested, which differ when a
// fallback occurred.
func (r *runner) apply(requested, used blend.Kind, p blend.Params, m, sub *models.AlignedMatrix) (candidate, error) {
	fn, err := blend.Resolve(used)
	if err != nil {
		return candidate{}, err
	}

	oofRes, err := fn(m, m.Targets, p)
	if err != nil {
		return candidate{}, err
	}
	score, err := metrics.Score(r.opts.Metric, oofRes.Predictions, m.Targets)
	if err != nil {
		return candidate{}, err
	}

	if used == blend.KindBestSingle {
		p.Model = oofRes.Params.Model
	}
	var subRes *models.BlendResult
	if sub != nil {
		if subRes, err = fn(sub, nil, p); err != nil {
			return candidate{}, fmt.Errorf("blending submission predictions: %w", err)
		}
	}

	c := candidate{oof: oofRes, sub: subRes}
	if requested != used {
		for _, res := range []*models.BlendResult{oofRes, subRes} {
			if res != nil {
				res.Method = string(requested)
				res.Fallback = string(used)
			}
		}
	}
	c.score = models.MethodScore{
		Method:   string(requested),
		Score:    score,
		Models:   oofRes.Models,
		Model:    oofRes.Params.Model,
		Weights:  oofRes.Params.Weights,
		Fallback: oofRes.Fallback,
	}
	slog.Debug("scored blend", "method", requested, "used", used, "score", score)
	return c, nil
}

// rank orders candidates best first, ties keeping configuration order, and
// writes the ranked method table.
func (r *runner) rank(candidates []candidate) {
	metric := r.opts.Metric
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if metric.Better(a.score.Score, b.score.Score) {
			return true
		}
		if metric.Better(b.score.Score, a.score.Score) {
			return false
		}
		return a.order < b.order
	})
	r.report.Methods = make([]models.MethodScore, len(candidates))
	for i := range candidates {
		candidates[i].score.Rank = i + 1
		r.report.Methods[i] = candidates[i].score
	}
}

func (r *runner) timeSlice(m *models.AlignedMatrix) error {
	if r.opts.TimeSlice == nil || m.Times == nil {
		return nil
	}
	if !metrics.IsBinary(m.Targets) {
		slog.Debug("skipping time-sliced diagnostics on non-binary targets")
		return nil
	}

	res, err := timeslice.Analyze(m, *r.opts.TimeSlice)
	if err != nil {
		return fmt.Errorf("time-sliced diagnostics: %w", err)
	}
	r.report.TimeSlice = res

	if labels := res.Unevaluable(); len(labels) > 0 {
		r.warn(models.WarnUnevaluableWindow, "", "", fmt.Sprintf("%d %s windows hold a single class and were not evaluated: %s",
			len(labels), res.Frequency, strings.Join(labels, ", ")))
	}
	leakage, dominant := res.Flagged()
	for _, name := range leakage {
		slog.Warn("possible target leakage", "model", name)
	}
	for _, name := range dominant {
		slog.Info("model dominates most windows", "model", name)
	}
	slog.Info("time-sliced diagnostics", "frequency", res.Frequency, "windows", len(res.Windows), "evaluable", res.Evaluable())
	return nil
}

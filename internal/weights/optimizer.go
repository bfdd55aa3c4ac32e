// Package weights searches the simplex for the blend weights that maximise
// a metric over out-of-fold predictions.
package weights

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/crediblend/crediblend/internal/blend"
	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/models"
)

// Search defaults.
const (
	DefaultRestarts   = 16
	DefaultIterations = 200
	DefaultStep       = 0.1
	DefaultDecay      = 0.95
)

// Config is the search budget. Zero values select the defaults; Jobs <= 0
// uses every CPU.
type Config struct {
	Metric     metrics.Metric
	Seed       int64
	Restarts   int
	Iterations int
	Step       float64
	Decay      float64
	Jobs       int
}

func (c Config) withDefaults() Config {
	if c.Metric == "" {
		c.Metric = metrics.AUC
	}
	if c.Restarts <= 0 {
		c.Restarts = DefaultRestarts
	}
	if c.Iterations <= 0 {
		c.Iterations = DefaultIterations
	}
	if c.Step <= 0 {
		c.Step = DefaultStep
	}
	if c.Decay <= 0 || c.Decay > 1 {
		c.Decay = DefaultDecay
	}
	if c.Jobs <= 0 {
		c.Jobs = runtime.NumCPU()
	}
	return c
}

// Result is the best weight vector found.
type Result struct {
	Models        []string  `json:"models"`
	Weights       []float64 `json:"weights"`
	Score         float64   `json:"score"`
	Seed          int64     `json:"seed"`
	Restarts      int       `json:"restarts"`
	BestRestart   int       `json:"best_restart"`
	RestartScores []float64 `json:"restart_scores"`
	// Iterations is the number of sweeps each restart ran before it
	// converged or exhausted its budget.
	Iterations []int `json:"iterations"`
}

type restartResult struct {
	weights []float64
	score   float64
	sweeps  int
}

// Optimizer runs independent coordinate-descent restarts in parallel.
type Optimizer struct {
	cfg Config
}

// NewOptimizer creates an optimizer with the given budget.
func NewOptimizer(cfg Config) *Optimizer {
	return &Optimizer{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration after defaults.
func (o *Optimizer) Config() Config {
	return o.cfg
}

// Optimize searches weights for the columns of m against m.Targets.
// Results depend only on the seed and budget, never on Jobs.
func (o *Optimizer) Optimize(ctx context.Context, m *models.AlignedMatrix) (*Result, error) {
	if m.NumModels() < 2 {
		return nil, &models.InsufficientModelsError{Component: "weight search", Have: m.NumModels(), Need: 2}
	}
	if !m.HasTargets() {
		return nil, &models.SchemaError{Column: "target", Message: "weight search needs targets"}
	}
	for j, col := range m.Columns {
		if _, err := metrics.Score(o.cfg.Metric, col, m.Targets); err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Models[j], err)
		}
	}

	seeds := RestartSeeds(o.cfg.Seed, o.cfg.Restarts)
	slots := make([]restartResult, o.cfg.Restarts)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Jobs)
	for r := 0; r < o.cfg.Restarts; r++ {
		g.Go(func() error {
			res, err := o.restart(gctx, m, seeds[r])
			if err != nil {
				return err
			}
			slots[r] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{
		Models:        append([]string(nil), m.Models...),
		Seed:          o.cfg.Seed,
		Restarts:      o.cfg.Restarts,
		RestartScores: make([]float64, len(slots)),
		Iterations:    make([]int, len(slots)),
	}
	best := 0
	for r, s := range slots {
		out.RestartScores[r] = s.score
		out.Iterations[r] = s.sweeps
		if o.cfg.Metric.Better(s.score, slots[best].score) {
			best = r
		}
	}
	out.BestRestart = best
	out.Weights = slots[best].weights
	out.Score = slots[best].score

	slog.Debug("weight search finished", "models", m.NumModels(), "restarts", o.cfg.Restarts,
		"best_restart", best, "score", out.Score)
	return out, nil
}

// RestartSeeds draws one seed per restart from a source seeded with seed,
// so runs with different seeds do not share restart streams.
func RestartSeeds(seed int64, restarts int) []int64 {
	rng := rand.New(rand.NewSource(seed))
	seeds := make([]int64, restarts)
	for r := range seeds {
		seeds[r] = rng.Int63()
	}
	return seeds
}

func (o *Optimizer) restart(ctx context.Context, m *models.AlignedMatrix, seed int64) (restartResult, error) {
	rng := rand.New(rand.NewSource(seed))
	k := m.NumModels()

	w := dirichlet(rng, k)
	cand := make([]float64, k)
	buf := make([]float64, m.Rows())
	score := func(v []float64) float64 {
		buf = blend.WeightedSum(m.Columns, v, buf)
		return metrics.MustScore(o.cfg.Metric, buf, m.Targets)
	}

	current := score(w)
	step := o.cfg.Step
	sweeps := 0
	for sweeps < o.cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return restartResult{}, err
		}
		sweeps++
		improved := false
		for j := 0; j < k; j++ {
			for _, dir := range [2]float64{1, -1} {
				copy(cand, w)
				cand[j] += dir * step
				if !project(cand) {
					continue
				}
				if s := score(cand); o.cfg.Metric.Better(s, current) {
					w, cand = cand, w
					current = s
					improved = true
					break
				}
			}
		}
		if !improved {
			break
		}
		step *= o.cfg.Decay
	}
	return restartResult{weights: w, score: current, sweeps: sweeps}, nil
}

// dirichlet draws a uniform point on the simplex.
func dirichlet(rng *rand.Rand, k int) []float64 {
	w := make([]float64, k)
	sum := 0.0
	for i := range w {
		w[i] = rng.ExpFloat64()
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// project clips negative entries to zero and rescales to sum 1. It
// reports false when nothing positive is left.
func project(w []float64) bool {
	sum := 0.0
	for i, v := range w {
		if v < 0 {
			w[i] = 0
			continue
		}
		sum += v
	}
	if sum <= 0 {
		return false
	}
	for i := range w {
		w[i] /= sum
	}
	return true
}

package engine

import (
	"fmt"

	"github.com/crediblend/crediblend/internal/blend"
	"github.com/crediblend/crediblend/internal/decorrelate"
	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/stacking"
	"github.com/crediblend/crediblend/internal/statistics"
	"github.com/crediblend/crediblend/internal/timeslice"
	"github.com/crediblend/crediblend/internal/weights"
)

// DefaultImprovementEpsilon is the margin a blend must beat the best
// single model by to count as an improvement.
const DefaultImprovementEpsilon = 1e-4

//go:generate go tool mockgen -source options.go -destination weight_cache_mock_test.go -package engine

// WeightCache stores weight-search results between runs.
type WeightCache interface {
	Get(key string) (*weights.Result, bool)
	Put(key string, res *weights.Result) error
}

// Options is the immutable configuration of one run.
type Options struct {
	Metric  metrics.Metric
	Methods []blend.Kind
	// Params holds per-method blend parameters.
	Params map[blend.Kind]blend.Params

	Decorrelate bool
	Threshold   float64

	Search   weights.Config
	Stacking stacking.Config
	// TimeSlice enables time-sliced diagnostics when the OOF rows carry
	// times. Nil disables them.
	TimeSlice *timeslice.Config

	ImprovementEpsilon float64
	Bootstrap          statistics.Bootstrap

	Cache WeightCache
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Metric:             metrics.AUC,
		Methods:            append([]blend.Kind(nil), blend.DefaultKinds...),
		Decorrelate:        true,
		Threshold:          decorrelate.DefaultThreshold,
		Search:             weights.Config{Seed: 42},
		TimeSlice:          &timeslice.Config{Frequency: timeslice.Monthly},
		ImprovementEpsilon: DefaultImprovementEpsilon,
		Bootstrap:          statistics.Bootstrap{Seed: 42, Iterations: 2000},
	}
}

func (o Options) normalized() (Options, error) {
	if o.Metric == "" {
		o.Metric = metrics.AUC
	}
	if _, err := metrics.ParseMetric(string(o.Metric)); err != nil {
		return o, err
	}
	if len(o.Methods) == 0 {
		o.Methods = append([]blend.Kind(nil), blend.DefaultKinds...)
	}
	seen := make(map[blend.Kind]bool, len(o.Methods))
	for _, k := range o.Methods {
		if _, err := blend.ParseKind(string(k)); err != nil {
			return o, err
		}
		if seen[k] {
			return o, fmt.Errorf("blend method '%s' listed twice", k)
		}
		seen[k] = true
	}
	if o.Threshold == 0 {
		o.Threshold = decorrelate.DefaultThreshold
	}
	if o.ImprovementEpsilon <= 0 {
		o.ImprovementEpsilon = DefaultImprovementEpsilon
	}
	o.Search.Metric = o.Metric
	o.Stacking.Metric = o.Metric
	return o, nil
}

func (o Options) params(k blend.Kind) blend.Params {
	p := o.Params[k]
	if p.Metric == "" {
		p.Metric = o.Metric
	}
	return p
}

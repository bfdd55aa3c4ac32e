// Package projectconfig provides the ProjectConfig struct and loader for
// .crediblend.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/crediblend/crediblend/internal/blend"
	"github.com/crediblend/crediblend/internal/engine"
	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/stacking"
	"github.com/crediblend/crediblend/internal/statistics"
	"github.com/crediblend/crediblend/internal/timeslice"
	"github.com/crediblend/crediblend/internal/weights"
)

// FileName is the project configuration file looked up by Load.
const FileName = ".crediblend.yaml"

// EnvPrefix prefixes environment overrides, e.g. CREDIBLEND_METRIC.
const EnvPrefix = "CREDIBLEND"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultOutDir   = "crediblend-out/"
	DefaultCacheDir = ".crediblend-cache"

	DefaultMetric    = "auc"
	DefaultThreshold = 0.8
	DefaultSeed      = 42
	DefaultFrequency = "monthly"

	DefaultBootstrapIterations = 2000

	DefaultIDCol     = "id"
	DefaultPredCol   = "pred"
	DefaultTargetCol = "target"
	DefaultFoldCol   = "fold"
)

// PathsConfig holds the prediction and output directories.
type PathsConfig struct {
	OOFDir string `yaml:"oof_dir,omitempty" split_words:"true"`
	SubDir string `yaml:"sub_dir,omitempty" split_words:"true"`
	Out    string `yaml:"out,omitempty"`
}

// ColumnsConfig names the columns of the prediction files.
type ColumnsConfig struct {
	ID     string `yaml:"id,omitempty"`
	Pred   string `yaml:"pred,omitempty"`
	Target string `yaml:"target,omitempty"`
	Fold   string `yaml:"fold,omitempty"`
	// Time is empty when the files carry no time column.
	Time string `yaml:"time,omitempty"`
}

// DecorrelateConfig holds the clustering settings.
type DecorrelateConfig struct {
	Enabled   *bool   `yaml:"enabled,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty" validate:"gt=0,lte=1"`
}

// SearchConfig holds the weight search budget.
type SearchConfig struct {
	Seed       int64   `yaml:"seed,omitempty"`
	Restarts   int     `yaml:"restarts,omitempty" validate:"gte=1,lte=10000"`
	Iterations int     `yaml:"iterations,omitempty" validate:"gte=1"`
	Step       float64 `yaml:"step,omitempty" validate:"gt=0,lte=1"`
	Decay      float64 `yaml:"decay,omitempty" validate:"gt=0,lte=1"`
	// Jobs is the number of parallel restarts; 0 uses every CPU.
	Jobs int `yaml:"jobs,omitempty" validate:"gte=0,lte=1024"`
}

// StackingConfig holds the meta-learner settings.
type StackingConfig struct {
	C         float64 `yaml:"c,omitempty" validate:"gt=0"`
	Alpha     float64 `yaml:"alpha,omitempty" validate:"gt=0"`
	MaxIter   int     `yaml:"max_iter,omitempty" split_words:"true" validate:"gte=1"`
	Tolerance float64 `yaml:"tolerance,omitempty" validate:"gt=0"`
}

// TimeSliceConfig holds the time-sliced diagnostics settings.
type TimeSliceConfig struct {
	Enabled       *bool   `yaml:"enabled,omitempty"`
	Frequency     string  `yaml:"frequency,omitempty" validate:"omitempty,oneof=daily weekly monthly"`
	LeakageAUC    float64 `yaml:"leakage_auc,omitempty" split_words:"true" validate:"gt=0,lte=1"`
	LeakageMaxStd float64 `yaml:"leakage_max_std,omitempty" split_words:"true" validate:"gt=0"`
}

// BootstrapConfig holds the improvement confidence interval settings.
type BootstrapConfig struct {
	Iterations int     `yaml:"iterations,omitempty" validate:"gte=1"`
	Level      float64 `yaml:"level,omitempty" validate:"gt=0,lt=1"`
	Seed       int64   `yaml:"seed,omitempty"`
}

// CacheConfig holds weight-search cache settings.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .crediblend.yaml.
type ProjectConfig struct {
	Metric             string            `yaml:"metric,omitempty" validate:"oneof=auc mse mae"`
	Methods            []string          `yaml:"methods,omitempty" validate:"min=1,dive,oneof=mean rank_mean logit_mean best_single weighted stacking"`
	ImprovementEpsilon float64           `yaml:"improvement_epsilon,omitempty" split_words:"true" validate:"gt=0"`
	Paths              PathsConfig       `yaml:"paths,omitempty"`
	Columns            ColumnsConfig     `yaml:"columns,omitempty"`
	Decorrelate        DecorrelateConfig `yaml:"decorrelate,omitempty"`
	Search             SearchConfig      `yaml:"search,omitempty"`
	Stacking           StackingConfig    `yaml:"stacking,omitempty"`
	TimeSlice          TimeSliceConfig   `yaml:"timeslice,omitempty" split_words:"true"`
	Bootstrap          BootstrapConfig   `yaml:"bootstrap,omitempty"`
	Cache              CacheConfig       `yaml:"cache,omitempty"`
	// Params holds per-method blend parameters keyed by method name.
	Params map[string]map[string]any `yaml:"params,omitempty" ignored:"true"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	methods := make([]string, len(blend.DefaultKinds))
	for i, k := range blend.DefaultKinds {
		methods[i] = string(k)
	}
	return &ProjectConfig{
		Metric:             DefaultMetric,
		Methods:            methods,
		ImprovementEpsilon: engine.DefaultImprovementEpsilon,
		Paths: PathsConfig{
			Out: DefaultOutDir,
		},
		Columns: ColumnsConfig{
			ID:     DefaultIDCol,
			Pred:   DefaultPredCol,
			Target: DefaultTargetCol,
			Fold:   DefaultFoldCol,
		},
		Decorrelate: DecorrelateConfig{
			Enabled:   boolPtr(true),
			Threshold: DefaultThreshold,
		},
		Search: SearchConfig{
			Seed:       DefaultSeed,
			Restarts:   weights.DefaultRestarts,
			Iterations: weights.DefaultIterations,
			Step:       weights.DefaultStep,
			Decay:      weights.DefaultDecay,
		},
		Stacking: StackingConfig{
			C:         stacking.DefaultC,
			Alpha:     stacking.DefaultAlpha,
			MaxIter:   stacking.DefaultMaxIter,
			Tolerance: stacking.DefaultTolerance,
		},
		TimeSlice: TimeSliceConfig{
			Enabled:       boolPtr(true),
			Frequency:     DefaultFrequency,
			LeakageAUC:    timeslice.DefaultLeakageAUC,
			LeakageMaxStd: timeslice.DefaultLeakageMaxStd,
		},
		Bootstrap: BootstrapConfig{
			Iterations: DefaultBootstrapIterations,
			Level:      statistics.DefaultConfidenceLevel,
			Seed:       DefaultSeed,
		},
		Cache: CacheConfig{
			Enabled: boolPtr(false),
			Dir:     DefaultCacheDir,
		},
	}
}

// Load finds .crediblend.yaml by walking up from startDir (max 10 levels),
// unmarshals it, fills in missing fields with defaults, applies
// CREDIBLEND_* environment overrides and validates the result.
// If no config file is found, defaults are used.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	default:
		var fileCfg ProjectConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", FileName, err)
		}
		mergeConfig(cfg, &fileCfg)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading %s_* environment: %w", EnvPrefix, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and enumerations.
func (c *ProjectConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid configuration: %s=%v fails %q", fe.Namespace(), fe.Value(), fe.ActualTag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for name, raw := range c.Params {
		kind, err := blend.ParseKind(name)
		if err != nil {
			return fmt.Errorf("invalid configuration: params: %w", err)
		}
		if _, err := blend.DecodeParams(raw); err != nil {
			return fmt.Errorf("invalid configuration: params.%s: %w", kind, err)
		}
	}
	return nil
}

// EngineOptions converts the configuration into run options.
func (c *ProjectConfig) EngineOptions() (engine.Options, error) {
	metric, err := metrics.ParseMetric(c.Metric)
	if err != nil {
		return engine.Options{}, err
	}
	kinds, err := blend.ParseKinds(c.Methods)
	if err != nil {
		return engine.Options{}, err
	}

	opts := engine.Options{
		Metric:      metric,
		Methods:     kinds,
		Decorrelate: c.Decorrelate.Enabled == nil || *c.Decorrelate.Enabled,
		Threshold:   c.Decorrelate.Threshold,
		Search: weights.Config{
			Seed:       c.Search.Seed,
			Restarts:   c.Search.Restarts,
			Iterations: c.Search.Iterations,
			Step:       c.Search.Step,
			Decay:      c.Search.Decay,
			Jobs:       c.Search.Jobs,
		},
		Stacking: stacking.Config{
			C:         c.Stacking.C,
			Alpha:     c.Stacking.Alpha,
			MaxIter:   c.Stacking.MaxIter,
			Tolerance: c.Stacking.Tolerance,
		},
		ImprovementEpsilon: c.ImprovementEpsilon,
		Bootstrap: statistics.Bootstrap{
			Iterations: c.Bootstrap.Iterations,
			Level:      c.Bootstrap.Level,
			Seed:       c.Bootstrap.Seed,
		},
	}

	if c.TimeSlice.Enabled == nil || *c.TimeSlice.Enabled {
		freq := timeslice.Monthly
		if c.TimeSlice.Frequency != "" {
			if freq, err = timeslice.ParseFrequency(c.TimeSlice.Frequency); err != nil {
				return engine.Options{}, err
			}
		}
		opts.TimeSlice = &timeslice.Config{
			Frequency:     freq,
			LeakageAUC:    c.TimeSlice.LeakageAUC,
			LeakageMaxStd: c.TimeSlice.LeakageMaxStd,
		}
	}

	if len(c.Params) > 0 {
		opts.Params = make(map[blend.Kind]blend.Params, len(c.Params))
		for name, raw := range c.Params {
			kind, err := blend.ParseKind(name)
			if err != nil {
				return engine.Options{}, err
			}
			p, err := blend.DecodeParams(raw)
			if err != nil {
				return engine.Options{}, fmt.Errorf("params.%s: %w", kind, err)
			}
			opts.Params[kind] = p
		}
	}
	return opts, nil
}

// findConfigFile walks up from dir looking for .crediblend.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found. Propagates
// real I/O errors instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	if src.Metric != "" {
		dst.Metric = src.Metric
	}
	if len(src.Methods) > 0 {
		dst.Methods = src.Methods
	}
	if src.ImprovementEpsilon != 0 {
		dst.ImprovementEpsilon = src.ImprovementEpsilon
	}

	// Paths
	if src.Paths.OOFDir != "" {
		dst.Paths.OOFDir = src.Paths.OOFDir
	}
	if src.Paths.SubDir != "" {
		dst.Paths.SubDir = src.Paths.SubDir
	}
	if src.Paths.Out != "" {
		dst.Paths.Out = src.Paths.Out
	}

	// Columns
	if src.Columns.ID != "" {
		dst.Columns.ID = src.Columns.ID
	}
	if src.Columns.Pred != "" {
		dst.Columns.Pred = src.Columns.Pred
	}
	if src.Columns.Target != "" {
		dst.Columns.Target = src.Columns.Target
	}
	if src.Columns.Fold != "" {
		dst.Columns.Fold = src.Columns.Fold
	}
	if src.Columns.Time != "" {
		dst.Columns.Time = src.Columns.Time
	}

	// Decorrelate
	if src.Decorrelate.Enabled != nil {
		dst.Decorrelate.Enabled = src.Decorrelate.Enabled
	}
	if src.Decorrelate.Threshold != 0 {
		dst.Decorrelate.Threshold = src.Decorrelate.Threshold
	}

	// Search
	if src.Search.Seed != 0 {
		dst.Search.Seed = src.Search.Seed
	}
	if src.Search.Restarts != 0 {
		dst.Search.Restarts = src.Search.Restarts
	}
	if src.Search.Iterations != 0 {
		dst.Search.Iterations = src.Search.Iterations
	}
	if src.Search.Step != 0 {
		dst.Search.Step = src.Search.Step
	}
	if src.Search.Decay != 0 {
		dst.Search.Decay = src.Search.Decay
	}
	if src.Search.Jobs != 0 {
		dst.Search.Jobs = src.Search.Jobs
	}

	// Stacking
	if src.Stacking.C != 0 {
		dst.Stacking.C = src.Stacking.C
	}
	if src.Stacking.Alpha != 0 {
		dst.Stacking.Alpha = src.Stacking.Alpha
	}
	if src.Stacking.MaxIter != 0 {
		dst.Stacking.MaxIter = src.Stacking.MaxIter
	}
	if src.Stacking.Tolerance != 0 {
		dst.Stacking.Tolerance = src.Stacking.Tolerance
	}

	// TimeSlice
	if src.TimeSlice.Enabled != nil {
		dst.TimeSlice.Enabled = src.TimeSlice.Enabled
	}
	if src.TimeSlice.Frequency != "" {
		dst.TimeSlice.Frequency = src.TimeSlice.Frequency
	}
	if src.TimeSlice.LeakageAUC != 0 {
		dst.TimeSlice.LeakageAUC = src.TimeSlice.LeakageAUC
	}
	if src.TimeSlice.LeakageMaxStd != 0 {
		dst.TimeSlice.LeakageMaxStd = src.TimeSlice.LeakageMaxStd
	}

	// Bootstrap
	if src.Bootstrap.Iterations != 0 {
		dst.Bootstrap.Iterations = src.Bootstrap.Iterations
	}
	if src.Bootstrap.Level != 0 {
		dst.Bootstrap.Level = src.Bootstrap.Level
	}
	if src.Bootstrap.Seed != 0 {
		dst.Bootstrap.Seed = src.Bootstrap.Seed
	}

	// Cache
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}

	if src.Params != nil {
		dst.Params = src.Params
	}
}

func boolPtr(b bool) *bool {
	return &b
}

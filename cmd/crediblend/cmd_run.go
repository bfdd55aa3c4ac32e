package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crediblend/crediblend/internal/cache"
	"github.com/crediblend/crediblend/internal/dataset"
	"github.com/crediblend/crediblend/internal/engine"
	"github.com/crediblend/crediblend/internal/models"
	"github.com/crediblend/crediblend/internal/progress"
	"github.com/crediblend/crediblend/internal/projectconfig"
	"github.com/crediblend/crediblend/internal/reporting"
	"github.com/crediblend/crediblend/internal/telemetry"
	"github.com/crediblend/crediblend/internal/timeslice"
)

// runFlags holds the values of the run command flags. Only flags the user
// set override the project configuration.
type runFlags struct {
	oofDir        string
	subDir        string
	outDir        string
	metric        string
	methods       []string
	targetCol     string
	timeCol       string
	freq          string
	seed          int64
	restarts      int
	iterations    int
	jobs          int
	threshold     float64
	noDecorrelate bool
	enableCache   bool
	cacheDir      string
	junitPath     string
	metricsFile   string
	format        string
}

func newRunCommand() *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Blend prediction files and report the best method",
		Long: `Blend the oof_<model>.csv files of --oof-dir and, when --sub-dir is
given, apply the winning method to the matching sub_<model>.csv files.

Settings come from .crediblend.yaml (searched upwards from the working
directory), then CREDIBLEND_* environment variables, then flags.

Exit codes: 0 improved, 1 no improvement, 2 invalid input or error,
3 finished with warnings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommandE(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.oofDir, "oof-dir", "", "Directory with oof_<model>.csv files")
	fl.StringVar(&f.subDir, "sub-dir", "", "Directory with sub_<model>.csv files (optional)")
	fl.StringVarP(&f.outDir, "out", "o", "", "Output directory for reports (default: crediblend-out/)")
	fl.StringVar(&f.metric, "metric", "", "Metric: auc, mse, mae")
	fl.StringSliceVar(&f.methods, "methods", nil, "Comma-separated blend methods")
	fl.StringVar(&f.targetCol, "target-col", "", "Target column name")
	fl.StringVar(&f.timeCol, "time-col", "", "Time column for time-sliced diagnostics")
	fl.StringVar(&f.freq, "freq", "", "Time window: daily, weekly, monthly")
	fl.Int64Var(&f.seed, "seed", 0, "Weight search seed")
	fl.IntVar(&f.restarts, "restarts", 0, "Weight search restarts")
	fl.IntVar(&f.iterations, "iterations", 0, "Weight search iterations per restart")
	fl.IntVar(&f.jobs, "jobs", 0, "Parallel weight search restarts (default: all CPUs)")
	fl.Float64Var(&f.threshold, "threshold", 0, "Spearman correlation threshold for clustering")
	fl.BoolVar(&f.noDecorrelate, "no-decorrelate", false, "Skip correlation clustering")
	fl.BoolVar(&f.enableCache, "cache", false, "Cache weight search results")
	fl.StringVar(&f.cacheDir, "cache-dir", "", "Cache directory (default: .crediblend-cache)")
	fl.StringVar(&f.junitPath, "junit", "", "Write a JUnit XML report to this path")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")
	fl.StringVar(&f.format, "format", "table", "Console output format: table, json")

	return cmd
}

func runCommandE(cmd *cobra.Command, f *runFlags) error {
	if f.format != "table" && f.format != "json" {
		return fmt.Errorf("unknown format %q: must be table or json", f.format)
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	cfg, err := projectconfig.Load(wd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg, f)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Paths.OOFDir == "" {
		return fmt.Errorf("no OOF directory: pass --oof-dir or set paths.oof_dir in %s", projectconfig.FileName)
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	if *cfg.Cache.Enabled {
		absCacheDir, err := filepath.Abs(cfg.Cache.Dir)
		if err != nil {
			return fmt.Errorf("resolving cache directory: %w", err)
		}
		opts.Cache = cache.New(absCacheDir)
		slog.Debug("weight search cache enabled", "dir", absCacheDir)
	}

	loadOpts := dataset.Options{
		IDCol:     cfg.Columns.ID,
		PredCol:   cfg.Columns.Pred,
		TargetCol: cfg.Columns.Target,
		FoldCol:   cfg.Columns.Fold,
	}
	oofOpts := loadOpts
	oofOpts.TimeCol = cfg.Columns.Time
	oofOpts.RequireTarget = true

	oof, err := dataset.LoadDir(cfg.Paths.OOFDir, dataset.OOFPrefix, oofOpts)
	if err != nil {
		return invalidInput(err)
	}
	var sub []*models.PredictionFrame
	if cfg.Paths.SubDir != "" {
		if sub, err = dataset.LoadDir(cfg.Paths.SubDir, dataset.SubPrefix, loadOpts); err != nil {
			return invalidInput(err)
		}
	}
	slog.Info("loaded prediction files", "oof", len(oof), "sub", len(sub))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	spin := progress.StartIfTerminal(os.Stderr, fmt.Sprintf("Blending %d models...", len(oof)))
	report, err := engine.Run(ctx, oof, sub, opts)
	spin.Stop()
	if err != nil {
		return invalidInput(err)
	}

	if err := reporting.WriteOutputs(cfg.Paths.Out, report); err != nil {
		return err
	}
	if f.junitPath != "" {
		if err := reporting.WriteJUnit(f.junitPath, report); err != nil {
			return fmt.Errorf("writing JUnit report: %w", err)
		}
	}
	if f.metricsFile != "" {
		if err := telemetry.WriteTextfile(f.metricsFile, report); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	switch f.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
	default:
		printReport(out, report)
		fmt.Fprintln(out)                                           //nolint:errcheck
		fmt.Fprint(out, reporting.FormatSummaryReport(report))      //nolint:errcheck
		fmt.Fprintf(out, "\nResults saved to: %s\n", cfg.Paths.Out) //nolint:errcheck
	}

	if report.Outcome != models.OutcomeImproved {
		return &models.OutcomeError{Outcome: report.Outcome, Message: outcomeMessage(report)}
	}
	return nil
}

// applyRunFlags overlays the flags the user set onto cfg.
func applyRunFlags(cmd *cobra.Command, cfg *projectconfig.ProjectConfig, f *runFlags) {
	changed := cmd.Flags().Changed
	if changed("oof-dir") {
		cfg.Paths.OOFDir = f.oofDir
	}
	if changed("sub-dir") {
		cfg.Paths.SubDir = f.subDir
	}
	if changed("out") {
		cfg.Paths.Out = f.outDir
	}
	if changed("metric") {
		cfg.Metric = strings.ToLower(f.metric)
	}
	if changed("methods") {
		cfg.Methods = f.methods
	}
	if changed("target-col") {
		cfg.Columns.Target = f.targetCol
	}
	if changed("time-col") {
		cfg.Columns.Time = f.timeCol
	}
	if changed("freq") {
		cfg.TimeSlice.Frequency = strings.ToLower(f.freq)
		if freq, err := timeslice.ParseFrequency(f.freq); err == nil {
			cfg.TimeSlice.Frequency = string(freq)
		}
	}
	if changed("seed") {
		cfg.Search.Seed = f.seed
	}
	if changed("restarts") {
		cfg.Search.Restarts = f.restarts
	}
	if changed("iterations") {
		cfg.Search.Iterations = f.iterations
	}
	if changed("jobs") {
		cfg.Search.Jobs = f.jobs
	}
	if changed("threshold") {
		cfg.Decorrelate.Threshold = f.threshold
	}
	if changed("no-decorrelate") {
		enabled := !f.noDecorrelate
		cfg.Decorrelate.Enabled = &enabled
	}
	if changed("cache") {
		enabled := f.enableCache
		cfg.Cache.Enabled = &enabled
	}
	if changed("cache-dir") {
		cfg.Cache.Dir = f.cacheDir
	}
}

// invalidInput marks contract violations so main exits with the
// invalid_input code.
func invalidInput(err error) error {
	if models.IsFatal(err) {
		return &models.OutcomeError{Outcome: models.OutcomeInvalidInput, Message: err.Error()}
	}
	return err
}

func outcomeMessage(r *engine.Report) string {
	switch r.Outcome {
	case models.OutcomeWarned:
		return fmt.Sprintf("%d warning(s) recorded", len(r.Warnings))
	case models.OutcomeNoImprovement:
		return fmt.Sprintf("best blend %s does not beat %s", r.Improvement.Blend, r.Improvement.Baseline)
	default:
		return ""
	}
}

// Package timeslice measures how stable each model's AUC is across
// calendar windows, and flags models that dominate or look leaky.
package timeslice

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/models"
)

// Frequency is the calendar window size.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// ParseFrequency resolves a frequency name. Single letters (D, W, M) are
// accepted as shorthands.
func ParseFrequency(name string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "daily", "d", "day":
		return Daily, nil
	case "weekly", "w", "week":
		return Weekly, nil
	case "monthly", "m", "month":
		return Monthly, nil
	default:
		return "", fmt.Errorf("unknown frequency %q: must be one of daily, weekly, monthly", name)
	}
}

// Leakage defaults.
const (
	DefaultLeakageAUC    = 0.999
	DefaultLeakageMaxStd = 0.005
	MinLeakageWindows    = 2
)

// Config selects the window size and leakage thresholds. Zero values
// select the defaults.
type Config struct {
	Frequency Frequency
	// LeakageAUC is the pooled AUC above which a model is suspicious.
	LeakageAUC float64
	// LeakageMaxStd is the per-window AUC standard deviation below which a
	// suspicious model is flagged.
	LeakageMaxStd float64
}

func (c Config) withDefaults() Config {
	if c.Frequency == "" {
		c.Frequency = Monthly
	}
	if c.LeakageAUC <= 0 {
		c.LeakageAUC = DefaultLeakageAUC
	}
	if c.LeakageMaxStd <= 0 {
		c.LeakageMaxStd = DefaultLeakageMaxStd
	}
	return c
}

// Window is one calendar window. AUC is parallel to Result.Models.
type Window struct {
	Label     string    `json:"label"`
	Start     time.Time `json:"start"`
	Rows      int       `json:"rows"`
	Positives int       `json:"positives"`
	// Evaluable is false when the window holds a single class; its AUCs are
	// then the 0.5 fallback and do not count towards stability.
	Evaluable bool      `json:"evaluable"`
	AUC       []float64 `json:"auc"`
	// Dominant is the model with the strictly best AUC, empty on ties.
	Dominant string `json:"dominant,omitempty"`
}

// ModelStability summarises one model across evaluable windows.
type ModelStability struct {
	Model           string  `json:"model"`
	PooledAUC       float64 `json:"pooled_auc"`
	Windows         int     `json:"windows"`
	MeanAUC         float64 `json:"mean_auc"`
	StdDev          float64 `json:"std_dev"`
	IQR             float64 `json:"iqr"`
	DominantWindows int     `json:"dominant_windows"`
	Dominant        bool    `json:"dominant"`
	Leakage         bool    `json:"leakage"`
}

// Result is the full time-sliced diagnostic.
type Result struct {
	Frequency Frequency        `json:"frequency"`
	Models    []string         `json:"models"`
	Windows   []Window         `json:"windows"`
	Stability []ModelStability `json:"stability"`
}

// Evaluable returns the number of windows that hold both classes.
func (r *Result) Evaluable() int {
	n := 0
	for _, w := range r.Windows {
		if w.Evaluable {
			n++
		}
	}
	return n
}

// Unevaluable returns the labels of single-class windows.
func (r *Result) Unevaluable() []string {
	var out []string
	for _, w := range r.Windows {
		if !w.Evaluable {
			out = append(out, w.Label)
		}
	}
	return out
}

// Flagged returns the models flagged for leakage and for dominance.
func (r *Result) Flagged() (leakage, dominant []string) {
	for _, s := range r.Stability {
		if s.Leakage {
			leakage = append(leakage, s.Model)
		}
		if s.Dominant {
			dominant = append(dominant, s.Model)
		}
	}
	return leakage, dominant
}

// Analyze partitions the labelled rows of m into windows and scores each
// model per window.
func Analyze(m *models.AlignedMatrix, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if m.Times == nil {
		return nil, &models.SchemaError{Column: "time", Message: "time-sliced diagnostics need a time column"}
	}
	if !m.HasTargets() {
		return nil, &models.SchemaError{Column: "target", Message: "time-sliced diagnostics need targets"}
	}
	if !metrics.IsBinary(m.Targets) {
		return nil, &models.SchemaError{Column: "target", Message: "time-sliced AUC needs binary targets"}
	}
	if m.NumModels() == 0 {
		return nil, &models.InsufficientModelsError{Component: "time-sliced diagnostics", Have: 0, Need: 1}
	}

	type bucket struct {
		start time.Time
		rows  []int
	}
	buckets := make(map[string]*bucket)
	for i, ts := range m.Times {
		label, start := WindowOf(ts, cfg.Frequency)
		b, ok := buckets[label]
		if !ok {
			b = &bucket{start: start}
			buckets[label] = b
		}
		b.rows = append(b.rows, i)
	}

	labels := make([]string, 0, len(buckets))
	for l := range buckets {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		return buckets[labels[i]].start.Before(buckets[labels[j]].start)
	})

	res := &Result{Frequency: cfg.Frequency, Models: append([]string(nil), m.Models...)}
	for _, label := range labels {
		b := buckets[label]
		targets := gather(m.Targets, b.rows)
		w := Window{
			Label:     label,
			Start:     b.start,
			Rows:      len(b.rows),
			Positives: countPositives(targets),
			Evaluable: metrics.HasBothClasses(targets),
			AUC:       make([]float64, m.NumModels()),
		}
		for j, col := range m.Columns {
			w.AUC[j] = metrics.ROCAUC(gather(col, b.rows), targets)
		}
		if w.Evaluable {
			if best := strictArgmax(w.AUC); best >= 0 {
				w.Dominant = m.Models[best]
			}
		}
		res.Windows = append(res.Windows, w)
	}

	evaluable := res.Evaluable()
	for j, name := range m.Models {
		s := ModelStability{
			Model:     name,
			PooledAUC: metrics.ROCAUC(m.Columns[j], m.Targets),
		}
		var aucs []float64
		for _, w := range res.Windows {
			if !w.Evaluable {
				continue
			}
			aucs = append(aucs, w.AUC[j])
			if w.Dominant == name {
				s.DominantWindows++
			}
		}
		s.Windows = len(aucs)
		if len(aucs) > 0 {
			s.MeanAUC = stat.Mean(aucs, nil)
		}
		if len(aucs) >= 2 {
			s.StdDev = stat.StdDev(aucs, nil)
			s.IQR = iqr(aucs)
		}
		s.Dominant = evaluable > 0 && 2*s.DominantWindows > evaluable
		s.Leakage = len(aucs) >= MinLeakageWindows &&
			s.PooledAUC > cfg.LeakageAUC &&
			s.StdDev < cfg.LeakageMaxStd
		res.Stability = append(res.Stability, s)
	}
	return res, nil
}

// WindowOf returns the label and UTC start of the window containing t.
// Weeks are ISO weeks starting on Monday.
func WindowOf(t time.Time, f Frequency) (string, time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch f {
	case Daily:
		return day.Format("2006-01-02"), day
	case Weekly:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		year, week := day.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), start
	default:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start.Format("2006-01"), start
	}
}

func iqr(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(0.75, stat.Empirical, sorted, nil) - stat.Quantile(0.25, stat.Empirical, sorted, nil)
}

func strictArgmax(values []float64) int {
	best := -1
	tied := false
	for j, v := range values {
		switch {
		case best < 0 || v > values[best]:
			best, tied = j, false
		case v == values[best]:
			tied = true
		}
	}
	if tied || math.IsNaN(values[best]) {
		return -1
	}
	return best
}

func gather(col []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for k, i := range rows {
		out[k] = col[i]
	}
	return out
}

func countPositives(targets []float64) int {
	n := 0
	for _, t := range targets {
		if t > 0.5 {
			n++
		}
	}
	return n
}

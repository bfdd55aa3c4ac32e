package reporting

import (
	"fmt"
	"strings"

	"github.com/crediblend/crediblend/internal/engine"
	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/models"
	"github.com/crediblend/crediblend/internal/statistics"
)

// InterpretScore returns a plain-language label for an AUC.
func InterpretScore(auc float64) string {
	switch {
	case auc > 0.9:
		return "Excellent (>0.90)"
	case auc >= 0.8:
		return "Good (0.80-0.90)"
	case auc >= 0.7:
		return "Fair (0.70-0.80)"
	case auc > 0.5:
		return "Weak (0.50-0.70)"
	default:
		return "No signal (<=0.50)"
	}
}

// InterpretGain explains the improvement of the best blend over the best
// single model.
func InterpretGain(imp statistics.Improvement, epsilon float64) string {
	switch {
	case imp.Delta > epsilon && imp.Significant:
		return fmt.Sprintf("%s beats %s by %.4f and the gain holds across folds.", imp.Blend, imp.Baseline, imp.Delta)
	case imp.Delta > epsilon:
		return fmt.Sprintf("%s beats %s by %.4f, but the per-fold interval includes zero.", imp.Blend, imp.Baseline, imp.Delta)
	case imp.Delta > 0:
		return fmt.Sprintf("%s is ahead of %s by only %.6f, within the improvement margin.", imp.Blend, imp.Baseline, imp.Delta)
	default:
		return fmt.Sprintf("No blend beats the best single model %s.", imp.Baseline)
	}
}

// InterpretStability explains the spread of per-window AUC.
func InterpretStability(std float64, windows int) string {
	switch {
	case windows < 2:
		return "Too few evaluable windows to judge stability."
	case std < 0.005:
		return fmt.Sprintf("Very stable across %d windows (std %.4f).", windows, std)
	case std < 0.02:
		return fmt.Sprintf("Stable across %d windows (std %.4f).", windows, std)
	default:
		return fmt.Sprintf("Unstable across %d windows (std %.4f); check for drift.", windows, std)
	}
}

// FormatSummaryReport produces a plain-language summary of a run.
func FormatSummaryReport(r *engine.Report) string {
	var b strings.Builder

	b.WriteString("=== Interpretation ===\n\n")
	fmt.Fprintf(&b, "Outcome:     %s\n", r.Outcome)
	fmt.Fprintf(&b, "Metric:      %s\n", r.Metric)
	fmt.Fprintf(&b, "Models:      %d aligned on %d common ids\n", len(r.Models), r.Alignment.OOF.CommonIDs)
	if best, ok := r.MethodScore(r.Best.Method); ok {
		line := fmt.Sprintf("Best method: %s (%.4f)", best.Method, best.Score)
		if r.Metric == metrics.AUC {
			line += ": " + InterpretScore(best.Score)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(InterpretGain(r.Improvement, r.Epsilon) + "\n")

	if d := r.Decorrelation; d != nil && len(d.Dropped) > 0 {
		fmt.Fprintf(&b, "\nDecorrelation kept %d of %d models; dropped %s.\n",
			len(d.Kept), len(d.Kept)+len(d.Dropped), strings.Join(d.Dropped, ", "))
	}

	if ts := r.TimeSlice; ts != nil {
		fmt.Fprintf(&b, "\nTime slices (%s, %d of %d windows evaluable):\n", ts.Frequency, ts.Evaluable(), len(ts.Windows))
		for _, s := range ts.Stability {
			fmt.Fprintf(&b, "  %s: %s\n", s.Model, InterpretStability(s.StdDev, s.Windows))
			if s.Leakage {
				fmt.Fprintf(&b, "    Possible leakage: pooled AUC %.4f with almost no variation.\n", s.PooledAUC)
			}
			if s.Dominant {
				fmt.Fprintf(&b, "    Dominates %d windows.\n", s.DominantWindows)
			}
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  ! %s\n", describeWarning(w))
		}
	}

	return b.String()
}

func describeWarning(w models.Warning) string {
	s := fmt.Sprintf("[%s] %s", w.Code, w.Message)
	if w.Method != "" && w.Fallback != "" {
		s += fmt.Sprintf(" (%s used %s)", w.Method, w.Fallback)
	}
	return s
}

package reporting

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/crediblend/crediblend/internal/engine"
)

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2em auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
</style>
</head>
<body>
`

// Markdown renders the report as a markdown document.
func Markdown(r *engine.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Blend report %s\n\n", r.RunID)
	fmt.Fprintf(&b, "- **Outcome:** %s\n", r.Outcome)
	fmt.Fprintf(&b, "- **Metric:** %s\n", r.Metric)
	fmt.Fprintf(&b, "- **Started:** %s (%s)\n", r.StartedAt.Format("2006-01-02 15:04:05 MST"), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "- **Aligned ids:** %d of %d\n", r.Alignment.OOF.CommonIDs, r.Alignment.OOF.TotalIDs)
	if r.Best.Method != "" {
		fmt.Fprintf(&b, "- **Best method:** %s (%s predictions)\n", r.Best.Method, r.Best.Source)
	}
	b.WriteString("\n" + InterpretGain(r.Improvement, r.Epsilon) + "\n")

	b.WriteString("\n## Methods\n\n| Rank | Method | Score | Fallback | Models |\n|---|---|---|---|---|\n")
	for _, m := range r.Methods {
		fmt.Fprintf(&b, "| %d | %s | %.6f | %s | %s |\n", m.Rank, m.Method, m.Score, m.Fallback, strings.Join(m.Models, ", "))
	}

	b.WriteString("\n## Models\n\n| Model | Score | Fold mean | Fold std | Kept | Cluster |\n|---|---|---|---|---|---|\n")
	for _, m := range r.Models {
		fmt.Fprintf(&b, "| %s | %.6f | %.6f | %.6f | %t | %d |\n", m.Model, m.Score, m.FoldMean, m.FoldStdDev, m.Kept, m.Cluster)
	}
	fmt.Fprintf(&b, "\nBest single model %s at %.6f; mean %.6f, std %.6f, worst %.6f.\n",
		r.Summary.BestModel, r.Summary.Best, r.Summary.Mean, r.Summary.StdDev, r.Summary.Worst)

	if d := r.Decorrelation; d != nil {
		fmt.Fprintf(&b, "\n## Decorrelation\n\nThreshold %.2f, %d clusters.\n\n", d.Threshold, len(d.Clusters))
		for _, c := range d.Clusters {
			fmt.Fprintf(&b, "- cluster %d: %s (representative **%s**)\n", c.ID, strings.Join(c.Members, ", "), c.Representative)
		}
	}

	if ws := r.WeightSearch; ws != nil {
		b.WriteString("\n## Weight search\n\n| Model | Weight |\n|---|---|\n")
		for i, m := range ws.Models {
			fmt.Fprintf(&b, "| %s | %.4f |\n", m, ws.Weights[i])
		}
		fmt.Fprintf(&b, "\nBest of %d restarts (seed %d) at %.6f.\n", ws.Restarts, ws.Seed, ws.Score)
	}

	if st := r.Stacking; st != nil {
		fmt.Fprintf(&b, "\n## Stacking\n\n%s meta-learner, intercept %.4f", st.Learner, st.Intercept)
		if st.InSample {
			b.WriteString(", fitted in-sample")
		}
		b.WriteString(".\n\n| Model | Coefficient |\n|---|---|\n")
		for i, m := range st.Models {
			fmt.Fprintf(&b, "| %s | %.4f |\n", m, st.Coefficients[i])
		}
	}

	if ts := r.TimeSlice; ts != nil {
		fmt.Fprintf(&b, "\n## Time slices (%s)\n\n| Window | Rows | Positives |", ts.Frequency)
		for _, m := range ts.Models {
			fmt.Fprintf(&b, " %s |", m)
		}
		b.WriteString(" Dominant |\n|---|---|---|" + strings.Repeat("---|", len(ts.Models)+1) + "\n")
		for _, w := range ts.Windows {
			fmt.Fprintf(&b, "| %s | %d | %d |", w.Label, w.Rows, w.Positives)
			for i := range ts.Models {
				if w.Evaluable {
					fmt.Fprintf(&b, " %.4f |", w.AUC[i])
				} else {
					b.WriteString(" n/a |")
				}
			}
			fmt.Fprintf(&b, " %s |\n", w.Dominant)
		}
		b.WriteString("\n| Model | Pooled AUC | Std | IQR | Leakage | Dominant |\n|---|---|---|---|---|---|\n")
		for _, s := range ts.Stability {
			fmt.Fprintf(&b, "| %s | %.4f | %.4f | %.4f | %t | %t |\n", s.Model, s.PooledAUC, s.StdDev, s.IQR, s.Leakage, s.Dominant)
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", describeWarning(w))
		}
	}

	return b.String()
}

// RenderHTML converts a markdown document into a standalone HTML page.
func RenderHTML(markdown string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, htmlHead, html.EscapeString("crediblend report"))
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

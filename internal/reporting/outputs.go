// Package reporting writes run reports as CSV, JSON, HTML and JUnit XML.
package reporting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/crediblend/crediblend/internal/engine"
)

// Output file names written by WriteOutputs.
const (
	BestSubmissionFile = "best_submission.csv"
	MethodsFile        = "methods.csv"
	ModelsFile         = "models.csv"
	ResultFile         = "result.json"
	HTMLReportFile     = "report.html"
)

// WriteOutputs writes every report artifact into dir, creating it if
// needed.
func WriteOutputs(dir string, r *engine.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	writers := []struct {
		name  string
		write func(string, *engine.Report) error
	}{
		{BestSubmissionFile, writeBestSubmission},
		{MethodsFile, writeMethods},
		{ModelsFile, writeModels},
		{ResultFile, writeResult},
		{HTMLReportFile, writeHTML},
	}
	for _, w := range writers {
		if err := w.write(filepath.Join(dir, w.name), r); err != nil {
			return fmt.Errorf("writing %s: %w", w.name, err)
		}
	}
	return nil
}

func writeBestSubmission(path string, r *engine.Report) error {
	rows := make([][]string, 0, len(r.Best.IDs)+1)
	rows = append(rows, []string{"id", "pred"})
	for i, id := range r.Best.IDs {
		rows = append(rows, []string{id, formatFloat(r.Best.Predictions[i])})
	}
	return writeCSV(path, rows)
}

func writeMethods(path string, r *engine.Report) error {
	rows := [][]string{{"rank", "method", "score", "fallback", "models", "weights"}}
	for _, m := range r.Methods {
		weights := m.Weights
		if weights == nil {
			weights = m.Coefficients
		}
		rows = append(rows, []string{
			strconv.Itoa(m.Rank),
			m.Method,
			formatFloat(m.Score),
			m.Fallback,
			strings.Join(m.Models, ";"),
			joinFloats(weights),
		})
	}
	return writeCSV(path, rows)
}

func writeModels(path string, r *engine.Report) error {
	rows := [][]string{{"model", "score", "fold_mean", "fold_std", "kept", "cluster"}}
	for _, m := range r.Models {
		foldMean, foldStd := "", ""
		if len(m.FoldScores) > 0 {
			foldMean, foldStd = formatFloat(m.FoldMean), formatFloat(m.FoldStdDev)
		}
		rows = append(rows, []string{
			m.Model,
			formatFloat(m.Score),
			foldMean,
			foldStd,
			strconv.FormatBool(m.Kept),
			strconv.Itoa(m.Cluster),
		})
	}
	return writeCSV(path, rows)
}

func writeResult(path string, r *engine.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeHTML(path string, r *engine.Report) error {
	html, err := RenderHTML(Markdown(r))
	if err != nil {
		return err
	}
	return os.WriteFile(path, html, 0o644)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return strings.Join(parts, ";")
}

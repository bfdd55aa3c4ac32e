package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/crediblend/crediblend/internal/engine"
)

var printer = message.NewPrinter(language.English)

// formatDuration formats a duration in a consistent, human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}

// printReport writes the run header and the method and model tables.
func printReport(w io.Writer, r *engine.Report) {
	printer.Fprintf(w, "Run %s (%s, %s)\n", r.RunID, r.Metric, formatDuration(r.Duration))                                                  //nolint:errcheck
	printer.Fprintf(w, "Aligned %d of %d OOF ids across %d models\n\n", r.Alignment.OOF.CommonIDs, r.Alignment.OOF.TotalIDs, len(r.Models)) //nolint:errcheck

	methodRows := make([][]string, 0, len(r.Methods))
	for _, m := range r.Methods {
		marker := ""
		if m.Method == r.Best.Method {
			marker = "*"
		}
		methodRows = append(methodRows, []string{
			fmt.Sprintf("%d%s", m.Rank, marker),
			m.Method,
			fmt.Sprintf("%.6f", m.Score),
			m.Fallback,
			strings.Join(m.Models, ", "),
		})
	}
	renderTable(w, []string{"RANK", "METHOD", "SCORE", "FALLBACK", "MODELS"}, methodRows)
	fmt.Fprintln(w) //nolint:errcheck

	modelRows := make([][]string, 0, len(r.Models))
	for _, m := range r.Models {
		kept := "yes"
		if !m.Kept {
			kept = "no"
		}
		folds := "-"
		if len(m.FoldScores) > 0 {
			folds = fmt.Sprintf("%.4f ± %.4f", m.FoldMean, m.FoldStdDev)
		}
		modelRows = append(modelRows, []string{
			m.Model,
			fmt.Sprintf("%.6f", m.Score),
			folds,
			kept,
			fmt.Sprintf("%d", m.Cluster),
		})
	}
	renderTable(w, []string{"MODEL", "SCORE", "FOLDS", "KEPT", "CLUSTER"}, modelRows)
}

// renderTable writes rows in columns padded to their display width.
func renderTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	writeRow := func(cells []string) {
		var b strings.Builder
		for i, cell := range cells {
			if i == len(cells)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(padRight(cell, widths[i]))
			b.WriteString("  ")
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " ")) //nolint:errcheck
	}

	writeRow(headers)
	sep := make([]string, len(headers))
	for i, width := range widths {
		sep[i] = strings.Repeat("─", width)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

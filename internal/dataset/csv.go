// Package dataset reads per-model prediction files into prediction frames.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/crediblend/crediblend/internal/models"
)

// File name prefixes of out-of-fold and submission prediction files.
const (
	OOFPrefix = "oof_"
	SubPrefix = "sub_"
)

// Row represents a single CSV row with column name to value mapping.
type Row map[string]string

// Options names the columns of a prediction file.
type Options struct {
	IDCol     string
	PredCol   string
	TargetCol string
	FoldCol   string
	// TimeCol is optional; empty disables time parsing.
	TimeCol string
	// RequireTarget makes a missing target column a schema error.
	RequireTarget bool
}

func (o Options) withDefaults() Options {
	if o.IDCol == "" {
		o.IDCol = "id"
	}
	if o.PredCol == "" {
		o.PredCol = "pred"
	}
	if o.TargetCol == "" {
		o.TargetCol = "target"
	}
	if o.FoldCol == "" {
		o.FoldCol = "fold"
	}
	return o
}

// LoadCSV reads a CSV file, gzip-compressed when it ends in .gz, and returns
// the header and the rows as maps of column to value.
func LoadCSV(path string) ([]string, []Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("csv: gzip %s: %w", path, err)
		}
		defer gz.Close() //nolint:errcheck
		r = gz
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("csv: %s is empty (no header row)", path)
	}

	headers := records[0]
	for i, h := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(headers))
		for j, h := range headers {
			row[h] = strings.TrimSpace(record[j])
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

// ModelName derives the model name from a prediction file name by
// stripping the prefix and the .csv or .csv.gz extension.
func ModelName(file, prefix string) string {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".csv")
	return strings.TrimPrefix(base, prefix)
}

// FindFiles lists the <prefix>*.csv and <prefix>*.csv.gz files of dir,
// sorted by name.
func FindFiles(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading prediction directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".csv.gz") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadDir reads every prediction file of dir that starts with prefix.
func LoadDir(dir, prefix string, opts Options) ([]*models.PredictionFrame, error) {
	files, err := FindFiles(dir, prefix)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &models.AlignmentError{Message: fmt.Sprintf("no %s*.csv files found in %s", prefix, dir)}
	}

	frames := make([]*models.PredictionFrame, 0, len(files))
	for _, file := range files {
		frame, err := LoadFrame(file, ModelName(file, prefix), opts)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// LoadFrame reads one prediction file.
func LoadFrame(path, name string, opts Options) (*models.PredictionFrame, error) {
	opts = opts.withDefaults()
	headers, rows, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	file := filepath.Base(path)

	has := make(map[string]bool, len(headers))
	for _, h := range headers {
		has[h] = true
	}
	for _, col := range []string{opts.IDCol, opts.PredCol} {
		if !has[col] {
			return nil, &models.SchemaError{Frame: file, Column: col, Message: "required column is missing"}
		}
	}
	if opts.RequireTarget && !has[opts.TargetCol] {
		return nil, &models.SchemaError{Frame: file, Column: opts.TargetCol, Message: "required column is missing"}
	}
	if opts.TimeCol != "" && !has[opts.TimeCol] {
		return nil, &models.SchemaError{Frame: file, Column: opts.TimeCol, Message: "time column is missing"}
	}

	n := len(rows)
	f := &models.PredictionFrame{
		Name:  name,
		IDs:   make([]string, n),
		Preds: make([]float64, n),
	}
	if has[opts.TargetCol] {
		f.Targets = make([]float64, n)
	}
	if has[opts.FoldCol] {
		f.Folds = make([]int, n)
	}
	if opts.TimeCol != "" {
		f.Times = make([]time.Time, n)
	}

	for i, row := range rows {
		rowNum := i + 1
		schemaErr := func(col, msg string) error {
			return &models.SchemaError{Frame: file, Column: col, Row: rowNum, Message: msg}
		}

		if f.IDs[i] = row[opts.IDCol]; f.IDs[i] == "" {
			return nil, schemaErr(opts.IDCol, "value is empty")
		}
		if f.Preds[i], err = parseFloat(row[opts.PredCol]); err != nil {
			return nil, schemaErr(opts.PredCol, err.Error())
		}
		if f.Targets != nil {
			if f.Targets[i], err = parseFloat(row[opts.TargetCol]); err != nil {
				return nil, schemaErr(opts.TargetCol, err.Error())
			}
		}
		if f.Folds != nil {
			if f.Folds[i], err = parseFold(row[opts.FoldCol]); err != nil {
				return nil, schemaErr(opts.FoldCol, err.Error())
			}
		}
		if f.Times != nil {
			if f.Times[i], err = ParseTime(row[opts.TimeCol]); err != nil {
				return nil, schemaErr(opts.TimeCol, err.Error())
			}
		}
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses RFC 3339, "2006-01-02 15:04:05", "2006-01-02" or unix
// seconds. Times without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("value is empty")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(secs) && !math.IsInf(secs, 0) {
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%q is not a recognised time", s)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("value is empty")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

func parseFold(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("value is empty")
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != math.Trunc(v) {
		return 0, fmt.Errorf("%q is not an integer fold", s)
	}
	return int(v), nil
}

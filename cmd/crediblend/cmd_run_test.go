package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crediblend/crediblend/internal/reporting"
)

// writePredictionDirs writes oof_ and sub_ files for three models of
// different strength into dir and returns the two directories.
func writePredictionDirs(t *testing.T, dir string, n int) (string, string) {
	t.Helper()
	oofDir := filepath.Join(dir, "oof")
	subDir := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(oofDir, 0o755))
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	rng := rand.New(rand.NewSource(3))
	noise := map[string]float64{"lgbm": 0.6, "xgb": 0.9, "knn": 1.5}
	oof := map[string]*strings.Builder{}
	sub := map[string]*strings.Builder{}
	for name := range noise {
		oof[name] = &strings.Builder{}
		oof[name].WriteString("id,pred,target,fold\n")
		sub[name] = &strings.Builder{}
		sub[name].WriteString("id,pred\n")
	}
	for i := 0; i < n; i++ {
		target := rng.Intn(2)
		for name, sd := range noise {
			fmt.Fprintf(oof[name], "r%d,%.6f,%d,%d\n", i, float64(target)+sd*rng.NormFloat64(), target, i%5)
		}
	}
	for i := 0; i < n/4; i++ {
		for name := range noise {
			fmt.Fprintf(sub[name], "t%d,%.6f\n", i, rng.Float64())
		}
	}
	for name := range noise {
		require.NoError(t, os.WriteFile(filepath.Join(oofDir, "oof_"+name+".csv"), []byte(oof[name].String()), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub_"+name+".csv"), []byte(sub[name].String()), 0o644))
	}
	return oofDir, subDir
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunCommand_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	oofDir, subDir := writePredictionDirs(t, dir, 400)
	outDir := filepath.Join(dir, "out")
	junitPath := filepath.Join(dir, "junit.xml")
	metricsPath := filepath.Join(dir, "crediblend.prom")

	output, err := executeRoot(t, "run",
		"--oof-dir", oofDir,
		"--sub-dir", subDir,
		"--out", outDir,
		"--restarts", "2",
		"--iterations", "50",
		"--jobs", "2",
		"--junit", junitPath,
		"--metrics-file", metricsPath,
	)
	assert.NotEqual(t, ExitError, exitCode(err), "unexpected error: %v", err)

	for _, name := range []string{
		reporting.BestSubmissionFile,
		reporting.MethodsFile,
		reporting.ModelsFile,
		reporting.ResultFile,
		reporting.HTMLReportFile,
	} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}
	assert.FileExists(t, junitPath)
	assert.FileExists(t, metricsPath)

	assert.Contains(t, output, "METHOD")
	assert.Contains(t, output, "lgbm")
	assert.Contains(t, output, "=== Interpretation ===")
	assert.Contains(t, output, "Results saved to: "+outDir)

	sub, err := os.ReadFile(filepath.Join(outDir, reporting.BestSubmissionFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(sub)), "\n")
	assert.Equal(t, "id,pred", lines[0])
	assert.Len(t, lines, 101)
}

func TestRunCommand_JSONFormat(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	oofDir, _ := writePredictionDirs(t, dir, 200)

	output, err := executeRoot(t, "run",
		"--oof-dir", oofDir,
		"--out", filepath.Join(dir, "out"),
		"--methods", "mean,rank_mean,best_single",
		"--format", "json",
	)
	assert.NotEqual(t, ExitError, exitCode(err), "unexpected error: %v", err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &decoded))
	assert.Equal(t, "auc", decoded["metric"])
	assert.Len(t, decoded["methods"], 3)
}

func TestRunCommand_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writePredictionDirs(t, dir, 200)
	cfg := `metric: auc
methods: [mean, best_single]
paths:
  oof_dir: oof
  out: results
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".crediblend.yaml"), []byte(cfg), 0o644))

	_, err := executeRoot(t, "run")
	assert.NotEqual(t, ExitError, exitCode(err), "unexpected error: %v", err)
	assert.FileExists(t, filepath.Join(dir, "results", reporting.ResultFile))
}

func TestRunCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	badDir := filepath.Join(dir, "bad")
	require.NoError(t, os.MkdirAll(badDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(badDir, "oof_a.csv"), []byte("id,pred\n1,0.5\n"), 0o644))

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "unknown format", args: []string{"run", "--oof-dir", badDir, "--format", "yaml"}, wantErr: "unknown format"},
		{name: "no oof dir", args: []string{"run"}, wantErr: "no OOF directory"},
		{name: "missing directory", args: []string{"run", "--oof-dir", filepath.Join(dir, "missing")}, wantErr: "missing"},
		{name: "missing target column", args: []string{"run", "--oof-dir", badDir}, wantErr: "target"},
		{name: "unknown metric", args: []string{"run", "--oof-dir", badDir, "--metric", "f1"}, wantErr: "f1"},
		{name: "positional args", args: []string{"run", "extra"}, wantErr: "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeRoot(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, ExitError, exitCode(err))
		})
	}
}

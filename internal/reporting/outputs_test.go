package reporting

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteOutputs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, WriteOutputs(dir, newTestReport()))

	for _, name := range []string{BestSubmissionFile, MethodsFile, ModelsFile, ResultFile, HTMLReportFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	t.Run("best submission", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, BestSubmissionFile))
		assert.Equal(t, [][]string{
			{"id", "pred"},
			{"a", "0.1"},
			{"b", "0.25"},
			{"c", "0.5"},
			{"d", "0.875"},
		}, rows)
	})

	t.Run("methods", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, MethodsFile))
		require.Len(t, rows, 4)
		assert.Equal(t, []string{"rank", "method", "score", "fallback", "models", "weights"}, rows[0])
		assert.Equal(t, []string{"1", "weighted", "0.83", "", "lgbm;xgb", "0.600000;0.400000"}, rows[1])
		assert.Equal(t, "mean", rows[3][3])
	})

	t.Run("models", func(t *testing.T) {
		rows := readCSV(t, filepath.Join(dir, ModelsFile))
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"lgbm", "0.81", "0.81", "0.01", "true", "1"}, rows[1])
		assert.Equal(t, []string{"xgb", "0.79", "", "", "true", "2"}, rows[2])
	})

	t.Run("result json", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, ResultFile))
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "run-1", decoded["run_id"])
		assert.Equal(t, "warned", decoded["outcome"])
		assert.Contains(t, decoded, "methods")
		assert.Contains(t, decoded, "time_slice")
	})

	t.Run("html", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, HTMLReportFile))
		require.NoError(t, err)
		html := string(data)
		assert.Contains(t, html, "<!DOCTYPE html>")
		assert.Contains(t, html, "<table>")
		assert.Contains(t, html, "<h2>Methods</h2>")
		assert.Contains(t, html, "<td>weighted</td>")
	})
}

func TestWriteOutputs_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	err := WriteOutputs(filepath.Join(file, "out"), newTestReport())
	assert.Error(t, err)
}

func TestMarkdown(t *testing.T) {
	md := Markdown(newTestReport())

	assert.Contains(t, md, "# Blend report run-1")
	assert.Contains(t, md, "| 1 | weighted | 0.830000 |  | lgbm, xgb |")
	assert.Contains(t, md, "## Weight search")
	assert.Contains(t, md, "| 2024-02 | 1 | 0 | n/a | n/a |  |")
	assert.Contains(t, md, "## Warnings")
	assert.NotContains(t, md, "## Stacking")
}

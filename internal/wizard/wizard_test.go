package wizard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crediblend/crediblend/internal/projectconfig"
)

func TestGenerateConfig_Defaults(t *testing.T) {
	result, err := GenerateConfig(DefaultAnswers())
	require.NoError(t, err)

	assert.Contains(t, result, "metric: auc")
	assert.Contains(t, result, "  - weighted")
	assert.Contains(t, result, `oof_dir: "oof/"`)
	assert.Contains(t, result, `sub_dir: "sub/"`)
	assert.Contains(t, result, "seed: 42")
	assert.Contains(t, result, "frequency: monthly")
	assert.NotContains(t, result, "columns:")
}

func TestGenerateConfig_LoadsBack(t *testing.T) {
	a := &Answers{
		OOFDir:    "preds/oof",
		Out:       "out dir/",
		Metric:    "mse",
		Methods:   []string{"mean", "stacking"},
		TimeCol:   "event_time",
		Frequency: "weekly",
		Seed:      7,
	}
	result, err := GenerateConfig(a)
	require.NoError(t, err)
	assert.NotContains(t, result, "sub_dir")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, projectconfig.FileName), []byte(result), 0o644))

	cfg, err := projectconfig.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "mse", cfg.Metric)
	assert.Equal(t, []string{"mean", "stacking"}, cfg.Methods)
	assert.Equal(t, "preds/oof", cfg.Paths.OOFDir)
	assert.Equal(t, "out dir/", cfg.Paths.Out)
	assert.Equal(t, "event_time", cfg.Columns.Time)
	assert.Equal(t, "weekly", cfg.TimeSlice.Frequency)
	assert.Equal(t, int64(7), cfg.Search.Seed)
}

func TestGenerateConfig_RejectsInvalidAnswers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Answers)
	}{
		{"metric", func(a *Answers) { a.Metric = "f1" }},
		{"method", func(a *Answers) { a.Methods = []string{"median"} }},
		{"no methods", func(a *Answers) { a.Methods = nil }},
		{"frequency", func(a *Answers) { a.Frequency = "hourly" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := DefaultAnswers()
			tt.mutate(a)
			_, err := GenerateConfig(a)
			assert.Error(t, err)
		})
	}
}

func TestRequired(t *testing.T) {
	assert.NoError(t, required("x")("value"))
	assert.EqualError(t, required("output directory")("  "), "output directory is required")
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crediblend/crediblend/internal/projectconfig"
)

func TestInitCommand_CreatesProject(t *testing.T) {
	target := filepath.Join(t.TempDir(), "my-project")

	var buf bytes.Buffer
	cmd := newInitCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{target})
	require.NoError(t, cmd.Execute())

	assert.FileExists(t, filepath.Join(target, projectconfig.FileName))
	assert.DirExists(t, filepath.Join(target, "oof"))
	assert.DirExists(t, filepath.Join(target, "sub"))
	assert.Contains(t, buf.String(), "Initialized crediblend project")

	cfg, err := projectconfig.Load(target)
	require.NoError(t, err)
	assert.Equal(t, "oof/", cfg.Paths.OOFDir)
	assert.Equal(t, "auc", cfg.Metric)
}

func TestInitCommand_RefusesOverwrite(t *testing.T) {
	target := t.TempDir()
	cfgPath := filepath.Join(target, projectconfig.FileName)
	require.NoError(t, os.WriteFile(cfgPath, []byte("metric: mse\n"), 0o644))

	cmd := newInitCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{target})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "metric: mse\n", string(data))

	cmd = newInitCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{target, "--force"})
	require.NoError(t, cmd.Execute())

	cfg, err := projectconfig.Load(target)
	require.NoError(t, err)
	assert.Equal(t, "auc", cfg.Metric)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/borrowsan/internal/borrow/monitor"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "borrowsan.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
mode: eager
quiet: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "eager", cfg.Mode)
	assert.True(t, cfg.Quiet)

	opts := cfg.MonitorOptions()
	assert.Equal(t, monitor.ModeEager, opts.Mode)
	assert.True(t, opts.Quiet)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lazy", cfg.Mode)
	assert.False(t, cfg.Quiet)
	assert.Equal(t, monitor.ModeLazy, cfg.MonitorOptions().Mode)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/borrowsan.yml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
mode:
  - this is invalid
    yaml syntax
`)

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	path := writeConfig(t, `version: "2.0"
`)

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version")
}

func TestLoad_UnknownMode(t *testing.T) {
	path := writeConfig(t, `version: "1.0"
mode: paranoid
`)

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, monitor.ModeLazy, cfg.MonitorOptions().Mode)
}

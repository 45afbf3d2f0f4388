package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isosandbox/internal/logging"
	"isosandbox/pkg/grid"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, grid.Cube(48), cfg.Extent())
	assert.Equal(t, BackendGPU, cfg.Extract.Backend)
	assert.True(t, cfg.Window.VSync)
}

func TestParseJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"grid": {"x": 16, "y": 24, "z": 32},
		"field": {"kind": "torus", "radius": 0.5},
		"extract": {"threshold": 0.1, "backend": "cpu", "workers": 2}
	}`), "json")
	require.NoError(t, err)

	assert.Equal(t, grid.Extent{X: 16, Y: 24, Z: 32}, cfg.Extent())
	assert.Equal(t, "torus", cfg.Field.Kind)
	assert.InDelta(t, 0.5, cfg.Field.Radius, 1e-9)
	assert.InDelta(t, 0.1, cfg.Extract.Threshold, 1e-9)
	assert.Equal(t, 2, cfg.WorkerCount())
	// Untouched sections keep their defaults.
	assert.Equal(t, "isosandbox", cfg.Window.Title)
	assert.InDelta(t, 2.0, cfg.Field.Frequency, 1e-9)
}

func TestParseTOML(t *testing.T) {
	cfg, err := Parse([]byte(`
[window]
title = "iso"
width = 800
height = 600
vsync = false

[field]
kind = "gyroid"
frequency = 3.0

[inspect]
enabled = true
addr = ":9000"
`), "toml")
	require.NoError(t, err)

	assert.Equal(t, "iso", cfg.Window.Title)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.False(t, cfg.Window.VSync)
	assert.Equal(t, "gyroid", cfg.Field.Kind)
	assert.True(t, cfg.Inspect.Enabled)
	assert.Equal(t, ":9000", cfg.Inspect.Addr)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero grid axis", func(c *Config) { c.Grid.Y = 0 }},
		{"negative grid axis", func(c *Config) { c.Grid.Z = -4 }},
		{"oversized grid", func(c *Config) { c.Grid.X = MaxGridAxis + 1 }},
		{"zero window", func(c *Config) { c.Window.Width = 0 }},
		{"unknown backend", func(c *Config) { c.Extract.Backend = "vulkan" }},
		{"negative workers", func(c *Config) { c.Extract.Workers = -1 }},
		{"zero frequency", func(c *Config) { c.Field.Frequency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestParseUnknownFormat(t *testing.T) {
	_, err := Parse([]byte(`x: 1`), "yaml")
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sandbox.toml")
	require.NoError(t, os.WriteFile(path, []byte("[grid]\nx = 8\ny = 8\nz = 8\n"), 0644))

	require.NoError(t, Load(path))
	snap := Snapshot()
	assert.Equal(t, grid.Cube(8), snap.Extent())

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"grid": {"x": 0}}`), 0644))
	assert.ErrorIs(t, Load(bad), ErrInvalid)
	// A rejected file leaves the previous configuration in place.
	assert.Equal(t, grid.Cube(8), Snapshot().Extent())
}

func TestDiscoverWarnsOnMalformedFile(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(logging.NewTextLogger(&buf, "warn"))
	defer logging.SetLogger(nil)

	dir := t.TempDir()
	broken := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[grid\nx = 8\n"), 0644))
	good := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"grid": {"x": 8, "y": 8, "z": 8}}`), 0644))

	cfg := discover([]string{filepath.Join(dir, "missing.toml"), broken, good})
	assert.Equal(t, grid.Cube(8), cfg.Extent(), "next candidate is used")
	assert.Contains(t, buf.String(), "config file ignored")
	assert.Contains(t, buf.String(), "config.toml")
	assert.NotContains(t, buf.String(), "missing.toml")
}

func TestDiscoverFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"grid": {"x": 16,`), 0644))

	cfg := discover([]string{broken})
	assert.Equal(t, DefaultConfig(), cfg)
}

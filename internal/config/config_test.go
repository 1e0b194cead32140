package config

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/solarsim/internal/agents"
	"github.com/talgya/solarsim/internal/engine"
	"github.com/talgya/solarsim/internal/world"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.Model.Width)
	assert.Equal(t, 120, cfg.Model.Height)
	assert.Equal(t, 10000, cfg.Model.Agents)
	assert.True(t, cfg.Model.Subsidy)
	assert.Equal(t, 200, cfg.Model.MaxSteps)
	assert.Equal(t, "zoned", cfg.Model.Mode)
	assert.Equal(t, agents.DefaultWeights(), cfg.Model.Weights)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Server.TickInterval)
	assert.Equal(t, "data/solarsim.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultParams(), p)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
model:
  width: 40
  height: 30
  agents: 500
  mode: uniform
  seed: 99
  weights:
    income: 1.5
server:
  port: 9090
  tick_interval: 250ms
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "solarsim.yaml"), []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Model.Width)
	assert.Equal(t, uint64(99), cfg.Model.Seed)
	assert.Equal(t, 1.5, cfg.Model.Weights.Income)
	// Defaults still apply for unset values
	assert.Equal(t, 0.5, cfg.Model.Weights.Social)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.TickInterval)
	assert.Equal(t, "json", cfg.Log.Format)

	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, agents.ModeUniform, p.Mode)
	assert.Equal(t, 500, p.Agents)
	assert.Nil(t, p.Layout)
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	chdirTemp(t)
	_, err := Load("missing.yaml")
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
model:
  agents: 500
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "solarsim.yaml"), []byte(yaml), 0644))

	t.Setenv("SOLARSIM_MODEL_AGENTS", "750")
	t.Setenv("SOLARSIM_MODEL_SUBSIDY", "false")
	t.Setenv("SOLARSIM_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 750, cfg.Model.Agents)
	assert.False(t, cfg.Model.Subsidy)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestParamsLoadsZoningFile(t *testing.T) {
	dir := chdirTemp(t)

	zoning := `
zones:
  - {name: west, x_min: 0, x_max: 10, y_min: 0, y_max: 10, incomes: [1, 2], weights: [0.8, 0.2]}
  - {name: east, x_min: 10, x_max: 20, y_min: 0, y_max: 10, incomes: [3], weights: [1]}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zones.yaml"), []byte(zoning), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Model.Width, cfg.Model.Height = 20, 10
	cfg.Model.ZoningFile = "zones.yaml"

	p, err := cfg.Params()
	require.NoError(t, err)
	require.NotNil(t, p.Layout)
	assert.Len(t, p.Layout.Zones, 2)

	cfg.Model.Width = 5
	_, err = cfg.Params()
	assert.True(t, errors.Is(err, world.ErrInvalidLayout))
}

func TestParamsRejectsBadModel(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Model.Mode = "hexagonal"
	_, err = cfg.Params()
	assert.Error(t, err)

	cfg.Model.Mode = "zoned"
	cfg.Model.Width = 0
	_, err = cfg.Params()
	assert.True(t, errors.Is(err, engine.ErrInvalidParams))
}

func TestParamsAppliesOverrides(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
model:
  width: 20
  height: 20
  agents: 50
  overrides:
    dwelling: apartment
    income: 2
    consciousness: 0.75
    subsidy_eligibility: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "solarsim.yaml"), []byte(yaml), 0644))
	cfg, err := Load("")
	require.NoError(t, err)

	p, err := cfg.Params()
	require.NoError(t, err)
	require.NotNil(t, p.Overrides.Dwelling)
	assert.Equal(t, world.DwellingApartment, *p.Overrides.Dwelling)
	assert.Equal(t, agents.IncomeMid, *p.Overrides.Income)
	assert.Equal(t, 0.75, *p.Overrides.Consciousness)
	require.NotNil(t, p.Overrides.Subsidy)
	assert.False(t, *p.Overrides.Subsidy)
	assert.Nil(t, p.Overrides.Education)

	cfg.Model.Overrides = map[string]string{"dwelling": "castle"}
	_, err = cfg.Params()
	assert.True(t, errors.Is(err, agents.ErrInvalidSpawnConfig))
}

func TestInitLogger(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	var buf bytes.Buffer
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}, &buf))
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))

	slog.Warn("grid full", "cells", 3)
	assert.Contains(t, buf.String(), `"msg":"grid full"`)

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "text"}, &buf))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

func TestInitLoggerErrors(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}, &bytes.Buffer{}))
	assert.Error(t, InitLogger(LogConfig{Level: "info", Format: "xml"}, &bytes.Buffer{}))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/hostbridge/pkg/errors"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOptional_MissingFileUsesDefaults(t *testing.T) {
	cfg, path, err := LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hostbridge.yaml", `
log:
  level: debug
tick:
  interval: 5ms
  count: 10
debug:
  enabled: true
  addr: ":0"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5*time.Millisecond, cfg.Tick.Interval)
	assert.Equal(t, 10, cfg.Tick.Count)
	assert.True(t, cfg.Debug.Enabled)
	assert.Equal(t, ":0", cfg.Debug.Addr)
	assert.Equal(t, 2*time.Second, cfg.Debug.TreeTimeout, "unset keys keep defaults")
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hostbridge.toml", `
[tick]
interval = "20ms"
trace_capacity = 32

[metrics]
enabled = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Millisecond, cfg.Tick.Interval)
	assert.Equal(t, 32, cfg.Tick.TraceCapacity)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadOptional_PrefersYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hostbridge.toml", "[tick]\ncount = 1\n")
	yamlPath := writeFile(t, dir, "hostbridge.yaml", "tick:\n  count: 2\n")

	cfg, path, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, yamlPath, path)
	assert.Equal(t, 2, cfg.Tick.Count)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hostbridge.yaml", "tick:\n  interval: 5ms\n")
	t.Setenv(EnvTickInterval, "40ms")
	t.Setenv(EnvDebugEnabled, "true")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40*time.Millisecond, cfg.Tick.Interval)
	assert.True(t, cfg.Debug.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"unknown key", "a.yaml", "tick:\n  speed: 3\n", "speed"},
		{"bad duration", "b.yaml", "tick:\n  interval: soon\n", "interval"},
		{"bad yaml", "c.yaml", "tick: [\n", "config parse failed"},
		{"bad toml", "d.toml", "[tick\n", "config parse failed"},
		{"unsupported format", "e.json", "{}", "unsupported config format"},
		{"zero interval", "f.yaml", "tick:\n  interval: 0s\n", "tick.interval must be positive"},
		{"negative count", "g.toml", "[tick]\ncount = -1\n", "tick.count"},
		{"unknown level", "h.yaml", "log:\n  level: loud\n", "log.level"},
		{"debug without addr", "i.yaml", "debug:\n  enabled: true\n  addr: \"\"\n", "debug.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)

			var be *errors.BridgeError
			require.True(t, errors.As(err, &be))
			assert.Equal(t, errors.KindConfig, be.Kind)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv_BadValue(t *testing.T) {
	t.Setenv(EnvTickCount, "many")
	_, _, err := LoadOptional(t.TempDir())
	assert.ErrorContains(t, err, "environment override")
}

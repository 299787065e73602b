// Package config loads the hostbridge configuration file.
//
// The file is optional. It may be YAML (hostbridge.yaml, hostbridge.yml) or
// TOML (hostbridge.toml); either is decoded to a generic map and mapped onto
// Config, so both formats accept the same keys. HOSTBRIDGE_* environment
// variables override the file.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/hostbridge/internal/logging"
	"github.com/go-drift/hostbridge/pkg/errors"
)

// Environment overrides.
const (
	EnvLogLevel       = "HOSTBRIDGE_LOG_LEVEL"
	EnvTickInterval   = "HOSTBRIDGE_TICK_INTERVAL"
	EnvTickCount      = "HOSTBRIDGE_TICK_COUNT"
	EnvDebugEnabled   = "HOSTBRIDGE_DEBUG_ENABLED"
	EnvDebugAddr      = "HOSTBRIDGE_DEBUG_ADDR"
	EnvMetricsEnabled = "HOSTBRIDGE_METRICS_ENABLED"
)

var envKeys = []struct {
	env  string
	path []string
}{
	{EnvLogLevel, []string{"log", "level"}},
	{EnvTickInterval, []string{"tick", "interval"}},
	{EnvTickCount, []string{"tick", "count"}},
	{EnvDebugEnabled, []string{"debug", "enabled"}},
	{EnvDebugAddr, []string{"debug", "addr"}},
	{EnvMetricsEnabled, []string{"metrics", "enabled"}},
}

// FileNames are the names LoadOptional looks for, in order.
var FileNames = []string{"hostbridge.yaml", "hostbridge.yml", "hostbridge.toml"}

// Config is the full configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Tick    TickConfig    `mapstructure:"tick"`
	Debug   DebugConfig   `mapstructure:"debug"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// TickConfig configures the host tick loop.
type TickConfig struct {
	// Interval between ticks.
	Interval time.Duration `mapstructure:"interval"`
	// Count stops the loop after this many ticks. Zero runs until cancelled.
	Count int `mapstructure:"count"`
	// Slow marks ticks longer than this in the trace.
	Slow time.Duration `mapstructure:"slow"`
	// TraceCapacity is the number of tick samples kept.
	TraceCapacity int `mapstructure:"trace_capacity"`
}

// DebugConfig configures the inspection server.
type DebugConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	TreeTimeout time.Duration `mapstructure:"tree_timeout"`
}

// MetricsConfig configures Prometheus collection.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Tick: TickConfig{
			Interval:      16 * time.Millisecond,
			Slow:          16667 * time.Microsecond,
			TraceCapacity: 240,
		},
		Debug: DebugConfig{
			Addr:        "127.0.0.1:9311",
			TreeTimeout: 2 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads the file at path, applies environment overrides and validates
// the result. The format is chosen by extension.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := decode(raw, &cfg); err != nil {
		return Config{}, configError("config.Load", fmt.Errorf("%s: %w", path, err))
	}
	return finish(cfg)
}

// LoadOptional loads the first of FileNames present in dir. Without a file
// it returns the defaults with environment overrides applied.
func LoadOptional(dir string) (Config, string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if stderrors.Is(err, os.ErrNotExist) {
				continue
			}
			return Config{}, "", configError("config.LoadOptional", err)
		}
		cfg, err := Load(path)
		return cfg, path, err
	}
	cfg, err := finish(Default())
	return cfg, "", err
}

func finish(cfg Config) (Config, error) {
	if err := applyEnv(&cfg); err != nil {
		return Config{}, configError("config.env", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError("config.Load", fmt.Errorf("config load failed (%s): %w", path, err))
	}
	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, configError("config.Load", fmt.Errorf("unsupported config format %q", filepath.Ext(path)))
	}
	if err != nil {
		return nil, configError("config.Load", fmt.Errorf("config parse failed (%s): %w", path, err))
	}
	return raw, nil
}

// decode maps raw onto cfg. Unknown keys are rejected and strings are
// accepted for durations, numbers and booleans.
func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func applyEnv(cfg *Config) error {
	raw := map[string]any{}
	for _, k := range envKeys {
		value, ok := os.LookupEnv(k.env)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		section, _ := raw[k.path[0]].(map[string]any)
		if section == nil {
			section = map[string]any{}
			raw[k.path[0]] = section
		}
		section[k.path[1]] = strings.TrimSpace(value)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := decode(raw, cfg); err != nil {
		return fmt.Errorf("environment override: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return configError("config.Validate", fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Tick.Interval <= 0 {
		return configError("config.Validate", fmt.Errorf("tick.interval must be positive, got %s", c.Tick.Interval))
	}
	if c.Tick.Count < 0 {
		return configError("config.Validate", fmt.Errorf("tick.count must not be negative, got %d", c.Tick.Count))
	}
	if c.Tick.TraceCapacity < 0 {
		return configError("config.Validate", fmt.Errorf("tick.trace_capacity must not be negative, got %d", c.Tick.TraceCapacity))
	}
	if c.Debug.Enabled && strings.TrimSpace(c.Debug.Addr) == "" {
		return configError("config.Validate", fmt.Errorf("debug.addr is required when debug is enabled"))
	}
	return nil
}

func configError(op string, err error) error {
	return &errors.BridgeError{Op: op, Kind: errors.KindConfig, Err: err}
}

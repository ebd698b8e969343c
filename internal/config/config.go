// Package config provides tool configuration types and defaults, and loads
// per-project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zjrosen/tapkit/internal/flags"
	"github.com/zjrosen/tapkit/internal/log"
	"github.com/zjrosen/tapkit/internal/tracing"
)

// Config holds the tool configuration read by viper from
// .tapkit/config.yaml or ~/.config/tapkit/config.yaml.
type Config struct {
	// Presets and Plugins are declarations applied to every project, after the
	// project's own.
	Presets []any `mapstructure:"presets"`
	Plugins []any `mapstructure:"plugins"`

	// DisableBuiltin skips the built-in default preset.
	DisableBuiltin bool `mapstructure:"disable_builtin"`

	Flags   map[string]bool `mapstructure:"flags"`
	Tracing tracing.Config  `mapstructure:"tracing"`
	Watch   WatchConfig     `mapstructure:"watch"`

	// DebugLog is the file written when --debug is set.
	DebugLog string `mapstructure:"debug_log"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	DebounceMs int `mapstructure:"debounce_ms"`
	// Extensions limits which file changes trigger a rebuild. Empty means all.
	Extensions []string `mapstructure:"extensions"`
}

// DefaultTracesFilePath returns ~/.config/tapkit/traces/traces.jsonl, or ""
// when the home directory is unknown.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tapkit", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()

	return Config{
		Flags:    flags.Defaults(),
		Tracing:  tc,
		Watch:    WatchConfig{DebounceMs: 200},
		DebugLog: "debug.log",
	}
}

// Validate checks the whole configuration.
func Validate(cfg Config) error {
	if err := ValidateTracing(cfg.Tracing); err != nil {
		return err
	}
	if err := ValidateWatch(cfg.Watch); err != nil {
		return err
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors. Empty values use
// defaults.
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}

	switch tc.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
	}

	if tc.Enabled {
		if tc.Exporter == tracing.ExporterFile && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == tracing.ExporterOTLP && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// ValidateWatch checks watch configuration.
func ValidateWatch(w WatchConfig) error {
	if w.DebounceMs < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative, got %d", w.DebounceMs)
	}
	for _, ext := range w.Extensions {
		if len(ext) < 2 || ext[0] != '.' {
			return fmt.Errorf("watch.extensions entries must look like \".go\", got %q", ext)
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# tapkit configuration

# Presets and plugins applied to every project, after the project's own.
# Each entry is an identity, an [identity, options] pair or {id, options}.
# presets:
#   - ./tools/company-preset.go
# plugins:
#   - [tapkit/plugin-build, {minify: true}]

# Skip the built-in default preset (info, build, init commands and the
# web/mini platforms).
# disable_builtin: false

# Feature flags
flags:
  hook-order-cache: true   # Memoize hook orderings between registrations
  script-plugins: true     # Load ./path presets and plugins as Go scripts

# Watch mode (build --watch)
watch:
  debounce_ms: 200
  # extensions: [.go, .ts, .yaml]

# File written when --debug is set
debug_log: debug.log

# Tracing of kernel runs and hook handlers
# tracing:
#   enabled: false                 # default: false
#   exporter: file                 # none, file, stdout, otlp (default: file)
#   file_path: ~/.config/tapkit/traces/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at configPath with default
// settings and comments, creating the parent directory if needed.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}

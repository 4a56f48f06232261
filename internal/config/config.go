// Package config provides configuration types and defaults for cbconfig.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/cbconfig/internal/log"
	"github.com/zjrosen/cbconfig/internal/tracing"
)

// StateDirName is the hidden directory inside the configuration directory
// that holds the catalog, the debug log and local traces.
const StateDirName = ".cbconfig"

// Config holds all configuration options for cbconfig.
type Config struct {
	Dir         string         `mapstructure:"dir"`
	CatalogPath string         `mapstructure:"catalog_path"`
	Registry    RegistryConfig `mapstructure:"registry"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Log         LogConfig      `mapstructure:"log"`
	Tracing     tracing.Config `mapstructure:"tracing"`
	Server      ServerConfig   `mapstructure:"server"`
}

// RegistryConfig holds registry behaviour options.
type RegistryConfig struct {
	// StampTimestamps fills metadata.created on create and refreshes
	// metadata.modified on every write.
	StampTimestamps bool `mapstructure:"stamp_timestamps"`
}

// CacheConfig controls the validated-document cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// LogConfig controls the debug log.
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`  // default: <dir>/.cbconfig/debug.log
	Level   string `mapstructure:"level"` // debug, info, warn or error
}

// ServerConfig holds options for the local web form server.
type ServerConfig struct {
	Address       string        `mapstructure:"address"`
	Port          int           `mapstructure:"port"`
	Watch         bool          `mapstructure:"watch"`          // watch the directory for outside edits
	WatchDebounce time.Duration `mapstructure:"watch_debounce"` // quiet period before a batch is checked
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// ResolvedDir returns the configuration directory, defaulting to the
// current working directory.
func (c Config) ResolvedDir() (string, error) {
	if c.Dir != "" {
		return filepath.Abs(expandHome(c.Dir))
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return wd, nil
}

// StateDir returns <dir>/.cbconfig.
func (c Config) StateDir() (string, error) {
	dir, err := c.ResolvedDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, StateDirName), nil
}

// ResolvedCatalogPath returns catalog_path, or <dir>/.cbconfig/catalog.db.
func (c Config) ResolvedCatalogPath() (string, error) {
	if c.CatalogPath != "" {
		return filepath.Abs(expandHome(c.CatalogPath))
	}
	state, err := c.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, "catalog.db"), nil
}

// ResolvedLogPath returns log.path, or <dir>/.cbconfig/debug.log.
func (c Config) ResolvedLogPath() (string, error) {
	if c.Log.Path != "" {
		return expandHome(c.Log.Path), nil
	}
	state, err := c.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, "debug.log"), nil
}

// ResolvedTracing returns the tracing config with the file exporter path
// derived from the state directory when unset.
func (c Config) ResolvedTracing() (tracing.Config, error) {
	t := c.Tracing
	if t.FilePath != "" {
		t.FilePath = expandHome(t.FilePath)
		return t, nil
	}
	state, err := c.StateDir()
	if err != nil {
		return t, err
	}
	t.FilePath = filepath.Join(state, "traces", "traces.jsonl")
	return t, nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Validate checks the whole configuration.
func Validate(c Config) error {
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}
	if c.Log.Level != "" {
		if _, err := log.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return ValidateServer(c.Server)
}

// ValidateServer checks server configuration for errors.
func ValidateServer(s ServerConfig) error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", s.Port)
	}
	if s.WatchDebounce < 0 {
		return fmt.Errorf("server.watch_debounce must not be negative, got %s", s.WatchDebounce)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	switch t.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
	}

	// file_path falls back to the state directory, so only otlp needs a value.
	if t.Enabled && t.Exporter == tracing.ExporterOTLP && t.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}
	return nil
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Registry: RegistryConfig{
			StampTimestamps: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Minute,
		},
		Log: LogConfig{
			Enabled: false,
			Level:   "debug",
		},
		Tracing: tracing.DefaultConfig(),
		Server: ServerConfig{
			Address:       "127.0.0.1",
			Port:          8765,
			Watch:         true,
			WatchDebounce: 500 * time.Millisecond,
		},
	}
}

// SetDefaults registers every default with v so that keys missing from the
// config file still unmarshal to Defaults().
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("dir", d.Dir)
	v.SetDefault("catalog_path", d.CatalogPath)
	v.SetDefault("registry.stamp_timestamps", d.Registry.StampTimestamps)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("log.enabled", d.Log.Enabled)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.watch", d.Server.Watch)
	v.SetDefault("server.watch_debounce", d.Server.WatchDebounce)
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# cbconfig configuration

# Directory holding the NNNNNN.json configuration files (default: current directory)
# dir: /path/to/configs

# Catalog database (default: <dir>/.cbconfig/catalog.db)
# catalog_path: /path/to/catalog.db

registry:
  # Fill metadata.created on create and refresh metadata.modified on every write
  stamp_timestamps: true

# Validated documents are cached in memory and re-read when the file changes
cache:
  enabled: true
  ttl: 1m

# Debug log (also enabled by --debug or CBCONFIG_DEBUG=1)
log:
  enabled: false
  # path: /tmp/cbconfig.log   # default: <dir>/.cbconfig/debug.log
  level: debug                # debug, info, warn or error

# Local web form server ('cbconfig serve')
server:
  address: 127.0.0.1
  port: 8765
  watch: true            # report files edited outside cbconfig
  watch_debounce: 500ms

# Distributed tracing of registry operations
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.cbconfig/traces.jsonl  # default: <dir>/.cbconfig/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1  # Sample 10% of traces
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist. An existing file is left alone.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file %s already exists", configPath)
	}

	if err := writeAtomic(configPath, []byte(DefaultConfigTemplate())); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return err
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}

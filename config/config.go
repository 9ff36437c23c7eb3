package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/codetree/internal/util"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Bytes per KB
const KB = 1024

// CLI verbosity values; see [Config.Merge] for how they map to log levels
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	// DefaultMaxDepth bounds eager directory prefetch to the requested
	// directory plus one layer of its subdirectories
	DefaultMaxDepth = 2

	// DefaultReadChunkSize is the size of each chunk fed to the buffer builder
	DefaultReadChunkSize = 64 * KB

	// DefaultWriteBufferSize is the size of the buffered writer used when saving
	DefaultWriteBufferSize = 64 * KB

	// DefaultEncoding is the character encoding assumed for documents
	DefaultEncoding = "utf-8"

	// DefaultWatch determines whether external changes are tracked with fsnotify
	DefaultWatch = false

	// DefaultMetricsAddr is empty which disables the metrics endpoint
	DefaultMetricsAddr = ""
)

// Config contains runtime configuration values for a workspace.
type Config struct {
	LogLvl          util.LogLevel // Internal log level (Default info)
	MaxDepth        int           // Number of directory layers loaded eagerly per load (Default 2)
	ReadChunkSize   int           // Bytes read from storage per builder chunk (Default 64KB)
	WriteBufferSize int           // Bytes buffered before flushing to storage on save (Default 64KB)
	Encoding        string        // Document character encoding, any WHATWG label (Default utf-8)
	Watch           bool          // Invalidate cached directories on external changes (Default false)
	MetricsAddr     string        // Listen address for the Prometheus endpoint; empty disables (Default "")
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	// LogLvl uses CLI verbosity 1 (error) to 5 (trace); values outside are clamped
	LogLvl          *int    `yaml:"verbose,omitempty" json:"verbose,omitempty" toml:"verbose,omitempty"`
	MaxDepth        *int    `yaml:"max_depth,omitempty" json:"max_depth,omitempty" toml:"max_depth,omitempty"`
	ReadChunkSize   *int    `yaml:"read_chunk_size,omitempty" json:"read_chunk_size,omitempty" toml:"read_chunk_size,omitempty"`
	WriteBufferSize *int    `yaml:"write_buffer_size,omitempty" json:"write_buffer_size,omitempty" toml:"write_buffer_size,omitempty"`
	Encoding        *string `yaml:"encoding,omitempty" json:"encoding,omitempty" toml:"encoding,omitempty"`
	Watch           *bool   `yaml:"watch,omitempty" json:"watch,omitempty" toml:"watch,omitempty"`
	MetricsAddr     *string `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty" toml:"metrics_addr,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		LogLvl:          DefaultLogLvl,
		MaxDepth:        DefaultMaxDepth,
		ReadChunkSize:   DefaultReadChunkSize,
		WriteBufferSize: DefaultWriteBufferSize,
		Encoding:        DefaultEncoding,
		Watch:           DefaultWatch,
		MetricsAddr:     DefaultMetricsAddr,
	}
}

// NewConfig creates a Config from defaults with override applied on top.
// A nil override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerboseToLogLevel(*override.LogLvl)
	}
	if override.MaxDepth != nil {
		c.MaxDepth = max(*override.MaxDepth, 1)
	}
	if override.ReadChunkSize != nil && *override.ReadChunkSize > 0 {
		c.ReadChunkSize = *override.ReadChunkSize
	}
	if override.WriteBufferSize != nil && *override.WriteBufferSize > 0 {
		c.WriteBufferSize = *override.WriteBufferSize
	}
	if override.Encoding != nil && *override.Encoding != "" {
		c.Encoding = strings.ToLower(*override.Encoding)
	}
	if override.Watch != nil {
		c.Watch = *override.Watch
	}
	if override.MetricsAddr != nil {
		c.MetricsAddr = *override.MetricsAddr
	}
}

// VerboseToLogLevel maps CLI verbosity 1 (error) through 5 (trace) onto
// [util.LogLevel], clamping out of range values.
func VerboseToLogLevel(verbose int) util.LogLevel {
	verbose = min(max(verbose, ErrorVerbose), TraceVerbose)
	logLvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return logLvls[verbose-1]
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports YAML (.yaml, .yml), JSON (.json) and TOML (.toml) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}

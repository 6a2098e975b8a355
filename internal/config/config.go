// Package config loads the nestq YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when --config is not given and the
// file exists in the working directory.
const DefaultPath = "nestq.yaml"

// Config holds the nestq configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Mapping  MappingConfig  `yaml:"mapping"`
	Compiler CompilerConfig `yaml:"compiler"`
	Cache    CacheConfig    `yaml:"cache"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StoreConfig holds block store settings.
type StoreConfig struct {
	Path string `yaml:"path"` // sqlite file, ":memory:" for a throwaway store
}

// MappingConfig points at the index mapping.
type MappingConfig struct {
	Path string `yaml:"path"`
}

// CompilerConfig holds query compiler limits.
type CompilerConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// CacheConfig holds filter cache settings.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // local, dev, prod, test (default: local)
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads, expands and validates the config at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes config YAML. Environment references of the form ${VAR}
// and ${VAR:-default} are substituted before decoding.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when given. With an empty path it reads
// DefaultPath if present and otherwise returns the defaults.
func LoadOrDefault(path string) (Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return Load(DefaultPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat %s: %w", DefaultPath, err)
	}
	return Default(), nil
}

// Default returns a config with every default applied.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = "nestq.db"
	}
	if c.Compiler.MaxDepth <= 0 {
		c.Compiler.MaxDepth = 64
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 1024
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 9200
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Logging.Env {
	case "local", "dev", "prod", "test":
	default:
		return fmt.Errorf("logging.env must be one of local, dev, prod, test, got %q", c.Logging.Env)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

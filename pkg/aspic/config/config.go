package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/aspic/pkg/aspic/internalerr"
)

// Config holds the engine settings of one deployment.
type Config struct {
	// Workers is the size of the enumeration worker pool.
	Workers int `yaml:"workers"`
	// Semantics is one of credal, maxent, stable.
	Semantics string `yaml:"semantics"`
	// Stability is stable or lstable.
	Stability string `yaml:"stability"`
	// GroundCacheSize bounds the per-worker grounding reuse cache;
	// zero disables reuse.
	GroundCacheSize int `yaml:"ground_cache_size"`
	// CachePath is the SQLite count-cache database; empty keeps counts
	// in memory only.
	CachePath string `yaml:"cache_path"`
	// LogLevel is a zap level string (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Workers:         1,
		Semantics:       "credal",
		Stability:       "stable",
		GroundCacheSize: 256,
		LogLevel:        "info",
	}
}

// Load reads a YAML configuration file, filling unset fields from
// Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot honor.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", internalerr.ErrInvalidConfig, c.Workers)
	}
	switch c.Semantics {
	case "credal", "maxent", "stable":
	default:
		return fmt.Errorf("%w: unknown semantics %q", internalerr.ErrInvalidConfig, c.Semantics)
	}
	switch c.Stability {
	case "stable", "lstable":
	default:
		return fmt.Errorf("%w: unknown stability %q", internalerr.ErrInvalidConfig, c.Stability)
	}
	if c.GroundCacheSize < 0 {
		return fmt.Errorf("%w: ground_cache_size must not be negative", internalerr.ErrInvalidConfig)
	}
	return nil
}

// LStable reports whether the lstable variant is selected.
func (c Config) LStable() bool { return c.Stability == "lstable" }

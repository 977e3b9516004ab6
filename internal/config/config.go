// Package config loads and validates the insightd TOML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads a TOML configuration file, applies defaults and expands
// ${ENV} references in string fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Default returns a configuration with every field at its default value.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func expandEnvVars(cfg *Config) {
	cfg.Logging.Output = os.ExpandEnv(cfg.Logging.Output)
	cfg.Metrics.ListenAddr = os.ExpandEnv(cfg.Metrics.ListenAddr)
}

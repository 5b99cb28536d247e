// Package config loads the sandbox server configuration from a yaml file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FailConfig describes artificial failure injection: a fraction of requests
// answered with the configured HTTP status before reaching the mock.
type FailConfig struct {
	Rate float64 `yaml:"rate"`
	Code int     `yaml:"code"`
}

// Config is the sandbox server configuration.
type Config struct {
	Addr       string        `yaml:"addr"`
	AdminToken string        `yaml:"admin_token"`
	Seed       string        `yaml:"seed"`
	Latency    time.Duration `yaml:"latency"`
	Fail       FailConfig    `yaml:"fail"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Addr: ":8888",
		Fail: FailConfig{Code: 503},
	}
}

// Load reads a yaml config file, filling unset fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects out-of-range injection settings.
func (c *Config) Validate() error {
	if c.Fail.Rate < 0 || c.Fail.Rate > 1 {
		return fmt.Errorf("fail rate must be within [0, 1], got %v", c.Fail.Rate)
	}
	if c.Fail.Code != 0 && (c.Fail.Code < 400 || c.Fail.Code > 599) {
		return fmt.Errorf("fail code must be an HTTP error status, got %d", c.Fail.Code)
	}
	if c.Latency < 0 {
		return fmt.Errorf("latency must not be negative")
	}
	return nil
}

// Package config handles reading and writing the repolens config file and
// its environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for config.yaml.
type Config struct {
	Version int           `yaml:"version"`
	Backend BackendConfig `yaml:"backend"`
	Storage StorageConfig `yaml:"storage"`
	Mirror  MirrorConfig  `yaml:"mirror"`
}

// BackendConfig locates the analysis backend.
type BackendConfig struct {
	URL            string `yaml:"url" envconfig:"BACKEND_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"BACKEND_TIMEOUT_SECONDS"` // per call, including transport retries
	RetryMax       int    `yaml:"retry_max" envconfig:"BACKEND_RETRY_MAX"`
}

// StorageConfig selects how conversations are persisted locally.
type StorageConfig struct {
	Backend string `yaml:"backend" envconfig:"STORAGE_BACKEND"` // "file" | "sqlite"
}

// MirrorConfig controls remote mirroring of conversation history for
// signed-in users.
type MirrorConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"MIRROR_ENABLED"`
	URL     string `yaml:"url" envconfig:"MIRROR_URL"` // empty = backend URL
}

const configFile = "config.yaml"

// envPrefix is the prefix for environment overrides, e.g.
// REPOLENS_BACKEND_URL.
const envPrefix = "repolens"

// Dir returns the repolens home directory: $REPOLENS_HOME if set,
// otherwise ~/.repolens.
func Dir() (string, error) {
	if dir := os.Getenv("REPOLENS_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".repolens"), nil
}

// ReadConfig reads config.yaml from dir.
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// WriteConfig writes cfg to config.yaml in dir.
// Creates the directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dir, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Load reads config.yaml from dir, falling back to defaults when the file
// does not exist, then applies REPOLENS_* environment overrides.
func Load(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		cfg = DefaultConfig()
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Backend: BackendConfig{
			URL:            "http://127.0.0.1:5000",
			TimeoutSeconds: 300,
			RetryMax:       3,
		},
		Storage: StorageConfig{
			Backend: "file",
		},
		Mirror: MirrorConfig{
			Enabled: true,
		},
	}
}

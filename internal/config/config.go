// Package config loads the rigweave configuration file.
//
// The file is YAML. Missing files and missing keys fall back to defaults;
// the merged result is validated before use.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user state directory under the home directory.
const DirName = ".rigweave"

// Config is the complete configuration.
type Config struct {
	Recovery     RecoveryConfig `yaml:"recovery"`
	Host         HostConfig     `yaml:"host"`
	BuildersFile string         `yaml:"builders_file"`
	Log          LogConfig      `yaml:"log"`
}

// RecoveryConfig selects where the write-through mirror lives.
type RecoveryConfig struct {
	Backend string `yaml:"backend" validate:"required,oneof=file badger memory"`
	Path    string `yaml:"path" validate:"required_unless=Backend memory"`
}

// HostConfig describes the socket.io endpoint of the 3D host. An empty URL
// selects the offline builder.
type HostConfig struct {
	URL       string        `yaml:"url" validate:"omitempty,url"`
	Namespace string        `yaml:"namespace"`
	Timeout   time.Duration `yaml:"timeout" validate:"min=0"`
	Handles   int           `yaml:"offline_handles" validate:"min=0,max=64"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format is "console" or "json".
	Format string `yaml:"format" validate:"oneof=console json"`

	// File receives log output. Empty means stderr, which the editor avoids
	// because it owns the terminal.
	File string `yaml:"file"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Dir returns the state directory, ~/.rigweave.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// DefaultPath returns ~/.rigweave/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the configuration used when no file exists. Paths are
// placed under dir.
func Default(dir string) *Config {
	return &Config{
		Recovery: RecoveryConfig{
			Backend: "file",
			Path:    filepath.Join(dir, "recovery.json"),
		},
		Host: HostConfig{
			Namespace: "/",
			Timeout:   30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			File:   filepath.Join(dir, "rigweave.log"),
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	dir := filepath.Dir(path)
	cfg := Default(dir)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.resolvePaths(dir)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// resolvePaths makes relative paths relative to the config file.
func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Recovery.Path = abs(c.Recovery.Path)
	c.BuildersFile = abs(c.BuildersFile)
	c.Log.File = abs(c.Log.File)
}

// Validate checks every field rule.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Package config loads the host configuration for vdisk from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/vdisk/internal/qemuimg"
	"github.com/jbweber/vdisk/internal/retry"
	"github.com/jbweber/vdisk/internal/storage"
)

// Defaults.
const (
	DefaultRuntimeDir = "/var/run/nonpersistent/vdisk"
	DefaultLogLevel   = "info"

	// RegistryFileName is the name of the repository registry inside the
	// runtime directory.
	RegistryFileName = "attached.json"
)

// Config is the vdisk host configuration.
type Config struct {
	// RuntimeDir holds the repository registry and device bindings. It is
	// expected to be on a non-persistent filesystem.
	RuntimeDir    string         `yaml:"runtime_dir"`
	DefaultFormat storage.Format `yaml:"default_format"`
	QemuImg       string         `yaml:"qemu_img"`
	Losetup       string         `yaml:"losetup"`
	DetachRetry   RetryConfig    `yaml:"detach_retry"`
	LogLevel      string         `yaml:"log_level"`
}

// RetryConfig controls how device release is retried.
type RetryConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"` // 0 retries until success
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		RuntimeDir:    DefaultRuntimeDir,
		DefaultFormat: storage.FormatVHD,
		QemuImg:       qemuimg.DefaultBinary,
		Losetup:       storage.DefaultLosetup,
		DetachRetry: RetryConfig{
			Interval: retry.DefaultInterval,
		},
		LogLevel: DefaultLogLevel,
	}
}

// LoadFromFile reads a YAML configuration file. Fields omitted from the file
// keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return LoadFromYAML(data)
}

// LoadFromYAML parses YAML configuration bytes over the defaults.
func LoadFromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Normalize fills in defaults for fields set to their zero value.
func (c *Config) Normalize() {
	d := Default()
	if c.RuntimeDir == "" {
		c.RuntimeDir = d.RuntimeDir
	}
	if c.DefaultFormat == "" {
		c.DefaultFormat = d.DefaultFormat
	}
	if c.QemuImg == "" {
		c.QemuImg = d.QemuImg
	}
	if c.Losetup == "" {
		c.Losetup = d.Losetup
	}
	if c.DetachRetry.Interval == 0 {
		c.DetachRetry.Interval = d.DetachRetry.Interval
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.RuntimeDir) {
		return fmt.Errorf("runtime_dir must be an absolute path, got %q", c.RuntimeDir)
	}

	format, err := storage.ParseFormat(string(c.DefaultFormat))
	if err != nil {
		return fmt.Errorf("default_format: %w", err)
	}
	c.DefaultFormat = format

	if c.DetachRetry.Interval < 0 {
		return fmt.Errorf("detach_retry.interval must be >= 0, got %s", c.DetachRetry.Interval)
	}
	if c.DetachRetry.MaxAttempts < 0 {
		return fmt.Errorf("detach_retry.max_attempts must be >= 0, got %d", c.DetachRetry.MaxAttempts)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	return nil
}

// RegistryFile returns the path of the repository registry.
func (c *Config) RegistryFile() string {
	return filepath.Join(c.RuntimeDir, RegistryFileName)
}

// RetryOptions converts DetachRetry into retry loop options.
func (c *Config) RetryOptions() retry.Options {
	return retry.Options{
		Interval:    c.DetachRetry.Interval,
		MaxAttempts: c.DetachRetry.MaxAttempts,
	}
}

// Level returns the parsed log level, or info if LogLevel is invalid.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

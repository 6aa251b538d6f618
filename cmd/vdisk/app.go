package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/vdisk/internal/binding"
	"github.com/jbweber/vdisk/internal/config"
	"github.com/jbweber/vdisk/internal/output"
	"github.com/jbweber/vdisk/internal/qemuimg"
	"github.com/jbweber/vdisk/internal/registry"
	"github.com/jbweber/vdisk/internal/storage"
	"github.com/jbweber/vdisk/internal/vdi"
)

// app holds the components shared by all commands.
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	registry  *registry.Registry
	service   *vdi.Service
	formatter output.Formatter
}

// loadConfig reads the configuration file, if any, and applies flag
// overrides.
func loadConfig(path, runtimeDir, logLevel string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}

	if runtimeDir != "" {
		cfg.RuntimeDir = runtimeDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(cfg.Level())
	return log
}

// newApp wires the registry, backends and disk service together.
func newApp(cfg *config.Config, format output.Format, noHeaders bool) (*app, error) {
	if err := output.ValidateFormat(string(format)); err != nil {
		return nil, err
	}
	formatter, err := output.NewFormatter(output.Options{Format: format, NoHeaders: noHeaders})
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg)

	reg, err := registry.Open(cfg.RegistryFile(), cfg.DefaultFormat, log)
	if err != nil {
		return nil, err
	}

	backends := storage.NewDispatcher(
		qemuimg.NewExec(cfg.QemuImg, log),
		storage.NewLosetup(cfg.Losetup, log),
		log,
	)
	bindings := binding.NewTracker(cfg.RuntimeDir)

	return &app{
		cfg:       cfg,
		log:       log,
		registry:  reg,
		service:   vdi.NewService(reg, backends, bindings, cfg.RetryOptions(), log),
		formatter: formatter,
	}, nil
}

// setup builds the app from the global flags.
func setup() (*app, error) {
	cfg, err := loadConfig(configPath, runtimeDir, logLevel)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, output.Format(outputFormat), noHeaders)
}

// parseKeyValues parses key=value arguments into a map.
func parseKeyValues(args []string) (map[string]string, error) {
	m := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		m[k] = v
	}
	return m, nil
}

// parseSize accepts a byte count or a size with a K/M/G/T suffix.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	size, err := qemuimg.ParseSize(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return size, nil
}

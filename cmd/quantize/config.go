package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the quantize configuration file (~/.config/quantize/config.yaml).
// Pointer fields tell "not set" apart from zero values.
type Config struct {
	Denylist       []string `yaml:"denylist"`
	NoDefaultDeny  *bool    `yaml:"no_default_deny"`
	FallbackType   string   `yaml:"fallback_type"`
	Threads        *int     `yaml:"threads"`
	MaxTensorBytes *uint64  `yaml:"max_tensor_bytes"`
	Stats          *bool    `yaml:"stats"`
	Report         string   `yaml:"report"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "quantize", "config.yaml")
}

// loadConfig reads the config file at path. A missing file yields a zero
// Config unless the path was given explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyConfig copies config file values into o for every flag the command
// line did not set.
func applyConfig(c *cli.Command, cfg Config, o *convertFlags) {
	if cfg.Denylist != nil {
		o.denylist = cfg.Denylist
	}
	if cfg.NoDefaultDeny != nil && !c.IsSet("no-default-deny") {
		o.noDefaultDeny = *cfg.NoDefaultDeny
	}
	if cfg.FallbackType != "" && !c.IsSet("fallback-type") {
		o.fallback = cfg.FallbackType
	}
	if cfg.Threads != nil && !c.IsSet("threads") {
		o.threads = *cfg.Threads
	}
	if cfg.MaxTensorBytes != nil && !c.IsSet("max-tensor-bytes") {
		o.maxTensorBytes = *cfg.MaxTensorBytes
	}
	if cfg.Stats != nil && !c.IsSet("stats") {
		o.stats = *cfg.Stats
	}
	if cfg.Report != "" && !c.IsSet("report") {
		o.report = cfg.Report
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		o.log.level = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		o.log.format = cfg.LogFormat
	}
}

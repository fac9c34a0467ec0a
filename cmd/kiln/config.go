package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the kiln configuration file (~/.config/kiln/config.yaml).
type Config struct {
	// Mode is the default coefficient representation (float, fixed).
	Mode string `yaml:"mode"`

	// Emitted C type names.
	StructName string `yaml:"struct_name"`
	ItemType   string `yaml:"item_type"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kiln", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't
// exist or fails to parse.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// applyExportConfig applies config file defaults to export command variables
// when the corresponding CLI flag was not explicitly set.
func applyExportConfig(c *cli.Command, cfg Config, mode, structName, itemType *string) {
	if cfg.Mode != "" && !c.IsSet("mode") {
		*mode = cfg.Mode
	}
	if cfg.StructName != "" && !c.IsSet("struct-name") {
		*structName = cfg.StructName
	}
	if cfg.ItemType != "" && !c.IsSet("item-type") {
		*itemType = cfg.ItemType
	}
	applyLogConfig(c, cfg)
}

func applyLogConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

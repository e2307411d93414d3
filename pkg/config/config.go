// Package config provides configuration loading and management for
// seismic-zfp. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Conversion parameters.
	Conversion struct {
		// BitsPerVoxel is the default fixed compression rate.
		BitsPerVoxel int `yaml:"bitsPerVoxel"`

		// Method selects the default conversion strategy,
		// "stream" or "inmemory".
		Method string `yaml:"method"`

		// QueueDepth bounds the streaming producer's lead over the
		// compressor, in inline-groups.
		QueueDepth int `yaml:"queueDepth"`
	} `yaml:"conversion"`

	// Logging parameters.
	Logging struct {
		// Level is the logrus level name, e.g. "info" or "debug".
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Conversion.BitsPerVoxel = 4
	cfg.Conversion.Method = "stream"
	cfg.Conversion.QueueDepth = 16
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "writing config file")
	}

	return nil
}

// Package config reads the YAML configuration of the axisorbits command.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Model struct {
	Inner    int `yaml:"inner"`
	AxisSize int `yaml:"axisSize"`
}

type Config struct {
	DataPath      string `yaml:"dataPath"`
	Store         string `yaml:"store"`
	MinimumFreeGB int    `yaml:"minimumFreeGB"`
	// Seed is 1 when the file does not set it; 0 is a valid seed.
	Seed       *int64 `yaml:"seed"`
	Workers    int    `yaml:"workers"`
	SampleSize int    `yaml:"sampleSize"`
	// CentralizerGenerators is the number of random stabilizer elements
	// drawn per named orbit.
	CentralizerGenerators int    `yaml:"centralizerGenerators"`
	Model                 Model  `yaml:"model"`
	Certificate           string `yaml:"certificate"`
	LogLevel              string `yaml:"logLevel"`
	LogJSON               bool   `yaml:"logJSON"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.fill()
	return c
}

func (c *Config) fill() {
	if c.DataPath == "" {
		c.DataPath = "data"
	}
	if c.Store == "" {
		c.Store = "badger"
	}
	if c.Seed == nil {
		seed := int64(1)
		c.Seed = &seed
	}
	if c.SampleSize == 0 {
		c.SampleSize = 8
	}
	if c.CentralizerGenerators == 0 {
		c.CentralizerGenerators = 10
	}
	if c.Model.Inner == 0 {
		c.Model.Inner = 5
	}
	if c.Model.AxisSize == 0 {
		c.Model.AxisSize = 2
	}
	if c.Certificate == "" {
		c.Certificate = "certificate.txt"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads the file at path and fills in defaults. A missing file yields
// the defaults when optional is set.
func Load(path string, optional bool) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && optional {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	var config Config
	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	config.fill()

	if config.Workers < 0 {
		return Config{}, fmt.Errorf("config %s: negative worker count %d", path, config.Workers)
	}
	return config, nil
}

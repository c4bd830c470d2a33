package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/mchmarny/fraudscore/pkg/score"
	"gopkg.in/yaml.v3"
)

const (
	fileMode = 0600

	// DefaultThreshold is the probability at which a transaction is labeled fraud.
	DefaultThreshold = 0.5
	DefaultLogLevel  = "info"
)

// Config represents the scorer settings. Zero values in a file keep the defaults.
type Config struct {
	ModelPath   string   `yaml:"model"`
	ModelToken  string   `yaml:"model_token,omitempty"`
	Fallback    *float64 `yaml:"fallback,omitempty"`
	Threshold   *float64 `yaml:"threshold,omitempty"`
	Strict      bool     `yaml:"strict,omitempty"`
	HistoryPath string   `yaml:"history,omitempty"`
	LogLevel    string   `yaml:"log_level,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	fallback := score.DefaultFallbackProbability
	threshold := DefaultThreshold
	return &Config{
		ModelPath: score.DefaultModelPath,
		Fallback:  &fallback,
		Threshold: &threshold,
		LogLevel:  DefaultLogLevel,
	}
}

// Load returns the defaults overlaid with the YAML file at path.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var fc Config
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	c.merge(&fc)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) merge(o *Config) {
	if o.ModelPath != "" {
		c.ModelPath = o.ModelPath
	}
	if o.ModelToken != "" {
		c.ModelToken = o.ModelToken
	}
	if o.Fallback != nil {
		c.Fallback = o.Fallback
	}
	if o.Threshold != nil {
		c.Threshold = o.Threshold
	}
	if o.Strict {
		c.Strict = true
	}
	if o.HistoryPath != "" {
		c.HistoryPath = o.HistoryPath
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path required")
	}
	if err := probability("fallback", c.FallbackProbability()); err != nil {
		return err
	}
	return probability("threshold", c.DecisionThreshold())
}

// FallbackProbability returns the configured fallback or the default.
func (c *Config) FallbackProbability() float64 {
	if c.Fallback == nil {
		return score.DefaultFallbackProbability
	}
	return *c.Fallback
}

// DecisionThreshold returns the configured threshold or the default.
func (c *Config) DecisionThreshold() float64 {
	if c.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Threshold
}

// Save writes the config as YAML.
func Save(path string, c *Config) error {
	if path == "" {
		return errors.New("config path required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

func probability(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%s must be within [0,1], got %v", name, v)
	}
	return nil
}

// Package train implements the training loop for linear regression models.
//
// A Trainer owns the model, loss, and parameter-update strategy. Each step it
// clears the gradient tape, runs the forward pass, computes the MSE loss,
// backpropagates, and updates parameters either manually (plain gradient
// descent) or through an optimizer.
package train

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UpdateMode selects how parameters are updated after each backward pass.
type UpdateMode string

const (
	// UpdateManual applies param -= lr * grad directly, without an
	// optimizer. This is the "by hand" gradient descent path.
	UpdateManual UpdateMode = "manual"

	// UpdateOptimizer delegates updates to an Optimizer (SGD, Adam).
	UpdateOptimizer UpdateMode = "optimizer"
)

// Config holds training hyperparameters.
//
// Zero values are replaced by defaults in ApplyDefaults, so a partial YAML
// file (or an empty Config literal) is valid.
type Config struct {
	Epochs       int        `yaml:"epochs"`
	BatchSize    int        `yaml:"batch_size"`
	LearningRate float32    `yaml:"learning_rate"`
	Momentum     float32    `yaml:"momentum"`
	Optimizer    string     `yaml:"optimizer"` // "sgd" or "adam"
	UpdateMode   UpdateMode `yaml:"update_mode"`
	NoiseStd     float64    `yaml:"noise_std"`
	Seed         int64      `yaml:"seed"`
	LogEvery     int        `yaml:"log_every"` // Log loss every N epochs
	Shuffle      bool       `yaml:"shuffle"`
}

// DefaultConfig returns a configuration suitable for the linear regression
// demo: converges in a few hundred epochs on small synthetic datasets.
func DefaultConfig() Config {
	return Config{
		Epochs:       200,
		BatchSize:    16,
		LearningRate: 0.05,
		Momentum:     0.0,
		Optimizer:    "sgd",
		UpdateMode:   UpdateOptimizer,
		NoiseStd:     0.05,
		Seed:         42,
		LogEvery:     20,
		Shuffle:      true,
	}
}

// LoadConfig reads a YAML configuration file, fills in defaults for missing
// fields, and validates the result.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyDefaults replaces zero-valued fields with the defaults from
// DefaultConfig. Momentum, NoiseStd, Seed, and Shuffle keep their zero
// values: zero is meaningful for all four.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Epochs == 0 {
		c.Epochs = def.Epochs
	}
	if c.BatchSize == 0 {
		c.BatchSize = def.BatchSize
	}
	if c.LearningRate == 0 {
		c.LearningRate = def.LearningRate
	}
	if c.Optimizer == "" {
		c.Optimizer = def.Optimizer
	}
	if c.UpdateMode == "" {
		c.UpdateMode = def.UpdateMode
	}
	if c.LogEvery == 0 {
		c.LogEvery = def.LogEvery
	}
}

// Validate checks the configuration for values that would break training.
func (c *Config) Validate() error {
	if c.Epochs < 1 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %g", c.LearningRate)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("momentum must be in [0, 1), got %g", c.Momentum)
	}
	switch c.Optimizer {
	case "sgd", "adam":
	default:
		return fmt.Errorf("unknown optimizer %q (want \"sgd\" or \"adam\")", c.Optimizer)
	}
	switch c.UpdateMode {
	case UpdateManual, UpdateOptimizer:
	default:
		return fmt.Errorf("unknown update_mode %q (want %q or %q)", c.UpdateMode, UpdateManual, UpdateOptimizer)
	}
	if c.NoiseStd < 0 {
		return fmt.Errorf("noise_std must be non-negative, got %g", c.NoiseStd)
	}
	return nil
}

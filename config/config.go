// Package config loads and validates yaml arm-set files. Validation
// guarantees the core's preconditions: unique names, positive weights
// and non-negative-or-absent limits.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"probebandit/models"
)

// ArmSpec is one arm entry in a configuration file.
type ArmSpec struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Weight  *float64 `yaml:"weight,omitempty"`
	Limit   *int     `yaml:"limit,omitempty"`
}

// Config is the root of an arm-set file.
type Config struct {
	Arms []ArmSpec `yaml:"arms"`
}

// Load reads and parses a configuration file. Missing weights default
// to 1.0. The result is parsed, not validated; run Validate before
// handing arms to the core.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw yaml configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &cfg, nil
}

// ToArms converts the configuration into arm entities with default
// counters.
func (c *Config) ToArms() []models.Arm {
	arms := make([]models.Arm, 0, len(c.Arms))
	for _, spec := range c.Arms {
		arm := models.NewArm(spec.Name, spec.Command)
		if spec.Weight != nil {
			arm.Weight = *spec.Weight
		}
		if spec.Limit != nil {
			v := *spec.Limit
			arm.Limit = &v
		}
		arms = append(arms, arm)
	}
	return arms
}

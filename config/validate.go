package config

import (
	"errors"
	"fmt"
)

// Finding is a single lint diagnostic for an arm entry.
type Finding struct {
	Arm     string `json:"arm"`
	Level   string `json:"level"` // "warning" or "error"
	Message string `json:"message"`
}

const (
	LevelWarning = "warning"
	LevelError   = "error"
)

// ErrInvalidConfig is returned by Validate when any error-level finding
// is present.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Validate lints the configuration and returns every finding. The error
// is non-nil when at least one finding is error-level; warnings alone
// leave the configuration usable.
func Validate(c *Config) ([]Finding, error) {
	var findings []Finding
	hasError := false

	report := func(arm, level, message string) {
		findings = append(findings, Finding{Arm: arm, Level: level, Message: message})
		if level == LevelError {
			hasError = true
		}
	}

	if len(c.Arms) == 0 {
		report("", LevelError, "configuration has no arms")
	}

	seen := make(map[string]bool, len(c.Arms))
	for _, spec := range c.Arms {
		if spec.Name == "" {
			report(spec.Name, LevelError, "arm name is required")
		} else if seen[spec.Name] {
			report(spec.Name, LevelError, fmt.Sprintf("duplicate arm name %q", spec.Name))
		}
		seen[spec.Name] = true

		if spec.Command == "" {
			report(spec.Name, LevelError, "arm command is required")
		}

		if spec.Weight != nil && *spec.Weight <= 0 {
			report(spec.Name, LevelError,
				fmt.Sprintf("weight must be positive, got %v", *spec.Weight))
		}

		if spec.Limit != nil {
			switch {
			case *spec.Limit < 0:
				report(spec.Name, LevelError,
					fmt.Sprintf("limit must be non-negative, got %d", *spec.Limit))
			case *spec.Limit == 0:
				report(spec.Name, LevelWarning,
					"limit of 0 keeps this arm from ever running; omit the limit for unbounded collection")
			}
		}
	}

	if hasError {
		return findings, ErrInvalidConfig
	}
	return findings, nil
}

// Package config loads the resource limits the VM enforces while running a
// program: step budget, call-stack depth, and operand-stack size. Values
// come from WENYAN_*-prefixed environment variables, with an optional YAML
// file providing (lower-priority) defaults. Grounded on the teacher's
// Thread fields (MaxSteps, MaxCallStackDepth in lang/machine/thread.go),
// turned into an externally configurable struct since this is a standalone
// interpreter rather than an embeddable scripting engine.
package config

import (
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Limits bounds a single run of the VM. A value <= 0 means "no limit", same
// convention as the teacher's Thread fields.
type Limits struct {
	// MaxSteps caps the number of VM fetch-decode-execute cycles.
	MaxSteps int `env:"WENYAN_MAX_STEPS" yaml:"max_steps"`
	// MaxCallDepth caps the number of nested call frames.
	MaxCallDepth int `env:"WENYAN_MAX_CALL_DEPTH" yaml:"max_call_depth"`
	// MaxStackSize caps the combined size of the value and local stacks.
	MaxStackSize int `env:"WENYAN_MAX_STACK_SIZE" yaml:"max_stack_size"`
}

// DefaultLimits returns the limits applied when neither a config file nor
// environment variables override them.
func DefaultLimits() Limits {
	return Limits{
		MaxSteps:     10_000_000,
		MaxCallDepth: 1024,
		MaxStackSize: 1 << 20,
	}
}

// Load returns the effective Limits: DefaultLimits, overridden by yamlPath's
// contents (if yamlPath is non-empty), further overridden by any WENYAN_*
// environment variables that are set.
func Load(yamlPath string) (Limits, error) {
	limits := DefaultLimits()

	if yamlPath != "" {
		b, err := os.ReadFile(yamlPath)
		if err != nil {
			return Limits{}, err
		}
		if err := yaml.Unmarshal(b, &limits); err != nil {
			return Limits{}, err
		}
	}

	if err := env.Parse(&limits); err != nil {
		return Limits{}, err
	}
	return limits, nil
}

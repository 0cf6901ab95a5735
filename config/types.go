// Package config loads the defaults of step executors and resource containers.
//
// Configuration is loaded using Viper, from an optional YAML file and environment
// variables. Priority (highest to lowest):
//  1. Environment variables (ASYNCSTEP_ prefix, e.g. ASYNCSTEP_STEP_TIMEOUT=5s)
//  2. Config file specified by ASYNCSTEP_CONFIG_PATH, or passed to [Loader.LoadFromFile]
//  3. [DefaultConfig] defaults
//
// Values are read once, when an executor or container is constructed.
package config

import (
	"fmt"
	"time"
)

// Config represents the root configuration structure.
type Config struct {
	// Step holds the defaults of steps that do not set their own timeout or interval.
	Step StepConfig `mapstructure:"step" yaml:"step"`

	// Resources configures the containers of stateful resources.
	Resources ResourcesConfig `mapstructure:"resources" yaml:"resources"`

	// Capture controls which artifacts are published to captors.
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

type StepConfig struct {
	// Timeout is the total polling budget of a step, 0 evaluates exactly once.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// PollInterval is the sleep between two attempts, 0 polls without pause.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

type ResourcesConfig struct {
	// InactivityThreshold is how long a container stays free before its resource is stopped.
	// 0 disables the reaper.
	InactivityThreshold time.Duration `mapstructure:"inactivity_threshold" yaml:"inactivity_threshold"`
}

type CaptureConfig struct {
	// OnSuccess publishes the value of every successful top level step.
	OnSuccess bool `mapstructure:"on_success" yaml:"on_success"`

	// OnFailure publishes the subject of every failed top level step.
	OnFailure bool `mapstructure:"on_failure" yaml:"on_failure"`
}

type LogConfig struct {
	// Verbosity of the logr logger, step lifecycle is logged at 1.
	Verbosity int `mapstructure:"verbosity" yaml:"verbosity"`
}

// DefaultConfig returns the configuration used when nothing else is specified.
func DefaultConfig() *Config {
	return &Config{
		Step: StepConfig{
			Timeout:      0,
			PollInterval: 0,
		},
		Resources: ResourcesConfig{
			InactivityThreshold: 30 * time.Second,
		},
		Capture: CaptureConfig{
			OnSuccess: false,
			OnFailure: true,
		},
		Log: LogConfig{
			Verbosity: 0,
		},
	}
}

// Validate rejects negative durations.
func (c *Config) Validate() error {
	if c.Step.Timeout < 0 {
		return fmt.Errorf("step.timeout should not be negative, got %s", c.Step.Timeout)
	}
	if c.Step.PollInterval < 0 {
		return fmt.Errorf("step.poll_interval should not be negative, got %s", c.Step.PollInterval)
	}
	if c.Resources.InactivityThreshold < 0 {
		return fmt.Errorf("resources.inactivity_threshold should not be negative, got %s", c.Resources.InactivityThreshold)
	}
	if c.Log.Verbosity < 0 {
		return fmt.Errorf("log.verbosity should not be negative, got %d", c.Log.Verbosity)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix     = "ASYNCSTEP"
	envConfigPath = "ASYNCSTEP_CONFIG_PATH"
)

// Loader handles Viper-based configuration loading.
type Loader struct {
	v *viper.Viper
}

func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load reads the file named by ASYNCSTEP_CONFIG_PATH when set, then applies environment overrides.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	if path := os.Getenv(envConfigPath); path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.unmarshal()
}

// LoadFromFile reads path, then applies environment overrides.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.setDefaults()

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return l.unmarshal()
}

func (l *Loader) setDefaults() {
	defaults := DefaultConfig()
	l.v.SetDefault("step.timeout", defaults.Step.Timeout)
	l.v.SetDefault("step.poll_interval", defaults.Step.PollInterval)
	l.v.SetDefault("resources.inactivity_threshold", defaults.Resources.InactivityThreshold)
	l.v.SetDefault("capture.on_success", defaults.Capture.OnSuccess)
	l.v.SetDefault("capture.on_failure", defaults.Capture.OnFailure)
	l.v.SetDefault("log.verbosity", defaults.Log.Verbosity)

	l.v.SetEnvPrefix(envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

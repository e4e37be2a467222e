package app

import (
	"github.com/giantswarm/multibranch/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath is the directory containing config.yaml.
	ConfigPath string

	// LogLevel overrides logging.level from config.yaml when set.
	LogLevel string

	// Silent discards all log output.
	Silent bool

	// Loaded configuration, set during bootstrap.
	Config *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(configPath, logLevel string, silent bool) *Config {
	return &Config{
		ConfigPath: configPath,
		LogLevel:   logLevel,
		Silent:     silent,
	}
}

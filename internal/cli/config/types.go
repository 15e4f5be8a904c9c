// Package config loads CLI configuration by layering defaults, the
// pyblocks.yaml settings file, PYBLOCKS_* environment variables and
// explicitly set flags.
package config

import (
	intconfig "github.com/leapstack-labs/pyblocks/internal/config"
)

// Aliases for the shared settings sections so commands need only this package.
type (
	ProjectConfig     = intconfig.ProjectConfig
	ApplicationConfig = intconfig.ApplicationConfig
	EditorConfig      = intconfig.EditorConfig
	ExecutionConfig   = intconfig.ExecutionConfig
	ServerConfig      = intconfig.ServerConfig
)

// CLI defaults.
const (
	DefaultOutput   = "auto"
	DefaultLogLevel = "warn"
	EnvPrefix       = "PYBLOCKS_"
)

// Config holds all CLI configuration options.
type Config struct {
	intconfig.ProjectConfig `koanf:",squash"`

	Verbose      bool   `koanf:"verbose"`
	LogLevel     string `koanf:"log_level"`
	OutputFormat string `koanf:"output"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the settings file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// Default returns a Config with every default applied, rooted at the
// current directory.
func Default() *Config {
	c := &Config{
		ProjectConfig: *intconfig.Default(),
		LogLevel:      DefaultLogLevel,
		OutputFormat:  DefaultOutput,
		ProjectRoot:   ".",
	}
	return c
}

package config

import "time"

// Default configuration values.
const (
	DefaultDefinitionsFile  = "block_definitions.json"
	DefaultCapabilitiesFile = "block_capabilities.json"
	DefaultStateFile        = ".pyblocks/state.db"
	DefaultAppName          = "Python Blocks"
	DefaultIndentationSize  = 4
	DefaultTimeoutSeconds   = 5
	DefaultMaxOutputLines   = 500
	DefaultMaxSteps         = 10_000_000
	DefaultPort             = 8765
)

// ApplyDefaults fills unset application values.
func (c *ApplicationConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = DefaultAppName
	}
}

// ApplyDefaults fills unset editor values.
func (c *EditorConfig) ApplyDefaults() {
	if c.IndentationSize <= 0 {
		c.IndentationSize = DefaultIndentationSize
	}
}

// ApplyDefaults fills unset execution values.
func (c *ExecutionConfig) ApplyDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.MaxOutputLines <= 0 {
		c.MaxOutputLines = DefaultMaxOutputLines
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = DefaultMaxSteps
	}
}

// Timeout returns the execution timeout as a duration.
func (c *ExecutionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// ApplyDefaults fills unset server values.
func (c *ServerConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
}

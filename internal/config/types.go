// Package config provides the application settings shared by the CLI and the
// API server. It only reads settings files; flag and environment layering
// lives in the CLI.
package config

import "fmt"

// ApplicationConfig identifies the application. Version is written into
// saved projects.
type ApplicationConfig struct {
	Name    string `koanf:"name" yaml:"name"`
	Version string `koanf:"version" yaml:"version,omitempty"`
}

// EditorConfig holds code generation settings.
type EditorConfig struct {
	IndentationSize int `koanf:"indentation_size" yaml:"indentation_size"`
}

// ExecutionConfig holds sandbox limits.
type ExecutionConfig struct {
	TimeoutSeconds float64 `koanf:"timeout_seconds" yaml:"timeout_seconds"`
	MaxOutputLines int     `koanf:"max_output_lines" yaml:"max_output_lines"`
	MaxSteps       uint64  `koanf:"max_steps" yaml:"max_steps"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Port  int  `koanf:"port" yaml:"port"`
	Watch bool `koanf:"watch" yaml:"watch"`
}

// ProjectConfig is the content of a pyblocks.yaml file.
type ProjectConfig struct {
	DefinitionsFile  string            `koanf:"definitions_file" yaml:"definitions_file"`
	CapabilitiesFile string            `koanf:"capabilities_file" yaml:"capabilities_file"`
	StatePath        string            `koanf:"state_path" yaml:"state_path"`
	Application      ApplicationConfig `koanf:"application" yaml:"application"`
	Editor           EditorConfig      `koanf:"editor" yaml:"editor"`
	Execution        ExecutionConfig   `koanf:"execution" yaml:"execution"`
	Server           ServerConfig      `koanf:"server" yaml:"server"`
}

// ApplyDefaults fills every unset value.
func (c *ProjectConfig) ApplyDefaults() {
	if c.DefinitionsFile == "" {
		c.DefinitionsFile = DefaultDefinitionsFile
	}
	if c.CapabilitiesFile == "" {
		c.CapabilitiesFile = DefaultCapabilitiesFile
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}
	c.Application.ApplyDefaults()
	c.Editor.ApplyDefaults()
	c.Execution.ApplyDefaults()
	c.Server.ApplyDefaults()
}

// Validate checks value ranges.
func (c *ProjectConfig) Validate() error {
	if c.Editor.IndentationSize < 1 || c.Editor.IndentationSize > 16 {
		return fmt.Errorf("editor.indentation_size must be between 1 and 16, got %d", c.Editor.IndentationSize)
	}
	if c.Execution.TimeoutSeconds <= 0 {
		return fmt.Errorf("execution.timeout_seconds must be positive")
	}
	if c.Execution.MaxOutputLines < 1 {
		return fmt.Errorf("execution.max_output_lines must be positive")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Default returns a ProjectConfig with every default applied.
func Default() *ProjectConfig {
	c := &ProjectConfig{}
	c.ApplyDefaults()
	return c
}

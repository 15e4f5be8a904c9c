// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leapstack-labs/pyblocks/internal/cli/config"
	"github.com/leapstack-labs/pyblocks/internal/cli/output"
)

// ExampleProject is a project file that generates:
//
//	x = 1
//	if (x == 1):
//	    print("x is one")
const ExampleProject = `{
  "version": "0.1.0",
  "timestamp": 1700000000,
  "workspace": {
    "blocks": [
      {
        "block_type": "Variable",
        "position": {"x": 40, "y": 40},
        "inputs": {
          "name": {"kind": "value", "value": "x"},
          "value": {"kind": "slot", "value": "1"}
        }
      },
      {
        "block_type": "If",
        "position": {"x": 40, "y": 120},
        "inputs": {
          "condition": {
            "kind": "slot",
            "value": "True",
            "nested_block": {
              "block_type": "Compare",
              "inputs": {
                "a": {"kind": "slot", "value": "x"},
                "operator": {"kind": "value", "value": "=="},
                "b": {"kind": "slot", "value": "1"}
              }
            }
          }
        },
        "child_blocks": [
          {
            "block_type": "Print",
            "inputs": {"message": {"kind": "slot", "value": "\"x is one\""}}
          }
        ]
      }
    ]
  }
}
`

// ExampleProgram is the code generated from ExampleProject.
const ExampleProgram = "x = 1\nif (x == 1):\n    print(\"x is one\")\n"

// SetupTestProject creates a temporary project directory holding
// ExampleProject as example.json. It returns the directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	WriteFile(t, filepath.Join(tmpDir, "example.json"), ExampleProject)
	return tmpDir
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// NewTestConfig returns a default config rooted at dir. Every path points
// inside dir and the output mode is mode.
func NewTestConfig(dir string, mode output.Mode) *config.Config {
	cfg := config.Default()
	cfg.ProjectRoot = dir
	cfg.DefinitionsFile = filepath.Join(dir, "block_definitions.json")
	cfg.CapabilitiesFile = filepath.Join(dir, "block_capabilities.json")
	cfg.StatePath = filepath.Join(dir, ".pyblocks", "state.db")
	cfg.Application.Version = "0.1.0"
	cfg.OutputFormat = string(mode)
	return cfg
}

// ContextWithConfig returns a context carrying cfg the way the root command
// stores it.
func ContextWithConfig(cfg *config.Config) context.Context {
	return context.WithValue(context.Background(), config.ConfigKey(), cfg)
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

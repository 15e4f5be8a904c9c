package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/pyblocks/internal/block"
	"github.com/leapstack-labs/pyblocks/internal/cli/output"
	intconfig "github.com/leapstack-labs/pyblocks/internal/config"
	"github.com/leapstack-labs/pyblocks/internal/definitions"
	"github.com/leapstack-labs/pyblocks/internal/project"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ExampleProjectFile is the project written by init --example.
const ExampleProjectFile = "example_project.json"

const configHeader = `# pyblocks settings
# Relative paths resolve against this file's directory.
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new pyblocks project",
		Long: `Initialize a new pyblocks project.

This creates:
  - pyblocks.yaml settings file
  - block_definitions.json with the builtin block types
  - block_capabilities.json with the builtin nesting rules

Edit the JSON documents to add block types or restrict nesting. Use
--example to also write a small project file.`,
		Example: `  # Initialize in current directory
  pyblocks init

  # Initialize in a new directory with an example project
  pyblocks init my-blocks --example

  # Overwrite existing files
  pyblocks init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cmdCtx := NewCommandContextWithoutDefinitions(cmd)
			return runInit(cmdCtx.Renderer, dir, force, example, cmdCtx.Cfg.Application.Version)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Also write an example project file")

	return cmd
}

func runInit(r *output.Renderer, dir string, force, example bool, version string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, intconfig.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", intconfig.ConfigFileName)
	}

	settings, err := starterConfig()
	if err != nil {
		return err
	}

	files := []struct {
		name string
		data []byte
	}{
		{intconfig.ConfigFileName, settings},
		{intconfig.DefaultDefinitionsFile, definitions.BuiltinDefinitionsJSON()},
		{intconfig.DefaultCapabilitiesFile, definitions.BuiltinCapabilitiesJSON()},
	}
	for _, f := range files {
		written, err := writeProjectFile(filepath.Join(dir, f.name), f.data, force)
		if err != nil {
			return err
		}
		reportFile(r, f.name, written)
	}

	if example {
		path := filepath.Join(dir, ExampleProjectFile)
		if _, err := os.Stat(path); err == nil && !force {
			reportFile(r, ExampleProjectFile, false)
		} else {
			doc, err := exampleDocument(version)
			if err != nil {
				return fmt.Errorf("failed to build example project: %w", err)
			}
			if err := project.Save(path, doc); err != nil {
				return err
			}
			reportFile(r, ExampleProjectFile, true)
		}
	}

	r.Println("")
	r.Success("pyblocks project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Run 'pyblocks blocks' to see the available block types")
	if example {
		r.Println("  2. Run 'pyblocks generate " + ExampleProjectFile + "' to see its code")
		r.Println("  3. Run 'pyblocks run " + ExampleProjectFile + "' to execute it")
	} else {
		r.Println("  2. Run 'pyblocks serve' to start the API for an editor")
	}
	return nil
}

func reportFile(r *output.Renderer, name string, written bool) {
	if written {
		r.StatusLine(name, "success", "")
		return
	}
	r.StatusLine(name, "warning", "exists, kept")
}

// writeProjectFile writes data unless path exists and force is false. It
// reports whether the file was written.
func writeProjectFile(path string, data []byte, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// starterConfig renders the default settings as YAML.
func starterConfig() ([]byte, error) {
	cfg := intconfig.Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", intconfig.ConfigFileName, err)
	}
	return append([]byte(configHeader), data...), nil
}

// exampleDocument builds:
//
//	x = 1
//	if (x == 1):
//	    print("x is one")
func exampleDocument(version string) (*project.Document, error) {
	cat := definitions.Builtin()
	b := &docBuilder{ws: block.NewWorkspace(cat, cat.Rules())}

	b.place("Variable", block.Point{X: 40, Y: 40}, "name", "x", "value", "1")
	ifBlock := b.place("If", block.Point{X: 40, Y: 120})
	compare := b.place("Compare", block.Point{}, "a", "x", "operator", "==", "b", "1")
	printBlock := b.place("Print", block.Point{}, "message", `"x is one"`)
	if b.err == nil {
		b.err = b.ws.Attach(compare, block.SlotRef{Parent: ifBlock, Input: "condition"})
	}
	if b.err == nil {
		b.err = b.ws.AppendChild(ifBlock, printBlock, false)
	}
	if b.err != nil {
		return nil, b.err
	}
	return project.ToDocument(b.ws, version), nil
}

// docBuilder places blocks until the first error.
type docBuilder struct {
	ws  *block.Workspace
	err error
}

func (b *docBuilder) place(blockType string, pos block.Point, kv ...string) block.ID {
	if b.err != nil {
		return 0
	}
	id, err := b.ws.Place(blockType, pos)
	if err != nil {
		b.err = err
		return 0
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if err := b.ws.SetInput(id, kv[i], kv[i+1]); err != nil {
			b.err = err
			return 0
		}
	}
	return id
}

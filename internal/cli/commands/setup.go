package commands

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/pyblocks/internal/block"
	"github.com/leapstack-labs/pyblocks/internal/cli/config"
	"github.com/leapstack-labs/pyblocks/internal/cli/output"
	"github.com/leapstack-labs/pyblocks/internal/codegen"
	"github.com/leapstack-labs/pyblocks/internal/definitions"
	"github.com/leapstack-labs/pyblocks/internal/project"
	"github.com/leapstack-labs/pyblocks/internal/sandbox"
	"github.com/leapstack-labs/pyblocks/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Defs     *definitions.Store
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with the block definitions
// loaded.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	c := NewCommandContextWithoutDefinitions(cmd)

	defs, err := definitions.NewStore(definitions.Options{
		DefinitionsFile:  c.Cfg.DefinitionsFile,
		CapabilitiesFile: c.Cfg.CapabilitiesFile,
		Logger:           c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load block definitions: %w", err)
	}
	c.Defs = defs
	return c, nil
}

// NewCommandContextWithoutDefinitions creates a CommandContext for commands
// that never touch block definitions.
func NewCommandContextWithoutDefinitions(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// GeneratorOptions returns code generation options from the editor settings.
func (c *CommandContext) GeneratorOptions() codegen.Options {
	return codegen.Options{
		IndentSize: c.Cfg.Editor.IndentationSize,
		Logger:     c.Logger,
	}
}

// Generator creates a code generator from the editor settings.
func (c *CommandContext) Generator() *codegen.Generator {
	return codegen.New(c.GeneratorOptions())
}

// Runner creates a sandbox runner from the execution settings.
func (c *CommandContext) Runner() *sandbox.Runner {
	return sandbox.New(sandbox.Options{
		Timeout:        c.Cfg.Execution.Timeout(),
		MaxOutputLines: c.Cfg.Execution.MaxOutputLines,
		MaxSteps:       c.Cfg.Execution.MaxSteps,
		Logger:         c.Logger,
	})
}

// NewWorkspace returns an empty workspace bound to the current catalog.
func (c *CommandContext) NewWorkspace() *block.Workspace {
	cat := c.Defs.Catalog()
	return block.NewWorkspace(cat, cat.Rules())
}

// LoadDocument restores doc into a new workspace.
func (c *CommandContext) LoadDocument(doc *project.Document) (*block.Workspace, *project.LoadResult, error) {
	ws := c.NewWorkspace()
	res, err := project.FromDocument(doc, ws, project.LoadOptions{
		Version: c.Cfg.Application.Version,
		Logger:  c.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return ws, res, nil
}

// LoadProject reads a project file into a new workspace.
func (c *CommandContext) LoadProject(path string) (*block.Workspace, *project.LoadResult, error) {
	doc, err := project.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return c.LoadDocument(doc)
}

// OpenState opens and migrates the snapshot store. The caller closes it.
func (c *CommandContext) OpenState() (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore()
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state store: %w", err)
	}
	return store, nil
}

// reportWarnings prints load warnings to the error stream.
func reportWarnings(r *output.Renderer, res *project.LoadResult) {
	for _, w := range res.Warnings {
		r.Warning(w.Error())
	}
}

func warningStrings(res *project.LoadResult) []string {
	out := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		out = append(out, w.Error())
	}
	return out
}

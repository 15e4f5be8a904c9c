package commands

import (
	"fmt"

	"github.com/leapstack-labs/pyblocks/internal/cli/output"
	"github.com/leapstack-labs/pyblocks/internal/outline"
	"github.com/spf13/cobra"
)

// NewOutlineCommand creates the outline command.
func NewOutlineCommand() *cobra.Command {
	var preview bool
	cmd := &cobra.Command{
		Use:   "outline <project-file>",
		Short: "Show the block tree of a project",
		Long: `Show the blocks of a project file as a tree: top-level blocks in display
order, nested slot blocks under their input name and else bodies under
"else:".`,
		Example: `  # Show the tree
  pyblocks outline example_project.json

  # Show each block's first generated line
  pyblocks outline example_project.json --preview`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutline(cmd, args[0], preview)
		},
	}

	cmd.Flags().BoolVarP(&preview, "preview", "p", false, "Show a code preview for each block")

	return cmd
}

func runOutline(cmd *cobra.Command, path string, preview bool) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	ws, res, err := cmdCtx.LoadProject(path)
	if err != nil {
		return err
	}
	nodes := outline.Build(ws, cmdCtx.Generator())

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if nodes == nil {
			nodes = []*outline.Node{}
		}
		return r.JSON(nodes)
	case output.ModeMarkdown:
		reportWarnings(r, res)
		r.Println(output.FormatHeader(1, path))
		r.Println("")
		r.Println(output.FormatKeyValue("Blocks", fmt.Sprintf("%d", outline.Count(nodes))))
		r.Println("")
		if len(nodes) > 0 {
			r.Println(outline.RenderMarkdown(nodes, preview))
		}
	default:
		reportWarnings(r, res)
		if len(nodes) == 0 {
			r.Muted("No blocks")
			return nil
		}
		r.Println(outline.Render(nodes, preview))
		r.Println("")
		r.Muted(fmt.Sprintf("%d blocks", outline.Count(nodes)))
	}
	return nil
}

package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/pyblocks/internal/cli/output"
	"github.com/leapstack-labs/pyblocks/internal/definitions"
	"github.com/leapstack-labs/pyblocks/pkg/core"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BlocksOptions holds options for the blocks command.
type BlocksOptions struct {
	Category string
}

// blockView is the JSON shape of one definition.
type blockView struct {
	BlockType string `json:"block_type"`
	*core.BlockDefinition
	Candidates map[string][]string `json:"candidates,omitempty"`
}

// NewBlocksCommand creates the blocks command.
func NewBlocksCommand() *cobra.Command {
	opts := &BlocksOptions{}
	cmd := &cobra.Command{
		Use:   "blocks [block-type]",
		Short: "List available block types",
		Long: `List the loaded block types grouped by category, or show one block type
with its inputs, templates and the block types each slot accepts.

Output adapts to environment:
  - Terminal: Styled tables
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # List all block types
  pyblocks blocks

  # Only the logic blocks
  pyblocks blocks --category logic

  # Show one block type
  pyblocks blocks Compare`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return showBlock(cmd, args[0])
			}
			return listBlocks(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Category, "category", "c", "", "Filter by category (case-insensitive)")

	return cmd
}

func listBlocks(cmd *cobra.Command, opts *BlocksOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer
	cat := cmdCtx.Defs.Catalog()

	titleCase := cases.Title(language.English)
	cats := cat.Categories()
	if opts.Category != "" {
		foldCase := cases.Fold()
		want := foldCase.String(opts.Category)
		var filtered []definitions.Category
		for _, c := range cats {
			if foldCase.String(c.Name) == want {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("category %q not found", opts.Category)
		}
		cats = filtered
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		var views []blockView
		for _, c := range cats {
			for _, t := range c.Types {
				def, _ := cat.Lookup(t)
				views = append(views, blockView{BlockType: t, BlockDefinition: def})
			}
		}
		return r.JSON(views)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("Block Types (%d)", countTypes(cats))))
		r.Println("")
		for _, c := range cats {
			r.Println(output.FormatHeader(2, titleCase.String(c.Name)))
			r.Println("")
			r.Table([]string{"Block", "Kind", "Inputs"}, blockRows(cat, c.Types))
			r.Println("")
		}
	default:
		styles := r.Styles()
		r.Println(styles.Header1.Render(fmt.Sprintf("Block Types (%d)", countTypes(cats))))
		r.Println("")
		for _, c := range cats {
			r.Println(styles.Category.Render(titleCase.String(c.Name)))
			r.Table([]string{"Block", "Kind", "Inputs"}, blockRows(cat, c.Types))
			r.Println("")
		}
	}
	return nil
}

func showBlock(cmd *cobra.Command, blockType string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer
	cat := cmdCtx.Defs.Catalog()

	def, ok := cat.Lookup(blockType)
	if !ok {
		return fmt.Errorf("block type %q not found", blockType)
	}

	candidates := make(map[string][]string)
	for _, in := range def.Inputs {
		if in.Kind == core.InputSlot {
			candidates[in.Name] = cat.Candidates(blockType, in.Name)
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(blockView{BlockType: blockType, BlockDefinition: def, Candidates: candidates})
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, blockType))
		r.Println("")
		r.Println(output.FormatKeyValue("Category", def.Category))
		r.Println(output.FormatKeyValue("Kind", blockKind(def)))
		if def.CodeTemplate != "" {
			r.Println(output.FormatKeyValue("Code", "`"+def.CodeTemplate+"`"))
		}
		if def.OutputValue != "" {
			r.Println(output.FormatKeyValue("Value", "`"+def.OutputValue+"`"))
		}
		r.Println("")
	default:
		styles := r.Styles()
		r.Println(styles.Header1.Render(blockType))
		r.Println("")
		r.Printf("  %s %s\n", styles.Bold.Render("Category:"), def.Category)
		r.Printf("  %s %s\n", styles.Bold.Render("Kind:"), blockKind(def))
		if def.CodeTemplate != "" {
			r.Printf("  %s %s\n", styles.Bold.Render("Code:"), styles.Code.Render(def.CodeTemplate))
		}
		if def.OutputValue != "" {
			r.Printf("  %s %s\n", styles.Bold.Render("Value:"), styles.Code.Render(def.OutputValue))
		}
		r.Println("")
	}

	if len(def.Inputs) > 0 {
		r.Table([]string{"Input", "Kind", "Default", "Accepts"}, inputRows(def, candidates))
	}
	return nil
}

func countTypes(cats []definitions.Category) int {
	n := 0
	for _, c := range cats {
		n += len(c.Types)
	}
	return n
}

func blockRows(cat *definitions.Catalog, types []string) [][]string {
	rows := make([][]string, 0, len(types))
	for _, t := range types {
		def, _ := cat.Lookup(t)
		names := make([]string, 0, len(def.Inputs))
		for _, in := range def.Inputs {
			names = append(names, in.Name)
		}
		rows = append(rows, []string{t, blockKind(def), strings.Join(names, ", ")})
	}
	return rows
}

func inputRows(def *core.BlockDefinition, candidates map[string][]string) [][]string {
	rows := make([][]string, 0, len(def.Inputs))
	for _, in := range def.Inputs {
		var accepts string
		switch in.Kind {
		case core.InputChoice:
			accepts = strings.Join(in.Choices, " ")
		case core.InputSlot:
			accepts = strings.Join(candidates[in.Name], ", ")
		}
		rows = append(rows, []string{in.Name, string(in.Kind), in.DefaultValue, accepts})
	}
	return rows
}

// blockKind describes how a block is used in a program.
func blockKind(def *core.BlockDefinition) string {
	switch {
	case def.HasElseChildren:
		return "container with else"
	case def.HasChildren:
		return "container"
	case def.OutputEnabled:
		return "expression"
	default:
		return "statement"
	}
}

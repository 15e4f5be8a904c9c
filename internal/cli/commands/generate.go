package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/pyblocks/internal/cli/output"
	"github.com/spf13/cobra"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	OutputFile string
	Indent     int
}

// generateResult is the JSON shape of generate output.
type generateResult struct {
	File     string   `json:"file"`
	Code     string   `json:"code"`
	Blocks   int      `json:"blocks"`
	Warnings []string `json:"warnings"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <project-file>",
		Short: "Generate Python code from a project file",
		Long: `Generate the Python program for every top-level block of a project file.

Blocks and inputs that cannot be restored are skipped with a warning; the
rest of the project still generates.`,
		Example: `  # Print the program
  pyblocks generate example_project.json

  # Write the program to a file with two-space indentation
  pyblocks generate example_project.json -f main.py --indent 2

  # Program plus load warnings as JSON
  pyblocks generate example_project.json --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFile, "file", "f", "", "Write the program to this file instead of stdout")
	cmd.Flags().IntVar(&opts.Indent, "indent", 0, "Spaces per indentation level (default from settings)")

	return cmd
}

func runGenerate(cmd *cobra.Command, path string, opts *GenerateOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer
	if opts.Indent > 0 {
		cmdCtx.Cfg.Editor.IndentationSize = opts.Indent
	}

	ws, res, err := cmdCtx.LoadProject(path)
	if err != nil {
		return err
	}
	code := cmdCtx.Generator().Program(ws)

	if opts.OutputFile != "" {
		if err := os.WriteFile(opts.OutputFile, []byte(code), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.OutputFile, err)
		}
		cmdCtx.Logger.Debug("program written", slog.String("file", opts.OutputFile), slog.Int("bytes", len(code)))
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(generateResult{
			File:     path,
			Code:     code,
			Blocks:   ws.Len(),
			Warnings: warningStrings(res),
		})
	case output.ModeMarkdown:
		reportWarnings(r, res)
		if opts.OutputFile != "" {
			r.Println(output.FormatKeyValue("Written", opts.OutputFile))
			return nil
		}
		r.Println(output.FormatCodeBlock("python", code))
	default:
		reportWarnings(r, res)
		if opts.OutputFile != "" {
			r.StatusLine(opts.OutputFile, "success", fmt.Sprintf("%d blocks", ws.Len()))
			return nil
		}
		r.Printf("%s", code)
	}
	return nil
}

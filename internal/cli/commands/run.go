package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/pyblocks/internal/cli/output"
	"github.com/leapstack-labs/pyblocks/internal/sandbox"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	ShowCode      bool
	ShowVariables bool
	Timeout       time.Duration
}

// runResult is the JSON shape of run output.
type runResult struct {
	File      string          `json:"file"`
	Code      string          `json:"code"`
	Result    *sandbox.Result `json:"result"`
	Warnings  []string        `json:"warnings"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}
	cmd := &cobra.Command{
		Use:   "run <project-file>",
		Short: "Generate and execute a project in the sandbox",
		Long: `Generate the program for a project file and execute it in the sandbox.

The sandbox interprets a Python-like dialect with no file system or network
access. input() returns its prompt. Execution stops at the configured
timeout or step limit.`,
		Example: `  # Run a project
  pyblocks run example_project.json

  # Also show the generated code and final variables
  pyblocks run example_project.json --code --vars

  # Stop after one second
  pyblocks run example_project.json --timeout 1s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ShowCode, "code", false, "Show the generated code")
	cmd.Flags().BoolVar(&opts.ShowVariables, "vars", false, "Show variables after execution")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Execution timeout (default from settings)")

	return cmd
}

func runRun(cmd *cobra.Command, path string, opts *RunOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer
	if opts.Timeout > 0 {
		cmdCtx.Cfg.Execution.TimeoutSeconds = opts.Timeout.Seconds()
	}

	ws, res, err := cmdCtx.LoadProject(path)
	if err != nil {
		return err
	}
	code := cmdCtx.Generator().Program(ws)

	result, runErr := cmdCtx.Runner().Run(cmd.Context(), code)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := runResult{File: path, Code: code, Result: result, Warnings: warningStrings(res)}
		if runErr != nil {
			out.Error = runErr.Error()
			out.ErrorKind = executionErrorKind(runErr)
		}
		if err := r.JSON(out); err != nil {
			return err
		}
	case output.ModeMarkdown:
		reportWarnings(r, res)
		runMarkdown(r, code, result, opts)
	default:
		reportWarnings(r, res)
		runText(r, code, result, opts)
	}

	if runErr != nil {
		return fmt.Errorf("execution failed: %w", runErr)
	}
	return nil
}

func runText(r *output.Renderer, code string, result *sandbox.Result, opts *RunOptions) {
	styles := r.Styles()
	if opts.ShowCode {
		r.Println(styles.Header2.Render("Code"))
		r.Printf("%s", code)
		r.Println("")
		r.Println(styles.Header2.Render("Output"))
	}
	for _, line := range result.Output {
		r.Println(line)
	}
	if result.Truncated {
		r.Muted("... output truncated")
	}
	if opts.ShowVariables && len(result.Variables) > 0 {
		r.Println("")
		r.Println(styles.Header2.Render("Variables"))
		r.Table([]string{"Name", "Type", "Value"}, variableRows(result.Variables))
	}
	r.Muted(fmt.Sprintf("%d steps in %s", result.Steps, result.Duration.Round(time.Microsecond)))
}

func runMarkdown(r *output.Renderer, code string, result *sandbox.Result, opts *RunOptions) {
	if opts.ShowCode {
		r.Println(output.FormatHeader(2, "Code"))
		r.Println("")
		r.Println(output.FormatCodeBlock("python", code))
		r.Println("")
	}
	r.Println(output.FormatHeader(2, "Output"))
	r.Println("")
	r.Println(output.FormatCodeBlock("", result.Text()))
	if result.Truncated {
		r.Println("")
		r.Println("_Output truncated._")
	}
	if opts.ShowVariables && len(result.Variables) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Variables"))
		r.Println("")
		r.Table([]string{"Name", "Type", "Value"}, variableRows(result.Variables))
	}
}

func variableRows(vars []sandbox.Variable) [][]string {
	rows := make([][]string, 0, len(vars))
	for _, v := range vars {
		rows = append(rows, []string{v.Name, v.Type, v.Repr})
	}
	return rows
}

// executionErrorKind classifies a sandbox error for display.
func executionErrorKind(err error) string {
	var execErr *sandbox.ExecutionError
	switch {
	case errors.As(err, &execErr):
		return execErr.Kind
	case errors.Is(err, sandbox.ErrTimeout):
		return "timeout"
	case errors.Is(err, sandbox.ErrStepLimit):
		return "step_limit"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

package commands

import (
	"fmt"

	"github.com/leapstack-labs/pyblocks/internal/cli/output"
	"github.com/leapstack-labs/pyblocks/internal/definitions"
	"github.com/spf13/cobra"
)

// Problem is one issue reported by check.
type Problem struct {
	Source  string `json:"source"`  // definitions file or project file
	Subject string `json:"subject"` // block type or block path
	Message string `json:"message"`
}

type checkResult struct {
	Definitions int       `json:"definitions"`
	Projects    []string  `json:"projects"`
	Problems    []Problem `json:"problems"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [project-file...]",
		Short: "Check block definitions and project files",
		Long: `Check the loaded block definitions for template problems, then load each
given project file and report every block or input that cannot be restored.

Exits non-zero when any problem is found.`,
		Example: `  # Check definitions only
  pyblocks check

  # Check definitions and two projects
  pyblocks check a.json b.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args)
		},
	}
	return cmd
}

func runCheck(cmd *cobra.Command, files []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer
	cat := cmdCtx.Defs.Catalog()

	result := checkResult{Definitions: cat.Len(), Projects: files, Problems: []Problem{}}
	for _, def := range cat.Definitions() {
		for _, msg := range definitions.TemplateProblems(def) {
			result.Problems = append(result.Problems, Problem{
				Source:  "definitions",
				Subject: def.BlockType,
				Message: msg,
			})
		}
	}
	for _, path := range files {
		_, res, err := cmdCtx.LoadProject(path)
		if err != nil {
			result.Problems = append(result.Problems, Problem{Source: path, Message: err.Error()})
			continue
		}
		for _, w := range res.Warnings {
			result.Problems = append(result.Problems, Problem{Source: path, Subject: w.Path, Message: w.Error()})
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(result); err != nil {
			return err
		}
	case output.ModeMarkdown:
		checkMarkdown(r, result)
	default:
		checkText(r, result)
	}

	if n := len(result.Problems); n > 0 {
		return fmt.Errorf("%d problem(s) found", n)
	}
	return nil
}

func checkText(r *output.Renderer, result checkResult) {
	r.Header(1, "Check")
	sources := append([]string{"definitions"}, result.Projects...)
	for _, src := range sources {
		problems := problemsFor(result, src)
		if len(problems) == 0 {
			r.StatusLine(displaySource(src, result), "success", "")
			continue
		}
		r.StatusLine(displaySource(src, result), "error", fmt.Sprintf("%d problem(s)", len(problems)))
		for _, p := range problems {
			r.Printf("    %s\n", problemLine(p))
		}
	}
	r.Println("")
	if len(result.Problems) == 0 {
		r.Success("No problems found")
	}
}

func checkMarkdown(r *output.Renderer, result checkResult) {
	r.Println(output.FormatHeader(1, "Check"))
	r.Println("")
	r.Println(output.FormatKeyValue("Definitions", fmt.Sprintf("%d", result.Definitions)))
	r.Println(output.FormatKeyValue("Projects", fmt.Sprintf("%d", len(result.Projects))))
	r.Println(output.FormatKeyValue("Problems", fmt.Sprintf("%d", len(result.Problems))))
	if len(result.Problems) == 0 {
		return
	}
	r.Println("")
	r.Println(output.FormatHeader(2, "Problems"))
	r.Println("")
	for _, p := range result.Problems {
		r.Printf("- `%s`: %s\n", p.Source, problemLine(p))
	}
}

func problemsFor(result checkResult, source string) []Problem {
	var out []Problem
	for _, p := range result.Problems {
		if p.Source == source {
			out = append(out, p)
		}
	}
	return out
}

func displaySource(source string, result checkResult) string {
	if source == "definitions" {
		return fmt.Sprintf("block definitions (%d)", result.Definitions)
	}
	return source
}

func problemLine(p Problem) string {
	if p.Subject == "" || p.Source != "definitions" {
		return p.Message
	}
	return p.Subject + ": " + p.Message
}

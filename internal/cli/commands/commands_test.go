package commands

import (
	"bytes"
	"testing"

	"github.com/leapstack-labs/pyblocks/internal/cli/config"
	"github.com/leapstack-labs/pyblocks/internal/cli/testutil"
	"github.com/leapstack-labs/pyblocks/internal/definitions"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs cmd with cfg in its context and returns stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, cfg *config.Config, args ...string) (string, string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	// Mirror the root command, which silences usage and error printing.
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(testutil.ContextWithConfig(cfg))
	return out.String(), errOut.String(), err
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewInitCommand(), "init [directory]", []string{"force", "example"}},
		{NewGenerateCommand(), "generate <project-file>", []string{"file", "indent"}},
		{NewRunCommand(), "run <project-file>", []string{"code", "vars", "timeout"}},
		{NewCheckCommand(), "check [project-file...]", nil},
		{NewBlocksCommand(), "blocks [block-type]", []string{"category"}},
		{NewOutlineCommand(), "outline <project-file>", []string{"preview"}},
		{NewServeCommand(), "serve", []string{"port", "watch", "no-state"}},
		{NewSnapshotsCommand(), "snapshots", nil},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestSnapshotsSubcommands(t *testing.T) {
	cmd := NewSnapshotsCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "save", "restore", "prune"}, names)
	assert.Contains(t, cmd.Aliases, "snapshot")
}

func TestBlockKind(t *testing.T) {
	cat := definitions.Builtin()
	tests := map[string]string{
		"IfElse":  "container with else",
		"While":   "container",
		"Compare": "expression",
		"Print":   "statement",
	}
	for blockType, want := range tests {
		def, ok := cat.Lookup(blockType)
		require.True(t, ok, blockType)
		assert.Equal(t, want, blockKind(def), blockType)
	}
}

func TestProjectNameFromPath(t *testing.T) {
	assert.Equal(t, "example", projectNameFromPath("/tmp/x/example.json"))
	assert.Equal(t, "demo", projectNameFromPath("demo"))
}

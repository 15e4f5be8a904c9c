package commands

import (
	"encoding/json"
	"testing"

	"github.com/leapstack-labs/pyblocks/internal/cli/output"
	"github.com/leapstack-labs/pyblocks/internal/cli/testutil"
	"github.com/leapstack-labs/pyblocks/internal/definitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocks_ListJSON(t *testing.T) {
	cfg := testutil.NewTestConfig(t.TempDir(), output.ModeJSON)

	out, _, err := execute(t, NewBlocksCommand(), cfg)
	require.NoError(t, err)

	var views []struct {
		BlockType string `json:"block_type"`
		Category  string `json:"category"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	assert.Len(t, views, definitions.Builtin().Len())
	assert.Equal(t, "Print", views[0].BlockType)
	assert.Equal(t, "Basic", views[0].Category)
}

func TestBlocks_CategoryFilter(t *testing.T) {
	cfg := testutil.NewTestConfig(t.TempDir(), output.ModeMarkdown)

	out, _, err := execute(t, NewBlocksCommand(), cfg, "--category", "LOGIC")
	require.NoError(t, err)
	assert.Contains(t, out, "## Logic")
	assert.Contains(t, out, "| IfElse | container with else | condition |")
	assert.NotContains(t, out, "## Basic")

	_, _, err = execute(t, NewBlocksCommand(), cfg, "--category", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `category "nope" not found`)
}

func TestBlocks_CustomCategoryTitle(t *testing.T) {
	cfg := testutil.NewTestConfig(t.TempDir(), output.ModeText)
	testutil.WriteFile(t, cfg.DefinitionsFile, `{
  "Shout": {"category": "string ops", "inputs": [{"name": "text", "kind": "text"}], "code_template": "print({text}.upper())"}
}`)

	out, _, err := execute(t, NewBlocksCommand(), cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "String Ops")
	assert.Contains(t, out, "Shout")
	testutil.AssertNoANSI(t, out)
}

func TestBlocks_Show(t *testing.T) {
	cfg := testutil.NewTestConfig(t.TempDir(), output.ModeJSON)

	out, _, err := execute(t, NewBlocksCommand(), cfg, "Compare")
	require.NoError(t, err)

	var view struct {
		BlockType   string              `json:"block_type"`
		OutputValue string              `json:"output_value"`
		Candidates  map[string][]string `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "Compare", view.BlockType)
	assert.Equal(t, "({a} {operator} {b})", view.OutputValue)
	assert.Contains(t, view.Candidates, "a")
	assert.Contains(t, view.Candidates, "b")
	assert.NotContains(t, view.Candidates, "operator")

	cfg = testutil.NewTestConfig(t.TempDir(), output.ModeMarkdown)
	out, _, err = execute(t, NewBlocksCommand(), cfg, "Compare")
	require.NoError(t, err)
	assert.Contains(t, out, "# Compare")
	assert.Contains(t, out, "- **Kind:** expression")
	assert.Contains(t, out, "| operator | choice | == |")

	_, _, err = execute(t, NewBlocksCommand(), cfg, "Ghost")
	require.Error(t, err)
}

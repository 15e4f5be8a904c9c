package definitions

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/pyblocks/internal/testutil"
	"github.com/leapstack-labs/pyblocks/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestBuiltin(t *testing.T) {
	c := Builtin()

	assert.Equal(t, 33, c.Len())
	assert.Equal(t, "Print", c.Types()[0])

	printDef, ok := c.Lookup("Print")
	require.True(t, ok)
	assert.Equal(t, "print({message})", printDef.CodeTemplate)
	assert.Equal(t, "Basic", printDef.Category)
	require.Len(t, printDef.Inputs, 1)
	assert.Equal(t, core.InputSlot, printDef.Inputs[0].Kind)
	assert.Equal(t, "Hello World", printDef.Inputs[0].DefaultValue)
	assert.Equal(t, core.QuoteString, printDef.Inputs[0].Quote)

	ifElse, ok := c.Lookup("IfElse")
	require.True(t, ok)
	assert.True(t, ifElse.HasChildren)
	assert.True(t, ifElse.HasElseChildren)
	assert.Equal(t, "else:", ifElse.ElseLine())

	compare, ok := c.Lookup("Compare")
	require.True(t, ok)
	op, ok := compare.Input("operator")
	require.True(t, ok)
	assert.Equal(t, []string{"==", "!=", ">", "<", ">=", "<="}, op.Choices)

	dict, ok := c.Lookup("DictValue")
	require.True(t, ok)
	assert.Equal(t, "{{{items}}}", dict.OutputValue)

	direct, ok := c.Lookup("DirectCode")
	require.True(t, ok)
	assert.True(t, direct.DirectCodeEnabled)

	_, ok = c.Lookup("Nope")
	assert.False(t, ok)
}

func TestCatalog_Categories(t *testing.T) {
	cats := Builtin().Categories()

	var names []string
	for _, c := range cats {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Basic", "Values", "Math", "Logic", "Functions", "Data"}, names)
	assert.Equal(t, []string{"Print", "Variable", "Input", "Comment", "DirectCode"}, cats[0].Types)
}

func TestCatalog_Candidates(t *testing.T) {
	c := Builtin()

	got := c.Candidates("If", "condition")
	assert.Contains(t, got, "Compare")
	assert.NotContains(t, got, "StringValue")
	assert.NotContains(t, got, "Print")

	all := c.Candidates("Print", "message")
	assert.Contains(t, all, "StringValue")
	assert.IsIncreasing(t, all)
}

func TestNewCatalog_ReplaceKeepsPosition(t *testing.T) {
	c := NewCatalog([]*core.BlockDefinition{
		{BlockType: "A", CodeTemplate: "a"},
		{BlockType: "B", CodeTemplate: "b"},
		{BlockType: "A", CodeTemplate: "a2", Category: "X"},
	}, nil)

	assert.Equal(t, []string{"A", "B"}, c.Types())
	a, _ := c.Lookup("A")
	assert.Equal(t, "a2", a.CodeTemplate)
	assert.True(t, c.Rules().IsAllowed("A", "x", "B"))

	cats := c.Categories()
	require.Len(t, cats, 2)
	assert.Equal(t, "X", cats[0].Name)
	assert.Equal(t, "Other", cats[1].Name)
}

func TestParseDefinitions(t *testing.T) {
	data := `{
		"Zeta": {"inputs": [{"name": "v", "type": "text", "default": "1"}], "code_template": "z = {v}"},
		"Dup": {"inputs": [{"name": "a"}, {"name": "a"}], "code_template": "{a}"},
		"Broken": {"inputs": "nope"},
		"Alpha": {"inputs": [], "code_template": "pass  # {missing}"}
	}`

	defs, err := ParseDefinitions([]byte(data), testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "Zeta", defs[0].BlockType)
	assert.Equal(t, "1", defs[0].Inputs[0].DefaultValue)
	assert.Equal(t, "Alpha", defs[1].BlockType)
}

func TestParseDefinitions_LegacyQuoting(t *testing.T) {
	data := `{
		"Print": {"inputs": [{"name": "message", "type": "slot", "default": "Hello World"}], "code_template": "print({message})"},
		"Input": {"inputs": [{"name": "variable", "kind": "text"}, {"name": "prompt", "kind": "slot", "quote": "none"}], "code_template": "{variable} = input({prompt})"},
		"Echo": {"inputs": [{"name": "message", "kind": "slot"}], "code_template": "echo({message})"}
	}`

	defs, err := ParseDefinitions([]byte(data), testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.Len(t, defs, 3)

	assert.Equal(t, core.QuoteString, defs[0].Inputs[0].Quote)
	assert.Equal(t, core.QuoteNone, defs[1].Inputs[0].Quote)
	assert.Equal(t, core.QuoteNone, defs[1].Inputs[1].Quote)
	assert.Equal(t, core.QuoteNone, defs[2].Inputs[0].Quote)
}

func TestParseDefinitions_NotAnObject(t *testing.T) {
	_, err := ParseDefinitions([]byte(`[]`), nil)
	assert.Error(t, err)

	_, err = ParseDefinitions([]byte(`{"A": `), nil)
	assert.Error(t, err)

	_, err = ParseDefinitions(nil, nil)
	assert.Error(t, err)
}

func TestTemplateProblems(t *testing.T) {
	def := &core.BlockDefinition{
		BlockType:    "T",
		Inputs:       []core.InputSpec{{Name: "a"}},
		CodeTemplate: "{a} {b}",
		OutputValue:  "{a",
	}
	problems := TemplateProblems(def)
	require.Len(t, problems, 2)
	assert.Contains(t, problems[0], `unknown input "b"`)
	assert.Contains(t, problems[1], "output_value")
}

func TestNewStore_BuiltinOnly(t *testing.T) {
	s, err := NewStore(Options{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	c := s.Catalog()
	assert.Equal(t, 33, c.Len())
	assert.Equal(t, uint64(1), c.Generation())
	assert.False(t, c.Rules().IsAllowed("If", "condition", "StringValue"))
}

func TestNewStore_FileOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	defsPath := filepath.Join(dir, "block_definitions.json")
	capsPath := filepath.Join(dir, "block_capabilities.json")

	writeFile(t, defsPath, `{
		"Print": {"category": "Basic", "inputs": [{"name": "message", "type": "slot", "default": "hi"}], "code_template": "print({message}, flush=True)"},
		"Pass": {"category": "Basic", "inputs": [], "code_template": "pass"}
	}`)
	writeFile(t, capsPath, `{"nesting_rules": {"Print": {"message": {"denied": ["Variable"]}}}}`)

	s, err := NewStore(Options{
		DefinitionsFile:  defsPath,
		CapabilitiesFile: capsPath,
		Logger:           testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	c := s.Catalog()
	assert.Equal(t, 34, c.Len())
	printDef, _ := c.Lookup("Print")
	assert.Equal(t, "print({message}, flush=True)", printDef.CodeTemplate)
	assert.Equal(t, "Print", c.Types()[0])
	assert.Equal(t, "Pass", c.Types()[33])

	assert.False(t, c.Rules().IsAllowed("Print", "message", "Variable"))
	// The file's rules replace the builtin ones entirely.
	assert.True(t, c.Rules().IsAllowed("If", "condition", "StringValue"))
}

func TestNewStore_MissingFilesFallBack(t *testing.T) {
	dir := t.TempDir()
	logger, logs := testutil.NewCaptureLogger()
	s, err := NewStore(Options{
		DefinitionsFile:  filepath.Join(dir, "missing.json"),
		CapabilitiesFile: filepath.Join(dir, "missing_caps.json"),
		Logger:           logger,
	})
	require.NoError(t, err)
	assert.Equal(t, 33, s.Catalog().Len())
	assert.True(t, logs.Contains("definitions file not found"))
	assert.True(t, logs.Contains("capabilities file not found"))
	assert.False(t, s.Catalog().Rules().IsAllowed("If", "condition", "StringValue"))
}

func TestNewStore_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	defsPath := filepath.Join(dir, "block_definitions.json")
	writeFile(t, defsPath, `{not json`)

	_, err := NewStore(Options{DefinitionsFile: defsPath})
	require.Error(t, err)
	assert.Contains(t, err.Error(), defsPath)
}

func TestStore_Reload(t *testing.T) {
	dir := t.TempDir()
	defsPath := filepath.Join(dir, "block_definitions.json")
	writeFile(t, defsPath, `{"Extra": {"inputs": [], "code_template": "one()"}}`)

	s, err := NewStore(Options{DefinitionsFile: defsPath, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	var notified atomic.Int32
	s.OnReload(func(*Catalog) { notified.Add(1) })

	before := s.Catalog()
	writeFile(t, defsPath, `{"Extra": {"inputs": [], "code_template": "two()"}}`)

	after, err := s.Reload()
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Same(t, after, s.Catalog())
	assert.Equal(t, uint64(2), after.Generation())
	assert.Equal(t, int32(1), notified.Load())

	// The old snapshot is untouched.
	old, _ := before.Lookup("Extra")
	assert.Equal(t, "one()", old.CodeTemplate)
	cur, _ := after.Lookup("Extra")
	assert.Equal(t, "two()", cur.CodeTemplate)

	// A broken file keeps the current catalog.
	writeFile(t, defsPath, `{broken`)
	_, err = s.Reload()
	require.Error(t, err)
	assert.Same(t, after, s.Catalog())
	assert.Equal(t, int32(1), notified.Load())
}

func TestStore_Watch(t *testing.T) {
	dir := t.TempDir()
	defsPath := filepath.Join(dir, "block_definitions.json")
	writeFile(t, defsPath, `{}`)

	s, err := NewStore(Options{DefinitionsFile: defsPath})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(defsPath, []byte(`{"Watched": {"inputs": [], "code_template": "watched()"}}`), 0o600)
		_, ok := s.Catalog().Lookup("Watched")
		return ok
	}, 5*time.Second, 250*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestStore_WatchWithoutFiles(t *testing.T) {
	s, err := NewStore(Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Watch(ctx))
}

func TestBuiltinJSONCopies(t *testing.T) {
	a := BuiltinDefinitionsJSON()
	a[0] = 'x'
	assert.Equal(t, byte('{'), BuiltinDefinitionsJSON()[0])
	assert.NotEmpty(t, BuiltinCapabilitiesJSON())
}

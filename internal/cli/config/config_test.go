package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	intconfig "github.com/leapstack-labs/pyblocks/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, intconfig.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("definitions", "", "")
	flags.String("capabilities", "", "")
	flags.String("state", "", "")
	flags.String("project-dir", "", "")
	flags.String("log-level", "", "")
	flags.StringP("output", "o", "", "")
	flags.BoolP("verbose", "v", false, "")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	flags := newFlags()
	require.NoError(t, flags.Set("project-dir", dir))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, filepath.Join(dir, intconfig.DefaultDefinitionsFile), cfg.DefinitionsFile)
	assert.Equal(t, filepath.Join(dir, intconfig.DefaultCapabilitiesFile), cfg.CapabilitiesFile)
	assert.Equal(t, filepath.Join(dir, intconfig.DefaultStateFile), cfg.StatePath)
	assert.Equal(t, 4, cfg.Editor.IndentationSize)
	assert.Equal(t, 5*time.Second, cfg.Execution.Timeout())
	assert.Equal(t, 500, cfg.Execution.MaxOutputLines)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, slog.LevelWarn, cfg.Level())
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `definitions_file: custom/defs.json
state_path: ":memory:"
log_level: info
application:
  name: Test Blocks
  version: "1.2"
editor:
  indentation_size: 2
execution:
  timeout_seconds: 10
  max_output_lines: 50
server:
  port: 9000
  watch: true
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	root := filepath.Dir(path)
	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, filepath.Join(root, "custom", "defs.json"), cfg.DefinitionsFile)
	assert.Equal(t, ":memory:", cfg.StatePath)
	assert.Equal(t, "Test Blocks", cfg.Application.Name)
	assert.Equal(t, "1.2", cfg.Application.Version)
	assert.Equal(t, 2, cfg.Editor.IndentationSize)
	assert.Equal(t, 10*time.Second, cfg.Execution.Timeout())
	assert.Equal(t, 50, cfg.Execution.MaxOutputLines)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Server.Watch)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	path := writeConfig(t, "definitions_file: from_file.json\n")
	t.Setenv("PYBLOCKS_DEFINITIONS_FILE", "from_env.json")

	flags := newFlags()
	require.NoError(t, flags.Set("definitions", "from_flag.json"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	// Flag paths resolve against the working directory.
	want, err := filepath.Abs("from_flag.json")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.DefinitionsFile)
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	path := writeConfig(t, "definitions_file: from_file.json\neditor:\n  indentation_size: 2\n")
	t.Setenv("PYBLOCKS_DEFINITIONS_FILE", "from_env.json")
	t.Setenv("PYBLOCKS_EDITOR__INDENTATION_SIZE", "8")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "from_env.json"), cfg.DefinitionsFile)
	assert.Equal(t, 8, cfg.Editor.IndentationSize)
}

func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	path := writeConfig(t, "output: text\n")
	t.Setenv("PYBLOCKS_OUTPUT", "json")

	flags := newFlags()
	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestLoadConfig_VerboseFlag(t *testing.T) {
	path := writeConfig(t, "log_level: error\n")
	flags := newFlags()
	require.NoError(t, flags.Set("verbose", "true"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"bad yaml", "editor: [", "error reading config file"},
		{"bad output", "output: xml\n", "invalid output format"},
		{"bad log level", "log_level: loud\n", "invalid log level"},
		{"bad indentation", "editor:\n  indentation_size: 64\n", "indentation_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content), nil)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "state_path", envKey("PYBLOCKS_STATE_PATH"))
	assert.Equal(t, "execution.timeout_seconds", envKey("PYBLOCKS_EXECUTION__TIMEOUT_SECONDS"))
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLogLevel("trace")
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, intconfig.DefaultDefinitionsFile, cfg.DefinitionsFile)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}

func TestGetConfig(t *testing.T) {
	assert.Equal(t, DefaultOutput, GetConfig(context.Background()).OutputFormat)

	cfg := Default()
	cfg.OutputFormat = "json"
	ctx := context.WithValue(context.Background(), ConfigKey(), cfg)
	assert.Same(t, cfg, GetConfig(ctx))
}

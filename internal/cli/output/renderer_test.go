package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{ModeAuto, true, ModeText},
		{ModeAuto, false, ModeMarkdown},
		{"", false, ModeMarkdown},
		{ModeJSON, true, ModeJSON},
		{ModeText, false, ModeText},
		{ModeMarkdown, true, ModeMarkdown},
	}
	for _, tt := range tests {
		r, _, _ := newTestRenderer(tt.mode, tt.isTTY)
		assert.Equal(t, tt.want, r.EffectiveMode(), "mode=%q tty=%v", tt.mode, tt.isTTY)
	}
}

func TestRenderer_Messages(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeText, false)

	r.Success("done")
	r.Muted("quiet")
	r.StatusLine("file.json", "success", "created")
	r.Warning("careful")
	r.Error("broken")

	assert.Contains(t, out.String(), "✓ done")
	assert.Contains(t, out.String(), "quiet")
	assert.Contains(t, out.String(), "✓ file.json  created")
	assert.Contains(t, errOut.String(), "! careful")
	assert.Contains(t, errOut.String(), "✗ broken")
	// No terminal, no escape codes.
	assert.NotContains(t, out.String(), "\x1b[")
}

func TestRenderer_Header(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.Header(2, "Blocks")
	assert.Equal(t, "## Blocks\n\n", out.String())

	r, out, _ = newTestRenderer(ModeText, false)
	r.Header(1, "Blocks")
	assert.Equal(t, "Blocks\n\n", out.String())
}

func TestRenderer_JSON(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a": 1}`, out.String())
}

func TestRenderer_Table(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.Table([]string{"Type", "Category"}, [][]string{{"Print", "Basic"}})
	assert.Contains(t, out.String(), "| Type | Category |")
	assert.Contains(t, out.String(), "| Print | Basic |")

	r, out, _ = newTestRenderer(ModeText, false)
	r.Table([]string{"Type"}, [][]string{{"Print"}})
	assert.Contains(t, out.String(), "┌")
	assert.Contains(t, out.String(), "Print")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Sub", FormatHeader(3, "Sub"))
	assert.Equal(t, "- **Blocks:** 3", FormatKeyValue("Blocks", "3"))
	assert.Equal(t, "```python\nx = 1\n```", FormatCodeBlock("python", "x = 1\n"))
}

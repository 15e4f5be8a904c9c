// Package codegen renders a block workspace into Python source text.
//
// A block is rendered in one of two contexts. In statement context (top
// level or inside a body) it produces full indented lines and recurses into
// its bodies. In expression context (inside another block's slot) an
// output-enabled block produces a single unindented value fragment.
//
// Generation is total: failures are rendered as markers in the text and
// never returned or propagated as panics.
package codegen

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/pyblocks/internal/block"
	"github.com/leapstack-labs/pyblocks/internal/template"
	"github.com/leapstack-labs/pyblocks/pkg/core"
)

// Defaults for Options.
const (
	DefaultIndentSize = 4
	DefaultMaxDepth   = 256
	PreviewLength     = 100
)

// Options configures a Generator.
type Options struct {
	// IndentSize is the number of spaces per indentation level.
	IndentSize int
	// MaxDepth bounds recursion through slots and bodies.
	MaxDepth int
	Logger   *slog.Logger
}

// Generator renders blocks to code. It holds no per-workspace state and may
// be shared.
type Generator struct {
	unit     string
	maxDepth int
	logger   *slog.Logger
}

// New creates a Generator, filling in defaults for zero options.
func New(opts Options) *Generator {
	if opts.IndentSize <= 0 {
		opts.IndentSize = DefaultIndentSize
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{
		unit:     strings.Repeat(" ", opts.IndentSize),
		maxDepth: opts.MaxDepth,
		logger:   opts.Logger,
	}
}

// IndentUnit returns the string used for one indentation level.
func (g *Generator) IndentUnit() string {
	return g.unit
}

// Generate renders the block with the given ID at indentLevel. A block in a
// slot that is output-enabled yields only its expression, without
// indentation or newline.
func (g *Generator) Generate(ws *block.Workspace, id block.ID, indentLevel int) (out string) {
	inst, ok := ws.Get(id)
	if !ok {
		return blockMarker("block", fmt.Errorf("%w: %d", block.ErrNotFound, id)) + "\n"
	}
	defer func() {
		if r := recover(); r != nil {
			err := &GenerationError{BlockType: inst.Type(), Err: fmt.Errorf("panic: %v", r)}
			g.logger.Error("code generation failed", slog.String("block_type", inst.Type()), slog.String("error", err.Error()))
			out = strings.Repeat(g.unit, max(indentLevel, 0)) + blockMarker(inst.Type(), err.Err) + "\n"
		}
	}()
	return g.generate(ws, inst, max(indentLevel, 0), 0)
}

// Program renders all top-level blocks in display order. Trailing whitespace
// is removed from every line.
func (g *Generator) Program(ws *block.Workspace) string {
	var sb strings.Builder
	for _, id := range ws.TopLevel() {
		sb.WriteString(g.Generate(ws, id, 0))
	}
	return normalize(sb.String())
}

// Preview returns the start of a block's generated code, for tooltips and
// outlines.
func (g *Generator) Preview(ws *block.Workspace, id block.ID) string {
	code := strings.TrimSpace(g.Generate(ws, id, 0))
	if r := []rune(code); len(r) > PreviewLength {
		return string(r[:PreviewLength])
	}
	return code
}

func (g *Generator) generate(ws *block.Workspace, inst *block.Instance, level, depth int) string {
	if depth > g.maxDepth {
		return strings.Repeat(g.unit, level) + blockMarker(inst.Type(), ErrDepthExceeded) + "\n"
	}

	def := inst.Definition()
	values := g.resolveInputs(ws, inst, depth)

	if inst.InSlot() && def.OutputEnabled {
		return g.expression(inst, values)
	}

	indent := strings.Repeat(g.unit, level)
	var sb strings.Builder

	if code, direct := inst.DirectCode(); direct && def.DirectCodeEnabled {
		for _, line := range splitLines(code) {
			if strings.TrimSpace(line) == "" {
				sb.WriteString("\n")
				continue
			}
			sb.WriteString(indent + line + "\n")
		}
	} else {
		g.writeLines(&sb, indent, g.statement(inst, values))
	}

	if def.HasChildren {
		g.writeBody(&sb, ws, inst.Children(), level, depth)
	}
	if def.HasElseChildren {
		g.writeLines(&sb, indent, g.render(inst, def.ElseLine(), values))
		g.writeBody(&sb, ws, inst.ElseBlocks(), level, depth)
	}

	out := sb.String()
	if level == 0 {
		out = strings.TrimPrefix(out, g.unit)
	}
	return out
}

func (g *Generator) writeBody(sb *strings.Builder, ws *block.Workspace, body []block.ID, level, depth int) {
	if len(body) == 0 {
		sb.WriteString(strings.Repeat(g.unit, level+1) + "pass\n")
		return
	}
	for _, id := range body {
		sb.WriteString(g.child(ws, id, level+1, depth+1))
	}
}

// child renders one body entry, turning a panic into a marker line so the
// siblings still render.
func (g *Generator) child(ws *block.Workspace, id block.ID, level, depth int) (out string) {
	indent := strings.Repeat(g.unit, level)
	inst, ok := ws.Get(id)
	if !ok {
		return indent + blockMarker("block", fmt.Errorf("%w: %d", block.ErrNotFound, id)) + "\n"
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("code generation failed", slog.String("block_type", inst.Type()), slog.Any("panic", r))
			out = indent + blockMarker(inst.Type(), fmt.Errorf("panic: %v", r)) + "\n"
		}
	}()
	return g.generate(ws, inst, level, depth)
}

func (g *Generator) writeLines(sb *strings.Builder, indent, text string) {
	for _, line := range splitLines(text) {
		sb.WriteString(indent + line + "\n")
	}
}

// statement returns the block's own line(s) before indentation. A block
// without a code template renders its expression as a bare line.
func (g *Generator) statement(inst *block.Instance, values map[string]string) string {
	src := inst.Definition().CodeTemplate
	if src == "" {
		src = inst.Definition().ExpressionTemplate()
	}
	if src == "" {
		return "# " + inst.Type()
	}
	return g.render(inst, src, values)
}

// expression returns the block's value fragment on a single line. Bodies
// and direct code never take part in it.
func (g *Generator) expression(inst *block.Instance, values map[string]string) string {
	src := inst.Definition().ExpressionTemplate()
	tmpl, err := template.Lookup(src, inst.Type())
	if err != nil {
		g.logger.Warn("invalid output template", slog.String("block_type", inst.Type()), slog.String("error", err.Error()))
		return inputMarker(err)
	}
	res := tmpl.Render(values)
	g.logUnresolved(inst, res)
	return joinLines(res.Text)
}

// render substitutes values into src, falling back to an error comment line
// when the template itself is malformed.
func (g *Generator) render(inst *block.Instance, src string, values map[string]string) string {
	tmpl, err := template.Lookup(src, inst.Type())
	if err != nil {
		g.logger.Warn("invalid code template", slog.String("block_type", inst.Type()), slog.String("error", err.Error()))
		return blockMarker(inst.Type(), err)
	}
	res := tmpl.Render(values)
	g.logUnresolved(inst, res)
	return res.Text
}

func (g *Generator) logUnresolved(inst *block.Instance, res template.Result) {
	for _, u := range res.Unresolved {
		g.logger.Debug("unresolved placeholder", slog.String("block_type", inst.Type()), slog.String("name", u.Name))
	}
}

// resolveInputs produces the substitution mapping for every declared input.
// A failing input is replaced by a marker; the others are unaffected.
func (g *Generator) resolveInputs(ws *block.Workspace, inst *block.Instance, depth int) map[string]string {
	def := inst.Definition()
	values := make(map[string]string, len(def.Inputs))
	for _, spec := range def.Inputs {
		v, err := g.resolveInput(ws, inst, spec, depth)
		if err != nil {
			gerr := &GenerationError{BlockType: inst.Type(), Input: spec.Name, Err: err}
			g.logger.Warn("input resolution failed", slog.String("error", gerr.Error()))
			v = inputMarker(err)
		}
		values[spec.Name] = v
	}
	return values
}

// resolveInput returns the text substituted for one input: the quoted
// literal, or the expression of the nested block.
func (g *Generator) resolveInput(ws *block.Workspace, inst *block.Instance, spec core.InputSpec, depth int) (v string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch val := inst.Value(spec.Name).(type) {
	case block.Literal:
		return Quote(val.Text, spec.Quote), nil
	case block.Nested:
		if depth+1 > g.maxDepth {
			return "", ErrDepthExceeded
		}
		nested, ok := ws.Get(val.Block)
		if !ok {
			return "", fmt.Errorf("%w: %d", block.ErrNotFound, val.Block)
		}
		return g.expression(nested, g.resolveInputs(ws, nested, depth+1)), nil
	default:
		return "", fmt.Errorf("unsupported input value %T", val)
	}
}

// splitLines splits on newlines without producing a trailing empty element
// for text that ends in a newline.
func splitLines(s string) []string {
	s = strings.TrimSuffix(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	return strings.Split(s, "\n")
}

// joinLines folds a rendered template onto one line.
func joinLines(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// normalize strips trailing whitespace from each line.
func normalize(code string) string {
	if code == "" {
		return ""
	}
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.Join(lines, "\n")
}

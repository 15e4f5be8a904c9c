// Package template implements the placeholder templates used by block definitions.
// A template is literal text with {name} placeholders; {{ and }} stand for
// literal braces. Rendering substitutes every placeholder exactly once.
package template

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is the interface for all template AST nodes.
type Node interface {
	Pos() Position
	node() // marker method to restrict implementation
}

// nodeBase provides common Position handling for all nodes.
type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode represents literal text (escapes already resolved).
type TextNode struct {
	nodeBase
	Text string
}

// PlaceholderNode represents a {name} placeholder.
type PlaceholderNode struct {
	nodeBase
	Name string
}

// Template represents a complete parsed template.
type Template struct {
	Nodes  []Node
	File   string // Name used in error positions (usually the block type)
	Source string
}

// Placeholders returns the distinct placeholder names in order of first use.
func (t *Template) Placeholders() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, n := range t.Nodes {
		p, ok := n.(*PlaceholderNode)
		if !ok {
			continue
		}
		if _, dup := seen[p.Name]; dup {
			continue
		}
		seen[p.Name] = struct{}{}
		names = append(names, p.Name)
	}
	return names
}

// Package outline builds a navigable tree view of a workspace: each block
// with a code preview, slot labels for nested blocks and else groups.
package outline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/leapstack-labs/pyblocks/internal/block"
	"github.com/leapstack-labs/pyblocks/internal/codegen"
)

// NodeKind distinguishes block nodes from grouping labels.
type NodeKind string

// NodeKind constants.
const (
	KindBlock NodeKind = "block"
	KindSlot  NodeKind = "slot" // label "name:" grouping a nested block
	KindElse  NodeKind = "else" // label "else:" grouping the else body
)

// Node is one entry of the outline.
type Node struct {
	Kind      NodeKind `json:"kind"`
	Label     string   `json:"label"`
	ID        block.ID `json:"id,omitempty"`
	Container bool     `json:"container,omitempty"`
	Preview   string   `json:"preview,omitempty"`
	Children  []*Node  `json:"children,omitempty"`
}

// Build returns one node per top-level block, in display order.
func Build(ws *block.Workspace, gen *codegen.Generator) []*Node {
	var nodes []*Node
	for _, id := range ws.TopLevel() {
		if n := buildBlock(ws, gen, id); n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func buildBlock(ws *block.Workspace, gen *codegen.Generator, id block.ID) *Node {
	inst, ok := ws.Get(id)
	if !ok {
		return nil
	}
	def := inst.Definition()
	n := &Node{
		Kind:      KindBlock,
		Label:     inst.Type(),
		ID:        id,
		Container: def.IsContainer(),
		Preview:   firstLine(gen.Preview(ws, id)),
	}

	for _, spec := range def.Inputs {
		nested, ok := inst.NestedIn(spec.Name)
		if !ok {
			continue
		}
		if child := buildBlock(ws, gen, nested); child != nil {
			n.Children = append(n.Children, &Node{Kind: KindSlot, Label: spec.Name + ":", Children: []*Node{child}})
		}
	}
	for _, c := range inst.Children() {
		if child := buildBlock(ws, gen, c); child != nil {
			n.Children = append(n.Children, child)
		}
	}
	if elses := inst.ElseBlocks(); len(elses) > 0 {
		group := &Node{Kind: KindElse, Label: "else:"}
		for _, c := range elses {
			if child := buildBlock(ws, gen, c); child != nil {
				group.Children = append(group.Children, child)
			}
		}
		n.Children = append(n.Children, group)
	}
	return n
}

// Find returns the path of nodes from a root to the block with the given ID.
func Find(nodes []*Node, id block.ID) []*Node {
	for _, n := range nodes {
		if n.Kind == KindBlock && n.ID == id {
			return []*Node{n}
		}
		if path := Find(n.Children, id); path != nil {
			return slices.Insert(path, 0, n)
		}
	}
	return nil
}

// Count returns the number of block nodes in the outline.
func Count(nodes []*Node) int {
	total := 0
	for _, n := range nodes {
		if n.Kind == KindBlock {
			total++
		}
		total += Count(n.Children)
	}
	return total
}

// Render writes the outline as an indented text list. Block nodes show their
// preview after the label when withPreview is set.
func Render(nodes []*Node, withPreview bool) string {
	return newWriter(nodes, withPreview, list.StyleConnectedLight).Render()
}

// RenderMarkdown writes the outline as a nested Markdown list.
func RenderMarkdown(nodes []*Node, withPreview bool) string {
	return newWriter(nodes, withPreview, list.StyleDefault).RenderMarkdown()
}

func newWriter(nodes []*Node, withPreview bool, style list.Style) list.Writer {
	l := list.NewWriter()
	l.SetStyle(style)
	appendNodes(l, nodes, withPreview)
	return l
}

func appendNodes(l list.Writer, nodes []*Node, withPreview bool) {
	for _, n := range nodes {
		l.AppendItem(label(n, withPreview))
		if len(n.Children) > 0 {
			l.Indent()
			appendNodes(l, n.Children, withPreview)
			l.UnIndent()
		}
	}
}

func label(n *Node, withPreview bool) string {
	if n.Kind != KindBlock || !withPreview || n.Preview == "" {
		return n.Label
	}
	return fmt.Sprintf("%s  %s", n.Label, n.Preview)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

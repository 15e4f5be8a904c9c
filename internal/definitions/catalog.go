package definitions

import (
	"time"

	"github.com/leapstack-labs/pyblocks/internal/nesting"
	"github.com/leapstack-labs/pyblocks/pkg/core"
)

// Catalog is an immutable snapshot of block definitions and nesting rules.
// A reload produces a new Catalog; existing snapshots are never modified.
type Catalog struct {
	defs       map[string]*core.BlockDefinition
	order      []string
	rules      *nesting.Rules
	generation uint64
	loadedAt   time.Time
}

// Category groups block types under a palette heading.
type Category struct {
	Name  string
	Types []string
}

// NewCatalog builds a catalog from definitions and rules. Later definitions
// with the same block type replace earlier ones but keep their position.
func NewCatalog(defs []*core.BlockDefinition, rules *nesting.Rules) *Catalog {
	c := &Catalog{
		defs:     make(map[string]*core.BlockDefinition, len(defs)),
		rules:    rules,
		loadedAt: time.Now(),
	}
	for _, def := range defs {
		if _, exists := c.defs[def.BlockType]; !exists {
			c.order = append(c.order, def.BlockType)
		}
		c.defs[def.BlockType] = def
	}
	if c.rules == nil {
		c.rules = nesting.New(nil)
	}
	return c
}

// Lookup returns the definition for blockType.
func (c *Catalog) Lookup(blockType string) (*core.BlockDefinition, bool) {
	def, ok := c.defs[blockType]
	return def, ok
}

// Types returns all block types in document order.
func (c *Catalog) Types() []string {
	return append([]string(nil), c.order...)
}

// Definitions returns all definitions in document order.
func (c *Catalog) Definitions() []*core.BlockDefinition {
	out := make([]*core.BlockDefinition, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.defs[t])
	}
	return out
}

// Categories groups block types by category, in order of first appearance.
// Types without a category are listed under "Other".
func (c *Catalog) Categories() []Category {
	var cats []Category
	index := make(map[string]int)
	for _, t := range c.order {
		name := c.defs[t].Category
		if name == "" {
			name = "Other"
		}
		i, ok := index[name]
		if !ok {
			i = len(cats)
			index[name] = i
			cats = append(cats, Category{Name: name})
		}
		cats[i].Types = append(cats[i].Types, t)
	}
	return cats
}

// Rules returns the nesting rules of this snapshot.
func (c *Catalog) Rules() *nesting.Rules {
	return c.rules
}

// Candidates lists the value-producing block types allowed in a slot, sorted.
func (c *Catalog) Candidates(parentType, inputName string) []string {
	types := make([]string, 0, len(c.order))
	for _, t := range c.order {
		if c.defs[t].OutputEnabled {
			types = append(types, t)
		}
	}
	return c.rules.Candidates(parentType, inputName, types)
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Generation counts reloads of the owning store; the first load is 1.
func (c *Catalog) Generation() uint64 {
	return c.generation
}

// LoadedAt returns when the snapshot was built.
func (c *Catalog) LoadedAt() time.Time {
	return c.loadedAt
}

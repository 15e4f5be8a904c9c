// Package block holds the in-memory program tree: typed block instances
// stored in a workspace arena and linked by ID.
//
// Each instance is owned by exactly one place: the top-level list, one input
// slot of another block, or one body (children or else) of another block.
// The owner is kept on the instance as a back-reference so detaching is
// cheap, but ownership itself is expressed only through IDs.
package block

import (
	"slices"

	"github.com/leapstack-labs/pyblocks/pkg/core"
)

// ID identifies an instance within one Workspace. IDs are never reused.
type ID uint64

// Point is a workspace coordinate. Only top-level blocks carry a meaningful one.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Direction is the reorder direction within a body.
type Direction int

// Direction constants.
const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// OwnerKind says where an instance lives.
type OwnerKind int

// OwnerKind constants.
const (
	OwnerNone     OwnerKind = iota // top-level
	OwnerSlot                      // an input slot of Owner.Parent
	OwnerChildren                  // the body of Owner.Parent
	OwnerElse                      // the else body of Owner.Parent
)

// Owner is the non-owning back-reference from an instance to its container.
type Owner struct {
	Kind   OwnerKind
	Parent ID
	Input  string // set for OwnerSlot
}

// SlotRef names one input slot of one instance.
type SlotRef struct {
	Parent ID
	Input  string
}

// InputValue is the content of an input: Literal or Nested.
type InputValue interface {
	inputValue()
}

// Literal is stored text, used verbatim during generation.
type Literal struct {
	Text string
}

// Nested is a slot occupied by another instance.
type Nested struct {
	Block ID
}

func (Literal) inputValue() {}
func (Nested) inputValue()  {}

// Instance is one placed block. Instances are read through accessors and
// modified only through Workspace methods.
type Instance struct {
	id       ID
	def      *core.BlockDefinition
	literals map[string]string
	nested   map[string]ID
	children []ID
	elses    []ID
	owner    Owner
	position Point
	topSeq   uint64

	direct     bool
	directCode string
}

func newInstance(id ID, def *core.BlockDefinition) *Instance {
	inst := &Instance{
		id:       id,
		def:      def,
		literals: make(map[string]string, len(def.Inputs)),
		nested:   make(map[string]ID),
	}
	for _, in := range def.Inputs {
		inst.literals[in.Name] = in.DefaultValue
	}
	return inst
}

// ID returns the instance's workspace ID.
func (i *Instance) ID() ID { return i.id }

// Type returns the block type.
func (i *Instance) Type() string { return i.def.BlockType }

// Definition returns the shared definition.
func (i *Instance) Definition() *core.BlockDefinition { return i.def }

// Owner returns where the instance currently lives.
func (i *Instance) Owner() Owner { return i.owner }

// InSlot reports whether the instance is nested in another block's slot.
func (i *Instance) InSlot() bool { return i.owner.Kind == OwnerSlot }

// TopLevel reports whether the instance is unowned.
func (i *Instance) TopLevel() bool { return i.owner.Kind == OwnerNone }

// Position returns the workspace coordinate.
func (i *Instance) Position() Point { return i.position }

// Value returns the effective content of the named input: the nested block
// when the slot is occupied, otherwise the stored literal.
func (i *Instance) Value(name string) InputValue {
	if id, ok := i.nested[name]; ok {
		return Nested{Block: id}
	}
	return Literal{Text: i.literals[name]}
}

// Literal returns the stored text of an input, ignoring any nested block.
func (i *Instance) Literal(name string) string { return i.literals[name] }

// NestedIn returns the block held by the named slot.
func (i *Instance) NestedIn(name string) (ID, bool) {
	id, ok := i.nested[name]
	return id, ok
}

// Children returns a copy of the body.
func (i *Instance) Children() []ID { return slices.Clone(i.children) }

// ElseBlocks returns a copy of the else body.
func (i *Instance) ElseBlocks() []ID { return slices.Clone(i.elses) }

// DirectCode returns the raw code and whether the block is in direct code state.
func (i *Instance) DirectCode() (string, bool) { return i.directCode, i.direct }

func (i *Instance) body(isElse bool) *[]ID {
	if isElse {
		return &i.elses
	}
	return &i.children
}

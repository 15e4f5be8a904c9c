package block

import (
	"fmt"
	"slices"
	"sort"

	"github.com/leapstack-labs/pyblocks/pkg/core"
)

// Definitions resolves block types to definitions.
type Definitions interface {
	Lookup(blockType string) (*core.BlockDefinition, bool)
}

// Validator decides whether childType may occupy a parent's input slot.
type Validator interface {
	IsAllowed(parentType, inputName, childType string) bool
}

// Workspace is the arena that owns every instance of one program.
// It is not safe for concurrent use.
type Workspace struct {
	defs      Definitions
	validator Validator

	blocks   map[ID]*Instance
	top      []ID
	nextID   ID
	nextSeq  uint64
	revision uint64
	dirty    bool
}

// NewWorkspace creates an empty workspace. A nil validator permits all nesting.
func NewWorkspace(defs Definitions, validator Validator) *Workspace {
	return &Workspace{
		defs:      defs,
		validator: validator,
		blocks:    make(map[ID]*Instance),
		nextID:    1,
	}
}

// Definitions returns the lookup the workspace was built with.
func (w *Workspace) Definitions() Definitions { return w.defs }

// Get returns the instance with the given ID.
func (w *Workspace) Get(id ID) (*Instance, bool) {
	inst, ok := w.blocks[id]
	return inst, ok
}

// Len returns the number of instances in the arena.
func (w *Workspace) Len() int { return len(w.blocks) }

// Dirty reports whether the tree changed since the last MarkClean.
func (w *Workspace) Dirty() bool { return w.dirty }

// MarkClean clears the dirty flag, typically after a save.
func (w *Workspace) MarkClean() { w.dirty = false }

// Revision increases on every successful mutation.
func (w *Workspace) Revision() uint64 { return w.revision }

// TopLevel returns the top-level blocks in display order: by y, then x, then
// the order in which they became top-level.
func (w *Workspace) TopLevel() []ID {
	out := slices.Clone(w.top)
	sort.SliceStable(out, func(a, b int) bool {
		ia, ib := w.blocks[out[a]], w.blocks[out[b]]
		if ia.position.Y != ib.position.Y {
			return ia.position.Y < ib.position.Y
		}
		if ia.position.X != ib.position.X {
			return ia.position.X < ib.position.X
		}
		return ia.topSeq < ib.topSeq
	})
	return out
}

// Place creates a top-level instance of blockType with default input values.
func (w *Workspace) Place(blockType string, pos Point) (ID, error) {
	def, ok := w.defs.Lookup(blockType)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBlockType, blockType)
	}
	inst := newInstance(w.nextID, def)
	w.nextID++
	w.blocks[inst.id] = inst
	w.makeTopLevel(inst, pos)
	w.touch()
	return inst.id, nil
}

// Attach moves child into the target slot. A block already in the slot is
// promoted to top-level at the position of the parent's root block.
func (w *Workspace) Attach(child ID, target SlotRef) error {
	c, err := w.lookup(child)
	if err != nil {
		return err
	}
	p, err := w.lookup(target.Parent)
	if err != nil {
		return err
	}

	reject := func(reason string) error {
		return &IncompatibleTypeError{
			ParentType: p.Type(),
			Input:      target.Input,
			ChildType:  c.Type(),
			Reason:     reason,
		}
	}

	spec, ok := p.def.Input(target.Input)
	switch {
	case !ok:
		return reject("no such input")
	case spec.Kind != core.InputSlot:
		return reject("input is not a slot")
	case c.Type() == p.Type():
		return reject("a block cannot be nested in a block of the same type")
	case w.validator != nil && !w.validator.IsAllowed(p.Type(), target.Input, c.Type()):
		return reject("not allowed by nesting rules")
	case w.isAncestorOrSelf(child, target.Parent):
		return reject("the block would contain itself")
	}

	if cur, ok := p.nested[target.Input]; ok {
		if cur == child {
			return nil
		}
		occupant := w.blocks[cur]
		w.unlink(occupant)
		w.makeTopLevel(occupant, w.rootPosition(p))
	}

	w.unlink(c)
	p.nested[target.Input] = child
	c.owner = Owner{Kind: OwnerSlot, Parent: p.id, Input: target.Input}
	w.touch()
	return nil
}

// Detach promotes child to top-level at pos. It is a no-op for a block that
// is already top-level.
func (w *Workspace) Detach(child ID, pos Point) error {
	c, err := w.lookup(child)
	if err != nil {
		return err
	}
	if c.TopLevel() {
		return nil
	}
	w.unlink(c)
	w.makeTopLevel(c, pos)
	w.touch()
	return nil
}

// AppendChild moves child to the end of parent's body, or else body when
// isElse is set.
func (w *Workspace) AppendChild(parent, child ID, isElse bool) error {
	p, err := w.lookup(parent)
	if err != nil {
		return err
	}
	c, err := w.lookup(child)
	if err != nil {
		return err
	}

	if (!isElse && !p.def.HasChildren) || (isElse && !p.def.HasElseChildren) {
		return &NotAContainerError{BlockType: p.Type(), Else: isElse}
	}
	if w.isAncestorOrSelf(child, parent) {
		return &IncompatibleTypeError{
			ParentType: p.Type(),
			Input:      bodyName(isElse),
			ChildType:  c.Type(),
			Reason:     "the block would contain itself",
		}
	}

	w.unlink(c)
	body := p.body(isElse)
	*body = append(*body, child)
	kind := OwnerChildren
	if isElse {
		kind = OwnerElse
	}
	c.owner = Owner{Kind: kind, Parent: parent}
	w.touch()
	return nil
}

// Reorder swaps child with its neighbour in whichever body of parent holds
// it. Moving the first block up or the last block down does nothing.
func (w *Workspace) Reorder(parent, child ID, dir Direction) error {
	p, err := w.lookup(parent)
	if err != nil {
		return err
	}
	c, err := w.lookup(child)
	if err != nil {
		return err
	}
	if c.owner.Parent != parent || (c.owner.Kind != OwnerChildren && c.owner.Kind != OwnerElse) {
		return fmt.Errorf("%w: %d in %d", ErrNotChild, child, parent)
	}

	body := *p.body(c.owner.Kind == OwnerElse)
	i := slices.Index(body, child)
	j := i - 1
	if dir == Down {
		j = i + 1
	}
	if j < 0 || j >= len(body) {
		return nil
	}
	body[i], body[j] = body[j], body[i]
	w.touch()
	return nil
}

// Remove detaches id from its owner and discards it with its whole subtree.
func (w *Workspace) Remove(id ID) error {
	inst, err := w.lookup(id)
	if err != nil {
		return err
	}
	w.unlink(inst)
	w.discard(inst)
	w.touch()
	return nil
}

// SetInput stores text as the literal value of an input. For a slot holding
// a nested block the block stays and text becomes the fallback.
func (w *Workspace) SetInput(id ID, name, text string) error {
	inst, err := w.lookup(id)
	if err != nil {
		return err
	}
	spec, ok := inst.def.Input(name)
	if !ok {
		return &InvalidInputError{BlockType: inst.Type(), Input: name, Reason: "no such input"}
	}
	if !spec.AllowsValue(text) {
		return &InvalidInputError{BlockType: inst.Type(), Input: name, Value: text, Reason: "value is not one of the choices"}
	}
	if inst.literals[name] == text {
		return nil
	}
	inst.literals[name] = text
	w.touch()
	return nil
}

// SetDirectCode switches the block to direct code state with the given raw code.
func (w *Workspace) SetDirectCode(id ID, code string) error {
	inst, err := w.lookup(id)
	if err != nil {
		return err
	}
	if !inst.def.DirectCodeEnabled {
		return fmt.Errorf("%w: %q", ErrDirectCodeDisabled, inst.Type())
	}
	inst.direct = true
	inst.directCode = code
	w.touch()
	return nil
}

// ClearDirectCode returns the block to template generation.
func (w *Workspace) ClearDirectCode(id ID) error {
	inst, err := w.lookup(id)
	if err != nil {
		return err
	}
	if !inst.direct {
		return nil
	}
	inst.direct = false
	inst.directCode = ""
	w.touch()
	return nil
}

// Move sets the position of a top-level block.
func (w *Workspace) Move(id ID, pos Point) error {
	inst, err := w.lookup(id)
	if err != nil {
		return err
	}
	if !inst.TopLevel() {
		return fmt.Errorf("%w: %d", ErrNotTopLevel, id)
	}
	if inst.position == pos {
		return nil
	}
	inst.position = pos
	w.touch()
	return nil
}

// Clone deep-copies the subtree rooted at id into a new top-level block at pos.
func (w *Workspace) Clone(id ID, pos Point) (ID, error) {
	src, err := w.lookup(id)
	if err != nil {
		return 0, err
	}
	cp := w.copySubtree(src)
	w.makeTopLevel(cp, pos)
	w.touch()
	return cp.id, nil
}

// Clear removes every block.
func (w *Workspace) Clear() {
	if len(w.blocks) == 0 {
		return
	}
	w.blocks = make(map[ID]*Instance)
	w.top = nil
	w.touch()
}

// Ancestors returns the chain of owners from the direct parent up to the root.
func (w *Workspace) Ancestors(id ID) []ID {
	var out []ID
	inst, ok := w.blocks[id]
	for ok && !inst.TopLevel() {
		out = append(out, inst.owner.Parent)
		inst, ok = w.blocks[inst.owner.Parent]
	}
	return out
}

// Root returns the top-level block whose subtree contains id.
func (w *Workspace) Root(id ID) (ID, error) {
	if _, err := w.lookup(id); err != nil {
		return 0, err
	}
	if anc := w.Ancestors(id); len(anc) > 0 {
		return anc[len(anc)-1], nil
	}
	return id, nil
}

func (w *Workspace) lookup(id ID) (*Instance, error) {
	inst, ok := w.blocks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return inst, nil
}

func (w *Workspace) touch() {
	w.revision++
	w.dirty = true
}

func (w *Workspace) makeTopLevel(inst *Instance, pos Point) {
	inst.owner = Owner{}
	inst.position = pos
	inst.topSeq = w.nextSeq
	w.nextSeq++
	w.top = append(w.top, inst.id)
}

// unlink removes inst from its current owner without placing it anywhere.
func (w *Workspace) unlink(inst *Instance) {
	switch inst.owner.Kind {
	case OwnerNone:
		w.top = slices.DeleteFunc(w.top, func(id ID) bool { return id == inst.id })
	case OwnerSlot:
		if p, ok := w.blocks[inst.owner.Parent]; ok {
			delete(p.nested, inst.owner.Input)
		}
	case OwnerChildren, OwnerElse:
		if p, ok := w.blocks[inst.owner.Parent]; ok {
			body := p.body(inst.owner.Kind == OwnerElse)
			*body = slices.DeleteFunc(*body, func(id ID) bool { return id == inst.id })
		}
	}
	inst.owner = Owner{}
}

func (w *Workspace) discard(inst *Instance) {
	for _, id := range inst.nested {
		if c, ok := w.blocks[id]; ok {
			w.discard(c)
		}
	}
	for _, id := range slices.Concat(inst.children, inst.elses) {
		if c, ok := w.blocks[id]; ok {
			w.discard(c)
		}
	}
	delete(w.blocks, inst.id)
}

// isAncestorOrSelf reports whether a is b or one of b's owners.
func (w *Workspace) isAncestorOrSelf(a, b ID) bool {
	if a == b {
		return true
	}
	return slices.Contains(w.Ancestors(b), a)
}

func (w *Workspace) rootPosition(inst *Instance) Point {
	if anc := w.Ancestors(inst.id); len(anc) > 0 {
		return w.blocks[anc[len(anc)-1]].position
	}
	return inst.position
}

func (w *Workspace) copySubtree(src *Instance) *Instance {
	cp := newInstance(w.nextID, src.def)
	w.nextID++
	w.blocks[cp.id] = cp

	for k, v := range src.literals {
		cp.literals[k] = v
	}
	cp.direct = src.direct
	cp.directCode = src.directCode

	for input, id := range src.nested {
		c := w.copySubtree(w.blocks[id])
		cp.nested[input] = c.id
		c.owner = Owner{Kind: OwnerSlot, Parent: cp.id, Input: input}
	}
	for _, id := range src.children {
		c := w.copySubtree(w.blocks[id])
		cp.children = append(cp.children, c.id)
		c.owner = Owner{Kind: OwnerChildren, Parent: cp.id}
	}
	for _, id := range src.elses {
		c := w.copySubtree(w.blocks[id])
		cp.elses = append(cp.elses, c.id)
		c.owner = Owner{Kind: OwnerElse, Parent: cp.id}
	}
	return cp
}

func bodyName(isElse bool) string {
	if isElse {
		return "else"
	}
	return "body"
}

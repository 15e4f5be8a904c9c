package project

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/leapstack-labs/pyblocks/internal/block"
)

// ErrVersionMismatch is attached to the warning emitted when a document was
// written by a different version.
var ErrVersionMismatch = errors.New("project version differs from application version")

// ToDocument serializes every top-level block of ws in display order.
func ToDocument(ws *block.Workspace, version string) *Document {
	doc := &Document{
		Version:   version,
		Timestamp: float64(time.Now().UnixMilli()) / 1000,
		Workspace: Workspace{Blocks: []Block{}},
	}
	for _, id := range ws.TopLevel() {
		inst, _ := ws.Get(id)
		b := encodeBlock(ws, inst)
		pos := inst.Position()
		b.Position = &pos
		doc.Workspace.Blocks = append(doc.Workspace.Blocks, b)
	}
	return doc
}

func encodeBlock(ws *block.Workspace, inst *block.Instance) Block {
	def := inst.Definition()
	b := Block{
		BlockType: inst.Type(),
		Inputs:    make(map[string]Input, len(def.Inputs)),
	}

	for _, spec := range def.Inputs {
		in := Input{Kind: KindValue, Value: inst.Literal(spec.Name)}
		if nestedID, ok := inst.NestedIn(spec.Name); ok {
			if nested, ok := ws.Get(nestedID); ok {
				nb := encodeBlock(ws, nested)
				in.Kind = KindSlot
				in.NestedBlock = &nb
			}
		}
		b.Inputs[spec.Name] = in
	}

	for _, id := range inst.Children() {
		if c, ok := ws.Get(id); ok {
			b.ChildBlocks = append(b.ChildBlocks, encodeBlock(ws, c))
		}
	}
	for _, id := range inst.ElseBlocks() {
		if c, ok := ws.Get(id); ok {
			b.ElseBlocks = append(b.ElseBlocks, encodeBlock(ws, c))
		}
	}
	if code, direct := inst.DirectCode(); direct {
		b.DirectCode = &code
	}
	return b
}

// LoadOptions configures FromDocument.
type LoadOptions struct {
	// Version is the application version; a different document version
	// produces a warning.
	Version string
	Logger  *slog.Logger
}

// LoadResult describes the outcome of FromDocument.
type LoadResult struct {
	// TopLevel lists the restored top-level blocks in document order.
	TopLevel []block.ID
	Blocks   int
	Warnings []*DeserializationError
}

// FromDocument replaces the contents of ws with the blocks in doc. Blocks
// and inputs that cannot be restored are skipped and reported in Warnings;
// the rest of the document still loads. The workspace is left clean.
func FromDocument(doc *Document, ws *block.Workspace, opts LoadOptions) (*LoadResult, error) {
	if doc == nil {
		return nil, errors.New("nil project document")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	l := &loader{ws: ws, logger: logger, result: &LoadResult{}}

	if opts.Version != "" && doc.Version != opts.Version {
		logger.Warn("loading project written by a different version",
			slog.String("file_version", doc.Version),
			slog.String("app_version", opts.Version))
		l.warn("version", "", fmt.Errorf("%w: %q vs %q", ErrVersionMismatch, doc.Version, opts.Version))
	}

	ws.Clear()
	for i, b := range doc.Workspace.Blocks {
		var pos block.Point
		if b.Position != nil {
			pos = *b.Position
		}
		if id, ok := l.load(b, pos, fmt.Sprintf("blocks[%d]", i)); ok {
			l.result.TopLevel = append(l.result.TopLevel, id)
		}
	}
	ws.MarkClean()
	return l.result, nil
}

type loader struct {
	ws     *block.Workspace
	logger *slog.Logger
	result *LoadResult
}

func (l *loader) warn(path, blockType string, err error) {
	derr := &DeserializationError{Path: path, BlockType: blockType, Err: err}
	l.logger.Warn("skipping part of project", slog.String("error", derr.Error()))
	l.result.Warnings = append(l.result.Warnings, derr)
}

// load restores b and its subtree as a top-level block at pos.
func (l *loader) load(b Block, pos block.Point, path string) (block.ID, bool) {
	if b.err != nil {
		l.warn(path, b.BlockType, b.err)
		return 0, false
	}
	id, err := l.ws.Place(b.BlockType, pos)
	if err != nil {
		l.warn(path, b.BlockType, err)
		return 0, false
	}
	l.result.Blocks++

	if b.DirectCode != nil {
		if err := l.ws.SetDirectCode(id, *b.DirectCode); err != nil {
			l.warn(path+".direct_code", b.BlockType, err)
		}
	}

	names := make([]string, 0, len(b.Inputs))
	for name := range b.Inputs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		l.loadInput(id, b, name, b.Inputs[name], path+".inputs."+name)
	}

	l.loadBody(id, b.ChildBlocks, false, path+".child_blocks")
	l.loadBody(id, b.ElseBlocks, true, path+".else_blocks")
	return id, true
}

func (l *loader) loadInput(id block.ID, b Block, name string, in Input, path string) {
	if in.err != nil {
		l.warn(path, b.BlockType, in.err)
		return
	}
	switch in.Kind {
	case KindValue, KindSlot:
	default:
		l.warn(path, b.BlockType, fmt.Errorf("unknown input kind %q", in.Kind))
		return
	}

	if in.Kind == KindValue || in.Value != "" || in.hasValue {
		if err := l.ws.SetInput(id, name, in.Value); err != nil {
			l.warn(path, b.BlockType, err)
			return
		}
	}

	if in.NestedBlock == nil {
		return
	}
	nestedPath := path + ".nested_block"
	childID, ok := l.load(*in.NestedBlock, block.Point{}, nestedPath)
	if !ok {
		return
	}
	if err := l.ws.Attach(childID, block.SlotRef{Parent: id, Input: name}); err != nil {
		l.warn(nestedPath, in.NestedBlock.BlockType, err)
		l.discard(childID)
	}
}

func (l *loader) loadBody(parent block.ID, body []Block, isElse bool, path string) {
	for i, cb := range body {
		childPath := fmt.Sprintf("%s[%d]", path, i)
		childID, ok := l.load(cb, block.Point{}, childPath)
		if !ok {
			continue
		}
		if err := l.ws.AppendChild(parent, childID, isElse); err != nil {
			l.warn(childPath, cb.BlockType, err)
			l.discard(childID)
		}
	}
}

// discard drops a subtree that was restored but could not be linked.
func (l *loader) discard(id block.ID) {
	before := l.ws.Len()
	_ = l.ws.Remove(id)
	l.result.Blocks -= before - l.ws.Len()
}

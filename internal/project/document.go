// Package project converts a block workspace to and from the project file
// format and reads and writes project files.
//
// A project file looks like:
//
//	{
//	  "version": "1.0.0",
//	  "timestamp": 1718000000.5,
//	  "workspace": {"blocks": [
//	    {"block_type": "Print", "position": {"x": 20, "y": 40},
//	     "inputs": {"message": {"kind": "slot", "value": "Hello World",
//	                            "nested_block": {"block_type": "StringValue", ...}}}}
//	  ]}
//	}
package project

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leapstack-labs/pyblocks/internal/block"
)

// Input kinds in a project file.
const (
	KindValue = "value"
	KindSlot  = "slot"
)

// Document is the root of a project file.
type Document struct {
	Version   string    `json:"version"`
	Timestamp float64   `json:"timestamp"`
	Workspace Workspace `json:"workspace"`
}

// Workspace holds the top-level blocks of a document.
type Workspace struct {
	Blocks []Block `json:"blocks"`
}

// ErrMalformed marks a block or input whose JSON does not have the expected
// shape. Decoding records it on the entry and the loader skips that entry.
var ErrMalformed = errors.New("malformed project entry")

// Block is one serialized instance with its subtree.
type Block struct {
	BlockType   string           `json:"block_type"`
	Position    *block.Point     `json:"position,omitempty"`
	Inputs      map[string]Input `json:"inputs"`
	ChildBlocks []Block          `json:"child_blocks,omitempty"`
	ElseBlocks  []Block          `json:"else_blocks,omitempty"`
	DirectCode  *string          `json:"direct_code,omitempty"`

	err error
}

// Err returns the decoding failure recorded for this block, if any.
func (b *Block) Err() error { return b.err }

// Input is one serialized input. Kind is "value" for stored text and "slot"
// for a slot holding a nested block; Value carries the literal in both cases.
type Input struct {
	Kind        string `json:"kind"`
	Value       string `json:"value"`
	NestedBlock *Block `json:"nested_block,omitempty"`

	hasValue bool
	err      error
}

// Err returns the decoding failure recorded for this input, if any.
func (in *Input) Err() error { return in.err }

// UnmarshalJSON decodes field by field so that one bad block does not fail
// the document. "type" is accepted as an older spelling of "block_type".
// It never returns an error; failures are kept in Err.
func (b *Block) UnmarshalJSON(data []byte) error {
	*b = Block{}
	fields, err := decodeObject(data, "block")
	if err != nil {
		b.err = err
		return nil
	}
	b.err = b.decodeFields(fields)
	return nil
}

func (b *Block) decodeFields(fields map[string]json.RawMessage) error {
	if err := decodeField(fields, "block_type", &b.BlockType); err != nil {
		return err
	}
	if b.BlockType == "" {
		if err := decodeField(fields, "type", &b.BlockType); err != nil {
			return err
		}
	}
	if err := decodeField(fields, "position", &b.Position); err != nil {
		return err
	}
	if err := decodeField(fields, "direct_code", &b.DirectCode); err != nil {
		return err
	}
	if err := decodeField(fields, "inputs", &b.Inputs); err != nil {
		return err
	}
	if err := decodeField(fields, "child_blocks", &b.ChildBlocks); err != nil {
		return err
	}
	return decodeField(fields, "else_blocks", &b.ElseBlocks)
}

// UnmarshalJSON accepts "type" as an older spelling of "kind". Like
// Block.UnmarshalJSON it keeps failures in Err instead of returning them.
func (in *Input) UnmarshalJSON(data []byte) error {
	*in = Input{}
	fields, err := decodeObject(data, "input")
	if err != nil {
		in.err = err
		return nil
	}
	in.err = in.decodeFields(fields)
	return nil
}

func (in *Input) decodeFields(fields map[string]json.RawMessage) error {
	if err := decodeField(fields, "kind", &in.Kind); err != nil {
		return err
	}
	if in.Kind == "" {
		if err := decodeField(fields, "type", &in.Kind); err != nil {
			return err
		}
	}
	if in.Kind == "" {
		in.Kind = KindValue
	}
	var value *string
	if err := decodeField(fields, "value", &value); err != nil {
		return err
	}
	if value != nil {
		in.Value = *value
		in.hasValue = true
	}
	return decodeField(fields, "nested_block", &in.NestedBlock)
}

func decodeObject(data []byte, what string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: %s is not a JSON object", ErrMalformed, what)
	}
	return fields, nil
}

func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrMalformed, name, err)
	}
	return nil
}

// UnmarshalJSON also accepts the bare {"blocks": [...]} layout written by
// early versions, without the workspace wrapper.
func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	var raw struct {
		plain
		Blocks []Block `json:"blocks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Document(raw.plain)
	if len(d.Workspace.Blocks) == 0 && len(raw.Blocks) > 0 {
		d.Workspace.Blocks = raw.Blocks
	}
	return nil
}

// Decode parses a project document.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode renders a document as indented JSON.
func Encode(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

package block

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Workspace operations.
var (
	ErrUnknownBlockType   = errors.New("unknown block type")
	ErrNotFound           = errors.New("block not found")
	ErrNotChild           = errors.New("block is not in the parent's body")
	ErrNotTopLevel        = errors.New("block is not top-level")
	ErrDirectCodeDisabled = errors.New("direct code is not enabled for this block type")
)

// IncompatibleTypeError reports a rejected slot attachment. The workspace is
// unchanged when it is returned.
type IncompatibleTypeError struct {
	ParentType string
	Input      string
	ChildType  string
	Reason     string
}

func (e *IncompatibleTypeError) Error() string {
	return fmt.Sprintf("cannot place %q into %s.%s: %s", e.ChildType, e.ParentType, e.Input, e.Reason)
}

// NotAContainerError reports an append to a block without the matching body.
type NotAContainerError struct {
	BlockType string
	Else      bool
}

func (e *NotAContainerError) Error() string {
	if e.Else {
		return fmt.Sprintf("block %q has no else body", e.BlockType)
	}
	return fmt.Sprintf("block %q has no body", e.BlockType)
}

// InvalidInputError reports an input edit that the definition does not allow.
type InvalidInputError struct {
	BlockType string
	Input     string
	Value     string
	Reason    string
}

func (e *InvalidInputError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("input %s.%s: %s (got %q)", e.BlockType, e.Input, e.Reason, e.Value)
	}
	return fmt.Sprintf("input %s.%s: %s", e.BlockType, e.Input, e.Reason)
}

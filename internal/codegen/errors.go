package codegen

import (
	"errors"
	"fmt"
)

// ErrDepthExceeded is reported when nesting is deeper than the generator allows.
var ErrDepthExceeded = errors.New("maximum nesting depth exceeded")

// GenerationError describes a failure while producing one block or one of
// its inputs. It never escapes Generate: it is rendered as a marker in the
// output instead.
type GenerationError struct {
	BlockType string
	Input     string // empty when the block's own template failed
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("%s.%s: %v", e.BlockType, e.Input, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.BlockType, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// inputMarker is substituted for an input value that could not be produced.
func inputMarker(err error) string {
	return fmt.Sprintf("<error: %v>", err)
}

// blockMarker replaces the statement line of a block whose template failed.
func blockMarker(blockType string, err error) string {
	return fmt.Sprintf("# Error in %s: %v", blockType, err)
}

package project

import "fmt"

// DeserializationError describes one block or input that could not be
// restored. Loading continues past it.
type DeserializationError struct {
	Path      string // e.g. blocks[2].child_blocks[0].inputs.message
	BlockType string
	Err       error
}

func (e *DeserializationError) Error() string {
	if e.BlockType != "" {
		return fmt.Sprintf("%s (%s): %v", e.Path, e.BlockType, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// FileIOError reports a failed project read or write. When returned from
// Save the destination file is unchanged.
type FileIOError struct {
	Op   string // "read" or "write"
	Path string
	Err  error
}

func (e *FileIOError) Error() string {
	return fmt.Sprintf("failed to %s project %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileIOError) Unwrap() error {
	return e.Err
}

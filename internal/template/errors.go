package template

import "fmt"

// Error is the base interface for all template errors.
type Error interface {
	error
	Position() Position
}

// baseError provides common error functionality.
type baseError struct {
	pos Position
	msg string
}

func (e *baseError) Position() Position { return e.pos }
func (e *baseError) Error() string {
	if e.pos.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.pos.File, e.pos.Line, e.pos.Column, e.msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
}

// LexError represents a malformed template (unbalanced braces, empty placeholder).
type LexError struct {
	baseError
}

// NewLexError creates a new lexer error.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{baseError: baseError{pos: pos, msg: msg}}
}

// TemplateResolutionError reports a placeholder with no value in the mapping.
// It is informational: the placeholder renders as the empty string.
type TemplateResolutionError struct {
	baseError
	Name string
}

// NewTemplateResolutionError creates a resolution error for the named placeholder.
func NewTemplateResolutionError(pos Position, name string) *TemplateResolutionError {
	return &TemplateResolutionError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("no value for placeholder %q", name)},
		Name:      name,
	}
}

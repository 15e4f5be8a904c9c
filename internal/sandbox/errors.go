package sandbox

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Run.
var (
	ErrTimeout   = errors.New("execution timed out")
	ErrStepLimit = errors.New("execution step budget exhausted")
)

// ExecutionError reports a syntax or runtime error in the executed program.
// Line and Column are 1-based and zero when unknown.
type ExecutionError struct {
	Kind      string // "syntax" or "runtime"
	Line      int
	Column    int
	Msg       string
	Backtrace string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s error at line %d, column %d: %s", e.Kind, e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

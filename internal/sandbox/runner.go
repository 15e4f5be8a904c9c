// Package sandbox runs generated programs as Starlark, a Python dialect,
// under a wall-clock timeout and an execution step budget. Output from print
// is captured instead of written to the process streams.
package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Defaults applied to zero Options fields.
const (
	DefaultTimeout        = 5 * time.Second
	DefaultMaxOutputLines = 500
	DefaultMaxSteps       = 10_000_000
)

// Options configures a Runner.
type Options struct {
	Timeout        time.Duration
	MaxOutputLines int
	MaxSteps       uint64
	Logger         *slog.Logger
}

// Result is what an execution produced. On failure it holds everything
// collected up to the point of failure.
type Result struct {
	Output    []string      `json:"output"`
	Truncated bool          `json:"truncated,omitempty"`
	Variables []Variable    `json:"variables"`
	Steps     uint64        `json:"steps"`
	Duration  time.Duration `json:"duration"`
}

// Text returns the captured output joined by newlines.
func (r *Result) Text() string {
	if len(r.Output) == 0 {
		return ""
	}
	return strings.Join(r.Output, "\n") + "\n"
}

// Runner executes programs. It is safe for concurrent use; every Run gets
// its own thread.
type Runner struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxOutputLines <= 0 {
		opts.MaxOutputLines = DefaultMaxOutputLines
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{opts: opts, logger: logger}
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Run executes code. The returned Result is never nil. The error is an
// *ExecutionError, ErrTimeout, ErrStepLimit, or the context's error when ctx
// was cancelled.
func (r *Runner) Run(ctx context.Context, code string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	out := &outputBuffer{max: r.opts.MaxOutputLines}
	thread := &starlark.Thread{
		Name: "sandbox",
		Print: func(_ *starlark.Thread, msg string) {
			out.add(msg)
		},
	}
	thread.SetMaxExecutionSteps(r.opts.MaxSteps)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	start := time.Now()
	globals, err := starlark.ExecFileOptions(fileOptions, thread, "<program>", code, predeclared())
	res := &Result{
		Variables: collectVariables(globals),
		Steps:     thread.ExecutionSteps(),
		Duration:  time.Since(start),
	}
	res.Output, res.Truncated = out.lines()

	if err == nil {
		r.logger.Debug("program finished",
			slog.Int("lines", len(res.Output)),
			slog.Uint64("steps", res.Steps),
			slog.Duration("duration", res.Duration))
		return res, nil
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = ErrTimeout
	case ctx.Err() != nil:
		err = ctx.Err()
	case res.Steps >= r.opts.MaxSteps:
		err = ErrStepLimit
	default:
		err = toExecutionError(err)
	}
	r.logger.Debug("program failed", slog.String("error", err.Error()))
	return res, err
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"input": starlark.NewBuiltin("input", mockInput),
	}
}

// mockInput returns its prompt so programs never block waiting for stdin.
func mockInput(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prompt starlark.Value = starlark.String("")
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0, &prompt); err != nil {
		return nil, err
	}
	if s, ok := starlark.AsString(prompt); ok {
		return starlark.String(s), nil
	}
	return starlark.String(prompt.String()), nil
}

func toExecutionError(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		e := &ExecutionError{Kind: "runtime", Msg: evalErr.Msg, Backtrace: evalErr.Backtrace(), Err: err}
		for i := 0; i < len(evalErr.CallStack); i++ {
			if pos := evalErr.CallStack.At(i).Pos; pos.IsValid() {
				e.Line, e.Column = int(pos.Line), int(pos.Col)
				break
			}
		}
		return e
	}

	var synErr syntax.Error
	if errors.As(err, &synErr) {
		return &ExecutionError{Kind: "syntax", Line: int(synErr.Pos.Line), Column: int(synErr.Pos.Col), Msg: synErr.Msg, Err: err}
	}

	var resolveErrs resolve.ErrorList
	if errors.As(err, &resolveErrs) && len(resolveErrs) > 0 {
		first := resolveErrs[0]
		return &ExecutionError{Kind: "syntax", Line: int(first.Pos.Line), Column: int(first.Pos.Col), Msg: first.Msg, Err: err}
	}

	return &ExecutionError{Kind: "runtime", Msg: err.Error(), Err: err}
}

// outputBuffer collects printed lines up to a limit.
type outputBuffer struct {
	mu        sync.Mutex
	max       int
	buf       []string
	truncated bool
}

func (o *outputBuffer) add(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, line := range strings.Split(msg, "\n") {
		if len(o.buf) >= o.max {
			o.truncated = true
			return
		}
		o.buf = append(o.buf, line)
	}
}

func (o *outputBuffer) lines() ([]string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.buf...), o.truncated
}

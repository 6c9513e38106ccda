package compiler

import (
	"fmt"

	"github.com/chazu/ifa/pkg/ast"
)

// Error reports a structurally malformed program. Type and name errors are
// left to the VM.
type Error struct {
	Span ast.Span
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if e.Span.Line > 0 {
		return fmt.Sprintf("compile error at line %d:%d: %s", e.Span.Line, e.Span.Column, msg)
	}
	return "compile error: " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

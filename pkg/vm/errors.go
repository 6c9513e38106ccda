package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/ifa/pkg/bytecode"
)

// ErrorKind classifies VM failures.
type ErrorKind int

const (
	KindStackUnderflow ErrorKind = iota + 1
	KindStackOverflow
	KindArityMismatch
	KindTypeError
	KindDivisionByZero
	KindIndexOutOfBounds
	KindNoRegistry
	KindRegistry
	KindMalformedBytecode
	KindAssertionFailed
	KindMemoryLimitExceeded
	KindIO
	KindCancelled
	KindBudgetExceeded
)

var kindNames = map[ErrorKind]string{
	KindStackUnderflow:      "stack underflow",
	KindStackOverflow:       "stack overflow",
	KindArityMismatch:       "arity mismatch",
	KindTypeError:           "type error",
	KindDivisionByZero:      "division by zero",
	KindIndexOutOfBounds:    "index out of bounds",
	KindNoRegistry:          "no registry",
	KindRegistry:            "registry call failed",
	KindMalformedBytecode:   "malformed bytecode",
	KindAssertionFailed:     "assertion failed",
	KindMemoryLimitExceeded: "opon memory limit exceeded",
	KindIO:                  "i/o error",
	KindCancelled:           "cancelled",
	KindBudgetExceeded:      "step budget exceeded",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the single error type returned by Execute.
type Error struct {
	Kind ErrorKind
	Op   bytecode.Opcode // instruction that failed
	IP   int             // offset of that instruction
	Line int             // source line, 0 when unknown
	Msg  string

	// Expected and Got are set for KindArityMismatch.
	Expected int
	Got      int

	Err error // underlying cause, if any
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrStackUnderflow      = &Error{Kind: KindStackUnderflow}
	ErrStackOverflow       = &Error{Kind: KindStackOverflow}
	ErrArityMismatch       = &Error{Kind: KindArityMismatch}
	ErrTypeError           = &Error{Kind: KindTypeError}
	ErrDivisionByZero      = &Error{Kind: KindDivisionByZero}
	ErrIndexOutOfBounds    = &Error{Kind: KindIndexOutOfBounds}
	ErrNoRegistry          = &Error{Kind: KindNoRegistry}
	ErrRegistry            = &Error{Kind: KindRegistry}
	ErrMalformedBytecode   = &Error{Kind: KindMalformedBytecode}
	ErrAssertionFailed     = &Error{Kind: KindAssertionFailed}
	ErrMemoryLimitExceeded = &Error{Kind: KindMemoryLimitExceeded}
	ErrIO                  = &Error{Kind: KindIO}
	ErrCancelled           = &Error{Kind: KindCancelled}
	ErrBudgetExceeded      = &Error{Kind: KindBudgetExceeded}
)

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("vm: ")
	sb.WriteString(e.Kind.String())
	fmt.Fprintf(&sb, " at %04X (%s)", e.IP, e.Op)
	if e.Line > 0 {
		fmt.Fprintf(&sb, " line %d", e.Line)
	}
	if e.Kind == KindArityMismatch {
		fmt.Fprintf(&sb, ": expected %d arguments, got %d", e.Expected, e.Got)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

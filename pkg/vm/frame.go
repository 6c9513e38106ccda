package vm

import (
	"github.com/chazu/ifa/pkg/bytecode"
	"github.com/chazu/ifa/pkg/value"
)

// CallFrame is the bookkeeping for one active bytecode function call.
// BasePtr is the lowest stack index owned by the frame; Return truncates
// the stack back to it.
type CallFrame struct {
	ReturnAddr int
	BasePtr    int
	LocalCount int
	Function   *value.Function

	caller *unit // artifact to resume on return
}

// unit is a loaded artifact and the globals its code reads and writes.
// Function values remember the unit that created them, so a function
// handed to another artifact or another VM still runs its own code.
type unit struct {
	bc      *bytecode.Bytecode
	globals map[string]value.Value
}

// Config bounds a VM's resources.
type Config struct {
	MaxStack      int    // operand stack entries
	MaxFrames     int    // call depth
	CheckInterval int    // instructions between cancellation checks
	StepBudget    uint64 // instructions per Execute, 0 for no limit
	Trace         bool   // log every instruction at debug level
}

const (
	DefaultMaxStack      = 65536
	DefaultMaxFrames     = 4096
	DefaultCheckInterval = 1000
)

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		MaxStack:      DefaultMaxStack,
		MaxFrames:     DefaultMaxFrames,
		CheckInterval: DefaultCheckInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxStack <= 0 {
		c.MaxStack = DefaultMaxStack
	}
	if c.MaxFrames <= 0 {
		c.MaxFrames = DefaultMaxFrames
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	return c
}

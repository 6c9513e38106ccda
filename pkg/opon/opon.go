// Package opon implements the VM's bounded memory board and its flight
// recorder of recent execution events.
package opon

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/chazu/ifa/pkg/value"
)

// DefaultHistory is the flight recorder capacity.
const DefaultHistory = 256

// ErrMemoryLimitExceeded matches every *LimitError.
var ErrMemoryLimitExceeded = errors.New("opon memory limit exceeded")

// LimitError reports a write or allocation beyond the slot limit.
type LimitError struct {
	Limit        int
	Requested    int
	CurrentUsage int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("opon memory limit exceeded: requested slot %d but limit is %d (%d slots in use); "+
		"use '#opon nla' or '#opon ailopin' for more capacity", e.Requested, e.Limit, e.CurrentUsage)
}

func (e *LimitError) Is(target error) bool {
	return target == ErrMemoryLimitExceeded
}

// Event is one flight recorder entry. Seq numbers events from 1 in
// recording order.
type Event struct {
	Seq       uint64 `cbor:"1,keyasint"`
	Subsystem string `cbor:"2,keyasint"`
	Action    string `cbor:"3,keyasint"`
	Value     string `cbor:"4,keyasint"`
}

// Opon is a slot memory with a hard limit plus a ring buffer of the most
// recent events.
type Opon struct {
	mu       sync.Mutex
	size     Size
	maxSlots int
	memory   []value.Value
	used     int

	history  []Event
	cursor   int
	capacity int
	seq      uint64
}

// New creates an Opon for a preset with the default history capacity.
func New(size Size) *Opon {
	o := NewWithLimits(size.Slots(), DefaultHistory)
	o.size = size
	return o
}

// NewWithLimits creates an Opon with an explicit slot limit (Unlimited for
// none) and history capacity.
func NewWithLimits(maxSlots, history int) *Opon {
	if history <= 0 {
		history = DefaultHistory
	}
	size := Ailopin
	for _, s := range []Size{Kekere, Arinrin, Nla} {
		if s.Slots() == maxSlots {
			size = s
		}
	}
	return &Opon{
		size:     size,
		maxSlots: maxSlots,
		history:  make([]Event, 0, history),
		capacity: history,
	}
}

// Size returns the preset this Opon was created with.
func (o *Opon) Size() Size {
	return o.size
}

// MaxCapacity returns the slot limit, or Unlimited.
func (o *Opon) MaxCapacity() int {
	return o.maxSlots
}

// MemoryUsed returns the number of non-null slots.
func (o *Opon) MemoryUsed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.used
}

// RemainingCapacity returns how many slots may still be added, or Unlimited.
func (o *Opon) RemainingCapacity() int {
	if o.maxSlots == Unlimited {
		return Unlimited
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxSlots - len(o.memory)
}

// CanAllocate reports whether n more slots fit under the limit.
func (o *Opon) CanAllocate(n int) bool {
	if o.maxSlots == Unlimited {
		return true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.memory)+n <= o.maxSlots
}

// Get reads a slot. Unwritten slots inside the board read as Null.
func (o *Opon) Get(addr int) (value.Value, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if addr < 0 || addr >= len(o.memory) {
		return nil, false
	}
	v := o.memory[addr]
	if v == nil {
		v = value.Null{}
	}
	return v, true
}

// TrySet writes a slot, growing the board while addr is under the limit.
func (o *Opon) TrySet(addr int, v value.Value) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if addr < 0 || (o.maxSlots != Unlimited && addr >= o.maxSlots) {
		return &LimitError{Limit: o.maxSlots, Requested: addr, CurrentUsage: o.used}
	}
	for addr >= len(o.memory) {
		o.memory = append(o.memory, nil)
	}
	o.store(addr, v)
	return nil
}

// Set writes a slot and reports whether it fit.
func (o *Opon) Set(addr int, v value.Value) bool {
	return o.TrySet(addr, v) == nil
}

// Allocate appends v at the next free address and returns it.
func (o *Opon) Allocate(v value.Value) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	addr := len(o.memory)
	if o.maxSlots != Unlimited && addr >= o.maxSlots {
		return 0, &LimitError{Limit: o.maxSlots, Requested: addr, CurrentUsage: o.used}
	}
	o.memory = append(o.memory, nil)
	o.store(addr, v)
	return addr, nil
}

func (o *Opon) store(addr int, v value.Value) {
	wasUsed := o.memory[addr] != nil && o.memory[addr].Kind() != value.KindNull
	isUsed := v != nil && v.Kind() != value.KindNull
	switch {
	case isUsed && !wasUsed:
		o.used++
	case !isUsed && wasUsed:
		o.used--
	}
	o.memory[addr] = v
}

// Record appends an event carrying a value's display form.
func (o *Opon) Record(subsystem, action string, v value.Value) {
	o.RecordMsg(subsystem, action, v.String())
}

// RecordMsg appends an event. Once the recorder is full the oldest event is
// overwritten.
func (o *Opon) RecordMsg(subsystem, action, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	e := Event{Seq: o.seq, Subsystem: subsystem, Action: action, Value: msg}
	if len(o.history) < o.capacity {
		o.history = append(o.history, e)
		return
	}
	o.history[o.cursor] = e
	o.cursor = (o.cursor + 1) % o.capacity
}

// History returns the retained events, oldest first.
func (o *Opon) History() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Event, 0, len(o.history))
	out = append(out, o.history[o.cursor:]...)
	out = append(out, o.history[:o.cursor]...)
	return out
}

// HistoryCapacity returns the recorder size.
func (o *Opon) HistoryCapacity() int {
	return o.capacity
}

// ClearHistory drops all events.
func (o *Opon) ClearHistory() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = o.history[:0]
	o.cursor = 0
}

// Dump writes the recorder contents, oldest first.
func (o *Opon) Dump(w io.Writer) error {
	history := o.History()

	if _, err := fmt.Fprintln(w, "=== IWORI'S REPORT (Flight Recorder) ==="); err != nil {
		return err
	}
	if len(history) == 0 {
		_, err := fmt.Fprintln(w, "  (the opon is empty: no events recorded)")
		return err
	}
	for i, e := range history {
		stepsAgo := len(history) - i
		if _, err := fmt.Fprintf(w, "  Step -%-3d | [%s] %s -> %s\n", stepsAgo, e.Subsystem, e.Action, e.Value); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "  Total events: %d / %d capacity\n", len(history), o.capacity)
	return err
}

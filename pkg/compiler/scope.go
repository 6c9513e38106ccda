package compiler

import (
	"github.com/chazu/ifa/pkg/bytecode"
)

// scope maps the names declared in one block to their slots.
type scope struct {
	slots map[string]bytecode.LocalSlot
	count int
}

// funcState tracks the slot space of one function body. The module top
// level is a funcState too; its depth-0 names are globals.
type funcState struct {
	name   string
	scopes []*scope
	next   int
}

func newFuncState(name string) *funcState {
	return &funcState{name: name}
}

func (f *funcState) beginScope() {
	f.scopes = append(f.scopes, &scope{slots: make(map[string]bytecode.LocalSlot)})
}

// endScope drops the innermost block and returns how many locals it held.
func (f *funcState) endScope() int {
	n := len(f.scopes) - 1
	s := f.scopes[n]
	f.scopes = f.scopes[:n]
	f.next -= s.count
	return s.count
}

func (f *funcState) depth() int {
	return len(f.scopes)
}

// declare assigns the next free slot to name in the innermost block. When
// the block already declares name its slot is reused and fresh is false.
func (f *funcState) declare(name string) (slot bytecode.LocalSlot, fresh bool, ok bool) {
	s := f.scopes[len(f.scopes)-1]
	if existing, found := s.slots[name]; found {
		return existing, false, true
	}
	if f.next >= bytecode.MaxLocals {
		return 0, false, false
	}
	slot = bytecode.LocalSlot(f.next)
	s.slots[name] = slot
	s.count++
	f.next++
	return slot, true, true
}

// resolve searches blocks innermost first.
func (f *funcState) resolve(name string) (bytecode.LocalSlot, bool) {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if slot, ok := f.scopes[i].slots[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/ifa/pkg/value"
)

// ErrNotFound is returned for calls to unregistered functions or modules.
var ErrNotFound = errors.New("not registered")

// Func is a native implementation of an Odù method.
type Func func(args []value.Value) (value.Value, error)

// MethodFunc is a native method invoked on a receiver.
type MethodFunc func(receiver value.Value, args []value.Value) (value.Value, error)

type key struct {
	domain Domain
	method string
}

// Table is an in-memory registry safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	funcs   map[key]Func
	methods map[uint16]MethodFunc
	named   map[string]MethodFunc
	modules map[string]value.Value
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		funcs:   make(map[key]Func),
		methods: make(map[uint16]MethodFunc),
		named:   make(map[string]MethodFunc),
		modules: make(map[string]value.Value),
	}
}

// Register binds domain.method to fn.
func (t *Table) Register(domain Domain, method string, fn Func) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs[key{domain, method}] = fn
}

// RegisterMethod binds a method by its bytecode method index.
func (t *Table) RegisterMethod(index uint16, fn MethodFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.methods[index] = fn
}

// RegisterNamedMethod binds a method by name.
func (t *Table) RegisterNamedMethod(name string, fn MethodFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.named[name] = fn
}

// RegisterModule makes v importable under path (dot separated).
func (t *Table) RegisterModule(path string, v value.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modules[path] = v
}

// Call invokes a registered domain method.
func (t *Table) Call(domain uint8, method string, args []value.Value) (value.Value, error) {
	t.mu.RLock()
	fn, ok := t.funcs[key{Domain(domain), method}]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", Domain(domain), method, ErrNotFound)
	}
	return fn(args)
}

// CallMethod invokes a method registered by index.
func (t *Table) CallMethod(receiver value.Value, index uint16, args []value.Value) (value.Value, error) {
	t.mu.RLock()
	fn, ok := t.methods[index]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("method #%d on %s: %w", index, receiver.Kind(), ErrNotFound)
	}
	return fn(receiver, args)
}

// CallMethodNamed invokes a method registered by name.
func (t *Table) CallMethodNamed(receiver value.Value, name string, args []value.Value) (value.Value, error) {
	t.mu.RLock()
	fn, ok := t.named[name]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("method %s on %s: %w", name, receiver.Kind(), ErrNotFound)
	}
	return fn(receiver, args)
}

// Import returns the module registered under path.
func (t *Table) Import(path string) (value.Value, error) {
	t.mu.RLock()
	v, ok := t.modules[path]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("module %s: %w", path, ErrNotFound)
	}
	return v, nil
}

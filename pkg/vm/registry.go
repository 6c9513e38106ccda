package vm

import "github.com/chazu/ifa/pkg/value"

// Registry is the host bridge for Odù calls, native methods and imports.
// The VM does not interpret what these calls do; their errors surface as
// KindRegistry errors from Execute.
type Registry interface {
	Call(domain uint8, method string, args []value.Value) (value.Value, error)
	CallMethod(receiver value.Value, methodIndex uint16, args []value.Value) (value.Value, error)
	Import(path string) (value.Value, error)
}

// NamedMethodCaller is an optional Registry extension. When present, method
// calls on host values are resolved by name instead of by string index.
type NamedMethodCaller interface {
	CallMethodNamed(receiver value.Value, name string, args []value.Value) (value.Value, error)
}

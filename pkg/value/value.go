// Package value defines the runtime values manipulated by the Ifá VM.
package value

import (
	"maps"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindList
	KindMap
	KindFunction
	KindNative
	KindClass
	KindInstance
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindStr:      "str",
	KindList:     "list",
	KindMap:      "map",
	KindFunction: "function",
	KindNative:   "native",
	KindClass:    "class",
	KindInstance: "instance",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is any runtime value.
type Value interface {
	Kind() Kind
	// String renders the value the way the print instructions show it.
	String() string
	Truthy() bool
}

// Null is the absent value.
type Null struct{}

// Bool is a boolean.
type Bool bool

// Int is a signed 64-bit integer.
type Int int64

// Float is a 64-bit float.
type Float float64

// Str is an immutable string.
type Str string

// List is an ordered sequence. Lists behave as values: operations that
// change a list return a new one.
type List struct {
	Items []Value
}

// Map is a string-keyed table with the same value behavior as List.
type Map struct {
	entries map[string]Value
}

// Function is a compiled function living inside a Bytecode artifact.
// Owner identifies that artifact together with its globals; the VM sets it
// when the function value is created and uses it to run the function in
// the right code even after the value leaves the program that made it.
type Function struct {
	Name    string
	StartIP int
	Arity   int
	Owner   any
}

// NativeFunc is a host function callable from bytecode.
type NativeFunc struct {
	Name string
	Fn   func(args []Value) (Value, error)
}

// Class is a user-defined record type with methods.
// Method functions take the receiver as their first parameter.
type Class struct {
	Name     string
	Fields   []string
	Defaults []Value
	Methods  map[string]*Function
}

// Instance is an object created by calling a Class. Unlike lists and maps,
// instances are shared: assigning a field updates every reference.
type Instance struct {
	Class  *Class
	Fields *Map
}

func (Null) Kind() Kind        { return KindNull }
func (Bool) Kind() Kind        { return KindBool }
func (Int) Kind() Kind         { return KindInt }
func (Float) Kind() Kind       { return KindFloat }
func (Str) Kind() Kind         { return KindStr }
func (*List) Kind() Kind       { return KindList }
func (*Map) Kind() Kind        { return KindMap }
func (*Function) Kind() Kind   { return KindFunction }
func (*NativeFunc) Kind() Kind { return KindNative }
func (*Class) Kind() Kind      { return KindClass }
func (*Instance) Kind() Kind   { return KindInstance }

func (Null) Truthy() bool        { return false }
func (b Bool) Truthy() bool      { return bool(b) }
func (i Int) Truthy() bool       { return i != 0 }
func (f Float) Truthy() bool     { return f != 0 }
func (s Str) Truthy() bool       { return s != "" }
func (l *List) Truthy() bool     { return len(l.Items) > 0 }
func (m *Map) Truthy() bool      { return m.Len() > 0 }
func (*Function) Truthy() bool   { return true }
func (*NativeFunc) Truthy() bool { return true }
func (*Class) Truthy() bool      { return true }
func (o *Instance) Truthy() bool { return true }

func (Null) String() string { return "àìsí" }

func (b Bool) String() string {
	if b {
		return "òtítọ́"
	}
	return "èké"
}

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'f', -1, 64) }

func (s Str) String() string { return string(s) }

func (l *List) String() string { return format(l, nil) }

func (m *Map) String() string { return format(m, nil) }

func (f *Function) String() string   { return "<fn " + f.Name + ">" }
func (n *NativeFunc) String() string { return "<native " + n.Name + ">" }
func (c *Class) String() string      { return "<odu " + c.Name + ">" }

func (o *Instance) String() string { return format(o, nil) }

// format renders containers, printing a container already being rendered
// further up as "..." so that self-referencing instances terminate.
func format(v Value, active map[any]bool) string {
	var key any
	switch v.(type) {
	case *List, *Map, *Instance:
		key = v
	default:
		return v.String()
	}
	if active[key] {
		return "..."
	}
	if active == nil {
		active = make(map[any]bool)
	}
	active[key] = true
	defer delete(active, key)

	switch x := v.(type) {
	case *List:
		parts := make([]string, len(x.Items))
		for i, item := range x.Items {
			parts[i] = format(item, active)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Map:
		keys := x.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ": " + format(x.entries[k], active)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	o := v.(*Instance)
	return "<" + o.Class.Name + " " + format(o.Fields, active) + ">"
}

// NewList returns a list holding items.
func NewList(items ...Value) *List {
	return &List{Items: items}
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{entries: make(map[string]Value)}
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Set stores v under key.
func (m *Map) Set(key string, v Value) {
	if m.entries == nil {
		m.entries = make(map[string]Value)
	}
	m.entries[key] = v
}

// Clone returns a shallow copy of m.
func (m *Map) Clone() *Map {
	return &Map{entries: maps.Clone(m.entries)}
}

// Delete removes key.
func (m *Map) Delete(key string) {
	delete(m.entries, key)
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// Keys returns the keys in sorted order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewInstance creates an instance with every field set to its default.
func (c *Class) NewInstance() *Instance {
	fields := NewMap()
	for i, name := range c.Fields {
		var v Value = Null{}
		if i < len(c.Defaults) && c.Defaults[i] != nil {
			v = c.Defaults[i]
		}
		fields.Set(name, v)
	}
	return &Instance{Class: c, Fields: fields}
}

// Method looks up a method on the instance's class.
func (o *Instance) Method(name string) (*Function, bool) {
	fn, ok := o.Class.Methods[name]
	return fn, ok
}

package value

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"
)

// ErrDivisionByZero is reported by Div and Mod for a zero divisor.
var ErrDivisionByZero = errors.New("division by zero")

// OperandError reports an operator applied to values it does not support.
type OperandError struct {
	Op    string
	Left  Kind
	Right Kind
	Unary bool
}

func (e *OperandError) Error() string {
	if e.Unary {
		return fmt.Sprintf("cannot apply %s to %s", e.Op, e.Left)
	}
	return fmt.Sprintf("cannot apply %s to %s and %s", e.Op, e.Left, e.Right)
}

// IndexError reports a write outside a list's bounds.
type IndexError struct {
	Index int64
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of bounds for length %d", e.Index, e.Len)
}

// MaxStringLen bounds the byte length of strings built by repetition.
const MaxStringLen = 1 << 28

// LengthError reports a string repetition whose result would exceed
// MaxStringLen.
type LengthError struct {
	Op    string
	Len   int64
	Count int64
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("cannot apply %s: %d bytes repeated %d times exceeds %d bytes", e.Op, e.Len, e.Count, MaxStringLen)
}

func operandErr(op string, a, b Value) error {
	return &OperandError{Op: op, Left: a.Kind(), Right: b.Kind()}
}

// toFloat widens Int and Float; ok is false for other kinds.
func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

// Add implements +. Integer overflow promotes to Float; a string on either
// side concatenates display forms.
func Add(a, b Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			r := x + y
			if (x^r)&(y^r) < 0 {
				return Float(float64(x) + float64(y)), nil
			}
			return r, nil
		}
	case Str:
		return x + Str(b.String()), nil
	case *List:
		if y, ok := b.(*List); ok {
			items := make([]Value, 0, len(x.Items)+len(y.Items))
			items = append(items, x.Items...)
			items = append(items, y.Items...)
			return NewList(items...), nil
		}
	}
	if s, ok := b.(Str); ok {
		return Str(a.String()) + s, nil
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return Float(fa + fb), nil
		}
	}
	return nil, operandErr("+", a, b)
}

// Sub implements -.
func Sub(a, b Value) (Value, error) {
	if x, ok := a.(Int); ok {
		if y, ok := b.(Int); ok {
			r := x - y
			if (x^y)&(x^r) < 0 {
				return Float(float64(x) - float64(y)), nil
			}
			return r, nil
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return Float(fa - fb), nil
		}
	}
	return nil, operandErr("-", a, b)
}

// Mul implements *. Str * Int repeats the string.
func Mul(a, b Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			if r, ok := mulInt(int64(x), int64(y)); ok {
				return Int(r), nil
			}
			return Float(float64(x) * float64(y)), nil
		}
	case Str:
		if n, ok := b.(Int); ok {
			if n <= 0 || len(x) == 0 {
				return Str(""), nil
			}
			if int64(n) > MaxStringLen/int64(len(x)) {
				return nil, &LengthError{Op: "*", Len: int64(len(x)), Count: int64(n)}
			}
			return Str(strings.Repeat(string(x), int(n))), nil
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return Float(fa * fb), nil
		}
	}
	return nil, operandErr("*", a, b)
}

// Div implements /. The quotient of two numbers is always a Float.
func Div(a, b Value) (Value, error) {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if !okA || !okB {
		return nil, operandErr("/", a, b)
	}
	if fb == 0 {
		return nil, ErrDivisionByZero
	}
	return Float(fa / fb), nil
}

// Mod implements %.
func Mod(a, b Value) (Value, error) {
	if x, ok := a.(Int); ok {
		if y, ok := b.(Int); ok {
			if y == 0 {
				return nil, ErrDivisionByZero
			}
			if y == -1 {
				return Int(0), nil
			}
			return x % y, nil
		}
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if !okA || !okB {
		return nil, operandErr("%", a, b)
	}
	if fb == 0 {
		return nil, ErrDivisionByZero
	}
	return Float(math.Mod(fa, fb)), nil
}

// Pow implements exponentiation. Int ** non-negative Int stays integral
// until it overflows.
func Pow(a, b Value) (Value, error) {
	if x, ok := a.(Int); ok {
		if y, ok := b.(Int); ok && y >= 0 {
			if r, ok := intPow(int64(x), int64(y)); ok {
				return Int(r), nil
			}
			return Float(math.Pow(float64(x), float64(y))), nil
		}
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if !okA || !okB {
		return nil, operandErr("**", a, b)
	}
	return Float(math.Pow(fa, fb)), nil
}

func intPow(base, exp int64) (int64, bool) {
	result := int64(1)
	for exp > 0 {
		var ok bool
		if exp&1 == 1 {
			if result, ok = mulInt(result, base); !ok {
				return 0, false
			}
		}
		exp >>= 1
		if exp > 0 {
			if base, ok = mulInt(base, base); !ok {
				return 0, false
			}
		}
	}
	return result, true
}

func mulInt(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, true
	}
	r := x * y
	if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return 0, false
	}
	return r, true
}

// Neg implements unary minus.
func Neg(a Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		if x == math.MinInt64 {
			return Float(-float64(x)), nil
		}
		return -x, nil
	case Float:
		return -x, nil
	}
	return nil, &OperandError{Op: "-", Left: a.Kind(), Unary: true}
}

// Not implements logical negation by truthiness.
func Not(a Value) Value {
	return Bool(!a.Truthy())
}

// Equal reports structural equality. Int and Float compare numerically.
// Instances compare by identity.
func Equal(a, b Value) bool {
	return equal(a, b, nil)
}

type pair struct{ a, b any }

// equal tracks the container pairs under comparison so that values built
// into cycles by the host compare without unbounded recursion.
func equal(a, b Value, seen map[pair]bool) bool {
	switch x := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Int:
		if y, ok := b.(Int); ok {
			return x == y
		}
		fb, ok := toFloat(b)
		return ok && float64(x) == fb
	case Float:
		fb, ok := toFloat(b)
		return ok && float64(x) == fb
	case Str:
		y, ok := b.(Str)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		if x == y {
			return true
		}
		p := pair{x, y}
		if seen[p] {
			return true
		}
		if seen == nil {
			seen = make(map[pair]bool)
		}
		seen[p] = true
		for i := range x.Items {
			if !equal(x.Items[i], y.Items[i], seen) {
				return false
			}
		}
		return true
	case *Map:
		y, ok := b.(*Map)
		if !ok || x.Len() != y.Len() {
			return false
		}
		if x == y {
			return true
		}
		p := pair{x, y}
		if seen[p] {
			return true
		}
		if seen == nil {
			seen = make(map[pair]bool)
		}
		seen[p] = true
		for k, v := range x.entries {
			w, ok := y.entries[k]
			if !ok || !equal(v, w, seen) {
				return false
			}
		}
		return true
	case *Function:
		y, ok := b.(*Function)
		return ok && x.Name == y.Name && x.StartIP == y.StartIP && x.Arity == y.Arity && x.Owner == y.Owner
	}
	return a == b
}

// Compare orders numbers and strings: -1, 0 or +1.
func Compare(a, b Value) (int, error) {
	if x, ok := a.(Str); ok {
		if y, ok := b.(Str); ok {
			return strings.Compare(string(x), string(y)), nil
		}
		return 0, operandErr("compare", a, b)
	}
	if x, ok := a.(Int); ok {
		if y, ok := b.(Int); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if !okA || !okB {
		return 0, operandErr("compare", a, b)
	}
	switch {
	case fa < fb:
		return -1, nil
	case fa > fb:
		return 1, nil
	}
	return 0, nil
}

// Len returns the element count of a string (in runes), list, map or instance.
func Len(v Value) (int, error) {
	switch x := v.(type) {
	case Str:
		return utf8.RuneCountInString(string(x)), nil
	case *List:
		return len(x.Items), nil
	case *Map:
		return x.Len(), nil
	case *Instance:
		return x.Fields.Len(), nil
	}
	return 0, &OperandError{Op: "len", Left: v.Kind(), Unary: true}
}

// GetIndex reads coll[idx]. Lists and strings accept negative indices
// counting from the end; a missing element or key yields Null.
func GetIndex(coll, idx Value) (Value, error) {
	switch c := coll.(type) {
	case *List:
		i, ok := idx.(Int)
		if !ok {
			return nil, operandErr("index", coll, idx)
		}
		if n, ok := normalizeIndex(int64(i), len(c.Items)); ok {
			return c.Items[n], nil
		}
		return Null{}, nil
	case Str:
		i, ok := idx.(Int)
		if !ok {
			return nil, operandErr("index", coll, idx)
		}
		runes := []rune(string(c))
		if n, ok := normalizeIndex(int64(i), len(runes)); ok {
			return Str(string(runes[n])), nil
		}
		return Null{}, nil
	case *Map:
		k, ok := idx.(Str)
		if !ok {
			return nil, operandErr("index", coll, idx)
		}
		if v, ok := c.Get(string(k)); ok {
			return v, nil
		}
		return Null{}, nil
	case *Instance:
		k, ok := idx.(Str)
		if !ok {
			return nil, operandErr("index", coll, idx)
		}
		if v, ok := c.Fields.Get(string(k)); ok {
			return v, nil
		}
		return Null{}, nil
	}
	return nil, operandErr("index", coll, idx)
}

// SetIndex returns coll with coll[idx] = v. Lists and maps are values, so
// the result is a modified copy and coll is left unchanged. Instances are
// objects and are updated in place.
func SetIndex(coll, idx, v Value) (Value, error) {
	switch c := coll.(type) {
	case *List:
		i, ok := idx.(Int)
		if !ok {
			return nil, operandErr("index", coll, idx)
		}
		n, ok := normalizeIndex(int64(i), len(c.Items))
		if !ok {
			return nil, &IndexError{Index: int64(i), Len: len(c.Items)}
		}
		items := slices.Clone(c.Items)
		items[n] = v
		return &List{Items: items}, nil
	case *Map:
		k, ok := idx.(Str)
		if !ok {
			return nil, operandErr("index", coll, idx)
		}
		m := c.Clone()
		m.Set(string(k), v)
		return m, nil
	case *Instance:
		k, ok := idx.(Str)
		if !ok {
			return nil, operandErr("index", coll, idx)
		}
		c.Fields.Set(string(k), v)
		return c, nil
	}
	return nil, operandErr("index", coll, idx)
}

// Append returns a copy of the list coll with v added at the end.
func Append(coll, v Value) (Value, error) {
	l, ok := coll.(*List)
	if !ok {
		return nil, operandErr("append", coll, v)
	}
	items := make([]Value, len(l.Items), len(l.Items)+1)
	copy(items, l.Items)
	return &List{Items: append(items, v)}, nil
}

func normalizeIndex(i int64, n int) (int, bool) {
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, false
	}
	return int(i), true
}

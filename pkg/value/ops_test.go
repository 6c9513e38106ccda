package value

import (
	"errors"
	"math"
	"testing"
)

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a, b Value) (Value, error)
		a, b Value
		want Value
	}{
		{"int add", Add, Int(5), Int(3), Int(8)},
		{"int add overflow promotes", Add, Int(math.MaxInt64), Int(1), Float(float64(math.MaxInt64) + 1)},
		{"mixed add", Add, Int(1), Float(0.5), Float(1.5)},
		{"str concat", Add, Str("a"), Int(1), Str("a1")},
		{"concat onto str", Add, Int(1), Str("a"), Str("1a")},
		{"int sub", Sub, Int(5), Int(8), Int(-3)},
		{"int sub overflow promotes", Sub, Int(math.MinInt64), Int(1), Float(float64(math.MinInt64) - 1)},
		{"int mul", Mul, Int(3), Int(2), Int(6)},
		{"int mul overflow promotes", Mul, Int(math.MaxInt64), Int(2), Float(float64(math.MaxInt64) * 2)},
		{"str repeat", Mul, Str("ab"), Int(3), Str("ababab")},
		{"int div is float", Div, Int(7), Int(2), Float(3.5)},
		{"int mod", Mod, Int(7), Int(3), Int(1)},
		{"float mod", Mod, Float(7.5), Int(2), Float(1.5)},
		{"int pow", Pow, Int(2), Int(10), Int(1024)},
		{"negative pow", Pow, Int(2), Int(-1), Float(0.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.a, tt.b)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got.Kind() != tt.want.Kind() || !Equal(got, tt.want) {
				t.Errorf("got %v (%s), want %v (%s)", got, got.Kind(), tt.want, tt.want.Kind())
			}
		})
	}
}

func TestListConcat(t *testing.T) {
	a := NewList(Int(1))
	b := NewList(Int(2), Int(3))
	got, err := Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(got, NewList(Int(1), Int(2), Int(3))) {
		t.Errorf("got %v, want [1, 2, 3]", got)
	}
	if len(a.Items) != 1 {
		t.Error("concatenation modified its left operand")
	}
}

func TestDivisionByZero(t *testing.T) {
	for _, fn := range []func(a, b Value) (Value, error){Div, Mod} {
		if _, err := fn(Int(1), Int(0)); !errors.Is(err, ErrDivisionByZero) {
			t.Errorf("error = %v, want ErrDivisionByZero", err)
		}
		if _, err := fn(Float(1), Float(0)); !errors.Is(err, ErrDivisionByZero) {
			t.Errorf("float error = %v, want ErrDivisionByZero", err)
		}
	}
}

func TestOperandErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a, b Value) (Value, error)
		a, b Value
	}{
		{"bool plus int", Add, Bool(true), Int(1)},
		{"list minus", Sub, NewList(), Int(1)},
		{"null times", Mul, Null{}, Int(2)},
		{"str div", Div, Str("x"), Int(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn(tt.a, tt.b)
			var oe *OperandError
			if !errors.As(err, &oe) {
				t.Fatalf("error = %v, want *OperandError", err)
			}
			if oe.Left != tt.a.Kind() || oe.Right != tt.b.Kind() {
				t.Errorf("kinds = %s/%s, want %s/%s", oe.Left, oe.Right, tt.a.Kind(), tt.b.Kind())
			}
		})
	}

	if _, err := Neg(Str("x")); err == nil {
		t.Error("Neg(str) should fail")
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Null{}, false},
		{Bool(false), false},
		{Bool(true), true},
		{Int(0), false},
		{Int(-1), true},
		{Float(0), false},
		{Str(""), false},
		{Str("x"), true},
		{NewList(), false},
		{NewList(Null{}), true},
		{NewMap(), false},
		{&Function{Name: "f"}, true},
	}
	for _, tt := range tests {
		if got := tt.v.Truthy(); got != tt.want {
			t.Errorf("%s(%v).Truthy() = %v, want %v", tt.v.Kind(), tt.v, got, tt.want)
		}
	}
}

func TestEqualAndCompare(t *testing.T) {
	if !Equal(Int(3), Float(3)) {
		t.Error("Int(3) should equal Float(3)")
	}
	if Equal(Int(3), Str("3")) {
		t.Error("Int(3) should not equal Str(3)")
	}
	m1, m2 := NewMap(), NewMap()
	m1.Set("a", NewList(Int(1)))
	m2.Set("a", NewList(Int(1)))
	if !Equal(m1, m2) {
		t.Error("structurally equal maps compare unequal")
	}

	if c, err := Compare(Int(1), Float(1.5)); err != nil || c != -1 {
		t.Errorf("Compare(1, 1.5) = %d, %v", c, err)
	}
	if c, err := Compare(Str("b"), Str("a")); err != nil || c != 1 {
		t.Errorf("Compare(b, a) = %d, %v", c, err)
	}
	if _, err := Compare(Str("a"), Int(1)); err == nil {
		t.Error("Compare(str, int) should fail")
	}
}

func TestIndexing(t *testing.T) {
	l := NewList(Int(10), Int(20), Int(30))

	if v, _ := GetIndex(l, Int(-1)); !Equal(v, Int(30)) {
		t.Errorf("l[-1] = %v, want 30", v)
	}
	if v, _ := GetIndex(l, Int(5)); v.Kind() != KindNull {
		t.Errorf("l[5] = %v, want null", v)
	}
	if _, err := SetIndex(l, Int(5), Int(1)); err == nil {
		t.Error("out of range SetIndex should fail")
	}
	updated, err := SetIndex(l, Int(0), Str("x"))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := GetIndex(updated, Int(0)); !Equal(v, Str("x")) {
		t.Errorf("updated[0] = %v, want x", v)
	}

	m := NewMap()
	if _, err := SetIndex(m, Int(1), Int(1)); err == nil {
		t.Error("non-string map key should fail")
	}
	withK, err := SetIndex(m, Str("k"), Int(1))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := GetIndex(withK, Str("k")); !Equal(v, Int(1)) {
		t.Errorf(`m["k"] = %v, want 1`, v)
	}

	if v, _ := GetIndex(Str("ọbà"), Int(0)); !Equal(v, Str("ọ")) {
		t.Errorf("rune index = %v, want ọ", v)
	}
	if n, _ := Len(Str("ọbà")); n != 3 {
		t.Errorf("Len = %d, want 3", n)
	}
}

func TestDisplay(t *testing.T) {
	m := NewMap()
	m.Set("b", Int(2))
	m.Set("a", Str("x"))
	tests := []struct {
		v    Value
		want string
	}{
		{Null{}, "àìsí"},
		{Bool(true), "òtítọ́"},
		{Bool(false), "èké"},
		{Float(2.5), "2.5"},
		{NewList(Int(1), Str("a")), "[1, a]"},
		{m, `{"a": x, "b": 2}`},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestClassInstance(t *testing.T) {
	c := &Class{Name: "Point", Fields: []string{"x", "y"}, Defaults: []Value{Int(0), nil}}
	o := c.NewInstance()
	if v, _ := o.Fields.Get("x"); !Equal(v, Int(0)) {
		t.Errorf("x = %v, want 0", v)
	}
	if v, _ := o.Fields.Get("y"); v.Kind() != KindNull {
		t.Errorf("y = %v, want null", v)
	}
}

func TestCollectionsAreValues(t *testing.T) {
	l := NewList(Int(1), Int(2))
	if _, err := SetIndex(l, Int(0), Int(9)); err != nil {
		t.Fatal(err)
	}
	if v, _ := GetIndex(l, Int(0)); !Equal(v, Int(1)) {
		t.Errorf("l[0] after SetIndex on l = %v, want 1", v)
	}

	grown, err := Append(l, Int(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Items) != 2 || len(grown.(*List).Items) != 3 {
		t.Errorf("len(l) = %d, len(grown) = %d, want 2 and 3", len(l.Items), len(grown.(*List).Items))
	}
	if _, err := Append(Int(1), Int(2)); err == nil {
		t.Error("Append to int should fail")
	}

	m := NewMap()
	m.Set("a", Int(1))
	if _, err := SetIndex(m, Str("a"), Int(2)); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.Get("a"); !Equal(v, Int(1)) {
		t.Errorf(`m["a"] after SetIndex on m = %v, want 1`, v)
	}

	// A list stored into itself holds the previous version, not a cycle.
	self, err := SetIndex(l, Int(0), l)
	if err != nil {
		t.Fatal(err)
	}
	if got := self.String(); got != "[[1, 2], 2]" {
		t.Errorf("String() = %q, want %q", got, "[[1, 2], 2]")
	}
}

func TestInstancesUpdateInPlace(t *testing.T) {
	o := (&Class{Name: "Node", Fields: []string{"next"}}).NewInstance()
	got, err := SetIndex(o, Str("next"), o)
	if err != nil {
		t.Fatal(err)
	}
	if got != Value(o) {
		t.Error("SetIndex on an instance returned a different object")
	}
	if s := o.String(); s != `<Node {"next": ...}>` {
		t.Errorf("String() = %q", s)
	}
	if !Equal(o, o) {
		t.Error("instance not equal to itself")
	}
}

func TestCyclicContainers(t *testing.T) {
	a := NewList(Int(1))
	a.Items = append(a.Items, a)
	b := NewList(Int(1))
	b.Items = append(b.Items, b)
	if !Equal(a, b) {
		t.Error("equal cyclic lists compare unequal")
	}
	if s := a.String(); s != "[1, ...]" {
		t.Errorf("String() = %q, want %q", s, "[1, ...]")
	}

	m := NewMap()
	m.Set("self", m)
	if s := m.String(); s != `{"self": ...}` {
		t.Errorf("String() = %q", s)
	}
}

func TestStringRepeatLimit(t *testing.T) {
	tests := []struct {
		name  string
		count Int
		want  Value
		fails bool
	}{
		{"zero", 0, Str(""), false},
		{"negative", -3, Str(""), false},
		{"small", 3, Str("ababab"), false},
		{"over limit", MaxStringLen, nil, true},
		{"overflowing", 1 << 62, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Mul(Str("ab"), tt.count)
			if tt.fails {
				var le *LengthError
				if !errors.As(err, &le) {
					t.Errorf("Mul error = %v, want *LengthError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Mul error = %v", err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("Mul = %v, want %v", got, tt.want)
			}
		})
	}
	if got, err := Mul(Str(""), Int(1<<62)); err != nil || !Equal(got, Str("")) {
		t.Errorf(`"" * 2^62 = %v, %v`, got, err)
	}
}

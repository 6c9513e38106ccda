package compiler

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/ifa/pkg/ast"
	"github.com/chazu/ifa/pkg/bytecode"
	"github.com/chazu/ifa/pkg/registry"
	"github.com/chazu/ifa/pkg/value"
	"github.com/chazu/ifa/pkg/vm"
)

func num(v int64) ast.Expr    { return &ast.IntLit{Value: v} }
func str(s string) ast.Expr   { return &ast.StringLit{Value: s} }
func ident(n string) ast.Expr { return &ast.Ident{Name: n} }

func bin(op ast.BinaryOp, l, r ast.Expr) ast.Expr {
	return &ast.Binary{Op: op, Left: l, Right: r}
}

func call(name string, args ...ast.Expr) ast.Expr {
	return &ast.Call{Name: name, Args: args}
}

func decl(name string, v ast.Expr) ast.Stmt {
	return &ast.VarDecl{Name: name, Value: v}
}

func assign(name string, v ast.Expr) ast.Stmt {
	return &ast.Assign{Target: ast.AssignTarget{Name: name}, Value: v}
}

func expr(x ast.Expr) ast.Stmt {
	return &ast.ExprStmt{X: x}
}

func ret(x ast.Expr) ast.Stmt {
	return &ast.Return{Value: x}
}

// addFunc is ese add(a, b) { return a + b }
var addFunc = &ast.FuncDef{
	Name:   "add",
	Params: []string{"a", "b"},
	Body:   []ast.Stmt{ret(bin(ast.OpAdd, ident("a"), ident("b")))},
}

// fibFunc is the classic doubly recursive Fibonacci.
var fibFunc = &ast.FuncDef{
	Name:   "fib",
	Params: []string{"n"},
	Body: []ast.Stmt{
		&ast.If{
			Condition: bin(ast.OpLt, ident("n"), num(2)),
			Then:      []ast.Stmt{ret(ident("n"))},
		},
		ret(bin(ast.OpAdd,
			call("fib", bin(ast.OpSub, ident("n"), num(1))),
			call("fib", bin(ast.OpSub, ident("n"), num(2))))),
	},
}

func compile(t *testing.T, stmts ...ast.Stmt) *bytecode.Bytecode {
	t.Helper()
	bc, err := Compile(&ast.Program{Statements: stmts}, "test.ifa")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return bc
}

func run(t *testing.T, stmts ...ast.Stmt) (value.Value, *vm.VM, error) {
	t.Helper()
	m := vm.New()
	res, err := m.Execute(compile(t, stmts...))
	return res, m, err
}

func TestPrecedence(t *testing.T) {
	got, _, err := run(t, expr(bin(ast.OpAdd, num(5), bin(ast.OpMul, num(3), num(2)))))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !value.Equal(got, value.Int(11)) {
		t.Errorf("5 + 3 * 2 = %v, want 11", got)
	}
}

func TestFunctionCall(t *testing.T) {
	got, m, err := run(t, addFunc, expr(call("add", num(10), num(20))))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !value.Equal(got, value.Int(30)) {
		t.Errorf("add(10, 20) = %v, want 30", got)
	}
	if m.StackLen() != 1 {
		t.Errorf("StackLen() = %d, want 1", m.StackLen())
	}
}

func TestWhileLoop(t *testing.T) {
	_, m, err := run(t,
		decl("x", num(0)),
		&ast.While{
			Condition: bin(ast.OpLt, ident("x"), num(3)),
			Body:      []ast.Stmt{assign("x", bin(ast.OpAdd, ident("x"), num(1)))},
		},
	)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if x, _ := m.Global("x"); !value.Equal(x, value.Int(3)) {
		t.Errorf("x = %v, want 3", x)
	}
}

func TestDivisionByZero(t *testing.T) {
	_, _, err := run(t, expr(bin(ast.OpDiv, num(5), num(0))))
	if !errors.Is(err, vm.ErrDivisionByZero) {
		t.Errorf("Execute() error = %v, want division by zero", err)
	}
}

func TestArityMismatch(t *testing.T) {
	_, _, err := run(t, addFunc, expr(call("add", num(1), num(2), num(3))))
	var e *vm.Error
	if !errors.As(err, &e) || e.Kind != vm.KindArityMismatch {
		t.Fatalf("Execute() error = %v, want arity mismatch", err)
	}
	if e.Expected != 2 || e.Got != 3 {
		t.Errorf("ArityMismatch{expected: %d, got: %d}, want {2, 3}", e.Expected, e.Got)
	}
}

func TestIfElse(t *testing.T) {
	for _, cond := range []bool{true, false} {
		_, m, err := run(t, &ast.If{
			Condition: &ast.BoolLit{Value: cond},
			Then:      []ast.Stmt{decl("inner", num(1)), assign("a", ident("inner"))},
			Else:      []ast.Stmt{assign("b", num(2))},
		})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		_, ranThen := m.Global("a")
		_, ranElse := m.Global("b")
		if ranThen != cond || ranElse == cond {
			t.Errorf("if %v: then=%v else=%v", cond, ranThen, ranElse)
		}
		if _, ok := m.Global("inner"); ok {
			t.Error("block local leaked into globals")
		}
		if m.StackLen() != 0 {
			t.Errorf("StackLen() = %d, want 0", m.StackLen())
		}
	}
}

func TestBlockLocals(t *testing.T) {
	_, m, err := run(t, &ast.If{
		Condition: &ast.BoolLit{Value: true},
		Then: []ast.Stmt{
			decl("y", num(5)),
			decl("y", bin(ast.OpAdd, ident("y"), num(1))),
			&ast.While{
				Condition: bin(ast.OpLt, ident("y"), num(10)),
				Body: []ast.Stmt{
					decl("step", num(2)),
					assign("y", bin(ast.OpAdd, ident("y"), ident("step"))),
				},
			},
			assign("x", bin(ast.OpMul, ident("y"), num(2))),
		},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if x, _ := m.Global("x"); !value.Equal(x, value.Int(20)) {
		t.Errorf("x = %v, want 20", x)
	}
	if m.StackLen() != 0 {
		t.Errorf("StackLen() = %d, want 0", m.StackLen())
	}
}

func TestRecursion(t *testing.T) {
	got, _, err := run(t, fibFunc, expr(call("fib", num(15))))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !value.Equal(got, value.Int(610)) {
		t.Errorf("fib(15) = %v, want 610", got)
	}
}

func TestFunctionLocals(t *testing.T) {
	// ese sumTo(n) { ayanmo s = 0; ayanmo i = 1; nigba (i <= n) { s = s + i; i = i + 1 } return s }
	sumTo := &ast.FuncDef{
		Name:   "sumTo",
		Params: []string{"n"},
		Body: []ast.Stmt{
			decl("s", num(0)),
			decl("i", num(1)),
			&ast.While{
				Condition: bin(ast.OpLtEq, ident("i"), ident("n")),
				Body: []ast.Stmt{
					assign("s", bin(ast.OpAdd, ident("s"), ident("i"))),
					assign("i", bin(ast.OpAdd, ident("i"), num(1))),
				},
			},
			ret(ident("s")),
		},
	}
	got, m, err := run(t, sumTo, expr(call("sumTo", num(100))))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !value.Equal(got, value.Int(5050)) {
		t.Errorf("sumTo(100) = %v, want 5050", got)
	}
	if _, ok := m.Global("s"); ok {
		t.Error("function local leaked into globals")
	}
}

func TestImplicitReturnIsNull(t *testing.T) {
	noop := &ast.FuncDef{Name: "noop", Body: []ast.Stmt{decl("x", num(1))}}
	got, _, err := run(t, noop, expr(call("noop")))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got.Kind() != value.KindNull {
		t.Errorf("noop() = %v, want null", got)
	}
}

func TestForLoop(t *testing.T) {
	_, m, err := run(t,
		decl("total", num(0)),
		&ast.For{
			Var:      "x",
			Iterable: &ast.ListLit{Elements: []ast.Expr{num(1), num(2), num(3), num(4)}},
			Body:     []ast.Stmt{assign("total", bin(ast.OpAdd, ident("total"), ident("x")))},
		},
	)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if total, _ := m.Global("total"); !value.Equal(total, value.Int(10)) {
		t.Errorf("total = %v, want 10", total)
	}
	if m.StackLen() != 0 {
		t.Errorf("StackLen() = %d, want 0", m.StackLen())
	}
}

func TestMatch(t *testing.T) {
	match := func(subject int64) ast.Stmt {
		return &ast.Match{
			Subject: num(subject),
			Arms: []ast.MatchArm{
				{Pattern: ast.Pattern{Kind: ast.PatternLiteral, Value: num(1)}, Body: []ast.Stmt{assign("r", str("one"))}},
				{Pattern: ast.Pattern{Kind: ast.PatternRange, Value: num(5), End: num(10)}, Body: []ast.Stmt{assign("r", str("mid"))}},
				{Pattern: ast.Pattern{Kind: ast.PatternWildcard}, Body: []ast.Stmt{assign("r", str("other"))}},
			},
		}
	}
	tests := []struct {
		subject int64
		want    string
	}{
		{1, "one"},
		{5, "mid"},
		{10, "mid"},
		{7, "mid"},
		{11, "other"},
		{0, "other"},
	}
	for _, tt := range tests {
		_, m, err := run(t, match(tt.subject))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if r, _ := m.Global("r"); !value.Equal(r, value.Str(tt.want)) {
			t.Errorf("match %d = %v, want %s", tt.subject, r, tt.want)
		}
		if m.StackLen() != 0 {
			t.Errorf("match %d: StackLen() = %d, want 0", tt.subject, m.StackLen())
		}
	}
}

func TestClass(t *testing.T) {
	self := func(field string) ast.Expr {
		return &ast.Index{Object: ident("self"), Index: str(field)}
	}
	counter := &ast.ClassDef{
		Name: "Counter",
		Body: []ast.Stmt{
			decl("count", num(0)),
			&ast.FuncDef{
				Name:   "inc",
				Params: []string{"by"},
				Body: []ast.Stmt{
					&ast.Assign{
						Target: ast.AssignTarget{Name: "self", Index: str("count")},
						Value:  bin(ast.OpAdd, self("count"), ident("by")),
					},
					ret(self("count")),
				},
			},
		},
	}
	got, _, err := run(t,
		counter,
		decl("c", call("Counter")),
		expr(&ast.MethodCall{Receiver: ident("c"), Method: "inc", Args: []ast.Expr{num(2)}}),
		expr(&ast.MethodCall{Receiver: ident("c"), Method: "inc", Args: []ast.Expr{num(3)}}),
	)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !value.Equal(got, value.Int(5)) {
		t.Errorf("c.inc(3) = %v, want 5", got)
	}
}

func TestOduCalls(t *testing.T) {
	var out bytes.Buffer
	tab := registry.Standard(&out)
	tab.RegisterModule("std.otura", value.Str("otura"))
	bc := compile(t,
		&ast.Instruction{Call: &ast.OduCall{Domain: "Irosu", Method: "fo", Args: []ast.Expr{str("ẹ n lẹ́")}}},
		&ast.Import{Path: []string{"std", "otura"}},
		expr(&ast.OduCall{Domain: "obara", Method: "fikun", Args: []ast.Expr{num(2), num(3)}}),
	)
	m := vm.New()
	m.SetRegistry(tab)
	got, err := m.Execute(bc)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.String() != "ẹ n lẹ́\n" {
		t.Errorf("output = %q", out.String())
	}
	if !value.Equal(got, value.Int(5)) {
		t.Errorf("Obara.fikun(2, 3) = %v, want 5", got)
	}
	if mod, _ := m.Global("otura"); !value.Equal(mod, value.Str("otura")) {
		t.Errorf("otura = %v, want imported module", mod)
	}
}

func TestEwo(t *testing.T) {
	_, _, err := run(t, &ast.Ewo{
		Condition: bin(ast.OpGt, num(1), num(2)),
		Message:   "one must exceed two",
	})
	if !errors.Is(err, vm.ErrAssertionFailed) {
		t.Fatalf("Execute() error = %v, want assertion failure", err)
	}
	if !strings.Contains(err.Error(), "one must exceed two") {
		t.Errorf("Error() = %q, want message", err.Error())
	}
}

func TestDirectivesEmitNoCode(t *testing.T) {
	bc := compile(t,
		&ast.Taboo{Source: "Otura", Target: "Odi"},
		&ast.Ebo{Offering: str("obì")},
	)
	if len(bc.Code) != 1 || bytecode.Opcode(bc.Code[0]) != bytecode.OpHalt {
		t.Errorf("code = % x, want a lone HALT", bc.Code)
	}
}

func TestOponDirective(t *testing.T) {
	bc := compile(t, &ast.OponDirective{Size: "Small"})
	if bc.Opon != "kekere" {
		t.Errorf("Opon = %q, want kekere", bc.Opon)
	}
	_, err := Compile(&ast.Program{Statements: []ast.Stmt{&ast.OponDirective{Size: "galactic"}}}, "bad.ifa")
	var ce *Error
	if !errors.As(err, &ce) {
		t.Errorf("Compile() error = %v, want *Error", err)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		stmt ast.Stmt
	}{
		{"unknown domain", &ast.Instruction{Call: &ast.OduCall{Domain: "Babalawo", Method: "x"}}},
		{"duplicate parameter", &ast.FuncDef{Name: "f", Params: []string{"a", "a"}}},
		{"missing expression", &ast.ExprStmt{SpanVal: ast.Span{Line: 4, Column: 2}}},
		{"empty import", &ast.Import{}},
		{"statement in class", &ast.ClassDef{Name: "C", Body: []ast.Stmt{&ast.Ase{}}}},
		{"too many arguments", expr(call("f", manyInts(256)...))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(&ast.Program{Statements: []ast.Stmt{tt.stmt, &ast.Ase{}}}, "bad.ifa")
			var ce *Error
			if !errors.As(err, &ce) {
				t.Errorf("Compile() error = %v, want *Error", err)
			}
		})
	}
}

func TestErrorSpan(t *testing.T) {
	_, err := Compile(&ast.Program{Statements: []ast.Stmt{
		&ast.ExprStmt{SpanVal: ast.Span{Line: 4, Column: 2}},
		&ast.Ase{},
	}}, "bad.ifa")
	if err == nil || !strings.Contains(err.Error(), "line 4:2") {
		t.Errorf("Compile() error = %v, want line 4:2", err)
	}
}

func TestLineTable(t *testing.T) {
	bc := compile(t,
		&ast.VarDecl{SpanVal: ast.Span{Line: 1}, Name: "x", Value: num(1)},
		&ast.ExprStmt{SpanVal: ast.Span{Line: 2}, X: bin(ast.OpDiv, ident("x"), num(0))},
	)
	_, err := vm.New().Execute(bc)
	var e *vm.Error
	if !errors.As(err, &e) {
		t.Fatalf("Execute() error = %v", err)
	}
	if e.Line != 2 {
		t.Errorf("error line = %d, want 2", e.Line)
	}
}

func manyInts(n int) []ast.Expr {
	out := make([]ast.Expr, n)
	for i := range out {
		out[i] = num(int64(i))
	}
	return out
}

func TestCollectionsAndIndexAssign(t *testing.T) {
	m := vm.New()
	m.SetRegistry(registry.Standard(&bytes.Buffer{}))
	got, err := m.Execute(compile(t,
		decl("xs", &ast.ListLit{Elements: manyInts(300)}),
		&ast.Assign{Target: ast.AssignTarget{Name: "xs", Index: num(299)}, Value: num(-1)},
		decl("m", &ast.MapLit{Entries: []ast.MapEntry{{Key: str("n"), Value: &ast.Index{Object: ident("xs"), Index: num(-1)}}}}),
		expr(bin(ast.OpAdd,
			&ast.Index{Object: ident("m"), Index: str("n")},
			&ast.OduCall{Domain: "Ogunda", Method: "gigun", Args: []ast.Expr{ident("xs")}})),
	))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !value.Equal(got, value.Int(299)) {
		t.Errorf("result = %v, want 299", got)
	}
}

func TestCollectionAssignmentCopies(t *testing.T) {
	setFirst := &ast.FuncDef{
		Name:   "setFirst",
		Params: []string{"xs"},
		Body: []ast.Stmt{
			&ast.Assign{Target: ast.AssignTarget{Name: "xs", Index: num(0)}, Value: num(7)},
			ret(&ast.Index{Object: ident("xs"), Index: num(0)}),
		},
	}
	tests := []struct {
		name  string
		stmts []ast.Stmt
		want  value.Value
	}{
		{"list alias", []ast.Stmt{
			decl("a", &ast.ListLit{Elements: []ast.Expr{num(1)}}),
			decl("b", ident("a")),
			&ast.Assign{Target: ast.AssignTarget{Name: "b", Index: num(0)}, Value: num(9)},
			expr(&ast.Index{Object: ident("a"), Index: num(0)}),
		}, value.Int(1)},
		{"map alias", []ast.Stmt{
			decl("a", &ast.MapLit{Entries: []ast.MapEntry{{Key: str("k"), Value: num(1)}}}),
			decl("b", ident("a")),
			&ast.Assign{Target: ast.AssignTarget{Name: "b", Index: str("k")}, Value: num(9)},
			expr(bin(ast.OpAdd, &ast.Index{Object: ident("a"), Index: str("k")}, &ast.Index{Object: ident("b"), Index: str("k")})),
		}, value.Int(10)},
		{"argument", []ast.Stmt{
			setFirst,
			decl("a", &ast.ListLit{Elements: []ast.Expr{num(1)}}),
			decl("r", call("setFirst", ident("a"))),
			expr(bin(ast.OpAdd, ident("r"), &ast.Index{Object: ident("a"), Index: num(0)})),
		}, value.Int(8)},
		{"self insertion", []ast.Stmt{
			decl("a", &ast.ListLit{Elements: []ast.Expr{num(1)}}),
			&ast.Assign{Target: ast.AssignTarget{Name: "a", Index: num(0)}, Value: ident("a")},
			expr(&ast.Index{Object: &ast.Index{Object: ident("a"), Index: num(0)}, Index: num(0)}),
		}, value.Int(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := run(t, tt.stmts...)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !value.Equal(got, tt.want) {
				t.Errorf("result = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInstancesAreShared(t *testing.T) {
	box := &ast.ClassDef{Name: "Box", Body: []ast.Stmt{decl("v", num(0))}}
	got, _, err := run(t,
		box,
		decl("a", call("Box")),
		decl("b", ident("a")),
		&ast.Assign{Target: ast.AssignTarget{Name: "b", Index: str("v")}, Value: num(9)},
		&ast.Assign{Target: ast.AssignTarget{Name: "a", Index: str("self")}, Value: ident("a")},
		expr(&ast.Index{Object: ident("a"), Index: str("v")}),
	)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !value.Equal(got, value.Int(9)) {
		t.Errorf("a.v = %v, want 9", got)
	}
}

func TestOduCallWithoutRegistry(t *testing.T) {
	_, _, err := run(t, expr(&ast.OduCall{Domain: "Ogunda", Method: "gigun", Args: []ast.Expr{&ast.ListLit{}}}))
	if !errors.Is(err, vm.ErrNoRegistry) {
		t.Errorf("Execute() error = %v, want no registry", err)
	}
}

func TestRoundTripExecutes(t *testing.T) {
	bc := compile(t, fibFunc, expr(call("fib", num(10))))
	data, err := bc.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	back, err := bytecode.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.Equal(bc) {
		t.Fatal("round trip changed the artifact")
	}
	got, err := vm.New().Execute(back)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !value.Equal(got, value.Int(55)) {
		t.Errorf("fib(10) = %v, want 55", got)
	}
}

func TestParsedProgram(t *testing.T) {
	src := `{"statements": [
		{"type": "function", "name": "sq", "params": ["n"], "body": [
			{"type": "return", "value": {"type": "binary", "op": "*", "left": {"type": "ident", "name": "n"}, "right": {"type": "ident", "name": "n"}}}
		]},
		{"type": "expr", "expr": {"type": "call", "name": "sq", "args": [{"type": "int", "value": 12}]}}
	]}`
	prog, err := ast.ParseBytes([]byte(src))
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}
	bc, err := Compile(prog, "sq.json")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	got, err := vm.New().Execute(bc)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !value.Equal(got, value.Int(144)) {
		t.Errorf("sq(12) = %v, want 144", got)
	}
}

// Package ast defines the Ifá program tree consumed by the bytecode compiler.
//
// Trees are produced by the external Ifá parser and handed over either as Go
// values or as JSON (see Parse).
package ast

// Span is a source range attached to statements.
type Span struct {
	Start  int `json:"start"`
	End    int `json:"end"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Program is a parsed Ifá source file.
type Program struct {
	Statements []Stmt
}

// Node is the interface implemented by all tree nodes.
type Node interface {
	node() // marker method
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	Pos() Span
	stmt() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// VarDecl declares a variable: ayanmo x = 5;
type VarDecl struct {
	SpanVal Span
	Name    string
	Value   Expr
}

// Assign stores into a variable or an indexed element.
type Assign struct {
	SpanVal Span
	Target  AssignTarget
	Value   Expr
}

// AssignTarget is either a plain name or name[Index] when Index is set.
type AssignTarget struct {
	Name  string
	Index Expr
}

// Import binds a module: iba std.otura;
type Import struct {
	SpanVal Span
	Path    []string
}

// Instruction is an Odù call used as a statement.
type Instruction struct {
	SpanVal Span
	Call    *OduCall
}

// ClassDef defines a class: odu Server { ... }
type ClassDef struct {
	SpanVal Span
	Name    string
	Body    []Stmt
}

// FuncDef defines a function: ese start(a, b) { ... }
type FuncDef struct {
	SpanVal Span
	Name    string
	Params  []string
	Body    []Stmt
}

// If is a conditional with an optional else branch.
type If struct {
	SpanVal   Span
	Condition Expr
	Then      []Stmt
	Else      []Stmt
}

// While loops while Condition is truthy.
type While struct {
	SpanVal   Span
	Condition Expr
	Body      []Stmt
}

// For iterates a list: fun i ninu items { ... }
type For struct {
	SpanVal  Span
	Var      string
	Iterable Expr
	Body     []Stmt
}

// Return leaves the current function. Value may be nil.
type Return struct {
	SpanVal Span
	Value   Expr
}

// Ase ends the program.
type Ase struct {
	SpanVal Span
}

// Taboo forbids calls from one domain to another. It produces no code.
type Taboo struct {
	SpanVal Span
	Source  string
	Target  string
}

// Ewo is an assertion with an optional message.
type Ewo struct {
	SpanVal   Span
	Condition Expr
	Message   string
}

// OponDirective selects the memory preset: #opon kekere;
type OponDirective struct {
	SpanVal Span
	Size    string
}

// Ebo is an offering directive. It produces no code.
type Ebo struct {
	SpanVal  Span
	Offering Expr
}

// Match selects the first arm whose pattern matches Subject.
type Match struct {
	SpanVal Span
	Subject Expr
	Arms    []MatchArm
}

// MatchArm pairs a pattern with a body.
type MatchArm struct {
	Pattern Pattern
	Body    []Stmt
}

// PatternKind distinguishes match patterns.
type PatternKind int

const (
	PatternLiteral PatternKind = iota
	PatternRange
	PatternWildcard
)

// Pattern is a literal, an inclusive range Value..End, or a wildcard.
type Pattern struct {
	Kind  PatternKind
	Value Expr
	End   Expr
}

// ExprStmt evaluates an expression for its effects.
type ExprStmt struct {
	SpanVal Span
	X       Expr
}

func (s *VarDecl) Pos() Span       { return s.SpanVal }
func (s *Assign) Pos() Span        { return s.SpanVal }
func (s *Import) Pos() Span        { return s.SpanVal }
func (s *Instruction) Pos() Span   { return s.SpanVal }
func (s *ClassDef) Pos() Span      { return s.SpanVal }
func (s *FuncDef) Pos() Span       { return s.SpanVal }
func (s *If) Pos() Span            { return s.SpanVal }
func (s *While) Pos() Span         { return s.SpanVal }
func (s *For) Pos() Span           { return s.SpanVal }
func (s *Return) Pos() Span        { return s.SpanVal }
func (s *Ase) Pos() Span           { return s.SpanVal }
func (s *Taboo) Pos() Span         { return s.SpanVal }
func (s *Ewo) Pos() Span           { return s.SpanVal }
func (s *OponDirective) Pos() Span { return s.SpanVal }
func (s *Ebo) Pos() Span           { return s.SpanVal }
func (s *Match) Pos() Span         { return s.SpanVal }
func (s *ExprStmt) Pos() Span      { return s.SpanVal }

func (*VarDecl) node()       {}
func (*Assign) node()        {}
func (*Import) node()        {}
func (*Instruction) node()   {}
func (*ClassDef) node()      {}
func (*FuncDef) node()       {}
func (*If) node()            {}
func (*While) node()         {}
func (*For) node()           {}
func (*Return) node()        {}
func (*Ase) node()           {}
func (*Taboo) node()         {}
func (*Ewo) node()           {}
func (*OponDirective) node() {}
func (*Ebo) node()           {}
func (*Match) node()         {}
func (*ExprStmt) node()      {}

func (*VarDecl) stmt()       {}
func (*Assign) stmt()        {}
func (*Import) stmt()        {}
func (*Instruction) stmt()   {}
func (*ClassDef) stmt()      {}
func (*FuncDef) stmt()       {}
func (*If) stmt()            {}
func (*While) stmt()         {}
func (*For) stmt()           {}
func (*Return) stmt()        {}
func (*Ase) stmt()           {}
func (*Taboo) stmt()         {}
func (*Ewo) stmt()           {}
func (*OponDirective) stmt() {}
func (*Ebo) stmt()           {}
func (*Match) stmt()         {}
func (*ExprStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// IntLit is an integer literal.
type IntLit struct{ Value int64 }

// FloatLit is a floating-point literal.
type FloatLit struct{ Value float64 }

// StringLit is a string literal.
type StringLit struct{ Value string }

// BoolLit is a boolean literal.
type BoolLit struct{ Value bool }

// NilLit is the null literal.
type NilLit struct{}

// Ident references a variable by name.
type Ident struct{ Name string }

// Binary applies a binary operator.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// Unary applies a unary operator.
type Unary struct {
	Op UnaryOp
	X  Expr
}

// OduCall calls a method of an Odù domain: Obara.fikun(10)
type OduCall struct {
	Domain string
	Method string
	Args   []Expr
}

// MethodCall calls a method on a receiver value: obj.method(args)
type MethodCall struct {
	Receiver Expr
	Method   string
	Args     []Expr
}

// Call calls a function or class by name.
type Call struct {
	Name string
	Args []Expr
}

// ListLit is a list literal.
type ListLit struct{ Elements []Expr }

// MapEntry is one key/value pair of a map literal.
type MapEntry struct {
	Key   Expr
	Value Expr
}

// MapLit is a map literal.
type MapLit struct{ Entries []MapEntry }

// Index reads Object[Index].
type Index struct {
	Object Expr
	Index  Expr
}

func (*IntLit) node()     {}
func (*FloatLit) node()   {}
func (*StringLit) node()  {}
func (*BoolLit) node()    {}
func (*NilLit) node()     {}
func (*Ident) node()      {}
func (*Binary) node()     {}
func (*Unary) node()      {}
func (*OduCall) node()    {}
func (*MethodCall) node() {}
func (*Call) node()       {}
func (*ListLit) node()    {}
func (*MapLit) node()     {}
func (*Index) node()      {}

func (*IntLit) expr()     {}
func (*FloatLit) expr()   {}
func (*StringLit) expr()  {}
func (*BoolLit) expr()    {}
func (*NilLit) expr()     {}
func (*Ident) expr()      {}
func (*Binary) expr()     {}
func (*Unary) expr()      {}
func (*OduCall) expr()    {}
func (*MethodCall) expr() {}
func (*Call) expr()       {}
func (*ListLit) expr()    {}
func (*MapLit) expr()     {}
func (*Index) expr()      {}

// BinaryOp is a binary operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpEq
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpAnd
	OpOr
)

var binaryOpSymbols = [...]string{
	OpAdd:   "+",
	OpSub:   "-",
	OpMul:   "*",
	OpDiv:   "/",
	OpMod:   "%",
	OpPow:   "**",
	OpEq:    "==",
	OpNotEq: "!=",
	OpLt:    "<",
	OpLtEq:  "<=",
	OpGt:    ">",
	OpGtEq:  ">=",
	OpAnd:   "&&",
	OpOr:    "||",
}

func (op BinaryOp) String() string {
	if op >= 0 && int(op) < len(binaryOpSymbols) {
		return binaryOpSymbols[op]
	}
	return "?"
}

// ParseBinaryOp maps an operator symbol to a BinaryOp.
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for i, sym := range binaryOpSymbols {
		if sym == s {
			return BinaryOp(i), true
		}
	}
	return 0, false
}

// UnaryOp is a unary operator.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
)

func (op UnaryOp) String() string {
	switch op {
	case OpNeg:
		return "-"
	case OpNot:
		return "!"
	}
	return "?"
}

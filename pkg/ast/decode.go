package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// jsonNode is the wire shape shared by every node. The "type" field selects
// which of the remaining fields are meaningful.
type jsonNode struct {
	Type string `json:"type"`
	Span Span   `json:"span"`

	Name      string            `json:"name"`
	Value     json.RawMessage   `json:"value"`
	Target    *jsonTarget       `json:"target"`
	Path      []string          `json:"path"`
	Call      json.RawMessage   `json:"call"`
	Body      []json.RawMessage `json:"body"`
	Params    []string          `json:"params"`
	Condition json.RawMessage   `json:"condition"`
	Then      []json.RawMessage `json:"then"`
	Else      []json.RawMessage `json:"else"`
	Var       string            `json:"var"`
	Iterable  json.RawMessage   `json:"iterable"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Message   string            `json:"message"`
	Size      string            `json:"size"`
	Offering  json.RawMessage   `json:"offering"`
	Arms      []jsonArm         `json:"arms"`
	Expr      json.RawMessage   `json:"expr"`

	Op       string            `json:"op"`
	Left     json.RawMessage   `json:"left"`
	Right    json.RawMessage   `json:"right"`
	Operand  json.RawMessage   `json:"operand"`
	Domain   string            `json:"domain"`
	Method   string            `json:"method"`
	Args     []json.RawMessage `json:"args"`
	Receiver json.RawMessage   `json:"receiver"`
	Elements []json.RawMessage `json:"elements"`
	Entries  []jsonEntry       `json:"entries"`
	Object   json.RawMessage   `json:"object"`
	Index    json.RawMessage   `json:"index"`
}

type jsonTarget struct {
	Name  string          `json:"name"`
	Index json.RawMessage `json:"index"`
}

type jsonArm struct {
	Pattern jsonPattern       `json:"pattern"`
	Body    []json.RawMessage `json:"body"`
}

type jsonPattern struct {
	Kind  string          `json:"kind"` // literal, range, wildcard
	Value json.RawMessage `json:"value"`
	Start json.RawMessage `json:"start"`
	End   json.RawMessage `json:"end"`
}

type jsonEntry struct {
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value"`
}

type jsonProgram struct {
	Statements []json.RawMessage `json:"statements"`
}

// Parse decodes a JSON program tree as emitted by the Ifá parser.
func Parse(r io.Reader) (*Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes decodes a JSON program tree from a byte slice.
func ParseBytes(data []byte) (*Program, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("failed to parse program: empty input")
	}
	var raw jsonProgram
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}
	stmts, err := decodeStmts(raw.Statements)
	if err != nil {
		return nil, err
	}
	return &Program{Statements: stmts}, nil
}

func isAbsent(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || string(t) == "null"
}

func decodeStmts(raws []json.RawMessage) ([]Stmt, error) {
	stmts := make([]Stmt, 0, len(raws))
	for i, raw := range raws {
		s, err := decodeStmt(raw)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func decodeStmt(raw json.RawMessage) (Stmt, error) {
	var n jsonNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}

	switch n.Type {
	case "var_decl":
		v, err := decodeExpr(n.Value)
		if err != nil {
			return nil, fmt.Errorf("var_decl %s: %w", n.Name, err)
		}
		return &VarDecl{SpanVal: n.Span, Name: n.Name, Value: v}, nil

	case "assign":
		if n.Target == nil {
			return nil, fmt.Errorf("assign: missing target")
		}
		v, err := decodeExpr(n.Value)
		if err != nil {
			return nil, fmt.Errorf("assign %s: %w", n.Target.Name, err)
		}
		target := AssignTarget{Name: n.Target.Name}
		if !isAbsent(n.Target.Index) {
			if target.Index, err = decodeExpr(n.Target.Index); err != nil {
				return nil, fmt.Errorf("assign %s index: %w", n.Target.Name, err)
			}
		}
		return &Assign{SpanVal: n.Span, Target: target, Value: v}, nil

	case "import":
		return &Import{SpanVal: n.Span, Path: n.Path}, nil

	case "instruction":
		x, err := decodeExpr(n.Call)
		if err != nil {
			return nil, fmt.Errorf("instruction: %w", err)
		}
		call, ok := x.(*OduCall)
		if !ok {
			return nil, fmt.Errorf("instruction: call is %T, want odu_call", x)
		}
		return &Instruction{SpanVal: n.Span, Call: call}, nil

	case "class":
		body, err := decodeStmts(n.Body)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", n.Name, err)
		}
		return &ClassDef{SpanVal: n.Span, Name: n.Name, Body: body}, nil

	case "function":
		body, err := decodeStmts(n.Body)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", n.Name, err)
		}
		return &FuncDef{SpanVal: n.Span, Name: n.Name, Params: n.Params, Body: body}, nil

	case "if":
		cond, err := decodeExpr(n.Condition)
		if err != nil {
			return nil, fmt.Errorf("if condition: %w", err)
		}
		then, err := decodeStmts(n.Then)
		if err != nil {
			return nil, fmt.Errorf("if then: %w", err)
		}
		var els []Stmt
		if n.Else != nil {
			if els, err = decodeStmts(n.Else); err != nil {
				return nil, fmt.Errorf("if else: %w", err)
			}
		}
		return &If{SpanVal: n.Span, Condition: cond, Then: then, Else: els}, nil

	case "while":
		cond, err := decodeExpr(n.Condition)
		if err != nil {
			return nil, fmt.Errorf("while condition: %w", err)
		}
		body, err := decodeStmts(n.Body)
		if err != nil {
			return nil, fmt.Errorf("while body: %w", err)
		}
		return &While{SpanVal: n.Span, Condition: cond, Body: body}, nil

	case "for":
		iter, err := decodeExpr(n.Iterable)
		if err != nil {
			return nil, fmt.Errorf("for iterable: %w", err)
		}
		body, err := decodeStmts(n.Body)
		if err != nil {
			return nil, fmt.Errorf("for body: %w", err)
		}
		return &For{SpanVal: n.Span, Var: n.Var, Iterable: iter, Body: body}, nil

	case "return":
		ret := &Return{SpanVal: n.Span}
		if !isAbsent(n.Value) {
			v, err := decodeExpr(n.Value)
			if err != nil {
				return nil, fmt.Errorf("return: %w", err)
			}
			ret.Value = v
		}
		return ret, nil

	case "ase":
		return &Ase{SpanVal: n.Span}, nil

	case "taboo":
		return &Taboo{SpanVal: n.Span, Source: n.From, Target: n.To}, nil

	case "ewo":
		cond, err := decodeExpr(n.Condition)
		if err != nil {
			return nil, fmt.Errorf("ewo: %w", err)
		}
		return &Ewo{SpanVal: n.Span, Condition: cond, Message: n.Message}, nil

	case "opon":
		return &OponDirective{SpanVal: n.Span, Size: n.Size}, nil

	case "ebo":
		off, err := decodeExpr(n.Offering)
		if err != nil {
			return nil, fmt.Errorf("ebo: %w", err)
		}
		return &Ebo{SpanVal: n.Span, Offering: off}, nil

	case "match":
		subject, err := decodeExpr(n.Condition)
		if err != nil {
			return nil, fmt.Errorf("match subject: %w", err)
		}
		m := &Match{SpanVal: n.Span, Subject: subject}
		for i, a := range n.Arms {
			arm, err := decodeArm(a)
			if err != nil {
				return nil, fmt.Errorf("match arm %d: %w", i, err)
			}
			m.Arms = append(m.Arms, arm)
		}
		return m, nil

	case "expr":
		x, err := decodeExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{SpanVal: n.Span, X: x}, nil

	case "":
		return nil, fmt.Errorf("statement without type")
	}
	return nil, fmt.Errorf("unknown statement type %q", n.Type)
}

func decodeArm(a jsonArm) (MatchArm, error) {
	var arm MatchArm
	var err error
	switch a.Pattern.Kind {
	case "literal":
		arm.Pattern.Kind = PatternLiteral
		if arm.Pattern.Value, err = decodeExpr(a.Pattern.Value); err != nil {
			return arm, err
		}
	case "range":
		arm.Pattern.Kind = PatternRange
		if arm.Pattern.Value, err = decodeExpr(a.Pattern.Start); err != nil {
			return arm, err
		}
		if arm.Pattern.End, err = decodeExpr(a.Pattern.End); err != nil {
			return arm, err
		}
	case "wildcard", "_":
		arm.Pattern.Kind = PatternWildcard
	default:
		return arm, fmt.Errorf("unknown pattern kind %q", a.Pattern.Kind)
	}
	arm.Body, err = decodeStmts(a.Body)
	return arm, err
}

func decodeExprs(raws []json.RawMessage) ([]Expr, error) {
	exprs := make([]Expr, 0, len(raws))
	for i, raw := range raws {
		x, err := decodeExpr(raw)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		exprs = append(exprs, x)
	}
	return exprs, nil
}

func decodeExpr(raw json.RawMessage) (Expr, error) {
	if isAbsent(raw) {
		return nil, fmt.Errorf("missing expression")
	}
	var n jsonNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}

	switch n.Type {
	case "int":
		var v int64
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, fmt.Errorf("int literal: %w", err)
		}
		return &IntLit{Value: v}, nil

	case "float":
		var v float64
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, fmt.Errorf("float literal: %w", err)
		}
		return &FloatLit{Value: v}, nil

	case "string":
		var v string
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, fmt.Errorf("string literal: %w", err)
		}
		return &StringLit{Value: v}, nil

	case "bool":
		var v bool
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, fmt.Errorf("bool literal: %w", err)
		}
		return &BoolLit{Value: v}, nil

	case "nil":
		return &NilLit{}, nil

	case "ident":
		return &Ident{Name: n.Name}, nil

	case "binary":
		op, ok := ParseBinaryOp(n.Op)
		if !ok {
			return nil, fmt.Errorf("unknown binary operator %q", n.Op)
		}
		left, err := decodeExpr(n.Left)
		if err != nil {
			return nil, fmt.Errorf("%s left: %w", n.Op, err)
		}
		right, err := decodeExpr(n.Right)
		if err != nil {
			return nil, fmt.Errorf("%s right: %w", n.Op, err)
		}
		return &Binary{Op: op, Left: left, Right: right}, nil

	case "unary":
		var op UnaryOp
		switch n.Op {
		case "-":
			op = OpNeg
		case "!", "not":
			op = OpNot
		default:
			return nil, fmt.Errorf("unknown unary operator %q", n.Op)
		}
		x, err := decodeExpr(n.Operand)
		if err != nil {
			return nil, fmt.Errorf("%s operand: %w", n.Op, err)
		}
		return &Unary{Op: op, X: x}, nil

	case "odu_call":
		args, err := decodeExprs(n.Args)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", n.Domain, n.Method, err)
		}
		return &OduCall{Domain: n.Domain, Method: n.Method, Args: args}, nil

	case "method_call":
		recv, err := decodeExpr(n.Receiver)
		if err != nil {
			return nil, fmt.Errorf("method %s receiver: %w", n.Method, err)
		}
		args, err := decodeExprs(n.Args)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", n.Method, err)
		}
		return &MethodCall{Receiver: recv, Method: n.Method, Args: args}, nil

	case "call":
		args, err := decodeExprs(n.Args)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", n.Name, err)
		}
		return &Call{Name: n.Name, Args: args}, nil

	case "list":
		elems, err := decodeExprs(n.Elements)
		if err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}
		return &ListLit{Elements: elems}, nil

	case "map":
		m := &MapLit{}
		for i, e := range n.Entries {
			k, err := decodeExpr(e.Key)
			if err != nil {
				return nil, fmt.Errorf("map entry %d key: %w", i, err)
			}
			v, err := decodeExpr(e.Value)
			if err != nil {
				return nil, fmt.Errorf("map entry %d value: %w", i, err)
			}
			m.Entries = append(m.Entries, MapEntry{Key: k, Value: v})
		}
		return m, nil

	case "index":
		obj, err := decodeExpr(n.Object)
		if err != nil {
			return nil, fmt.Errorf("index object: %w", err)
		}
		idx, err := decodeExpr(n.Index)
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
		return &Index{Object: obj, Index: idx}, nil

	case "":
		return nil, fmt.Errorf("expression without type")
	}
	return nil, fmt.Errorf("unknown expression type %q", n.Type)
}

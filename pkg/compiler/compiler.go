// Package compiler lowers an Ifá program tree to bytecode in a single pass.
//
// Names declared at the top level of a module are globals. Names declared
// in any nested block or function body are locals living on the operand
// stack: a declaration leaves its value in place as the slot, and leaving
// the block pops it. Functions are bytecode chunks emitted inline behind a
// forward jump and created at runtime by PUSH_FN.
package compiler

import (
	"fmt"
	"math"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/ifa/pkg/ast"
	"github.com/chazu/ifa/pkg/bytecode"
	"github.com/chazu/ifa/pkg/opon"
	"github.com/chazu/ifa/pkg/registry"
)

var log = commonlog.GetLogger("ifa.compiler")

// selfName is the receiver parameter of class methods.
const selfName = "self"

// Compiler converts a program tree to bytecode.
type Compiler struct {
	b    *bytecode.Builder
	fn   *funcState
	span ast.Span // statement being compiled
}

// binding is where a name lives: a local slot or a named global.
type binding struct {
	local  bool
	slot   bytecode.LocalSlot
	global bytecode.GlobalName
}

// Compile compiles prog. sourceName is recorded in the artifact.
func Compile(prog *ast.Program, sourceName string) (*bytecode.Bytecode, error) {
	return New(sourceName).Compile(prog)
}

// New creates a compiler for one program.
func New(sourceName string) *Compiler {
	return &Compiler{
		b:  bytecode.NewBuilder(sourceName),
		fn: newFuncState("<module>"),
	}
}

// Compile emits prog and returns the finished artifact. A Compiler is
// single use.
func (c *Compiler) Compile(prog *ast.Program) (*bytecode.Bytecode, error) {
	if prog == nil {
		return nil, &Error{Msg: "nil program"}
	}
	last := len(prog.Statements) - 1
	for i, stmt := range prog.Statements {
		// The trailing expression statement is the program's result.
		if es, ok := stmt.(*ast.ExprStmt); ok && i == last {
			c.span = es.SpanVal
			c.b.MarkLine(es.SpanVal.Line)
			if err := c.compileExpr(es.X); err != nil {
				return nil, err
			}
			continue
		}
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	c.b.Op(bytecode.OpHalt)

	bc := c.b.Finish()
	log.Debugf("compiled %s: %d bytes, %d strings", bc.SourceName, len(bc.Code), len(bc.Strings))
	return bc, nil
}

func (c *Compiler) compileBlock(stmts []ast.Stmt) error {
	c.fn.beginScope()
	for _, s := range stmts {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}
	c.endScope()
	return nil
}

// endScope closes the innermost block and pops its locals.
func (c *Compiler) endScope() {
	for n := c.fn.endScope(); n > 0; n-- {
		c.b.Op(bytecode.OpPop)
	}
}

func (c *Compiler) compileStmt(stmt ast.Stmt) error {
	if stmt == nil {
		return c.errorf("nil statement")
	}
	c.span = stmt.Pos()
	c.b.MarkLine(c.span.Line)

	switch s := stmt.(type) {
	case *ast.VarDecl:
		return c.compileVarDecl(s)
	case *ast.Assign:
		return c.compileAssign(s)
	case *ast.ExprStmt:
		if err := c.compileExpr(s.X); err != nil {
			return err
		}
		c.b.Op(bytecode.OpPop)
		return nil
	case *ast.Instruction:
		if s.Call == nil {
			return c.errorf("instruction without a call")
		}
		if err := c.compileOduCall(s.Call); err != nil {
			return err
		}
		c.b.Op(bytecode.OpPop)
		return nil
	case *ast.If:
		return c.compileIf(s)
	case *ast.While:
		return c.compileWhile(s)
	case *ast.For:
		return c.compileFor(s)
	case *ast.Match:
		return c.compileMatch(s)
	case *ast.Return:
		if s.Value == nil {
			c.b.Op(bytecode.OpPushNull)
		} else if err := c.compileExpr(s.Value); err != nil {
			return err
		}
		c.b.Op(bytecode.OpReturn)
		return nil
	case *ast.Ase:
		c.b.Op(bytecode.OpHalt)
		return nil
	case *ast.FuncDef:
		if err := c.compileFunction(s.Name, s.Params, s.Body); err != nil {
			return err
		}
		return c.bindNew(s.Name)
	case *ast.ClassDef:
		return c.compileClass(s)
	case *ast.Import:
		return c.compileImport(s)
	case *ast.Ewo:
		if err := c.compileExpr(s.Condition); err != nil {
			return err
		}
		return c.check(c.b.Assert(s.Message))
	case *ast.OponDirective:
		size, err := opon.ParseSize(s.Size)
		if err != nil {
			return c.wrap(err)
		}
		c.b.SetOpon(size.String())
		return nil
	case *ast.Taboo, *ast.Ebo:
		// Checked by the linter; no runtime effect.
		return nil
	}
	return c.errorf("unsupported statement %T", stmt)
}

func (c *Compiler) compileVarDecl(s *ast.VarDecl) error {
	if s.Name == "" {
		return c.errorf("variable declaration without a name")
	}
	if s.Value == nil {
		c.b.Op(bytecode.OpPushNull)
	} else if err := c.compileExpr(s.Value); err != nil {
		return err
	}
	return c.bindNew(s.Name)
}

// bindNew binds the value on top of the stack to a newly declared name.
func (c *Compiler) bindNew(name string) error {
	if c.fn.depth() == 0 {
		return c.check(c.b.StoreGlobal(bytecode.GlobalName(name)))
	}
	slot, fresh, ok := c.fn.declare(name)
	if !ok {
		return c.errorf("too many locals in %s", c.fn.name)
	}
	if !fresh {
		c.b.StoreLocal(slot)
	}
	return nil
}

// declareHidden binds the value on top of the stack to a compiler-made
// local in the current block.
func (c *Compiler) declareHidden(name string) (bytecode.LocalSlot, error) {
	slot, _, ok := c.fn.declare(name)
	if !ok {
		return 0, c.errorf("too many locals in %s", c.fn.name)
	}
	return slot, nil
}

func (c *Compiler) lookup(name string) binding {
	if slot, ok := c.fn.resolve(name); ok {
		return binding{local: true, slot: slot}
	}
	return binding{global: bytecode.GlobalName(name)}
}

func (c *Compiler) emitLoad(b binding) error {
	if b.local {
		c.b.LoadLocal(b.slot)
		return nil
	}
	return c.check(c.b.LoadGlobal(b.global))
}

func (c *Compiler) emitStore(b binding) error {
	if b.local {
		c.b.StoreLocal(b.slot)
		return nil
	}
	return c.check(c.b.StoreGlobal(b.global))
}

func (c *Compiler) compileAssign(s *ast.Assign) error {
	if s.Target.Name == "" {
		return c.errorf("assignment without a target")
	}
	target := c.lookup(s.Target.Name)
	if s.Target.Index == nil {
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
		return c.emitStore(target)
	}

	// container, index, value -> SET_INDEX leaves the updated container
	if err := c.emitLoad(target); err != nil {
		return err
	}
	if err := c.compileExpr(s.Target.Index); err != nil {
		return err
	}
	if err := c.compileExpr(s.Value); err != nil {
		return err
	}
	c.b.Op(bytecode.OpSetIndex)
	return c.emitStore(target)
}

func (c *Compiler) compileIf(s *ast.If) error {
	if err := c.compileExpr(s.Condition); err != nil {
		return err
	}
	elseJump := c.b.EmitJump(bytecode.OpJumpIfFalse)
	if err := c.compileBlock(s.Then); err != nil {
		return err
	}
	if s.Else == nil {
		return c.check(c.b.PatchJump(elseJump))
	}
	endJump := c.b.EmitJump(bytecode.OpJump)
	if err := c.check(c.b.PatchJump(elseJump)); err != nil {
		return err
	}
	if err := c.compileBlock(s.Else); err != nil {
		return err
	}
	return c.check(c.b.PatchJump(endJump))
}

func (c *Compiler) compileWhile(s *ast.While) error {
	top := c.b.Mark()
	if err := c.compileExpr(s.Condition); err != nil {
		return err
	}
	exit := c.b.EmitJump(bytecode.OpJumpIfFalse)
	if err := c.compileBlock(s.Body); err != nil {
		return err
	}
	if err := c.check(c.b.EmitLoop(top)); err != nil {
		return err
	}
	return c.check(c.b.PatchJump(exit))
}

// compileFor walks the iterable by index with two hidden locals.
func (c *Compiler) compileFor(s *ast.For) error {
	if s.Var == "" {
		return c.errorf("for loop without a variable")
	}
	c.fn.beginScope()
	if err := c.compileExpr(s.Iterable); err != nil {
		return err
	}
	coll, err := c.declareHidden(" for.collection")
	if err != nil {
		return err
	}
	c.b.PushInt(0)
	idx, err := c.declareHidden(" for.index")
	if err != nil {
		return err
	}

	top := c.b.Mark()
	c.b.LoadLocal(idx)
	c.b.LoadLocal(coll)
	c.b.Op(bytecode.OpLen)
	c.b.Op(bytecode.OpLt)
	exit := c.b.EmitJump(bytecode.OpJumpIfFalse)

	c.fn.beginScope()
	c.b.LoadLocal(coll)
	c.b.LoadLocal(idx)
	c.b.Op(bytecode.OpGetIndex)
	if _, err := c.declareHidden(s.Var); err != nil {
		return err
	}
	for _, stmt := range s.Body {
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	c.endScope()

	c.b.LoadLocal(idx)
	c.b.PushInt(1)
	c.b.Op(bytecode.OpAdd)
	c.b.StoreLocal(idx)
	if err := c.check(c.b.EmitLoop(top)); err != nil {
		return err
	}
	if err := c.check(c.b.PatchJump(exit)); err != nil {
		return err
	}
	c.endScope()
	return nil
}

// compileMatch lowers arms to a chain of tests against a hidden copy of
// the subject. The first matching arm runs; a wildcard always matches.
func (c *Compiler) compileMatch(s *ast.Match) error {
	c.fn.beginScope()
	if err := c.compileExpr(s.Subject); err != nil {
		return err
	}
	subject, err := c.declareHidden(" match.subject")
	if err != nil {
		return err
	}

	var ends []bytecode.Jump
	for _, arm := range s.Arms {
		var next bytecode.Jump
		conditional := true
		switch arm.Pattern.Kind {
		case ast.PatternWildcard:
			conditional = false
		case ast.PatternLiteral:
			c.b.LoadLocal(subject)
			if err := c.compileExpr(arm.Pattern.Value); err != nil {
				return err
			}
			c.b.Op(bytecode.OpEq)
		case ast.PatternRange:
			c.b.LoadLocal(subject)
			if err := c.compileExpr(arm.Pattern.Value); err != nil {
				return err
			}
			c.b.Op(bytecode.OpGe)
			c.b.LoadLocal(subject)
			if err := c.compileExpr(arm.Pattern.End); err != nil {
				return err
			}
			c.b.Op(bytecode.OpLe)
			c.b.Op(bytecode.OpAnd)
		default:
			return c.errorf("unknown match pattern kind %d", arm.Pattern.Kind)
		}
		if conditional {
			next = c.b.EmitJump(bytecode.OpJumpIfFalse)
		}
		if err := c.compileBlock(arm.Body); err != nil {
			return err
		}
		ends = append(ends, c.b.EmitJump(bytecode.OpJump))
		if conditional {
			if err := c.check(c.b.PatchJump(next)); err != nil {
				return err
			}
		}
	}
	for _, j := range ends {
		if err := c.check(c.b.PatchJump(j)); err != nil {
			return err
		}
	}
	c.endScope()
	return nil
}

// compileFunction emits a function body behind a forward jump and leaves
// the function value on the stack. Parameters are locals 0..n-1.
func (c *Compiler) compileFunction(name string, params []string, body []ast.Stmt) error {
	if name == "" {
		return c.errorf("function without a name")
	}
	if len(params) > math.MaxUint8 {
		return c.errorf("function %s has %d parameters (max %d)", name, len(params), math.MaxUint8)
	}
	skip := c.b.EmitJump(bytecode.OpJump)
	start := c.b.Offset()

	enclosing := c.fn
	c.fn = newFuncState(name)
	c.fn.beginScope()
	for _, p := range params {
		if _, fresh, _ := c.fn.declare(p); !fresh {
			c.fn = enclosing
			return c.errorf("function %s repeats parameter %s", name, p)
		}
	}
	for _, stmt := range body {
		if err := c.compileStmt(stmt); err != nil {
			c.fn = enclosing
			return err
		}
	}
	c.b.Op(bytecode.OpPushNull)
	c.b.Op(bytecode.OpReturn)
	// RETURN already discards the frame, so no pops.
	c.fn = enclosing

	if err := c.check(c.b.PatchJump(skip)); err != nil {
		return err
	}
	return c.check(c.b.PushFn(name, start, len(params)))
}

// compileClass pushes (name, default) for each field, then each method,
// and binds the class built by DEFINE_CLASS.
func (c *Compiler) compileClass(s *ast.ClassDef) error {
	if s.Name == "" {
		return c.errorf("class without a name")
	}
	var fields, methods int
	for _, stmt := range s.Body {
		if f, ok := stmt.(*ast.VarDecl); ok {
			c.span = f.SpanVal
			if err := c.check(c.b.PushStr(f.Name)); err != nil {
				return err
			}
			if f.Value == nil {
				c.b.Op(bytecode.OpPushNull)
			} else if err := c.compileExpr(f.Value); err != nil {
				return err
			}
			fields++
		}
	}
	for _, stmt := range s.Body {
		switch m := stmt.(type) {
		case *ast.VarDecl:
		case *ast.FuncDef:
			c.span = m.SpanVal
			params := m.Params
			if len(params) == 0 || params[0] != selfName {
				params = append([]string{selfName}, params...)
			}
			if err := c.compileFunction(m.Name, params, m.Body); err != nil {
				return err
			}
			methods++
		default:
			c.span = stmt.Pos()
			return c.errorf("class %s: %T is not a field or method", s.Name, stmt)
		}
	}
	c.span = s.SpanVal
	if err := c.check(c.b.DefineClass(s.Name, fields, methods)); err != nil {
		return err
	}
	return c.bindNew(s.Name)
}

// compileImport binds the module to the last path segment.
func (c *Compiler) compileImport(s *ast.Import) error {
	if len(s.Path) == 0 {
		return c.errorf("empty import path")
	}
	if err := c.check(c.b.Import(strings.Join(s.Path, "."))); err != nil {
		return err
	}
	return c.bindNew(s.Path[len(s.Path)-1])
}

func (c *Compiler) check(err error) error {
	if err == nil {
		return nil
	}
	return c.wrap(err)
}

func (c *Compiler) wrap(err error) error {
	return &Error{Span: c.span, Err: err}
}

func (c *Compiler) errorf(format string, args ...any) error {
	return &Error{Span: c.span, Msg: fmt.Sprintf(format, args...)}
}

// domainID maps an Odù domain name to its bytecode id.
func domainID(name string) (uint8, error) {
	d, err := registry.ParseDomain(name)
	if err != nil {
		return 0, err
	}
	return uint8(d), nil
}

package compiler

import (
	"math"

	"github.com/chazu/ifa/pkg/ast"
	"github.com/chazu/ifa/pkg/bytecode"
)

var binaryOpcodes = map[ast.BinaryOp]bytecode.Opcode{
	ast.OpAdd:   bytecode.OpAdd,
	ast.OpSub:   bytecode.OpSub,
	ast.OpMul:   bytecode.OpMul,
	ast.OpDiv:   bytecode.OpDiv,
	ast.OpMod:   bytecode.OpMod,
	ast.OpPow:   bytecode.OpPow,
	ast.OpEq:    bytecode.OpEq,
	ast.OpNotEq: bytecode.OpNe,
	ast.OpLt:    bytecode.OpLt,
	ast.OpLtEq:  bytecode.OpLe,
	ast.OpGt:    bytecode.OpGt,
	ast.OpGtEq:  bytecode.OpGe,
	ast.OpAnd:   bytecode.OpAnd,
	ast.OpOr:    bytecode.OpOr,
}

func (c *Compiler) compileExpr(expr ast.Expr) error {
	switch e := expr.(type) {
	case nil:
		return c.errorf("missing expression")
	case *ast.IntLit:
		c.b.PushInt(e.Value)
	case *ast.FloatLit:
		c.b.PushFloat(e.Value)
	case *ast.StringLit:
		return c.check(c.b.PushStr(e.Value))
	case *ast.BoolLit:
		if e.Value {
			c.b.Op(bytecode.OpPushTrue)
		} else {
			c.b.Op(bytecode.OpPushFalse)
		}
	case *ast.NilLit:
		c.b.Op(bytecode.OpPushNull)
	case *ast.Ident:
		return c.emitLoad(c.lookup(e.Name))
	case *ast.Binary:
		op, ok := binaryOpcodes[e.Op]
		if !ok {
			return c.errorf("unknown binary operator %s", e.Op)
		}
		if err := c.compileExpr(e.Left); err != nil {
			return err
		}
		if err := c.compileExpr(e.Right); err != nil {
			return err
		}
		c.b.Op(op)
	case *ast.Unary:
		if err := c.compileExpr(e.X); err != nil {
			return err
		}
		switch e.Op {
		case ast.OpNeg:
			c.b.Op(bytecode.OpNeg)
		case ast.OpNot:
			c.b.Op(bytecode.OpNot)
		default:
			return c.errorf("unknown unary operator %d", e.Op)
		}
	case *ast.OduCall:
		return c.compileOduCall(e)
	case *ast.Call:
		if err := c.emitLoad(c.lookup(e.Name)); err != nil {
			return err
		}
		if err := c.compileExprs(e.Args); err != nil {
			return err
		}
		return c.check(c.b.Call(len(e.Args)))
	case *ast.MethodCall:
		if err := c.compileExpr(e.Receiver); err != nil {
			return err
		}
		if err := c.compileExprs(e.Args); err != nil {
			return err
		}
		return c.check(c.b.CallMethod(e.Method, len(e.Args)))
	case *ast.ListLit:
		return c.compileList(e)
	case *ast.MapLit:
		return c.compileMap(e)
	case *ast.Index:
		if err := c.compileExpr(e.Object); err != nil {
			return err
		}
		if err := c.compileExpr(e.Index); err != nil {
			return err
		}
		c.b.Op(bytecode.OpGetIndex)
	default:
		return c.errorf("unsupported expression %T", expr)
	}
	return nil
}

func (c *Compiler) compileExprs(exprs []ast.Expr) error {
	for _, e := range exprs {
		if err := c.compileExpr(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileOduCall(call *ast.OduCall) error {
	domain, err := domainID(call.Domain)
	if err != nil {
		return c.wrap(err)
	}
	if err := c.compileExprs(call.Args); err != nil {
		return err
	}
	return c.check(c.b.CallOdu(domain, call.Method, len(call.Args)))
}

// compileList uses BUILD_LIST when the element count fits its operand and
// appends one element at a time otherwise.
func (c *Compiler) compileList(l *ast.ListLit) error {
	if len(l.Elements) <= math.MaxUint8 {
		if err := c.compileExprs(l.Elements); err != nil {
			return err
		}
		return c.check(c.b.BuildList(len(l.Elements)))
	}
	c.b.Op(bytecode.OpPushList)
	for _, e := range l.Elements {
		if err := c.compileExpr(e); err != nil {
			return err
		}
		c.b.Op(bytecode.OpAppend)
	}
	return nil
}

func (c *Compiler) compileMap(m *ast.MapLit) error {
	if len(m.Entries) <= math.MaxUint8 {
		for _, entry := range m.Entries {
			if err := c.compileExpr(entry.Key); err != nil {
				return err
			}
			if err := c.compileExpr(entry.Value); err != nil {
				return err
			}
		}
		return c.check(c.b.BuildMap(len(m.Entries)))
	}
	c.b.Op(bytecode.OpPushMap)
	for _, entry := range m.Entries {
		if err := c.compileExpr(entry.Key); err != nil {
			return err
		}
		if err := c.compileExpr(entry.Value); err != nil {
			return err
		}
		c.b.Op(bytecode.OpSetIndex)
	}
	return nil
}

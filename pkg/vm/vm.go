// Package vm executes Ifá bytecode on an operand stack with call frames.
//
// A VM is owned by one goroutine at a time. Bytecode is read-only once
// compiled, so many VMs may run the same program concurrently.
package vm

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/ifa/pkg/bytecode"
	"github.com/chazu/ifa/pkg/opon"
	"github.com/chazu/ifa/pkg/registry"
	"github.com/chazu/ifa/pkg/value"
)

var log = commonlog.GetLogger("ifa.vm")

// VM is the bytecode executor.
type VM struct {
	cfg      Config
	stack    []value.Value
	frames   []CallFrame
	globals  map[string]value.Value
	registry Registry
	opon     *opon.Opon
	out      io.Writer
	in       *bufio.Reader

	bc      *bytecode.Bytecode
	cur     *unit // unit whose code is running; bc and globals mirror it
	home    *unit // unit of the last Execute
	ip      int
	opStart int
	op      bytecode.Opcode
	steps   uint64
	halted  bool
}

// New creates a VM with the default configuration.
func New() *VM {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a VM with explicit limits. Zero fields take their
// defaults.
func NewWithConfig(cfg Config) *VM {
	return &VM{
		cfg:     cfg.withDefaults(),
		stack:   make([]value.Value, 0, 256),
		frames:  make([]CallFrame, 0, 64),
		globals: make(map[string]value.Value),
		opon:    opon.New(opon.Arinrin),
		out:     os.Stdout,
		in:      bufio.NewReader(os.Stdin),
	}
}

// SetRegistry attaches the host bridge used by Odù calls, host method
// calls and imports.
func (vm *VM) SetRegistry(r Registry) {
	vm.registry = r
}

// SetOutput redirects Print and PrintRaw.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetInput sets the source read by Input.
func (vm *VM) SetInput(r io.Reader) {
	vm.in = bufio.NewReader(r)
}

// SetOpon replaces the VM's memory board and flight recorder.
func (vm *VM) SetOpon(o *opon.Opon) {
	vm.opon = o
}

// Opon returns the VM's memory board.
func (vm *VM) Opon() *opon.Opon {
	return vm.opon
}

// Config returns the active limits.
func (vm *VM) Config() Config {
	return vm.cfg
}

// Global returns a global variable.
func (vm *VM) Global(name string) (value.Value, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

// SetGlobal defines a global before execution, typically a native function.
func (vm *VM) SetGlobal(name string, v value.Value) {
	vm.globals[name] = v
}

// Globals returns a copy of the global variables.
func (vm *VM) Globals() map[string]value.Value {
	return maps.Clone(vm.globals)
}

// StackLen returns the operand stack height.
func (vm *VM) StackLen() int {
	return len(vm.stack)
}

// FrameDepth returns the number of active call frames.
func (vm *VM) FrameDepth() int {
	return len(vm.frames)
}

// Steps returns the number of instructions executed by the last Execute.
func (vm *VM) Steps() uint64 {
	return vm.steps
}

// Reset clears the stack, frames, instruction pointer and globals.
// A VM must be reset or discarded after an error.
func (vm *VM) Reset() {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.globals = make(map[string]value.Value)
	vm.bc = nil
	vm.cur = nil
	vm.home = nil
	vm.ip = 0
	vm.steps = 0
	vm.halted = false
}

// Execute runs bc to completion.
func (vm *VM) Execute(bc *bytecode.Bytecode) (value.Value, error) {
	return vm.ExecuteContext(context.Background(), bc)
}

// ExecuteContext runs bc until Halt, a top-level Return, the end of the
// code or an error. ctx is polled every CheckInterval instructions.
// Globals persist across calls; the stack and frames do not.
// The result is the top of the stack, or Null when it is empty.
func (vm *VM) ExecuteContext(ctx context.Context, bc *bytecode.Bytecode) (value.Value, error) {
	vm.home = &unit{bc: bc, globals: vm.globals}
	vm.enterUnit(vm.home)
	defer vm.enterUnit(vm.home)
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.ip = 0
	vm.opStart = 0
	vm.op = 0
	vm.steps = 0
	vm.halted = false

	if err := vm.run(ctx); err != nil {
		vm.record("Okanran", "error", err.Error())
		log.Debugf("%s: %s", bc.SourceName, err)
		return nil, err
	}
	if n := len(vm.stack); n > 0 {
		return vm.stack[n-1], nil
	}
	return value.Null{}, nil
}

// Invoke calls fn and returns its result. fn runs in the artifact that
// created it, with that artifact's globals, even when it came from another
// VM. A function without an owner runs in the artifact last passed to
// Execute.
func (vm *VM) Invoke(ctx context.Context, fn *value.Function, args ...value.Value) (value.Value, error) {
	start := vm.home
	if start == nil {
		if _, ok := fn.Owner.(*unit); !ok {
			return nil, &Error{Kind: KindMalformedBytecode, Msg: "no artifact loaded for " + fn.Name}
		}
		start = &unit{bc: &bytecode.Bytecode{}, globals: vm.globals}
	}
	vm.enterUnit(start)
	defer vm.enterUnit(start)
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.ip = len(vm.bc.Code)
	vm.opStart = vm.ip
	vm.op = bytecode.OpCall
	vm.steps = 0
	vm.halted = false

	// The frame returns to the end of the code, which stops run.
	err := vm.enter(fn, args)
	if err == nil {
		err = vm.run(ctx)
	}
	if err != nil {
		vm.record("Okanran", "error", err.Error())
		return nil, err
	}
	if n := len(vm.stack); n > 0 {
		return vm.stack[n-1], nil
	}
	return value.Null{}, nil
}

func (vm *VM) run(ctx context.Context) error {
	done := ctx.Done()
	interval := uint64(vm.cfg.CheckInterval)
	trace := vm.cfg.Trace || log.AllowLevel(commonlog.Debug)

	for !vm.halted && vm.ip < len(vm.bc.Code) {
		if done != nil && vm.steps%interval == 0 {
			select {
			case <-done:
				return vm.wrap(KindCancelled, ctx.Err())
			default:
			}
		}
		if vm.cfg.StepBudget > 0 && vm.steps >= vm.cfg.StepBudget {
			return vm.fail(KindBudgetExceeded, "limit is %d instructions", vm.cfg.StepBudget)
		}
		vm.steps++

		vm.opStart = vm.ip
		vm.op = bytecode.Opcode(vm.bc.Code[vm.ip])
		if !vm.op.IsValid() {
			return vm.fail(KindMalformedBytecode, "unknown opcode 0x%02X", byte(vm.op))
		}
		if vm.ip+vm.op.InstructionLen() > len(vm.bc.Code) {
			return vm.fail(KindMalformedBytecode, "truncated operands")
		}
		if trace {
			vm.traceInstruction()
		}
		vm.ip++

		if err := vm.dispatch(vm.op); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) traceInstruction() {
	text, _ := vm.bc.DisassembleInstruction(vm.opStart)
	if vm.cfg.Trace {
		fmt.Fprintf(os.Stderr, "%s | stack=%d frames=%d\n", text, len(vm.stack), len(vm.frames))
		return
	}
	log.Debugf("%s | stack=%d frames=%d", text, len(vm.stack), len(vm.frames))
}

func (vm *VM) dispatch(op bytecode.Opcode) error {
	switch op {
	// Literals
	case bytecode.OpPushNull:
		return vm.push(value.Null{})
	case bytecode.OpPushInt:
		return vm.push(value.Int(int64(vm.u64())))
	case bytecode.OpPushFloat:
		return vm.push(value.Float(math.Float64frombits(vm.u64())))
	case bytecode.OpPushStr:
		s, err := vm.str()
		if err != nil {
			return err
		}
		return vm.push(value.Str(s))
	case bytecode.OpPushTrue:
		return vm.push(value.Bool(true))
	case bytecode.OpPushFalse:
		return vm.push(value.Bool(false))
	case bytecode.OpPushList:
		return vm.push(value.NewList())
	case bytecode.OpPushMap:
		return vm.push(value.NewMap())
	case bytecode.OpPushFn:
		name, err := vm.str()
		if err != nil {
			return err
		}
		start := int(vm.u32())
		arity := int(vm.u8())
		if start > len(vm.bc.Code) {
			return vm.fail(KindMalformedBytecode, "function %s starts at %d beyond code end", name, start)
		}
		return vm.push(&value.Function{Name: name, StartIP: start, Arity: arity, Owner: vm.cur})

	// Stack
	case bytecode.OpPop:
		_, err := vm.pop()
		return err
	case bytecode.OpDup:
		v, err := vm.peek()
		if err != nil {
			return err
		}
		return vm.push(v)
	case bytecode.OpSwap:
		a, b, err := vm.pop2()
		if err != nil {
			return err
		}
		vm.stack = append(vm.stack, b, a)
		return nil

	// Arithmetic
	case bytecode.OpAdd:
		return vm.binary(value.Add)
	case bytecode.OpSub:
		return vm.binary(value.Sub)
	case bytecode.OpMul:
		return vm.binary(value.Mul)
	case bytecode.OpDiv:
		return vm.binary(value.Div)
	case bytecode.OpMod:
		return vm.binary(value.Mod)
	case bytecode.OpPow:
		return vm.binary(value.Pow)
	case bytecode.OpNeg:
		a, err := vm.pop()
		if err != nil {
			return err
		}
		r, err := value.Neg(a)
		if err != nil {
			return vm.valueErr(err)
		}
		return vm.push(r)

	// Comparison
	case bytecode.OpEq:
		a, b, err := vm.pop2()
		if err != nil {
			return err
		}
		return vm.push(value.Bool(value.Equal(a, b)))
	case bytecode.OpNe:
		a, b, err := vm.pop2()
		if err != nil {
			return err
		}
		return vm.push(value.Bool(!value.Equal(a, b)))
	case bytecode.OpLt:
		return vm.compare(func(c int) bool { return c < 0 })
	case bytecode.OpLe:
		return vm.compare(func(c int) bool { return c <= 0 })
	case bytecode.OpGt:
		return vm.compare(func(c int) bool { return c > 0 })
	case bytecode.OpGe:
		return vm.compare(func(c int) bool { return c >= 0 })

	// Logic
	case bytecode.OpAnd:
		a, b, err := vm.pop2()
		if err != nil {
			return err
		}
		return vm.push(value.Bool(a.Truthy() && b.Truthy()))
	case bytecode.OpOr:
		a, b, err := vm.pop2()
		if err != nil {
			return err
		}
		return vm.push(value.Bool(a.Truthy() || b.Truthy()))
	case bytecode.OpNot:
		a, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(value.Not(a))

	// Variables
	case bytecode.OpLoadLocal:
		i, err := vm.localIndex()
		if err != nil {
			return err
		}
		return vm.push(vm.stack[i])
	case bytecode.OpStoreLocal:
		slot := int(vm.u16())
		v, err := vm.pop()
		if err != nil {
			return err
		}
		i := vm.base() + slot
		if i >= len(vm.stack) {
			return vm.fail(KindMalformedBytecode, "local slot %d beyond stack", slot)
		}
		vm.stack[i] = v
		return nil
	case bytecode.OpLoadGlobal:
		name, err := vm.str()
		if err != nil {
			return err
		}
		v, ok := vm.globals[name]
		if !ok {
			v = value.Null{}
		}
		return vm.push(v)
	case bytecode.OpStoreGlobal:
		name, err := vm.str()
		if err != nil {
			return err
		}
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.globals[name] = v
		return nil

	// Jumps
	case bytecode.OpJump:
		return vm.jump(vm.i16())
	case bytecode.OpJumpIfFalse:
		disp := vm.i16()
		cond, err := vm.pop()
		if err != nil {
			return err
		}
		if !cond.Truthy() {
			return vm.jump(disp)
		}
		return nil
	case bytecode.OpJumpIfTrue:
		disp := vm.i16()
		cond, err := vm.pop()
		if err != nil {
			return err
		}
		if cond.Truthy() {
			return vm.jump(disp)
		}
		return nil

	// Calls
	case bytecode.OpCall:
		return vm.call(int(vm.u8()))
	case bytecode.OpReturn:
		return vm.ret()
	case bytecode.OpCallOdu:
		return vm.callOdu()
	case bytecode.OpCallMethod:
		return vm.callMethod()
	case bytecode.OpImport:
		return vm.importModule()
	case bytecode.OpDefineClass:
		return vm.defineClass()

	// Collections
	case bytecode.OpGetIndex:
		coll, idx, err := vm.pop2()
		if err != nil {
			return err
		}
		v, err := value.GetIndex(coll, idx)
		if err != nil {
			return vm.valueErr(err)
		}
		return vm.push(v)
	case bytecode.OpSetIndex:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		coll, idx, err := vm.pop2()
		if err != nil {
			return err
		}
		updated, err := value.SetIndex(coll, idx, v)
		if err != nil {
			return vm.valueErr(err)
		}
		return vm.push(updated)
	case bytecode.OpLen:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		n, err := value.Len(v)
		if err != nil {
			return vm.valueErr(err)
		}
		return vm.push(value.Int(n))
	case bytecode.OpAppend:
		coll, v, err := vm.pop2()
		if err != nil {
			return err
		}
		grown, err := value.Append(coll, v)
		if err != nil {
			return vm.valueErr(err)
		}
		return vm.push(grown)
	case bytecode.OpBuildList:
		items, err := vm.popN(int(vm.u8()))
		if err != nil {
			return err
		}
		return vm.push(value.NewList(items...))
	case bytecode.OpBuildMap:
		return vm.buildMap(int(vm.u8()))

	// I/O
	case bytecode.OpPrint:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.record("Irosu", "fọ̀", v.String())
		if _, err := fmt.Fprintln(vm.out, v.String()); err != nil {
			return vm.wrap(KindIO, err)
		}
		return nil
	case bytecode.OpPrintRaw:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.record("Irosu", "fọ̀", v.String())
		if _, err := fmt.Fprint(vm.out, v.String()); err != nil {
			return vm.wrap(KindIO, err)
		}
		return nil
	case bytecode.OpInput:
		line, err := vm.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return vm.wrap(KindIO, err)
		}
		line = strings.TrimRight(line, "\r\n")
		vm.record("Irosu", "gbọ́", line)
		return vm.push(value.Str(line))

	case bytecode.OpAssert:
		msg, err := vm.str()
		if err != nil {
			return err
		}
		cond, err := vm.pop()
		if err != nil {
			return err
		}
		if !cond.Truthy() {
			return vm.fail(KindAssertionFailed, "%s", msg)
		}
		return nil

	case bytecode.OpHalt:
		vm.halted = true
		return nil
	}
	return vm.fail(KindMalformedBytecode, "unhandled opcode %s", op)
}

// call implements Call(argc): the callee sits beneath its arguments.
func (vm *VM) call(argc int) error {
	if len(vm.stack) < argc+1 {
		return vm.fail(KindStackUnderflow, "call needs %d values, stack has %d", argc+1, len(vm.stack))
	}
	args, err := vm.popN(argc)
	if err != nil {
		return err
	}
	callee, err := vm.pop()
	if err != nil {
		return err
	}

	switch fn := callee.(type) {
	case *value.Function:
		return vm.enter(fn, args)
	case *value.NativeFunc:
		vm.record("Ogbe", "call", fn.Name)
		res, err := fn.Fn(args)
		if err != nil {
			return vm.hostErr(err)
		}
		return vm.pushResult(res)
	case *value.Class:
		return vm.construct(fn, args)
	}
	return vm.fail(KindTypeError, "%s is not callable", callee.Kind())
}

// construct pushes a new instance of cls. Arguments fill the fields in
// declaration order; the rest keep their defaults.
func (vm *VM) construct(cls *value.Class, args []value.Value) error {
	if len(args) > len(cls.Fields) {
		e := vm.fail(KindArityMismatch, "constructing %s", cls.Name)
		e.Expected, e.Got = len(cls.Fields), len(args)
		return e
	}
	inst := cls.NewInstance()
	for i, a := range args {
		inst.Fields.Set(cls.Fields[i], a)
	}
	return vm.push(inst)
}

// enterUnit makes u the running artifact.
func (vm *VM) enterUnit(u *unit) {
	vm.cur = u
	vm.bc = u.bc
	vm.globals = u.globals
}

// enter pushes a frame for fn and jumps to its body in the artifact that
// owns it. The arguments become locals 0..len(args)-1 of the new frame.
func (vm *VM) enter(fn *value.Function, args []value.Value) error {
	target := vm.cur
	if u, ok := fn.Owner.(*unit); ok && u != nil {
		target = u
	}
	if fn.Arity != len(args) {
		e := vm.fail(KindArityMismatch, "calling %s", fn.Name)
		e.Expected, e.Got = fn.Arity, len(args)
		return e
	}
	if len(vm.frames) >= vm.cfg.MaxFrames {
		return vm.fail(KindStackOverflow, "call depth exceeds %d frames", vm.cfg.MaxFrames)
	}
	if fn.StartIP < 0 || fn.StartIP > len(target.bc.Code) {
		return vm.fail(KindMalformedBytecode, "function %s starts at %d", fn.Name, fn.StartIP)
	}
	vm.record("Ogbe", "call", fn.Name)
	vm.frames = append(vm.frames, CallFrame{
		ReturnAddr: vm.ip,
		BasePtr:    len(vm.stack),
		LocalCount: len(args),
		Function:   fn,
		caller:     vm.cur,
	})
	for _, a := range args {
		if err := vm.push(a); err != nil {
			return err
		}
	}
	if target != vm.cur {
		vm.enterUnit(target)
	}
	vm.ip = fn.StartIP
	return nil
}

// ret pops the return value, discards everything the frame owns and
// resumes the caller. With no frame the program ends with the value on top.
func (vm *VM) ret() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	n := len(vm.frames)
	if n == 0 {
		vm.halted = true
		return vm.push(v)
	}
	frame := vm.frames[n-1]
	vm.frames = vm.frames[:n-1]
	clear(vm.stack[frame.BasePtr:])
	vm.stack = vm.stack[:frame.BasePtr]
	if frame.caller != nil && frame.caller != vm.cur {
		vm.enterUnit(frame.caller)
	}
	vm.ip = frame.ReturnAddr
	return vm.push(v)
}

func (vm *VM) callOdu() error {
	domain := vm.u8()
	method, err := vm.str()
	if err != nil {
		return err
	}
	args, err := vm.popN(int(vm.u8()))
	if err != nil {
		return err
	}
	if vm.registry == nil {
		return vm.fail(KindNoRegistry, "%s.%s", registry.Domain(domain), method)
	}
	res, err := vm.registry.Call(domain, method, args)
	if err != nil {
		return vm.hostErr(err)
	}
	vm.record(registry.Domain(domain).String(), method, display(res))
	return vm.pushResult(res)
}

func (vm *VM) callMethod() error {
	idx := vm.u16()
	name, ok := vm.bc.String(bytecode.StringIndex(idx))
	if !ok {
		return vm.fail(KindMalformedBytecode, "string index %d out of range", idx)
	}
	argc := int(vm.u8())
	if len(vm.stack) < argc+1 {
		return vm.fail(KindStackUnderflow, "method call needs %d values, stack has %d", argc+1, len(vm.stack))
	}
	args, err := vm.popN(argc)
	if err != nil {
		return err
	}
	recv, err := vm.pop()
	if err != nil {
		return err
	}

	if inst, ok := recv.(*value.Instance); ok {
		if fn, ok := inst.Method(name); ok {
			if fn.Arity != argc+1 {
				e := vm.fail(KindArityMismatch, "calling %s.%s", inst.Class.Name, name)
				e.Expected, e.Got = fn.Arity-1, argc
				return e
			}
			return vm.enter(fn, append([]value.Value{recv}, args...))
		}
	}

	// Module members: a map whose entry under name is callable.
	if m, ok := recv.(*value.Map); ok {
		if member, ok := m.Get(name); ok {
			switch fn := member.(type) {
			case *value.Function:
				return vm.enter(fn, args)
			case *value.Class:
				return vm.construct(fn, args)
			case *value.NativeFunc:
				vm.record("Ogbe", "call", fn.Name)
				res, err := fn.Fn(args)
				if err != nil {
					return vm.hostErr(err)
				}
				return vm.pushResult(res)
			}
		}
	}

	if vm.registry == nil {
		return vm.fail(KindNoRegistry, "method %s on %s", name, recv.Kind())
	}
	var res value.Value
	if named, ok := vm.registry.(NamedMethodCaller); ok {
		res, err = named.CallMethodNamed(recv, name, args)
	} else {
		res, err = vm.registry.CallMethod(recv, idx, args)
	}
	if err != nil {
		return vm.hostErr(err)
	}
	return vm.pushResult(res)
}

func (vm *VM) importModule() error {
	path, err := vm.str()
	if err != nil {
		return err
	}
	if vm.registry == nil {
		return vm.fail(KindNoRegistry, "import %s", path)
	}
	mod, err := vm.registry.Import(path)
	if err != nil {
		return vm.hostErr(err)
	}
	vm.record("Ofun", "import", path)
	return vm.pushResult(mod)
}

// defineClass pops the method functions, then the (name, default) field
// pairs beneath them, and pushes the class.
func (vm *VM) defineClass() error {
	name, err := vm.str()
	if err != nil {
		return err
	}
	nfields := int(vm.u8())
	nmethods := int(vm.u8())

	methods, err := vm.popN(nmethods)
	if err != nil {
		return err
	}
	pairs, err := vm.popN(2 * nfields)
	if err != nil {
		return err
	}

	class := &value.Class{
		Name:     name,
		Fields:   make([]string, 0, nfields),
		Defaults: make([]value.Value, 0, nfields),
		Methods:  make(map[string]*value.Function, nmethods),
	}
	for i := 0; i < len(pairs); i += 2 {
		field, ok := pairs[i].(value.Str)
		if !ok {
			return vm.fail(KindTypeError, "field name of %s is %s, not str", name, pairs[i].Kind())
		}
		class.Fields = append(class.Fields, string(field))
		class.Defaults = append(class.Defaults, pairs[i+1])
	}
	for _, m := range methods {
		fn, ok := m.(*value.Function)
		if !ok {
			return vm.fail(KindTypeError, "method of %s is %s, not a function", name, m.Kind())
		}
		class.Methods[fn.Name] = fn
	}
	return vm.push(class)
}

func (vm *VM) buildMap(n int) error {
	kvs, err := vm.popN(2 * n)
	if err != nil {
		return err
	}
	m := value.NewMap()
	for i := 0; i < len(kvs); i += 2 {
		k, ok := kvs[i].(value.Str)
		if !ok {
			return vm.fail(KindTypeError, "map key is %s, not str", kvs[i].Kind())
		}
		m.Set(string(k), kvs[i+1])
	}
	return vm.push(m)
}

func (vm *VM) binary(fn func(a, b value.Value) (value.Value, error)) error {
	a, b, err := vm.pop2()
	if err != nil {
		return err
	}
	r, err := fn(a, b)
	if err != nil {
		return vm.valueErr(err)
	}
	return vm.push(r)
}

func (vm *VM) compare(test func(int) bool) error {
	a, b, err := vm.pop2()
	if err != nil {
		return err
	}
	c, err := value.Compare(a, b)
	if err != nil {
		return vm.valueErr(err)
	}
	return vm.push(value.Bool(test(c)))
}

func (vm *VM) jump(disp int16) error {
	target := vm.ip + int(disp)
	if target < 0 || target > len(vm.bc.Code) {
		return vm.fail(KindMalformedBytecode, "jump to %d outside code", target)
	}
	vm.ip = target
	return nil
}

func (vm *VM) base() int {
	if n := len(vm.frames); n > 0 {
		return vm.frames[n-1].BasePtr
	}
	return 0
}

func (vm *VM) localIndex() (int, error) {
	slot := int(vm.u16())
	i := vm.base() + slot
	if i >= len(vm.stack) {
		return 0, vm.fail(KindMalformedBytecode, "local slot %d beyond stack", slot)
	}
	return i, nil
}

// Stack primitives

func (vm *VM) push(v value.Value) error {
	if len(vm.stack) >= vm.cfg.MaxStack {
		return vm.fail(KindStackOverflow, "stack exceeds %d entries", vm.cfg.MaxStack)
	}
	vm.stack = append(vm.stack, v)
	return nil
}

// pushResult pushes a host result, mapping a nil value to Null.
func (vm *VM) pushResult(v value.Value) error {
	if v == nil {
		v = value.Null{}
	}
	return vm.push(v)
}

func (vm *VM) pop() (value.Value, error) {
	n := len(vm.stack)
	if n == 0 {
		return nil, vm.fail(KindStackUnderflow, "pop from empty stack")
	}
	v := vm.stack[n-1]
	vm.stack[n-1] = nil
	vm.stack = vm.stack[:n-1]
	return v, nil
}

// pop2 pops b then a, so a OP b keeps source order.
func (vm *VM) pop2() (a, b value.Value, err error) {
	if len(vm.stack) < 2 {
		return nil, nil, vm.fail(KindStackUnderflow, "need 2 values, stack has %d", len(vm.stack))
	}
	b, _ = vm.pop()
	a, _ = vm.pop()
	return a, b, nil
}

// popN pops n values and returns them in push order.
func (vm *VM) popN(n int) ([]value.Value, error) {
	if len(vm.stack) < n {
		return nil, vm.fail(KindStackUnderflow, "need %d values, stack has %d", n, len(vm.stack))
	}
	start := len(vm.stack) - n
	vals := make([]value.Value, n)
	copy(vals, vm.stack[start:])
	clear(vm.stack[start:])
	vm.stack = vm.stack[:start]
	return vals, nil
}

func (vm *VM) peek() (value.Value, error) {
	if len(vm.stack) == 0 {
		return nil, vm.fail(KindStackUnderflow, "peek at empty stack")
	}
	return vm.stack[len(vm.stack)-1], nil
}

// Operand decoding. run has already checked that the operands are in range.

func (vm *VM) u8() uint8 {
	v := vm.bc.Code[vm.ip]
	vm.ip++
	return v
}

func (vm *VM) u16() uint16 {
	v := binary.BigEndian.Uint16(vm.bc.Code[vm.ip:])
	vm.ip += 2
	return v
}

func (vm *VM) i16() int16 {
	return int16(vm.u16())
}

func (vm *VM) u32() uint32 {
	v := binary.BigEndian.Uint32(vm.bc.Code[vm.ip:])
	vm.ip += 4
	return v
}

func (vm *VM) u64() uint64 {
	v := binary.BigEndian.Uint64(vm.bc.Code[vm.ip:])
	vm.ip += 8
	return v
}

func (vm *VM) str() (string, error) {
	idx := vm.u16()
	s, ok := vm.bc.String(bytecode.StringIndex(idx))
	if !ok {
		return "", vm.fail(KindMalformedBytecode, "string index %d out of range", idx)
	}
	return s, nil
}

// Errors and recording

func (vm *VM) fail(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind: kind,
		Op:   vm.op,
		IP:   vm.opStart,
		Line: vm.bc.LineAt(vm.opStart),
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (vm *VM) wrap(kind ErrorKind, err error) *Error {
	e := vm.fail(kind, "")
	e.Err = err
	return e
}

// valueErr translates an operand error from the value package.
func (vm *VM) valueErr(err error) error {
	var idx *value.IndexError
	var long *value.LengthError
	switch {
	case errors.Is(err, value.ErrDivisionByZero):
		return vm.wrap(KindDivisionByZero, err)
	case errors.As(err, &idx):
		return vm.wrap(KindIndexOutOfBounds, err)
	case errors.As(err, &long):
		return vm.wrap(KindMemoryLimitExceeded, err)
	}
	return vm.wrap(KindTypeError, err)
}

// hostErr translates a failure returned by the registry or a native
// function.
func (vm *VM) hostErr(err error) error {
	if errors.Is(err, opon.ErrMemoryLimitExceeded) {
		return vm.wrap(KindMemoryLimitExceeded, err)
	}
	return vm.wrap(KindRegistry, err)
}

func (vm *VM) record(subsystem, action, msg string) {
	if vm.opon != nil {
		vm.opon.RecordMsg(subsystem, action, msg)
	}
}

func display(v value.Value) string {
	if v == nil {
		return value.Null{}.String()
	}
	return v.String()
}

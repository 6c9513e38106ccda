package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Encoding errors reported by Builder.
var (
	ErrTooManyStrings = errors.New("string pool is full")
	ErrOperandRange   = errors.New("operand out of range")
	ErrJumpTooFar     = errors.New("jump displacement exceeds 16 bits")
)

// Jump is an emitted jump whose displacement is patched later.
type Jump struct {
	operand int
}

// Label is a code offset that a backward jump can target.
type Label int

// Builder appends instructions to a Bytecode. Every operand kind has one
// encoding, chosen by the typed methods below.
type Builder struct {
	bc       *Bytecode
	strings  map[string]StringIndex
	lastLine int
}

// NewBuilder starts an empty artifact for the named source.
func NewBuilder(sourceName string) *Builder {
	return &Builder{
		bc: &Bytecode{
			Version:    FormatVersion,
			SourceName: sourceName,
			Code:       make([]byte, 0, 256),
			Strings:    make([]string, 0, 16),
		},
		strings: make(map[string]StringIndex),
	}
}

// Finish returns the built artifact. The builder must not be used afterwards.
func (b *Builder) Finish() *Bytecode {
	bc := b.bc
	b.bc = nil
	return bc
}

// Offset returns the offset of the next instruction.
func (b *Builder) Offset() int {
	return len(b.bc.Code)
}

// SetOpon records the memory preset requested by the program.
func (b *Builder) SetOpon(size string) {
	b.bc.Opon = size
}

// MarkLine associates the next instruction with a source line.
func (b *Builder) MarkLine(line int) {
	if line <= 0 || line == b.lastLine {
		return
	}
	b.lastLine = line
	b.bc.Lines = append(b.bc.Lines, LineEntry{Offset: uint32(b.Offset()), Line: uint32(line)})
}

// Intern adds s to the string pool, reusing an existing entry.
func (b *Builder) Intern(s string) (StringIndex, error) {
	if idx, ok := b.strings[s]; ok {
		return idx, nil
	}
	if len(b.bc.Strings) >= MaxStrings {
		return 0, ErrTooManyStrings
	}
	idx := StringIndex(len(b.bc.Strings))
	b.bc.Strings = append(b.bc.Strings, s)
	b.strings[s] = idx
	return idx, nil
}

func (b *Builder) emit(op Opcode) {
	b.bc.Code = append(b.bc.Code, byte(op))
}

func (b *Builder) u8(v uint8) {
	b.bc.Code = append(b.bc.Code, v)
}

func (b *Builder) u16(v uint16) {
	b.bc.Code = binary.BigEndian.AppendUint16(b.bc.Code, v)
}

func (b *Builder) u32(v uint32) {
	b.bc.Code = binary.BigEndian.AppendUint32(b.bc.Code, v)
}

func (b *Builder) u64(v uint64) {
	b.bc.Code = binary.BigEndian.AppendUint64(b.bc.Code, v)
}

func count(what string, n int) (uint8, error) {
	if n < 0 || n > math.MaxUint8 {
		return 0, fmt.Errorf("%w: %s %d (max %d)", ErrOperandRange, what, n, math.MaxUint8)
	}
	return uint8(n), nil
}

// Op emits an instruction that takes no operands.
// It panics if op requires operands.
func (b *Builder) Op(op Opcode) {
	if !op.IsValid() || op.OperandLen() != 0 {
		panic(fmt.Sprintf("bytecode: %s is not an operand-free opcode", op))
	}
	b.emit(op)
}

// PushInt emits an integer literal.
func (b *Builder) PushInt(v int64) {
	b.emit(OpPushInt)
	b.u64(uint64(v))
}

// PushFloat emits a float literal.
func (b *Builder) PushFloat(v float64) {
	b.emit(OpPushFloat)
	b.u64(math.Float64bits(v))
}

// PushStr emits a string literal.
func (b *Builder) PushStr(s string) error {
	idx, err := b.Intern(s)
	if err != nil {
		return err
	}
	b.emit(OpPushStr)
	b.u16(uint16(idx))
	return nil
}

// PushFn emits a function value whose body starts at start.
func (b *Builder) PushFn(name string, start, arity int) error {
	idx, err := b.Intern(name)
	if err != nil {
		return err
	}
	if start < 0 || int64(start) > math.MaxUint32 {
		return fmt.Errorf("%w: function start %d", ErrOperandRange, start)
	}
	n, err := count("arity", arity)
	if err != nil {
		return err
	}
	b.emit(OpPushFn)
	b.u16(uint16(idx))
	b.u32(uint32(start))
	b.u8(n)
	return nil
}

// LoadLocal emits a read of a local slot.
func (b *Builder) LoadLocal(slot LocalSlot) {
	b.emit(OpLoadLocal)
	b.u16(uint16(slot))
}

// StoreLocal emits a write of a local slot.
func (b *Builder) StoreLocal(slot LocalSlot) {
	b.emit(OpStoreLocal)
	b.u16(uint16(slot))
}

// LoadGlobal emits a read of a named global.
func (b *Builder) LoadGlobal(name GlobalName) error {
	return b.named(OpLoadGlobal, string(name))
}

// StoreGlobal emits a write of a named global.
func (b *Builder) StoreGlobal(name GlobalName) error {
	return b.named(OpStoreGlobal, string(name))
}

// Import emits a module import.
func (b *Builder) Import(path string) error {
	return b.named(OpImport, path)
}

// Assert emits an assertion failing with msg.
func (b *Builder) Assert(msg string) error {
	return b.named(OpAssert, msg)
}

func (b *Builder) named(op Opcode, s string) error {
	idx, err := b.Intern(s)
	if err != nil {
		return err
	}
	b.emit(op)
	b.u16(uint16(idx))
	return nil
}

// Call emits a call of the value below argc arguments.
func (b *Builder) Call(argc int) error {
	return b.counted(OpCall, "argument count", argc)
}

// BuildList emits construction of a list from n stack values.
func (b *Builder) BuildList(n int) error {
	return b.counted(OpBuildList, "list length", n)
}

// BuildMap emits construction of a map from n key/value pairs.
func (b *Builder) BuildMap(n int) error {
	return b.counted(OpBuildMap, "map length", n)
}

func (b *Builder) counted(op Opcode, what string, n int) error {
	c, err := count(what, n)
	if err != nil {
		return err
	}
	b.emit(op)
	b.u8(c)
	return nil
}

// CallOdu emits a registry call into an Odù domain.
func (b *Builder) CallOdu(domain uint8, method string, argc int) error {
	idx, err := b.Intern(method)
	if err != nil {
		return err
	}
	n, err := count("argument count", argc)
	if err != nil {
		return err
	}
	b.emit(OpCallOdu)
	b.u8(domain)
	b.u16(uint16(idx))
	b.u8(n)
	return nil
}

// CallMethod emits a method call on the receiver below argc arguments.
func (b *Builder) CallMethod(method string, argc int) error {
	idx, err := b.Intern(method)
	if err != nil {
		return err
	}
	n, err := count("argument count", argc)
	if err != nil {
		return err
	}
	b.emit(OpCallMethod)
	b.u16(uint16(idx))
	b.u8(n)
	return nil
}

// DefineClass emits construction of a class from field name/default pairs
// followed by method functions.
func (b *Builder) DefineClass(name string, fields, methods int) error {
	idx, err := b.Intern(name)
	if err != nil {
		return err
	}
	nf, err := count("field count", fields)
	if err != nil {
		return err
	}
	nm, err := count("method count", methods)
	if err != nil {
		return err
	}
	b.emit(OpDefineClass)
	b.u16(uint16(idx))
	b.u8(nf)
	b.u8(nm)
	return nil
}

// EmitJump emits a forward jump with a placeholder displacement.
// It panics if op is not a jump.
func (b *Builder) EmitJump(op Opcode) Jump {
	if !op.IsJump() {
		panic(fmt.Sprintf("bytecode: %s is not a jump", op))
	}
	b.emit(op)
	j := Jump{operand: b.Offset()}
	b.u16(0xFFFF)
	return j
}

// PatchJump points j at the current offset. The displacement is relative to
// the instruction pointer after the operand.
func (b *Builder) PatchJump(j Jump) error {
	disp := b.Offset() - j.operand - 2
	if disp > math.MaxInt16 {
		return fmt.Errorf("%w: %d", ErrJumpTooFar, disp)
	}
	binary.BigEndian.PutUint16(b.bc.Code[j.operand:], uint16(int16(disp)))
	return nil
}

// Mark returns the current offset as a backward jump target.
func (b *Builder) Mark() Label {
	return Label(b.Offset())
}

// EmitLoop emits an unconditional backward jump to l.
func (b *Builder) EmitLoop(l Label) error {
	disp := int(l) - (b.Offset() + 3)
	if disp < math.MinInt16 {
		return fmt.Errorf("%w: %d", ErrJumpTooFar, disp)
	}
	b.emit(OpJump)
	b.u16(uint16(int16(disp)))
	return nil
}

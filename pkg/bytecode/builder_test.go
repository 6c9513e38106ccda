package bytecode

import (
	"encoding/binary"
	"errors"
	"math"
	"strconv"
	"testing"
)

func TestBuilderLiterals(t *testing.T) {
	b := NewBuilder("lit")
	b.PushInt(-2)
	b.PushFloat(1.5)
	if err := b.PushStr("hi"); err != nil {
		t.Fatal(err)
	}
	b.Op(OpHalt)
	bc := b.Finish()

	want := 9 + 9 + 3 + 1
	if len(bc.Code) != want {
		t.Fatalf("len(Code) = %d, want %d", len(bc.Code), want)
	}
	if Opcode(bc.Code[0]) != OpPushInt {
		t.Errorf("Code[0] = %s, want PUSH_INT", Opcode(bc.Code[0]))
	}
	if got := int64(binary.BigEndian.Uint64(bc.Code[1:])); got != -2 {
		t.Errorf("int operand = %d, want -2", got)
	}
	if got := math.Float64frombits(binary.BigEndian.Uint64(bc.Code[10:])); got != 1.5 {
		t.Errorf("float operand = %g, want 1.5", got)
	}
	if got := binary.BigEndian.Uint16(bc.Code[19:]); got != 0 {
		t.Errorf("string operand = %d, want 0", got)
	}
}

func TestBuilderIntern(t *testing.T) {
	b := NewBuilder("")
	i0, _ := b.Intern("a")
	i1, _ := b.Intern("b")
	i2, _ := b.Intern("a")
	if i0 != 0 || i1 != 1 || i2 != 0 {
		t.Errorf("Intern indices = %d %d %d, want 0 1 0", i0, i1, i2)
	}
}

func TestBuilderStringPoolLimit(t *testing.T) {
	b := NewBuilder("")
	for i := 0; i < MaxStrings; i++ {
		if _, err := b.Intern(strconv.Itoa(i)); err != nil {
			t.Fatalf("Intern(%d) error = %v", i, err)
		}
	}
	if _, err := b.Intern("one more"); !errors.Is(err, ErrTooManyStrings) {
		t.Errorf("Intern past capacity error = %v, want ErrTooManyStrings", err)
	}
	if _, err := b.Intern("7"); err != nil {
		t.Errorf("Intern of an existing string error = %v", err)
	}
	b.Op(OpHalt)
	data, err := b.Finish().Marshal()
	if err != nil {
		t.Fatalf("Marshal() of a full pool error = %v", err)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(back.Strings) != MaxStrings {
		t.Errorf("len(Strings) = %d, want %d", len(back.Strings), MaxStrings)
	}
}

func TestBuilderSlotWidths(t *testing.T) {
	b := NewBuilder("")
	b.LoadLocal(LocalSlot(300))
	if err := b.StoreGlobal(GlobalName("x")); err != nil {
		t.Fatal(err)
	}
	bc := b.Finish()

	if got := binary.BigEndian.Uint16(bc.Code[1:]); got != 300 {
		t.Errorf("slot = %d, want 300", got)
	}
	if Opcode(bc.Code[3]) != OpStoreGlobal || bc.Strings[0] != "x" {
		t.Errorf("global store not encoded: % X %v", bc.Code, bc.Strings)
	}
}

func TestBuilderCountRange(t *testing.T) {
	b := NewBuilder("")
	if err := b.Call(256); !errors.Is(err, ErrOperandRange) {
		t.Errorf("Call(256) error = %v, want ErrOperandRange", err)
	}
	if err := b.BuildList(-1); !errors.Is(err, ErrOperandRange) {
		t.Errorf("BuildList(-1) error = %v, want ErrOperandRange", err)
	}
	if b.Offset() != 0 {
		t.Errorf("failed emits wrote %d bytes", b.Offset())
	}
}

func TestBuilderOpPanicsOnOperandOpcode(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Op(OpPushInt) did not panic")
		}
	}()
	NewBuilder("").Op(OpPushInt)
}

func TestPatchJump(t *testing.T) {
	b := NewBuilder("")
	j := b.EmitJump(OpJumpIfFalse)
	b.Op(OpPushNull)
	b.Op(OpPop)
	if err := b.PatchJump(j); err != nil {
		t.Fatal(err)
	}
	bc := b.Finish()

	// displacement = current - operand - 2 = 5 - 1 - 2
	if got := int16(binary.BigEndian.Uint16(bc.Code[1:])); got != 2 {
		t.Errorf("displacement = %d, want 2", got)
	}
}

func TestEmitLoop(t *testing.T) {
	b := NewBuilder("")
	start := b.Mark()
	b.Op(OpPushNull)
	b.Op(OpPop)
	if err := b.EmitLoop(start); err != nil {
		t.Fatal(err)
	}
	bc := b.Finish()

	disp := int16(binary.BigEndian.Uint16(bc.Code[3:]))
	if target := len(bc.Code) + int(disp); target != 0 {
		t.Errorf("loop target = %d, want 0", target)
	}
}

func TestPatchJumpTooFar(t *testing.T) {
	b := NewBuilder("")
	j := b.EmitJump(OpJump)
	for i := 0; i <= math.MaxInt16; i++ {
		b.Op(OpPop)
	}
	if err := b.PatchJump(j); !errors.Is(err, ErrJumpTooFar) {
		t.Errorf("PatchJump error = %v, want ErrJumpTooFar", err)
	}
}

func TestMarkLine(t *testing.T) {
	b := NewBuilder("")
	b.MarkLine(1)
	b.PushInt(1)
	b.MarkLine(1)
	b.Op(OpPop)
	b.MarkLine(3)
	b.Op(OpHalt)
	bc := b.Finish()

	if len(bc.Lines) != 2 {
		t.Fatalf("len(Lines) = %d, want 2", len(bc.Lines))
	}
	if got := bc.LineAt(9); got != 1 {
		t.Errorf("LineAt(9) = %d, want 1", got)
	}
	if got := bc.LineAt(10); got != 3 {
		t.Errorf("LineAt(10) = %d, want 3", got)
	}
}

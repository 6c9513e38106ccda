package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
		if info.StackPush < 0 || info.StackPop < -1 {
			t.Errorf("%s has invalid stack effect %d/%d", info.Name, info.StackPop, info.StackPush)
		}
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpPushNull, "PUSH_NULL"},
		{OpPushInt, "PUSH_INT"},
		{OpPushFn, "PUSH_FN"},
		{OpPop, "POP"},
		{OpAdd, "ADD"},
		{OpEq, "EQ"},
		{OpLoadLocal, "LOAD_LOCAL"},
		{OpJumpIfFalse, "JUMP_IF_FALSE"},
		{OpCallOdu, "CALL_ODU"},
		{OpBuildMap, "BUILD_MAP"},
		{OpHalt, "HALT"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcode(t *testing.T) {
	op := Opcode(0xEE)
	if op.IsValid() {
		t.Error("0xEE should not be a valid opcode")
	}
	if got := op.String(); !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("unknown opcode String() = %q", got)
	}
}

func TestOpcodeOperandLen(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpPushNull, 0},
		{OpPushInt, 8},
		{OpPushFloat, 8},
		{OpPushStr, 2},
		{OpPushFn, 7},
		{OpLoadLocal, 2},
		{OpStoreLocal, 2},
		{OpLoadGlobal, 2},
		{OpJump, 2},
		{OpCall, 1},
		{OpCallOdu, 4},
		{OpCallMethod, 3},
		{OpDefineClass, 4},
		{OpBuildList, 1},
		{OpAssert, 2},
		{OpReturn, 0},
	}

	for _, tt := range tests {
		if got := tt.op.OperandLen(); got != tt.want {
			t.Errorf("%s.OperandLen() = %d, want %d", tt.op, got, tt.want)
		}
		if got := tt.op.InstructionLen(); got != tt.want+1 {
			t.Errorf("%s.InstructionLen() = %d, want %d", tt.op, got, tt.want+1)
		}
	}
}

func TestStackEffect(t *testing.T) {
	tests := []struct {
		op       Opcode
		operands []byte
		want     int
	}{
		{OpPushInt, make([]byte, 8), 1},
		{OpAdd, nil, -1},
		{OpPop, nil, -1},
		{OpCall, []byte{2}, -2},
		{OpCallOdu, []byte{3, 0, 0, 2}, -1},
		{OpCallMethod, []byte{0, 0, 1}, -1},
		{OpBuildList, []byte{3}, -2},
		{OpBuildMap, []byte{2}, -3},
		{OpDefineClass, []byte{0, 0, 1, 2}, -3},
		{OpSetIndex, nil, -2},
	}
	for _, tt := range tests {
		if got := StackEffect(tt.op, tt.operands); got != tt.want {
			t.Errorf("StackEffect(%s) = %d, want %d", tt.op, got, tt.want)
		}
	}
}

func TestIsJump(t *testing.T) {
	for _, op := range AllOpcodes() {
		want := op == OpJump || op == OpJumpIfFalse || op == OpJumpIfTrue
		if op.IsJump() != want {
			t.Errorf("%s.IsJump() = %v, want %v", op, op.IsJump(), want)
		}
	}
}

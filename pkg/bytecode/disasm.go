package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Disassemble returns a human-readable listing of the artifact.
func (b *Bytecode) Disassemble() string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("; Ifá Bytecode v%d\n", b.Version))
	if b.SourceName != "" {
		sb.WriteString(fmt.Sprintf("; Source: %s\n", b.SourceName))
	}
	if b.Opon != "" {
		sb.WriteString(fmt.Sprintf("; Opon: %s\n", b.Opon))
	}
	sb.WriteString("\n")

	// Strings
	if len(b.Strings) > 0 {
		sb.WriteString("; Strings:\n")
		for i, s := range b.Strings {
			sb.WriteString(fmt.Sprintf(";   [%3d] %q\n", i, truncate(s, 40)))
		}
		sb.WriteString("\n")
	}

	// Code section
	sb.WriteString("; Code:\n")
	offset := 0
	lastLine := 0
	for offset < len(b.Code) {
		text, n := b.DisassembleInstruction(offset)
		if line := b.LineAt(offset); line > 0 && line != lastLine {
			sb.WriteString(fmt.Sprintf("%04X  %-36s ; line %d\n", offset, text, line))
			lastLine = line
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, text))
		}
		offset += n
	}

	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) > n {
		s = s[:n-3] + "..."
	}
	return s
}

// DisassembleInstruction renders the instruction at offset and returns its
// length. Truncated or unknown instructions consume the rest of the code.
func (b *Bytecode) DisassembleInstruction(offset int) (string, int) {
	if offset >= len(b.Code) {
		return "<end of code>", 0
	}

	op := Opcode(b.Code[offset])
	if !op.IsValid() {
		return op.String(), 1
	}
	n := op.InstructionLen()
	if offset+n > len(b.Code) {
		return fmt.Sprintf("%s <truncated>", op), len(b.Code) - offset
	}
	ops := b.Code[offset+1 : offset+n]

	switch op {
	case OpPushInt:
		return fmt.Sprintf("PUSH_INT %d", int64(binary.BigEndian.Uint64(ops))), n

	case OpPushFloat:
		return fmt.Sprintf("PUSH_FLOAT %g", math.Float64frombits(binary.BigEndian.Uint64(ops))), n

	case OpPushStr, OpLoadGlobal, OpStoreGlobal, OpImport, OpAssert:
		idx := binary.BigEndian.Uint16(ops)
		return fmt.Sprintf("%s %d ; %q", op, idx, b.stringAt(idx)), n

	case OpPushFn:
		idx := binary.BigEndian.Uint16(ops)
		start := binary.BigEndian.Uint32(ops[2:])
		return fmt.Sprintf("PUSH_FN %s start=%04X arity=%d", b.stringAt(idx), start, ops[6]), n

	case OpLoadLocal, OpStoreLocal:
		return fmt.Sprintf("%s %d", op, binary.BigEndian.Uint16(ops)), n

	case OpJump, OpJumpIfFalse, OpJumpIfTrue:
		delta := int16(binary.BigEndian.Uint16(ops))
		target := offset + n + int(delta)
		return fmt.Sprintf("%s %+d (-> %04X)", op, delta, target), n

	case OpCall, OpBuildList, OpBuildMap:
		return fmt.Sprintf("%s %d", op, ops[0]), n

	case OpCallOdu:
		idx := binary.BigEndian.Uint16(ops[1:])
		return fmt.Sprintf("CALL_ODU domain=%d %s argc=%d", ops[0], b.stringAt(idx), ops[3]), n

	case OpCallMethod:
		idx := binary.BigEndian.Uint16(ops)
		return fmt.Sprintf("CALL_METHOD %s argc=%d", b.stringAt(idx), ops[2]), n

	case OpDefineClass:
		idx := binary.BigEndian.Uint16(ops)
		return fmt.Sprintf("DEFINE_CLASS %s fields=%d methods=%d", b.stringAt(idx), ops[2], ops[3]), n
	}

	return op.String(), n
}

func (b *Bytecode) stringAt(idx uint16) string {
	s, ok := b.String(StringIndex(idx))
	if !ok {
		return fmt.Sprintf("<bad string %d>", idx)
	}
	return truncate(s, 24)
}

package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category.
type Opcode byte

const (
	// ========================================================================
	// Literals (0x00-0x0F)
	// ========================================================================

	OpPushNull  Opcode = 0x00 // Push null
	OpPushInt   Opcode = 0x01 // Push integer: OpPushInt <value:i64>
	OpPushFloat Opcode = 0x02 // Push float: OpPushFloat <bits:u64>
	OpPushStr   Opcode = 0x03 // Push string: OpPushStr <index:u16>
	OpPushTrue  Opcode = 0x04 // Push true
	OpPushFalse Opcode = 0x05 // Push false
	OpPushList  Opcode = 0x06 // Push empty list
	OpPushMap   Opcode = 0x07 // Push empty map
	OpPushFn    Opcode = 0x08 // Push function: OpPushFn <name:u16> <start:u32> <arity:u8>

	// ========================================================================
	// Stack manipulation (0x10-0x1F)
	// ========================================================================

	OpPop  Opcode = 0x10 // Pop top of stack
	OpDup  Opcode = 0x11 // Duplicate top of stack
	OpSwap Opcode = 0x12 // Swap top two stack elements

	// ========================================================================
	// Arithmetic (0x20-0x2F)
	// ========================================================================

	OpAdd Opcode = 0x20 // Pop two, push sum
	OpSub Opcode = 0x21 // Pop two, push difference (a - b where b is TOS)
	OpMul Opcode = 0x22 // Pop two, push product
	OpDiv Opcode = 0x23 // Pop two, push quotient
	OpMod Opcode = 0x24 // Pop two, push remainder
	OpNeg Opcode = 0x25 // Negate top of stack
	OpPow Opcode = 0x26 // Pop two, push a ** b

	// ========================================================================
	// Comparison (0x30-0x3F)
	// ========================================================================

	OpEq Opcode = 0x30 // Pop two, push a == b
	OpNe Opcode = 0x31 // Pop two, push a != b
	OpLt Opcode = 0x32 // Pop two, push a < b
	OpLe Opcode = 0x33 // Pop two, push a <= b
	OpGt Opcode = 0x34 // Pop two, push a > b
	OpGe Opcode = 0x35 // Pop two, push a >= b

	// ========================================================================
	// Logical operations (0x40-0x4F)
	// ========================================================================

	OpAnd Opcode = 0x40 // Pop two, push truthy(a) && truthy(b)
	OpOr  Opcode = 0x41 // Pop two, push truthy(a) || truthy(b)
	OpNot Opcode = 0x42 // Push !truthy(TOS)

	// ========================================================================
	// Variables (0x50-0x5F)
	// ========================================================================

	OpLoadLocal   Opcode = 0x50 // Push local: OpLoadLocal <slot:u16>
	OpStoreLocal  Opcode = 0x51 // Pop into local: OpStoreLocal <slot:u16>
	OpLoadGlobal  Opcode = 0x52 // Push global: OpLoadGlobal <name:u16>
	OpStoreGlobal Opcode = 0x53 // Pop into global: OpStoreGlobal <name:u16>

	// ========================================================================
	// Control flow (0x60-0x6F)
	// ========================================================================

	OpJump        Opcode = 0x60 // Unconditional jump: OpJump <offset:i16>
	OpJumpIfFalse Opcode = 0x61 // Pop, jump if falsy: OpJumpIfFalse <offset:i16>
	OpJumpIfTrue  Opcode = 0x62 // Pop, jump if truthy: OpJumpIfTrue <offset:i16>

	// ========================================================================
	// Calls (0x70-0x7F)
	// ========================================================================

	OpCall        Opcode = 0x70 // Call callee below args: OpCall <argc:u8>
	OpReturn      Opcode = 0x71 // Return TOS to caller, or halt at top level
	OpCallOdu     Opcode = 0x72 // Registry call: OpCallOdu <domain:u8> <method:u16> <argc:u8>
	OpCallMethod  Opcode = 0x73 // Method call: OpCallMethod <method:u16> <argc:u8>
	OpImport      Opcode = 0x74 // Push imported module: OpImport <path:u16>
	OpDefineClass Opcode = 0x75 // Build class: OpDefineClass <name:u16> <fields:u8> <methods:u8>

	// ========================================================================
	// Collections (0x80-0x8F)
	// ========================================================================

	OpGetIndex  Opcode = 0x80 // Pop index and collection, push element
	OpSetIndex  Opcode = 0x81 // Pop value, index, collection; push updated collection
	OpLen       Opcode = 0x82 // Pop collection, push its length
	OpAppend    Opcode = 0x83 // Pop value and list, push extended list
	OpBuildList Opcode = 0x84 // Pop n values, push list: OpBuildList <n:u8>
	OpBuildMap  Opcode = 0x85 // Pop n key/value pairs, push map: OpBuildMap <n:u8>

	// ========================================================================
	// I/O (0x90-0x9F)
	// ========================================================================

	OpPrint    Opcode = 0x90 // Pop and print with newline
	OpPrintRaw Opcode = 0x91 // Pop and print without newline
	OpInput    Opcode = 0x92 // Read a line, push it as a string

	// ========================================================================
	// Checks (0xA0-0xAF)
	// ========================================================================

	OpAssert Opcode = 0xA0 // Pop, fail if falsy: OpAssert <message:u16>

	OpHalt Opcode = 0xFF // Stop execution
)

// OpcodeInfo contains metadata about an opcode.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // Values popped (-1 = determined by operands)
	StackPush  int    // Values pushed
	OperandLen int    // Operand bytes following the opcode
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Literals
	OpPushNull:  {"PUSH_NULL", 0, 1, 0},
	OpPushInt:   {"PUSH_INT", 0, 1, 8},
	OpPushFloat: {"PUSH_FLOAT", 0, 1, 8},
	OpPushStr:   {"PUSH_STR", 0, 1, 2},
	OpPushTrue:  {"PUSH_TRUE", 0, 1, 0},
	OpPushFalse: {"PUSH_FALSE", 0, 1, 0},
	OpPushList:  {"PUSH_LIST", 0, 1, 0},
	OpPushMap:   {"PUSH_MAP", 0, 1, 0},
	OpPushFn:    {"PUSH_FN", 0, 1, 7}, // name:u16 + start:u32 + arity:u8

	// Stack
	OpPop:  {"POP", 1, 0, 0},
	OpDup:  {"DUP", 1, 2, 0},
	OpSwap: {"SWAP", 2, 2, 0},

	// Arithmetic
	OpAdd: {"ADD", 2, 1, 0},
	OpSub: {"SUB", 2, 1, 0},
	OpMul: {"MUL", 2, 1, 0},
	OpDiv: {"DIV", 2, 1, 0},
	OpMod: {"MOD", 2, 1, 0},
	OpNeg: {"NEG", 1, 1, 0},
	OpPow: {"POW", 2, 1, 0},

	// Comparison
	OpEq: {"EQ", 2, 1, 0},
	OpNe: {"NE", 2, 1, 0},
	OpLt: {"LT", 2, 1, 0},
	OpLe: {"LE", 2, 1, 0},
	OpGt: {"GT", 2, 1, 0},
	OpGe: {"GE", 2, 1, 0},

	// Logical
	OpAnd: {"AND", 2, 1, 0},
	OpOr:  {"OR", 2, 1, 0},
	OpNot: {"NOT", 1, 1, 0},

	// Variables
	OpLoadLocal:   {"LOAD_LOCAL", 0, 1, 2},
	OpStoreLocal:  {"STORE_LOCAL", 1, 0, 2},
	OpLoadGlobal:  {"LOAD_GLOBAL", 0, 1, 2},
	OpStoreGlobal: {"STORE_GLOBAL", 1, 0, 2},

	// Control flow
	OpJump:        {"JUMP", 0, 0, 2},
	OpJumpIfFalse: {"JUMP_IF_FALSE", 1, 0, 2},
	OpJumpIfTrue:  {"JUMP_IF_TRUE", 1, 0, 2},

	// Calls
	OpCall:        {"CALL", -1, 1, 1},         // Pops callee + argc
	OpReturn:      {"RETURN", 1, 0, 0},        // Frame is discarded
	OpCallOdu:     {"CALL_ODU", -1, 1, 4},     // domain:u8 + method:u16 + argc:u8
	OpCallMethod:  {"CALL_METHOD", -1, 1, 3},  // Pops receiver + argc
	OpImport:      {"IMPORT", 0, 1, 2},        // path:u16
	OpDefineClass: {"DEFINE_CLASS", -1, 1, 4}, // Pops 2*fields + methods

	// Collections
	OpGetIndex:  {"GET_INDEX", 2, 1, 0},
	OpSetIndex:  {"SET_INDEX", 3, 1, 0},
	OpLen:       {"LEN", 1, 1, 0},
	OpAppend:    {"APPEND", 2, 1, 0},
	OpBuildList: {"BUILD_LIST", -1, 1, 1},
	OpBuildMap:  {"BUILD_MAP", -1, 1, 1},

	// I/O
	OpPrint:    {"PRINT", 1, 0, 0},
	OpPrintRaw: {"PRINT_RAW", 1, 0, 0},
	OpInput:    {"INPUT", 0, 1, 0},

	// Checks
	OpAssert: {"ASSERT", 1, 0, 2},

	OpHalt: {"HALT", 0, 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// IsValid reports whether op is a defined opcode.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpJump && op <= OpJumpIfTrue
}

// IsCall returns true if this opcode transfers control to a callee.
func (op Opcode) IsCall() bool {
	return op == OpCall || op == OpCallOdu || op == OpCallMethod
}

// StackEffect returns the net stack height change of the instruction whose
// operand bytes are given. For Return only the returned value is counted.
func StackEffect(op Opcode, operands []byte) int {
	info := GetOpcodeInfo(op)
	if info.StackPop >= 0 {
		return info.StackPush - info.StackPop
	}
	switch op {
	case OpCall:
		return info.StackPush - (1 + int(operands[0]))
	case OpCallOdu:
		return info.StackPush - int(operands[3])
	case OpCallMethod:
		return info.StackPush - (1 + int(operands[2]))
	case OpDefineClass:
		return info.StackPush - (2*int(operands[2]) + int(operands[3]))
	case OpBuildList:
		return info.StackPush - int(operands[0])
	case OpBuildMap:
		return info.StackPush - 2*int(operands[0])
	}
	return 0
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

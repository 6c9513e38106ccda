// Package bytecode defines the Ifá instruction set and its serialized form.
//
// A program compiles to a single Bytecode artifact: a flat code array, a
// string pool and optional debug metadata. Functions are regions of the same
// code array, entered through function values created by PUSH_FN.
//
// # Instruction encoding
//
// Every instruction is a one-byte opcode followed by operands of fixed width.
// Each operand kind has exactly one encoding:
//
//   - integer and float literals: 8 bytes, big-endian
//   - string pool indices (strings, global names, methods, imports): u16
//   - local slots: u16
//   - jumps: signed i16, relative to the instruction pointer after the operand
//   - argument, element, field and method counts: u8
//   - Odù domain ids: u8
//   - function start offsets: u32
//
// Builder is the only way the compiler emits code, so a mismatched operand
// width cannot be produced.
//
// # Serialization
//
// Artifacts persist as .ifab files (see Bytecode.Marshal). Unmarshal rejects
// foreign magic, newer versions and truncated input.
package bytecode

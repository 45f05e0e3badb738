// Package asm implements the Assembly: the flat, ordered instruction
// sequence the compiler emits and the VM executes. An Assembly is a slice of
// Op pairs (opcode, operand); operands reuse object.Value so e.g. STORE_FAST
// carries a Double16, LOAD_NAME carries a CString, and JUMP carries an
// Integer target index.
package asm

import (
	"fmt"

	"github.com/weftlang/weft/object"
)

// Opcode names every instruction in the Assembly (spec §4.2).
type Opcode uint8

const (
	PUSH Opcode = iota
	POP
	ADD
	SUB
	MUL
	DIV
	IDIV // floor division, spec's "DIV(floor)"
	MOD
	NEG
	NOT
	EQUAL
	NOT_EQUAL
	LESS
	LESS_EQUAL
	GREATER
	GREATER_EQUAL
	LOAD_NAME
	STORE_NAME
	LOAD_FAST
	STORE_FAST
	LOAD_ATTR
	LOAD_INDEX
	STORE_ATTR
	STORE_INDEX
	STORE_APPEND
	JUMP
	JUMP_NOT_TEST
	JUMP_IF_TRUE_OR_POP  // short-circuit `or`
	JUMP_IF_FALSE_OR_POP // short-circuit `and`
	CALL
	MAKE_FUNCTION
	STORE_CLOSURE
	LOAD_CLOSURE
	GET_SELF
	ADD_FRAME
	POP_FRAME
	RETURN
	NEW_OBJ
	SET_META

	opcodeCount
)

var opcodeNames = [...]string{
	"PUSH", "POP", "ADD", "SUB", "MUL", "DIV", "IDIV", "MOD", "NEG", "NOT",
	"EQUAL", "NOT_EQUAL", "LESS", "LESS_EQUAL", "GREATER", "GREATER_EQUAL",
	"LOAD_NAME", "STORE_NAME", "LOAD_FAST", "STORE_FAST",
	"LOAD_ATTR", "LOAD_INDEX", "STORE_ATTR", "STORE_INDEX", "STORE_APPEND",
	"JUMP", "JUMP_NOT_TEST", "JUMP_IF_TRUE_OR_POP", "JUMP_IF_FALSE_OR_POP",
	"CALL", "MAKE_FUNCTION", "STORE_CLOSURE", "LOAD_CLOSURE", "GET_SELF",
	"ADD_FRAME", "POP_FRAME", "RETURN", "NEW_OBJ", "SET_META",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// ObjKind values for NEW_OBJ's Integer operand.
const (
	NewArray = iota
	NewTable
	NewStringLit
)

// Op is a single (opcode, operand) pair. Not every opcode carries a
// meaningful operand; the zero Value (Nil) is used where none is needed.
type Op struct {
	Code    Opcode
	Operand object.Value
}

// Assembly is the ordered instruction stream produced by the compiler and
// consumed by the VM.
type Assembly struct {
	ops      []Op
	Interner Interner
}

// Len reports the number of instructions compiled so far.
func (a *Assembly) Len() int { return len(a.ops) }

// At returns the instruction at index i.
func (a *Assembly) At(i int) Op { return a.ops[i] }

// Emit appends an instruction and returns its index, for callers that need
// to back-patch its operand later (jumps, MAKE_FUNCTION's entry_pc).
func (a *Assembly) Emit(code Opcode, operand object.Value) int {
	a.ops = append(a.ops, Op{Code: code, Operand: operand})
	return len(a.ops) - 1
}

// EmitBare emits an instruction with no operand.
func (a *Assembly) EmitBare(code Opcode) int {
	return a.Emit(code, object.Nil)
}

// Patch rewrites the operand of a previously emitted instruction. Used to
// back-patch jump targets once the jump's destination is known.
func (a *Assembly) Patch(index int, operand object.Value) {
	a.ops[index].Operand = operand
}

// PatchJumpHere patches a jump instruction's target to the current end of
// the assembly (the next instruction to be emitted).
func (a *Assembly) PatchJumpHere(index int) {
	a.Patch(index, object.Integer(int32(a.Len())))
}

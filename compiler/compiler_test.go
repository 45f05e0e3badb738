package compiler_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlang/weft/asm"
	"github.com/weftlang/weft/compiler"
	"github.com/weftlang/weft/internal/lexer"
	"github.com/weftlang/weft/internal/parser"
)

func compile(t *testing.T, src string) *asm.Assembly {
	t.Helper()
	block, err := parser.ParseProgram(lexer.New(src))
	require.NoError(t, err)
	a, err := compiler.Compile(block)
	require.NoError(t, err)
	return a
}

func opcodes(a *asm.Assembly) []asm.Opcode {
	out := make([]asm.Opcode, a.Len())
	for i := range out {
		out[i] = a.At(i).Code
	}
	return out
}

func TestCompileArithmeticEmitsRightThenLeftThenOp(t *testing.T) {
	a := compile(t, "1 + 2;")
	// PUSH(2) [right], PUSH(1) [left], ADD, POP(1)
	require.Equal(t, 4, a.Len())
	assert.Equal(t, asm.PUSH, a.At(0).Code)
	assert.Equal(t, float64(2), a.At(0).Operand.Number())
	assert.Equal(t, asm.PUSH, a.At(1).Code)
	assert.Equal(t, float64(1), a.At(1).Operand.Number())
	assert.Equal(t, asm.ADD, a.At(2).Code)
	assert.Equal(t, asm.POP, a.At(3).Code)
}

func TestCompileGlobalAssignStoresThenReloads(t *testing.T) {
	a := compile(t, "x = 1;")
	kinds := opcodes(a)
	assert.Equal(t, []asm.Opcode{asm.PUSH, asm.STORE_NAME, asm.LOAD_NAME, asm.POP}, kinds)
}

func TestCompileLocalAssignUsesStoreFast(t *testing.T) {
	a := compile(t, "fn f() begin x = 1; end")
	kinds := opcodes(a)
	assert.Contains(t, kinds, asm.STORE_FAST)
	assert.Contains(t, kinds, asm.LOAD_FAST)
}

func TestCompileAndOrUseShortCircuitOpcodes(t *testing.T) {
	a := compile(t, "a and b;")
	assert.Contains(t, opcodes(a), asm.JUMP_IF_FALSE_OR_POP)

	a = compile(t, "a or b;")
	assert.Contains(t, opcodes(a), asm.JUMP_IF_TRUE_OR_POP)
}

func TestCompileIfElseBacpatchesJumps(t *testing.T) {
	a := compile(t, "if (x) 1; else 2;")
	kinds := opcodes(a)
	assert.Contains(t, kinds, asm.JUMP_NOT_TEST)
	assert.Contains(t, kinds, asm.JUMP)
}

func TestCompileFunctionDefinitionEmitsMakeFunctionAndSkipJump(t *testing.T) {
	a := compile(t, "fn f(a) return a;")
	kinds := opcodes(a)
	require.Equal(t, asm.MAKE_FUNCTION, kinds[0])
	require.Equal(t, asm.JUMP, kinds[1])
	// entry_pc patched to point past the skip jump
	entryPC := a.At(0).Operand.Integer()
	assert.EqualValues(t, 2, entryPC)
	assert.Equal(t, asm.ADD_FRAME, a.At(int(entryPC)).Code)
}

func TestCompileClosureCaptureEmitsStoreClosure(t *testing.T) {
	a := compile(t, "f = fn(x)[y] return x + y;")
	kinds := opcodes(a)
	assert.Contains(t, kinds, asm.STORE_CLOSURE)
	assert.Contains(t, kinds, asm.LOAD_CLOSURE)
}

func TestCompileCallArgsBeforeCallee(t *testing.T) {
	a := compile(t, "f(1, 2);")
	kinds := opcodes(a)
	// PUSH 1, PUSH 2, LOAD_NAME(f), CALL(2), POP
	require.Equal(t, []asm.Opcode{asm.PUSH, asm.PUSH, asm.LOAD_NAME, asm.CALL, asm.POP}, kinds)
	assert.EqualValues(t, 2, a.At(3).Operand.Integer())
}

func TestCompileTableLitWithMeta(t *testing.T) {
	a := compile(t, `{x = 1} meta base;`)
	kinds := opcodes(a)
	assert.Equal(t, asm.NEW_OBJ, kinds[0])
	assert.Contains(t, kinds, asm.STORE_ATTR)
	assert.Contains(t, kinds, asm.SET_META)
}

func TestCompileArrayLitUsesStoreAppend(t *testing.T) {
	a := compile(t, "[1, 2, 3];")
	kinds := opcodes(a)
	assert.Equal(t, asm.NEW_OBJ, kinds[0])
	count := 0
	for _, k := range kinds {
		if k == asm.STORE_APPEND {
			count++
		}
	}
	assert.Equal(t, 3, count)
}

func TestCompileIndexAssignUsesStoreIndex(t *testing.T) {
	a := compile(t, "arr[0] = 1;")
	assert.Contains(t, opcodes(a), asm.STORE_INDEX)
}

func TestCompileAttrAssignUsesStoreAttr(t *testing.T) {
	a := compile(t, "t.x = 1;")
	assert.Contains(t, opcodes(a), asm.STORE_ATTR)
}

func TestCompileLoadStatementIsCompileTimeError(t *testing.T) {
	block, err := parser.ParseProgram(lexer.New(`load "foo" as bar;`))
	require.NoError(t, err)
	_, err = compiler.Compile(block)
	assert.Error(t, err)
}

func TestCompileWhileLoopJumpsBackToTop(t *testing.T) {
	a := compile(t, "while (x) begin x = x - 1; end")
	kinds := opcodes(a)
	assert.Contains(t, kinds, asm.JUMP_NOT_TEST)
	// the final JUMP before the patched loop-exit should target index 0
	foundBackJump := false
	for i, k := range kinds {
		if k == asm.JUMP && a.At(i).Operand.Integer() == 0 {
			foundBackJump = true
		}
	}
	assert.True(t, foundBackJump)
}

func TestCompileImplicitReturnOfLastExpression(t *testing.T) {
	a := compile(t, "fn fib(n) if (n < 2) n else fib(n-1) + fib(n-2);")
	kinds := opcodes(a)
	// The function body should end in RETURN(true), not a discarded POP.
	lastReturnIdx := -1
	for i, k := range kinds {
		if k == asm.RETURN {
			lastReturnIdx = i
		}
	}
	require.NotEqual(t, -1, lastReturnIdx)
	assert.True(t, a.At(lastReturnIdx).Operand.Bool())
}

func TestCompileSelfExpr(t *testing.T) {
	a := compile(t, "self;")
	assert.Equal(t, asm.GET_SELF, a.At(0).Code)
}

// opcodeShapeTestCases exercises each binary comparison operator's emitted
// opcode shape in one table, asserted with cmp.Diff so a mismatch reports
// a structural -want/+got rather than a single-field failure.
var opcodeShapeTestCases = []struct {
	name string
	src  string
	want []asm.Opcode
}{
	{"less", "1 < 2;", []asm.Opcode{asm.PUSH, asm.PUSH, asm.LESS, asm.POP}},
	{"lessEqual", "1 <= 2;", []asm.Opcode{asm.PUSH, asm.PUSH, asm.LESS_EQUAL, asm.POP}},
	{"greater", "1 > 2;", []asm.Opcode{asm.PUSH, asm.PUSH, asm.GREATER, asm.POP}},
	{"greaterEqual", "1 >= 2;", []asm.Opcode{asm.PUSH, asm.PUSH, asm.GREATER_EQUAL, asm.POP}},
	{"equal", "1 == 2;", []asm.Opcode{asm.PUSH, asm.PUSH, asm.EQUAL, asm.POP}},
	{"notEqual", "1 != 2;", []asm.Opcode{asm.PUSH, asm.PUSH, asm.NOT_EQUAL, asm.POP}},
}

func TestCompileComparisonOpcodeShapes(t *testing.T) {
	for _, tc := range opcodeShapeTestCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := opcodes(compile(t, tc.src))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("opcode shape mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

package vm_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlang/weft/asm"
	"github.com/weftlang/weft/compiler"
	"github.com/weftlang/weft/internal/lexer"
	"github.com/weftlang/weft/internal/parser"
	"github.com/weftlang/weft/object"
	"github.com/weftlang/weft/vm"
)

func compileSrc(t *testing.T, src string) *asm.Assembly {
	t.Helper()
	block, err := parser.ParseProgram(lexer.New(src))
	require.NoError(t, err)
	a, err := compiler.Compile(block)
	require.NoError(t, err)
	return a
}

// run compiles and executes src with a `print` builtin wired to an
// in-memory buffer, returning the buffer's contents and the final VM.
func run(t *testing.T, src string, opts ...vm.Option) (string, *vm.VM) {
	t.Helper()
	a := compileSrc(t, src)

	var buf bytes.Buffer
	printFn := object.NewHostFunction("print", func(hv object.HostVM) int {
		for i := 0; i < hv.ParametersCount(); i++ {
			if i > 0 {
				buf.WriteString("\t")
			}
			buf.WriteString(hv.GetParameter(i).String())
		}
		buf.WriteString("\n")
		return 0
	})

	allOpts := append([]vm.Option{
		vm.WithOutput(&buf),
		vm.WithGlobal("print", object.FromObject(printFn)),
	}, opts...)

	m := vm.New(a, allOpts...)
	err := m.Run()
	require.NoError(t, err)
	return buf.String(), m
}

func TestArithmeticPrecedenceAndRightToLeftSideEffects(t *testing.T) {
	out, _ := run(t, `
		fn side(n) begin
			print(n);
			n;
		end
		print(side(1) + side(2) * side(3));
	`)
	// Multiplication binds tighter, and the compiler evaluates the right
	// operand of each binary op before the left, so side(3) and side(2)
	// run before side(1).
	assert.Equal(t, "3\n2\n1\n7\n", out)
}

func TestGlobalAssignmentIsVisibleAfterStatement(t *testing.T) {
	_, m := run(t, `x = 1 + 2 * 3;`)
	assert.Equal(t, float64(7), m.Globals()["x"].Number())
}

func TestIfElseAsExpression(t *testing.T) {
	out, _ := run(t, `
		fn classify(n) if (n < 0) "negative" else if (n == 0) "zero" else "positive";
		print(classify(-5));
		print(classify(0));
		print(classify(5));
	`)
	assert.Equal(t, "negative\nzero\npositive\n", out)
}

func TestWhileLoopAccumulates(t *testing.T) {
	_, m := run(t, `
		i = 0;
		sum = 0;
		while (i < 5) begin
			sum = sum + i;
			i = i + 1;
		end
	`)
	assert.Equal(t, float64(10), m.Globals()["sum"].Number())
}

func TestRecursiveFibonacci(t *testing.T) {
	out, _ := run(t, `
		fn fib(n) if (n < 2) n else fib(n - 1) + fib(n - 2);
		print(fib(10));
	`)
	assert.Equal(t, "55\n", out)
}

func TestClosureCapturesByValueAtDefinitionTime(t *testing.T) {
	out, _ := run(t, `
		fn make_adder(n) begin
			fn add(x) [n] n + x;
			add;
		end
		adder = make_adder(10);
		n = 999;
		print(adder(5));
	`)
	assert.Equal(t, "15\n", out)
}

func TestTableMethodLookupBindsSelf(t *testing.T) {
	out, _ := run(t, `
		fn greet() "hello " + self.name;
		t = {name = "ava", greet = greet};
		print(t.greet());
	`)
	assert.Equal(t, "hello ava\n", out)
}

func TestStringConcatenationMutatesInPlace(t *testing.T) {
	out, _ := run(t, `
		s = "a";
		t = s;
		s = s + "b";
		print(t);
	`)
	// `+` on a String mutates the same heap object and returns the same
	// handle, so t observes the appended bytes too.
	assert.Equal(t, "ab\n", out)
}

func TestArrayIndexAssignmentAndAppend(t *testing.T) {
	out, _ := run(t, `
		a = [1, 2, 3];
		a[1] = 20;
		print(a[0]);
		print(a[1]);
		print(a[2]);
	`)
	assert.Equal(t, "1\n20\n3\n", out)
}

func TestCallingNonCallableIsARuntimeError(t *testing.T) {
	a := compileSrc(t, `x = 1; x();`)
	m := vm.New(a)
	err := m.Run()
	require.Error(t, err)
	rerr, ok := err.(*vm.RuntimeError)
	require.True(t, ok)
	assert.Equal(t, vm.ErrNotCallable, rerr.Kind)
}

func TestOutOfRangeIndexIsARuntimeError(t *testing.T) {
	a := compileSrc(t, `a = [1]; a[5];`)
	m := vm.New(a)
	err := m.Run()
	require.Error(t, err)
	rerr, ok := err.(*vm.RuntimeError)
	require.True(t, ok)
	assert.Equal(t, vm.ErrIndexOutOfRange, rerr.Kind)
}

func TestFramePoolExhaustionIsARuntimeError(t *testing.T) {
	a := compileSrc(t, `
		fn recurse(n) recurse(n + 1);
		recurse(0);
	`)
	m := vm.New(a, vm.WithFrameCapacity(8))
	err := m.Run()
	require.Error(t, err)
	rerr, ok := err.(*vm.RuntimeError)
	require.True(t, ok)
	assert.Equal(t, vm.ErrFramePoolExhausted, rerr.Kind)
}

func TestGarbageCollectionFreesUnreachableTables(t *testing.T) {
	a := compileSrc(t, `
		i = 0;
		while (i < 200) begin
			garbage = {a = i, b = i + 1};
			i = i + 1;
		end
	`)
	m := vm.New(a, vm.WithGCThreshold(512))
	err := m.Run()
	require.NoError(t, err)
	// Only the final loop iteration's table (plus whatever else is still
	// reachable from globals) should remain live.
	assert.Less(t, m.Heap().Count(), 200)
}

func TestHostFunctionReceivesArgumentsLeftmostFirst(t *testing.T) {
	var got []string
	a := compileSrc(t, `record("a", "b", "c");`)
	recordFn := object.NewHostFunction("record", func(hv object.HostVM) int {
		for i := 0; i < hv.ParametersCount(); i++ {
			got = append(got, hv.GetParameter(i).String())
		}
		return 0
	})
	m := vm.New(a, vm.WithGlobal("record", object.FromObject(recordFn)))
	require.NoError(t, m.Run())
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestHostFunctionCanReturnAValue(t *testing.T) {
	a := compileSrc(t, `x = double(21);`)
	doubleFn := object.NewHostFunction("double", func(hv object.HostVM) int {
		hv.Push(object.Number(hv.GetParameter(0).Number() * 2))
		return 1
	})
	m := vm.New(a, vm.WithGlobal("double", object.FromObject(doubleFn)))
	require.NoError(t, m.Run())
	assert.Equal(t, float64(42), m.Globals()["x"].Number())
}

func TestErrorKindsHaveReadableStrings(t *testing.T) {
	for k := vm.ErrFramePoolExhausted; k <= vm.ErrHeapOOM; k++ {
		assert.NotEmpty(t, fmt.Sprint(k))
	}
}

func TestModuloByZeroIsARuntimeError(t *testing.T) {
	a := compileSrc(t, `x = 5 % 0;`)
	m := vm.New(a)
	err := m.Run()
	require.Error(t, err)
	var rerr *vm.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, vm.ErrBadOperand, rerr.Kind)
}

func TestTraceHookSeesEveryExecutedInstruction(t *testing.T) {
	a := compileSrc(t, `1 + 2;`)
	var seen []asm.Opcode
	m := vm.New(a, vm.WithTrace(func(pc int, op asm.Op) {
		seen = append(seen, op.Code)
	}))
	require.NoError(t, m.Run())
	assert.Equal(t, []asm.Opcode{asm.PUSH, asm.PUSH, asm.ADD, asm.POP}, seen)
}

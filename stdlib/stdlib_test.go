package stdlib_test

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weftlang/weft/internal/flushio"
	"github.com/weftlang/weft/object"
	"github.com/weftlang/weft/stdlib"
)

func call(t *testing.T, fn object.Value, args ...object.Value) (object.Value, int) {
	t.Helper()
	host, ok := fn.Object().(*object.HostFunction)
	if !ok {
		t.Fatalf("not a host function: %v", fn)
	}
	hv := &fakeHostVM{args: args}
	n := host.Fn(hv)
	if n == 0 {
		return object.Nil, 0
	}
	return hv.result, 1
}

type fakeHostVM struct {
	args   []object.Value
	result object.Value
}

func (f *fakeHostVM) ParametersCount() int           { return len(f.args) }
func (f *fakeHostVM) GetParameter(i int) object.Value { return f.args[i] }
func (f *fakeHostVM) Push(v object.Value)            { f.result = v }

func TestPrintFormatsArgumentsSpaceSeparatedWithTrailingSpace(t *testing.T) {
	var buf bytes.Buffer
	b := stdlib.Builtins{Out: flushio.NewWriteFlusher(&buf)}
	globals := b.Register()
	call(t, globals["print"], object.Number(7))
	assert.Equal(t, "7 \n", buf.String())
}

func TestPrintMultipleArguments(t *testing.T) {
	var buf bytes.Buffer
	b := stdlib.Builtins{Out: flushio.NewWriteFlusher(&buf)}
	globals := b.Register()
	call(t, globals["print"], object.Number(1), object.Bool(true), object.Nil)
	assert.Equal(t, "1 true nil \n", buf.String())
}

func TestInputReturnsLineWithoutNewline(t *testing.T) {
	b := stdlib.Builtins{In: bufio.NewReader(strings.NewReader("hello\nworld\n"))}
	globals := b.Register()
	v, n := call(t, globals["input"])
	assert.Equal(t, 1, n)
	assert.Equal(t, "hello", v.String())
}

func TestInputReturnsNilAtEOF(t *testing.T) {
	b := stdlib.Builtins{In: bufio.NewReader(strings.NewReader(""))}
	globals := b.Register()
	v, _ := call(t, globals["input"])
	assert.Equal(t, object.KindNil, v.Kind())
}

func TestTostringRoundTripsNumbers(t *testing.T) {
	b := stdlib.Builtins{}
	globals := b.Register()
	v, _ := call(t, globals["tostring"], object.Number(3.5))
	assert.Equal(t, "3.5", v.String())
}

func TestCollectGarbageInvokesHook(t *testing.T) {
	called := false
	b := stdlib.Builtins{CollectGC: func() { called = true }}
	globals := b.Register()
	call(t, globals["collect_garbage"])
	assert.True(t, called)
}

func TestCollectGarbageWithNilHookReturnsNoResult(t *testing.T) {
	b := stdlib.Builtins{}
	globals := b.Register()
	_, n := call(t, globals["collect_garbage"])
	assert.Equal(t, 0, n)
}

func TestMathBuiltins(t *testing.T) {
	b := stdlib.Builtins{}
	globals := b.Register()

	v, _ := call(t, globals["sqrt"], object.Number(16))
	assert.Equal(t, float64(4), v.Number())

	v, _ = call(t, globals["floor"], object.Number(3.7))
	assert.Equal(t, float64(3), v.Number())

	v, _ = call(t, globals["ceil"], object.Number(3.2))
	assert.Equal(t, float64(4), v.Number())

	v, _ = call(t, globals["abs"], object.Number(-5))
	assert.Equal(t, float64(5), v.Number())

	v, _ = call(t, globals["min"], object.Number(3), object.Number(1), object.Number(2))
	assert.Equal(t, float64(1), v.Number())

	v, _ = call(t, globals["max"], object.Number(3), object.Number(1), object.Number(2))
	assert.Equal(t, float64(3), v.Number())
}

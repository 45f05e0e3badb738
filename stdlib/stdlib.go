// Package stdlib implements the host-provided callables the language
// treats as external collaborators rather than language primitives: print,
// input, clock, string conversion, a small math surface, and
// collect_garbage. Builtins.Register returns each as an object.HostFunction
// value for the caller to install as a global, following the host ABI (spec §6): argument 0 is the
// leftmost source argument, and a builtin reports whether it left a result
// by returning 1 or 0.
package stdlib

import (
	"bufio"
	"fmt"
	"math"
	"time"

	"github.com/weftlang/weft/internal/flushio"
	"github.com/weftlang/weft/internal/runeio"
	"github.com/weftlang/weft/object"
)

// Builtins holds the host-side hooks every builtin needs: where `print`
// writes, where `input` reads, a clock source, and a collect_garbage
// trigger. The VM itself is deliberately not referenced here (stdlib
// doesn't import vm) so the caller wires CollectGC as a closure over its
// own *vm.VM.
type Builtins struct {
	Out       flushio.WriteFlusher
	In        *bufio.Reader
	Clock     func() time.Duration
	CollectGC func()
}

// Register returns every builtin as (name, Value) pairs.
func (b Builtins) Register() map[string]object.Value {
	out := map[string]object.Value{
		"print":           object.FromObject(object.NewHostFunction("print", b.print)),
		"input":           object.FromObject(object.NewHostFunction("input", b.input)),
		"clock":           object.FromObject(object.NewHostFunction("clock", b.clock)),
		"tostring":        object.FromObject(object.NewHostFunction("tostring", b.tostring)),
		"collect_garbage": object.FromObject(object.NewHostFunction("collect_garbage", b.collectGarbage)),
	}
	for name, fn := range mathBuiltins() {
		out[name] = object.FromObject(fn)
	}
	return out
}

// print writes every argument followed by a single space, then a trailing
// newline, matching the end-to-end scenarios' literal output contract
// (spec §8: `print(1 + 2 * 3);` → `7 ` + newline). Each argument is
// written rune-at-a-time through runeio.WriteANSIString: a C1 control
// character is written in its 7-bit ESC-prefixed form (and NEL as \r\n),
// while ASCII, including C0 controls, is written unchanged (internal/runeio,
// adapted from the teacher's ANSI-safe rune writer).
func (b Builtins) print(hv object.HostVM) int {
	for i := 0; i < hv.ParametersCount(); i++ {
		runeio.WriteANSIString(b.Out, hv.GetParameter(i).String())
		b.Out.Write([]byte{' '})
	}
	fmt.Fprintln(b.Out)
	b.Out.Flush()
	return 0
}

// input reads one line from In and returns it as a String, with the
// trailing newline stripped. Returns Nil at EOF.
func (b Builtins) input(hv object.HostVM) int {
	if b.In == nil {
		hv.Push(object.Nil)
		return 1
	}
	line, err := b.In.ReadString('\n')
	if err != nil && line == "" {
		hv.Push(object.Nil)
		return 1
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	hv.Push(object.FromObject(object.NewString(line)))
	return 1
}

// clock returns the duration reported by the Clock hook in seconds, as a
// Number (0 when no hook is set), for crude timing in scripts.
func (b Builtins) clock(hv object.HostVM) int {
	d := time.Duration(0)
	if b.Clock != nil {
		d = b.Clock()
	}
	hv.Push(object.Number(d.Seconds()))
	return 1
}

// tostring renders its single argument the same way the interpreter does
// internally, satisfying the round-trip property `string(number(s)) == s`
// (spec §8).
func (b Builtins) tostring(hv object.HostVM) int {
	if hv.ParametersCount() == 0 {
		hv.Push(object.FromObject(object.NewString("")))
		return 1
	}
	hv.Push(object.FromObject(object.NewString(hv.GetParameter(0).String())))
	return 1
}

// collectGarbage triggers an immediate mark-sweep cycle. Repeated calls
// with no intervening allocation are a no-op, satisfying the idempotence
// property (spec §8).
func (b Builtins) collectGarbage(hv object.HostVM) int {
	if b.CollectGC != nil {
		b.CollectGC()
	}
	return 0
}

func mathBuiltins() map[string]*object.HostFunction {
	unary := func(name string, f func(float64) float64) *object.HostFunction {
		return object.NewHostFunction(name, func(hv object.HostVM) int {
			hv.Push(object.Number(f(hv.GetParameter(0).Number())))
			return 1
		})
	}
	return map[string]*object.HostFunction{
		"sqrt":  unary("sqrt", math.Sqrt),
		"floor": unary("floor", math.Floor),
		"ceil":  unary("ceil", math.Ceil),
		"abs":   unary("abs", math.Abs),
		"min": object.NewHostFunction("min", func(hv object.HostVM) int {
			m := math.Inf(1)
			for i := 0; i < hv.ParametersCount(); i++ {
				m = math.Min(m, hv.GetParameter(i).Number())
			}
			hv.Push(object.Number(m))
			return 1
		}),
		"max": object.NewHostFunction("max", func(hv object.HostVM) int {
			m := math.Inf(-1)
			for i := 0; i < hv.ParametersCount(); i++ {
				m = math.Max(m, hv.GetParameter(i).Number())
			}
			hv.Push(object.Number(m))
			return 1
		}),
	}
}

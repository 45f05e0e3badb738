package vm

import (
	"io"
	"io/ioutil"

	"github.com/weftlang/weft/asm"
	"github.com/weftlang/weft/internal/flushio"
	"github.com/weftlang/weft/object"
)

// Option configures a VM at construction time, grounded on the teacher's
// functional-options pattern (jcorbin/gothird: options.go).
type Option interface{ apply(vm *VM) }

var defaultOptions = Options(
	withOutput(ioutil.Discard),
	withFrameCapacity(DefaultFrameCapacity),
	withStackCapacity(DefaultStackCapacity),
)

// Options flattens a list of Options into one, matching the teacher's
// VMOptions combinator so callers can build up a configuration piecewise
// and pass the result to New.
func Options(opts ...Option) Option {
	var res options
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noption:
		case options:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	switch len(res) {
	case 0:
		return noption{}
	case 1:
		return res[0]
	default:
		return res
	}
}

type noption struct{}

func (noption) apply(*VM) {}

type options []Option

func (opts options) apply(vm *VM) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(vm)
		}
	}
}

type outputOption struct{ io.Writer }
type globalOption struct {
	name string
	val  object.Value
}
type frameCapacityOption int
type stackCapacityOption int
type gcThresholdOption uint
type memLimitOption uint
type traceOption func(pc int, op asm.Op)

// WithOutput directs program output (the `print` builtin) to w.
func WithOutput(w io.Writer) Option { return outputOption{w} }

// WithGlobal installs a global binding, typically a HostFunction (spec §6
// "Host registration": vm.Add(name, Value)).
func WithGlobal(name string, val object.Value) Option { return globalOption{name, val} }

// WithFrameCapacity overrides the frame pool's fixed capacity (spec §5
// default 1024).
func WithFrameCapacity(n int) Option { return frameCapacityOption(n) }

// WithStackCapacity overrides the value stack's fixed capacity (spec §4.3
// default >= 1MiB / sizeof(Value)).
func WithStackCapacity(n int) Option { return stackCapacityOption(n) }

// WithGCThreshold overrides the collector's allocation-threshold trigger
// (spec §4.5 default 1MiB).
func WithGCThreshold(n uint) Option { return gcThresholdOption(n) }

// WithMemLimit caps total live heap footprint, mirroring the teacher's
// memLimitError (options.go): an allocation that can't be brought back
// under the limit by collecting surfaces as ErrHeapOOM rather than
// growing without bound. Zero (the default) disables the limit.
func WithMemLimit(n uint) Option { return memLimitOption(n) }

// WithTrace installs a per-instruction hook, called just before each
// opcode executes with its address and decoded Op (spec §9 `-trace`
// mode, grounded on the teacher's scan-time tracing in internals.go).
func WithTrace(fn func(pc int, op asm.Op)) Option { return traceOption(fn) }

func withOutput(w io.Writer) Option { return outputOption{w} }

func withFrameCapacity(n int) Option { return frameCapacityOption(n) }

func withStackCapacity(n int) Option { return stackCapacityOption(n) }

func (o outputOption) apply(vm *VM) {
	if vm.out != nil {
		vm.out.Flush()
	}
	vm.out = flushio.NewWriteFlusher(o.Writer)
}

func (g globalOption) apply(vm *VM) { vm.globals[g.name] = g.val }

func (n frameCapacityOption) apply(vm *VM) { vm.frameCapacity = int(n) }

func (n stackCapacityOption) apply(vm *VM) { vm.stackCapacity = int(n) }

func (n gcThresholdOption) apply(vm *VM) { vm.gcThreshold = uint(n) }

func (n memLimitOption) apply(vm *VM) { vm.memLimit = uint(n) }

func (fn traceOption) apply(vm *VM) { vm.trace = fn }

package vm

import "github.com/weftlang/weft/object"

// DefaultLocalsCapacity is the fixed size of a Frame's locals array (spec
// §4.3 default 256).
const DefaultLocalsCapacity = 256

// Frame is an activation record: a parent link (the caller's frame at the
// time of ADD_FRAME, used to resolve LOAD_FAST/STORE_FAST references at a
// depth greater than zero), a return cursor (−1 means "transparent --
// keep unwinding through me"), a fixed-size locals array, and a used
// count. Locals at indices >= Used are garbage slots left over from a
// prior tenant of this pooled Frame and must never be scanned by the
// collector (spec §4, invariant 4).
type Frame struct {
	Parent        *Frame
	ReturnAddress int
	Locals        [DefaultLocalsCapacity]object.Value
	Used          int
}

// Ancestor walks depth parent links outward from f, used by LOAD_FAST and
// STORE_FAST's Double16(index, depth) operand.
func (f *Frame) Ancestor(depth int) *Frame {
	for ; depth > 0 && f != nil; depth-- {
		f = f.Parent
	}
	return f
}

// reset clears a Frame for reuse when rented from the pool: it zeroes
// Parent, ReturnAddress and Used, which the caller then sets as needed.
// Locals are not cleared; values a previous tenant left at indices >= Used
// are ignored by the collector.
func (f *Frame) reset() {
	f.Parent = nil
	f.ReturnAddress = 0
	f.Used = 0
}

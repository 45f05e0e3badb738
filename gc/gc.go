// Package gc implements the non-moving, allocation-threshold-triggered
// mark-sweep collector over an object.Heap. It drives marking purely
// through the object.Object interface (Marked/SetMarked/WalkChildren), so
// it never needs to know the concrete shape of Table, Array, String,
// Function, or HostFunction.
package gc

import (
	"fmt"

	"github.com/weftlang/weft/object"
)

// DefaultThreshold is the default cumulative-bytes-allocated trigger, per
// spec §4.5.
const DefaultThreshold = 1 << 20 // 1 MiB

// Collector owns the collection policy (threshold) for a Heap; the Heap
// itself owns the allocation list.
type Collector struct {
	Heap      *object.Heap
	Threshold uint
}

// New constructs a Collector with the default threshold.
func New(heap *object.Heap) *Collector {
	return &Collector{Heap: heap, Threshold: DefaultThreshold}
}

// Stats reports the outcome of a single Collect call.
type Stats struct {
	Freed      int
	BytesFreed uint
	Live       int
}

func (s Stats) String() string {
	return fmt.Sprintf("collected %d objects (%d bytes), %d live", s.Freed, s.BytesFreed, s.Live)
}

// ShouldCollect reports whether cumulative allocation since the last
// collection has crossed the threshold. A zero Threshold disables automatic
// collection (explicit Collect calls, e.g. from collect_garbage(), still
// work).
func (c *Collector) ShouldCollect() bool {
	return c.Threshold != 0 && c.Heap.BytesAllocated() >= c.Threshold
}

// RootFunc enumerates roots by calling mark on every directly-reachable
// Value: globals, the live value stack, and any other VM-owned root set.
// The VM supplies this; gc has no notion of globals, frames, or the stack.
type RootFunc func(mark func(object.Value))

// Collect runs one full mark-sweep cycle:
//  1. clear every object's mark bit
//  2. enumerate roots, marking each reachable object and pushing it onto a
//     greylist worklist
//  3. drain the greylist, marking each object's children until empty
//  4. sweep the heap, unlinking and discarding every still-unmarked object
//  5. reset the byte-allocation counter
//
// The greylist is modeled as an explicit worklist slice rather than an
// intrusive linked field on object.Header: Go's slices are the idiomatic
// stand-in for the spec's `next_in_greylist` chain and need no extra field
// threaded through every heap entity.
func (c *Collector) Collect(roots RootFunc) Stats {
	c.Heap.ClearMarks()

	var grey []object.Object
	mark := func(v object.Value) {
		if v.Kind() != object.KindObject {
			return
		}
		o := v.Object()
		if o == nil || o.Marked() {
			return
		}
		o.SetMarked(true)
		grey = append(grey, o)
	}

	roots(mark)
	for len(grey) > 0 {
		o := grey[len(grey)-1]
		grey = grey[:len(grey)-1]
		o.WalkChildren(mark)
	}

	freed, bytes := c.Heap.Sweep()
	c.Heap.ResetBytesAllocated()
	return Stats{Freed: freed, BytesFreed: bytes, Live: c.Heap.Count()}
}

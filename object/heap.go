package object

// Heap is the VM's non-moving allocation list: every live object is linked
// in exactly once, in most-recently-allocated-first order. Handles held in
// Values are non-owning pointers into this list and may dangle only between
// unreachability and the next sweep, never observed by program code (see
// data model invariant 1 and design note "Manual memory + raw pointers").
type Heap struct {
	head           Object
	bytesAllocated uint
	count          int
}

// Link inserts a freshly constructed object at the head of the allocation
// list and accounts for its size toward the next GC threshold check.
func (h *Heap) Link(o Object) {
	o.setNext(h.head)
	h.head = o
	h.bytesAllocated += uint(o.Size())
	h.count++
}

// Head returns the first object on the allocation list, or nil if the heap
// is empty.
func (h *Heap) Head() Object { return h.head }

// BytesAllocated reports cumulative allocation size since the last
// ResetBytesAllocated call (i.e. since the last collection).
func (h *Heap) BytesAllocated() uint { return h.bytesAllocated }

// Count reports the number of live objects currently linked into the heap.
func (h *Heap) Count() int { return h.count }

// ResetBytesAllocated zeroes the allocation counter; called by the
// collector after a sweep completes.
func (h *Heap) ResetBytesAllocated() { h.bytesAllocated = 0 }

// ClearMarks walks the allocation list and clears every object's mark bit,
// the first step of a mark-sweep cycle.
func (h *Heap) ClearMarks() {
	for o := h.head; o != nil; o = o.Next() {
		o.SetMarked(false)
	}
}

// Sweep traverses the allocation list, unlinking and discarding every
// unmarked object, and returns how many objects and bytes were freed. Freed
// objects are simply dropped, letting the Go garbage collector reclaim
// them; there is no separate destructor hook since none of the managed
// entities hold external resources.
func (h *Heap) Sweep() (freedCount int, freedBytes uint) {
	var (
		newHead Object
		tail    Object
	)
	for o := h.head; o != nil; {
		next := o.Next()
		if o.Marked() {
			o.setNext(nil)
			if tail == nil {
				newHead = o
			} else {
				tail.setNext(o)
			}
			tail = o
		} else {
			freedCount++
			freedBytes += uint(o.Size())
			h.count--
		}
		o = next
	}
	h.head = newHead
	return freedCount, freedBytes
}

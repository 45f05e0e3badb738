package object

// Kind of a managed heap entity (distinct from Value's Kind, which
// discriminates the tagged union; ObjKind discriminates what a KindObject
// Value's handle actually points at).
type ObjKind uint8

const (
	ObjTable ObjKind = iota
	ObjArray
	ObjString
	ObjFunction
	ObjHostFunction
)

func (k ObjKind) String() string {
	switch k {
	case ObjTable:
		return "table"
	case ObjArray:
		return "array"
	case ObjString:
		return "string"
	case ObjFunction:
		return "function"
	case ObjHostFunction:
		return "hostfunction"
	default:
		return "object"
	}
}

// Object is the interface every managed heap entity satisfies. The GC
// package drives marking and sweeping purely through this interface, never
// reaching into a concrete type's fields.
type Object interface {
	// ObjKind reports which concrete entity this handle refers to.
	ObjKind() ObjKind

	// Marked reports the GC mark bit.
	Marked() bool
	// SetMarked sets the GC mark bit.
	SetMarked(bool)

	// Next returns the next object on the heap's singly-linked allocation
	// list, or nil at the end.
	Next() Object
	setNext(Object)

	// WalkChildren yields every Value this object directly references, for
	// the collector to mark transitively. Leaf kinds (String,
	// HostFunction) yield nothing.
	WalkChildren(yield func(Value))

	// Size approximates the object's heap footprint for GC byte accounting.
	Size() uintptr

	String() string
}

// Header is embedded by every concrete heap entity and implements the
// bookkeeping fields common to all of them: the GC mark bit and the
// allocation-list link. The collector's greylist is a worklist slice in
// package gc, not a field here.
type Header struct {
	marked bool
	next   Object
}

func (h *Header) Marked() bool      { return h.marked }
func (h *Header) SetMarked(b bool)  { h.marked = b }
func (h *Header) Next() Object      { return h.next }
func (h *Header) setNext(o Object)  { h.next = o }

package object

import "fmt"

// Function is a user-defined closure: an entry point into the owning
// Assembly, an optional Table bound as `self` at the most recent
// attribute-read lookup, and the ordered capture values closed over at
// MAKE_FUNCTION/STORE_CLOSURE time.
type Function struct {
	Header
	EntryPC  int
	Arity    int
	Name     string // diagnostic only; anonymous closures carry "".
	Self     *Table
	Captures []Value
}

// NewFunction allocates a closure with no captures and no bound self.
func NewFunction(entryPC, arity int, name string) *Function {
	return &Function{EntryPC: entryPC, Arity: arity, Name: name}
}

func (f *Function) ObjKind() ObjKind { return ObjFunction }

func (f *Function) WalkChildren(yield func(Value)) {
	for _, v := range f.Captures {
		yield(v)
	}
	if f.Self != nil {
		yield(FromObject(f.Self))
	}
}

func (f *Function) Size() uintptr {
	return uintptr(48 + 24*len(f.Captures))
}

func (f *Function) String() string {
	if f.Name != "" {
		return fmt.Sprintf("<fn %s@%d>", f.Name, f.EntryPC)
	}
	return fmt.Sprintf("<fn@%d>", f.EntryPC)
}

// BindSelf overwrites this Function's bound self in place and returns the
// same handle. LOAD_ATTR's name form rebinds self on every lookup; per the
// attribute-read contract this mutates the looked-up Function directly
// rather than producing a fresh handle, so two receivers sharing one method
// Function observe the most recent binding (an intentional aliasing, of a
// kind with String concatenation identity).
func (f *Function) BindSelf(recv *Table) *Function {
	f.Self = recv
	return f
}

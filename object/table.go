package object

import "strings"

// Table is an insertion-order-irrelevant mapping from interned name to
// Value, with an optional meta table used as an attribute lookup fallback.
type Table struct {
	Header
	Members map[string]Value
	Meta    *Table
}

// NewTable allocates a bare, meta-less table with no members.
func NewTable() *Table {
	return &Table{Members: make(map[string]Value)}
}

func (t *Table) ObjKind() ObjKind { return ObjTable }

func (t *Table) WalkChildren(yield func(Value)) {
	if t.Meta != nil {
		yield(FromObject(t.Meta))
	}
	for _, v := range t.Members {
		yield(v)
	}
}

func (t *Table) Size() uintptr {
	return uintptr(32 + 48*len(t.Members))
}

func (t *Table) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	for k, v := range t.Members {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(k)
		sb.WriteString(" = ")
		sb.WriteString(v.String())
	}
	sb.WriteByte('}')
	return sb.String()
}

// Lookup walks this table's members, then its meta chain, returning the
// first hit. The bool reports whether a member was found anywhere in the
// chain. A bounded chain walk guards against meta cycles (design note §9:
// meta cycles are not guarded against by the reference semantics, but an
// implementation SHOULD bound the chain length).
const maxMetaChain = 64

func (t *Table) Lookup(name string) (Value, bool) {
	cur := t
	for i := 0; cur != nil && i < maxMetaChain; i++ {
		if v, ok := cur.Members[name]; ok {
			return v, true
		}
		cur = cur.Meta
	}
	return Nil, false
}

// Set assigns a member, creating or overwriting it.
func (t *Table) Set(name string, v Value) {
	t.Members[name] = v
}

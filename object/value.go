// Package object implements the runtime data model: the tagged Value union
// (Nil, Bool, Integer, Number, CString, Double16, Object) and the managed
// heap entities (Table, Array, String, Function, HostFunction) that an
// Object handle may refer to.
//
// Value is deliberately POD-like: every variant is carried inline in the
// struct and a Value is safe to copy by assignment. CString values borrow a
// Go string from interned storage (see asm.Interner) and never own it.
// Object values are non-owning handles into a Heap; they are only valid
// while the collector keeps the referent reachable.
package object

import (
	"fmt"
	"strconv"
)

// Kind discriminates the variants of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInteger
	KindNumber
	KindCString
	KindDouble16
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindCString:
		return "cstring"
	case KindDouble16:
		return "double16"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is the tagged union of primitive runtime kinds described in the
// data model. Only the field matching Kind is meaningful.
type Value struct {
	kind Kind
	b    bool
	i    int32
	n    float64
	s    string
	d0   int16
	d1   int16
	obj  Object
}

// Nil is the unit value.
var Nil = Value{kind: KindNil}

// Bool constructs a Bool value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Integer constructs an Integer value, used internally for indices/addresses.
func Integer(i int32) Value { return Value{kind: KindInteger, i: i} }

// Number constructs the sole numeric kind visible to programs.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// CStringVal constructs a borrowed, interned name reference.
func CStringVal(s string) Value { return Value{kind: KindCString, s: s} }

// Double16Val constructs a packed (a, b) pair, used for fast-access operands
// carrying (local_index, frame_depth).
func Double16Val(a, b int16) Value { return Value{kind: KindDouble16, d0: a, d1: b} }

// FromObject constructs an Object handle value. A nil Object yields Nil
// rather than an Object-kind value holding nil.
func FromObject(o Object) Value {
	if o == nil {
		return Nil
	}
	return Value{kind: KindObject, obj: o}
}

// Kind reports the value's variant.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the boolean payload; only meaningful when Kind() == KindBool.
func (v Value) Bool() bool { return v.b }

// Integer returns the integer payload.
func (v Value) Integer() int32 { return v.i }

// Number returns the float payload.
func (v Value) Number() float64 { return v.n }

// CString returns the borrowed name payload.
func (v Value) CString() string { return v.s }

// Double16 returns the packed pair payload.
func (v Value) Double16() (a, b int16) { return v.d0, v.d1 }

// Object returns the heap handle payload, or nil if this isn't an object.
func (v Value) Object() Object {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Truthy implements the falsey rule: only false and Nil are falsey; every
// other value, including 0, 0.0, and empty strings/arrays/tables, is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	default:
		return true
	}
}

// Equal implements identity/value equality for EQUAL/NOT_EQUAL: numbers and
// primitives compare by value, objects compare by handle identity.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == o.b
	case KindInteger:
		return v.i == o.i
	case KindNumber:
		return v.n == o.n
	case KindCString:
		return v.s == o.s
	case KindDouble16:
		return v.d0 == o.d0 && v.d1 == o.d1
	case KindObject:
		return v.obj == o.obj
	default:
		return false
	}
}

// String renders a Value for diagnostics and for the `tostring` host
// builtin's Number formatting contract: finite numbers strip trailing zeros
// and a trailing decimal point.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindNumber:
		return formatNumber(v.n)
	case KindCString:
		return v.s
	case KindDouble16:
		return fmt.Sprintf("(%d,%d)", v.d0, v.d1)
	case KindObject:
		if v.obj == nil {
			return "nil"
		}
		return v.obj.String()
	default:
		return "?"
	}
}

// formatNumber renders a Number the way the `tostring` host builtin does:
// shortest round-trippable decimal, trailing zeros and a bare trailing
// decimal point stripped.
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

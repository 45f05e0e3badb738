package object

// String is a growable byte buffer presenting an immutable-looking sequence
// of bytes to the program. It is not actually immutable: the `+` operator
// appends in place and returns the same handle (see AppendStringify).
type String struct {
	Header
	Bytes []byte
}

// NewString allocates a String initialized with the given contents.
func NewString(s string) *String {
	return &String{Bytes: []byte(s)}
}

func (s *String) ObjKind() ObjKind { return ObjString }

func (s *String) WalkChildren(func(Value)) {}

func (s *String) Size() uintptr { return uintptr(24 + len(s.Bytes)) }

func (s *String) String() string { return string(s.Bytes) }

// AppendStringify mutates this String in place, appending the
// stringification of v, and returns the same handle. This is the
// intentionally aliasing behavior required by the `+` operator on a String
// left operand (data model §"String concatenation identity").
func (s *String) AppendStringify(v Value) *String {
	s.Bytes = append(s.Bytes, v.String()...)
	return s
}

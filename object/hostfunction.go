package object

import "fmt"

// HostVM is the interface a VM must satisfy so a HostFunction can read its
// call arguments and push a result, per the host ABI (spec §6): argument 0
// is the leftmost source argument.
type HostVM interface {
	ParametersCount() int
	GetParameter(i int) Value
	Push(v Value)
}

// HostFunction is an opaque reference to a host-provided callable. Fn
// observes arguments via the passed HostVM and returns 1 if it pushed a
// single result, 0 otherwise.
type HostFunction struct {
	Header
	Name string
	Fn   func(vm HostVM) int
}

// NewHostFunction wraps a Go function as a callable host builtin.
func NewHostFunction(name string, fn func(vm HostVM) int) *HostFunction {
	return &HostFunction{Name: name, Fn: fn}
}

func (h *HostFunction) ObjKind() ObjKind { return ObjHostFunction }

func (h *HostFunction) WalkChildren(func(Value)) {}

func (h *HostFunction) Size() uintptr { return 32 }

func (h *HostFunction) String() string { return fmt.Sprintf("<host %s>", h.Name) }

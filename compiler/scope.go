// Package compiler lowers an internal/ast tree to an asm.Assembly, resolving
// names into one of three binding classes (global / local slot / capture
// slot) per spec §3 and §4.1.
package compiler

// scope represents one open lexical frame: a function body or the
// top-level program. GetLocal walks the parent chain counting depth;
// GetCapture only searches the current scope's capture list.
type scope struct {
	parent   *scope
	isGlobal bool
	locals   []string // interned names, index == slot
	captures []string
}

func newGlobalScope() *scope {
	return &scope{isGlobal: true}
}

func newFunctionScope(parent *scope) *scope {
	return &scope{parent: parent}
}

// getLocal searches this scope and its ancestors for name, returning the
// slot index, the depth (0 = current scope, 1 = immediate parent, ...),
// and whether it was found.
func (s *scope) getLocal(name string) (slot int, depth int, ok bool) {
	for cur, d := s, 0; cur != nil; cur, d = cur.parent, d+1 {
		for i, n := range cur.locals {
			if n == name {
				return i, d, true
			}
		}
	}
	return 0, 0, false
}

// getCapture searches only the current scope's capture list.
func (s *scope) getCapture(name string) (index int, ok bool) {
	for i, n := range s.captures {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// defineLocal assigns name the next free slot in this scope if it isn't
// already bound here, reusing the existing slot otherwise.
func (s *scope) defineLocal(name string) int {
	for i, n := range s.locals {
		if n == name {
			return i
		}
	}
	s.locals = append(s.locals, name)
	return len(s.locals) - 1
}

// defineParam allocates parameter slots 0..arity-1 in declaration order.
func (s *scope) defineParam(name string) int {
	s.locals = append(s.locals, name)
	return len(s.locals) - 1
}

// addCapture appends name to this scope's capture list, returning its
// capture index.
func (s *scope) addCapture(name string) int {
	s.captures = append(s.captures, name)
	return len(s.captures) - 1
}

package asm

import "golang.org/x/exp/maps"

// Interner deduplicates identifier and string-literal text encountered
// during compilation, so that table/global keys compiled from the same
// source name share one backing string. Grounded directly on the teacher's
// `symbols` type (jcorbin/gothird: symbols.go), generalized from numeric
// dictionary ids to returning the canonical string itself, since Value's
// CString variant carries a Go string rather than gothird's integer
// symbol id.
type Interner struct {
	ids     map[string]int
	strings []string
}

// Intern returns the canonical instance of s, allocating a new slot the
// first time a given text is seen.
func (in *Interner) Intern(s string) string {
	if in.ids == nil {
		in.ids = make(map[string]int)
	}
	if id, ok := in.ids[s]; ok {
		return in.strings[id]
	}
	id := len(in.strings)
	in.strings = append(in.strings, s)
	in.ids[s] = id
	return in.strings[id]
}

// Names returns every interned string, in first-seen order. Used by the
// `-dump` CLI mode to list the symbol table, mirroring the teacher's
// dumper.go name listing.
func (in *Interner) Names() []string {
	out := make([]string, len(in.strings))
	copy(out, in.strings)
	return out
}

// IDs returns the name-to-slot-id mapping backing Names, for `-dump`
// output that wants to report an interned name alongside its numeric id
// rather than just first-seen order. The returned map is a copy; callers
// typically pass it straight to maps.Keys to get a sortable name list.
func (in *Interner) IDs() map[string]int {
	return maps.Clone(in.ids)
}

// Package interner provides a deduplicating bijective store between byte
// strings and small integer ids, used for wenyan string values and global
// variable names.
package interner

import "github.com/dolthub/swiss"

// Interner assigns stable uint32 ids to byte-identical strings. Lookup by id
// never invalidates: once assigned, an id's bytes never change, and the
// Interner's lifetime is the run of one interpreter invocation.
type Interner struct {
	ids     *swiss.Map[string, uint32]
	strings []string
}

// New returns an empty Interner.
func New() *Interner {
	return &Interner{
		ids: swiss.NewMap[string, uint32](64),
	}
}

// Intern returns the id for s, assigning a new one if s has not been seen
// before. Interning the same bytes twice returns the same id.
func (in *Interner) Intern(s string) uint32 {
	if id, ok := in.ids.Get(s); ok {
		return id
	}
	id := uint32(len(in.strings))
	in.strings = append(in.strings, s)
	in.ids.Put(s, id)
	return id
}

// Lookup returns the bytes for id. It panics if id was never assigned by
// this Interner, since that indicates a compiler or VM bug, not a user
// error.
func (in *Interner) Lookup(id uint32) string {
	if int(id) >= len(in.strings) {
		panic("interner: lookup of unassigned id")
	}
	return in.strings[id]
}

// Len returns the number of distinct strings interned so far.
func (in *Interner) Len() int { return len(in.strings) }

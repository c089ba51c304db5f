// Package object defines the callable descriptors produced by the
// compiler and invoked by the VM: functions and closures, grounded on the
// teacher's lang/machine/function.go Function/Module split.
package object

import (
	"github.com/mna/wenyan/lang/chunk"
	"github.com/mna/wenyan/lang/value"
)

// Function is a callable compiled unit. A Function with an empty Name is
// the top-level script.
type Function struct {
	Arity        int
	Chunk        *chunk.Chunk
	Name         string
	UpvalueCount int
}

// Cell is an indirect holder of a captured value, for closures over
// enclosing locals. Unwired in this implementation (see DESIGN.md, Open
// Question "Upvalue cells"): the compiler never emits nested functions
// that capture enclosing locals, so no Closure ever has non-empty
// Upvalues, but the type exists so the VM's CLOSURE-handling code paths
// are complete and not speculative additions bolted on later.
type Cell struct {
	Value interface{}
}

// Closure wraps a Function with its captured upvalue cells.
type Closure struct {
	Function *Function
	Upvalues []*Cell
}

// Table is the runtime's function/closure table: ids assigned by the
// compiler at CONSTANT-emission time index directly into these slices.
type Table struct {
	Functions []*Function
	Closures  []*Closure
}

// AddFunction appends fn and returns its id.
func (t *Table) AddFunction(fn *Function) uint32 {
	t.Functions = append(t.Functions, fn)
	return uint32(len(t.Functions) - 1)
}

// AddClosure appends cl and returns its id.
func (t *Table) AddClosure(cl *Closure) uint32 {
	t.Closures = append(t.Closures, cl)
	return uint32(len(t.Closures) - 1)
}

// Namer implements value.Namer: it resolves a function or closure id (the
// id spaces are distinct, both starting at 0, disambiguated by kind) to its
// display name.
type Namer struct{ Table *Table }

func (n Namer) Name(kind value.Kind, id uint32) string {
	switch kind {
	case value.KindFunc:
		if int(id) < len(n.Table.Functions) {
			return n.Table.Functions[id].Name
		}
	case value.KindClosure:
		if int(id) < len(n.Table.Closures) {
			if cl := n.Table.Closures[id]; cl.Function != nil {
				return cl.Function.Name
			}
		}
	}
	return ""
}

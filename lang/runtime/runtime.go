// Package runtime holds the mutable execution state shared across a single
// interpreter invocation: the call-frame stack, the global-variable table,
// and the handles (interner, function table) needed to resolve the values
// moving through it. The Frame/call-stack split is grounded on the
// teacher's lang/machine/thread.go Thread/Frame pairing, adapted from its
// pc-only Frame to one that also tracks value- and local-stack bases,
// since wenyan's VM keeps its operand and local stacks separate (spec.md
// §3 "Call frame").
package runtime

import (
	"github.com/dolthub/swiss"

	"github.com/mna/wenyan/lang/interner"
	"github.com/mna/wenyan/lang/object"
	"github.com/mna/wenyan/lang/value"
)

// Frame records one call's (or the top-level script's) execution state.
type Frame struct {
	// Callee is the FuncRef/ClosureRef being executed, or value.Nil for the
	// top-level script frame.
	Callee value.Value
	// Chunk is the bytecode being executed by this frame.
	Chunk *object.Function
	// IP is the byte offset of the next instruction within Chunk.Chunk.Code.
	IP int
	// ValueBase is the operand-stack index at which this call's arguments
	// begin (the callee itself occupies ValueBase for a CALL frame; the
	// top-level frame has no callee slot and ValueBase is 0).
	ValueBase int
	// LocalBase is the local-stack index at which this frame's declared
	// locals begin.
	LocalBase int
	// PrintFloor is the operand-stack index PRINT drains down to: ValueBase
	// for the top-level frame, ValueBase+1 (skipping the callee slot) for a
	// called frame. See DESIGN.md's "PRINT's pop down to the nearest
	// callable" decision.
	PrintFloor int
	// BreakDepth records how many break-targets existed when this frame was
	// entered, so RETURN can truncate a function's own break-target stack
	// without touching its caller's.
	BreakDepth int
}

// Runtime bundles the handles and mutable state a running VM needs beyond
// its own operand/local stacks: interned strings, the function/closure
// table, the global-variable namespace, and the frame stack.
type Runtime struct {
	Interner  *interner.Interner
	Functions *object.Table
	Globals   *swiss.Map[string, value.Value]
	Frames    []Frame
}

// New returns a Runtime ready to execute a freshly compiled program. Each
// run of a program (internal/maincmd's Cmd.run) constructs its own Runtime;
// nothing is pooled or reused across invocations (see DESIGN.md).
func New(in *interner.Interner, functions *object.Table) *Runtime {
	return &Runtime{
		Interner:  in,
		Functions: functions,
		Globals:   swiss.NewMap[string, value.Value](64),
	}
}

// PushFrame adds fr as the new innermost frame.
func (rt *Runtime) PushFrame(fr Frame) { rt.Frames = append(rt.Frames, fr) }

// PopFrame removes and returns the innermost frame. It panics if no frame
// is active, which would indicate a VM bug (RETURN from an empty stack).
func (rt *Runtime) PopFrame() Frame {
	n := len(rt.Frames)
	fr := rt.Frames[n-1]
	rt.Frames = rt.Frames[:n-1]
	return fr
}

// Current returns a pointer to the innermost frame, for in-place IP
// updates during the fetch-decode-execute loop.
func (rt *Runtime) Current() *Frame { return &rt.Frames[len(rt.Frames)-1] }

// Depth returns the number of active frames (recursion depth).
func (rt *Runtime) Depth() int { return len(rt.Frames) }

// Package machine implements the wenyan virtual machine: a
// fetch-decode-execute loop over a single chunk of bytecode per frame,
// grounded on the teacher's lang/machine/machine.go Call/run dispatch
// shape (a big switch over opcodes, fetched one at a time from the current
// frame), adapted to wenyan's much smaller, closed opcode set and its
// split operand/local stacks (spec.md §4.3).
package machine

import (
	"errors"
	"fmt"
	"io"

	"github.com/mna/wenyan/internal/config"
	"github.com/mna/wenyan/internal/xlog"
	"github.com/mna/wenyan/lang/compiler"
	"github.com/mna/wenyan/lang/object"
	"github.com/mna/wenyan/lang/runtime"
	"github.com/mna/wenyan/lang/value"
)

// ErrRuntime is returned by Run after a runtime error has already been
// reported to Stderr in the `[line L] error: …` format (spec.md §7). The
// caller only needs to know whether to exit non-zero; the message is not
// repeated.
var ErrRuntime = errors.New("wenyan: runtime error")

// VM holds the operand stack, the local-variable stack, and the
// break-target stack, all of which span every active frame (spec.md §3
// "separate local stack"; the teacher's machine.go keeps a single Thread
// with a callStack of Frames and no notion of a break-target stack, since
// Starlark has no equivalent of wenyan's BREAK).
type VM struct {
	Stack        []value.Value
	Locals       []value.Value
	BreakTargets []int

	Stdout io.Writer
	Stderr io.Writer
	Limits config.Limits
	Log    *xlog.Logger
}

// New returns a VM configured with limits, writing output to stdout and
// runtime error diagnostics to stderr.
func New(stdout, stderr io.Writer, limits config.Limits, log *xlog.Logger) *VM {
	return &VM{Stdout: stdout, Stderr: stderr, Limits: limits, Log: log}
}

// Run executes topFn as the top-level script frame to completion. It
// returns nil on normal completion, or ErrRuntime if a runtime error
// occurred (already printed to vm.Stderr).
func (vm *VM) Run(rt *runtime.Runtime, topFn *object.Function) error {
	rt.PushFrame(runtime.Frame{Chunk: topFn})

	var steps int
	for rt.Depth() > 0 {
		if vm.Limits.MaxStackSize > 0 && len(vm.Stack)+len(vm.Locals) > vm.Limits.MaxStackSize {
			return vm.runtimeError(rt, rt.Current(), rt.Current().Chunk.Chunk.GetLine(0), "stack size limit exceeded")
		}
		if vm.Limits.MaxSteps > 0 {
			steps++
			if steps > vm.Limits.MaxSteps {
				return vm.runtimeError(rt, rt.Current(), rt.Current().Chunk.Chunk.GetLine(0), "step limit exceeded")
			}
		}

		fr := rt.Current()
		code := fr.Chunk.Chunk.Code
		if fr.IP >= len(code) {
			return vm.runtimeError(rt, fr, fr.Chunk.Chunk.GetLine(fr.IP), "instruction pointer ran past end of chunk")
		}
		line := fr.Chunk.Chunk.GetLine(fr.IP)
		op := compiler.Opcode(code[fr.IP])
		fr.IP++

		if err := vm.execute(rt, fr, op, line); err != nil {
			if errors.Is(err, errReturnedToCaller) {
				continue
			}
			return err
		}
	}
	return nil
}

// errReturnedToCaller is an internal control-flow signal from the RETURN
// case meaning "a frame was popped, re-dispatch"; it never escapes Run.
var errReturnedToCaller = errors.New("internal: frame returned")

func (vm *VM) execute(rt *runtime.Runtime, fr *runtime.Frame, op compiler.Opcode, line int) error {
	switch op {
	case compiler.CONSTANT:
		k := vm.readU32(fr)
		vm.push(fr.Chunk.Chunk.Constants[k])

	case compiler.NIL:
		vm.push(value.Nil)
	case compiler.TRUE:
		vm.push(value.Bool(true))
	case compiler.FALSE:
		vm.push(value.Bool(false))
	case compiler.POP:
		vm.pop()

	case compiler.ADD, compiler.SUBTRACT, compiler.MULTIPLY:
		prep := compiler.Preposition(vm.readU8(fr))
		return vm.binaryArith(rt, fr, line, op, prep)

	case compiler.INVERT:
		x := vm.pop()
		vm.push(value.Bool(!x.Truthy()))

	case compiler.EQUAL_EQUAL:
		b, a := vm.pop(), vm.pop()
		vm.push(value.Bool(a.Equal(b)))
	case compiler.LESS, compiler.GREATER:
		b, a := vm.pop(), vm.pop()
		if a.Kind() != value.KindNumber || b.Kind() != value.KindNumber {
			return vm.runtimeError(rt, fr, line, "type mismatch in comparison")
		}
		if op == compiler.LESS {
			vm.push(value.Bool(a.AsNumber() < b.AsNumber()))
		} else {
			vm.push(value.Bool(a.AsNumber() > b.AsNumber()))
		}

	case compiler.AND:
		b, a := vm.pop(), vm.pop()
		vm.push(value.Bool(a.Truthy() && b.Truthy()))
	case compiler.OR:
		b, a := vm.pop(), vm.pop()
		vm.push(value.Bool(a.Truthy() || b.Truthy()))

	case compiler.PRINT:
		vm.doPrint(rt, fr)

	case compiler.DEFINE_GLOBAL:
		nameK := vm.readU32(fr)
		peek := vm.readU8(fr)
		name := rt.Interner.Lookup(fr.Chunk.Chunk.Constants[nameK].AsRef())
		rt.Globals.Put(name, vm.peek(int(peek)))
	case compiler.GET_GLOBAL:
		nameK := vm.readU32(fr)
		name := rt.Interner.Lookup(fr.Chunk.Chunk.Constants[nameK].AsRef())
		v, ok := rt.Globals.Get(name)
		if !ok {
			return vm.runtimeError(rt, fr, line, fmt.Sprintf("undefined global %q", name))
		}
		vm.push(v)
	case compiler.SET_GLOBAL:
		nameK := vm.readU32(fr)
		name := rt.Interner.Lookup(fr.Chunk.Chunk.Constants[nameK].AsRef())
		rt.Globals.Put(name, vm.pop())

	case compiler.DEFINE_LOCAL:
		peek := vm.readU8(fr)
		vm.Locals = append(vm.Locals, vm.peek(int(peek)))
	case compiler.GET_LOCAL:
		slot := vm.readU32(fr)
		vm.push(vm.Locals[fr.LocalBase+int(slot)])
	case compiler.SET_LOCAL:
		slot := vm.readU32(fr)
		vm.Locals[fr.LocalBase+int(slot)] = vm.pop()
	case compiler.POP_LOCAL:
		vm.Locals = vm.Locals[:len(vm.Locals)-1]

	case compiler.JUMP_IF_FALSE:
		offset := vm.readU32(fr)
		if !vm.peek(0).Truthy() {
			fr.IP += int(offset)
		}
	case compiler.JUMP:
		offset := vm.readU32(fr)
		fr.IP += int(offset)
	case compiler.LOOP:
		offset := vm.readU32(fr)
		fr.IP -= int(offset) + 1

	case compiler.RECORD_BREAK:
		offset := vm.readU32(fr)
		vm.BreakTargets = append(vm.BreakTargets, fr.IP+int(offset))
	case compiler.BREAK:
		if len(vm.BreakTargets) == 0 {
			return vm.runtimeError(rt, fr, line, "break outside loop")
		}
		fr.IP = vm.BreakTargets[len(vm.BreakTargets)-1]
	case compiler.DISCARD_BREAK:
		if len(vm.BreakTargets) > 0 {
			vm.BreakTargets = vm.BreakTargets[:len(vm.BreakTargets)-1]
		} else if vm.Log != nil {
			vm.Log.Warnf("discard_break with an empty break-target stack at line %d", line)
		}

	case compiler.CALL:
		return vm.doCall(rt, fr, line, int(vm.readU32(fr)))
	case compiler.RETURN:
		vm.doReturn(rt)
		return errReturnedToCaller

	default:
		if vm.Log != nil {
			vm.Log.Warnf("malformed opcode %d at line %d, ignored", op, line)
		}
	}
	return nil
}

func (vm *VM) binaryArith(rt *runtime.Runtime, fr *runtime.Frame, line int, op compiler.Opcode, prep compiler.Preposition) error {
	b, a := vm.pop(), vm.pop()

	var x, y value.Value
	if prep == compiler.PrepRight {
		x, y = a, b // 以: left-operand-first
	} else {
		x, y = b, a // 於: right-operand-first
	}

	if op == compiler.ADD {
		if x.Kind() == value.KindString && y.Kind() == value.KindString {
			concatenated := rt.Interner.Lookup(x.AsRef()) + rt.Interner.Lookup(y.AsRef())
			vm.push(value.StrRef(rt.Interner.Intern(concatenated)))
			return nil
		}
		if x.Kind() == value.KindString || y.Kind() == value.KindString {
			return vm.runtimeError(rt, fr, line, "string + with non-string")
		}
	}

	if x.Kind() != value.KindNumber || y.Kind() != value.KindNumber {
		return vm.runtimeError(rt, fr, line, "type mismatch in arithmetic")
	}

	var result float64
	switch op {
	case compiler.ADD:
		result = x.AsNumber() + y.AsNumber()
	case compiler.SUBTRACT:
		result = x.AsNumber() - y.AsNumber()
	case compiler.MULTIPLY:
		result = x.AsNumber() * y.AsNumber()
	}
	vm.push(value.Number(result))
	return nil
}

func (vm *VM) doPrint(rt *runtime.Runtime, fr *runtime.Frame) {
	vals := vm.Stack[fr.PrintFloor:]
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.Format(rt.Interner, object.Namer{Table: rt.Functions})
	}
	fmt.Fprint(vm.Stdout, joinSpace(parts))
	fmt.Fprintln(vm.Stdout)
	vm.Stack = vm.Stack[:fr.PrintFloor]
}

func joinSpace(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

func (vm *VM) doCall(rt *runtime.Runtime, fr *runtime.Frame, line int, argc int) error {
	calleeVal := vm.peek(argc)
	fn, ok := resolveCallable(rt, calleeVal)
	if !ok {
		return vm.runtimeError(rt, fr, line, "call to a non-callable value")
	}
	if fn.Arity != argc {
		return vm.runtimeError(rt, fr, line, fmt.Sprintf("call arity mismatch: %s expects %d argument(s), got %d", fn.Name, fn.Arity, argc))
	}
	if vm.Limits.MaxCallDepth > 0 && rt.Depth() >= vm.Limits.MaxCallDepth {
		return vm.runtimeError(rt, fr, line, "call stack depth exceeded")
	}

	valueBase := len(vm.Stack) - 1 - argc
	rt.PushFrame(runtime.Frame{
		Callee:     calleeVal,
		Chunk:      fn,
		ValueBase:  valueBase,
		LocalBase:  len(vm.Locals),
		PrintFloor: valueBase + 1,
		BreakDepth: len(vm.BreakTargets),
	})
	return nil
}

func resolveCallable(rt *runtime.Runtime, v value.Value) (*object.Function, bool) {
	switch v.Kind() {
	case value.KindFunc:
		id := v.AsRef()
		if int(id) < len(rt.Functions.Functions) {
			return rt.Functions.Functions[id], true
		}
	case value.KindClosure:
		id := v.AsRef()
		if int(id) < len(rt.Functions.Closures) {
			if cl := rt.Functions.Closures[id]; cl.Function != nil {
				return cl.Function, true
			}
		}
	}
	return nil, false
}

func (vm *VM) doReturn(rt *runtime.Runtime) {
	retVal := vm.pop()
	finished := rt.PopFrame()
	vm.Locals = vm.Locals[:finished.LocalBase]
	vm.BreakTargets = vm.BreakTargets[:finished.BreakDepth]

	if rt.Depth() == 0 {
		return
	}
	vm.Stack = vm.Stack[:finished.ValueBase]
	vm.push(retVal)
}

func (vm *VM) runtimeError(rt *runtime.Runtime, fr *runtime.Frame, line int, msg string) error {
	fmt.Fprintf(vm.Stderr, "[line %d] error: %s\n", line, msg)
	vm.Stack = vm.Stack[:0]
	return ErrRuntime
}

func (vm *VM) readU32(fr *runtime.Frame) uint32 {
	v := fr.Chunk.Chunk.ReadUint32(fr.IP)
	fr.IP += 4
	return v
}

func (vm *VM) readU8(fr *runtime.Frame) uint8 {
	b := fr.Chunk.Chunk.Code[fr.IP]
	fr.IP++
	return b
}

func (vm *VM) push(v value.Value) { vm.Stack = append(vm.Stack, v) }

func (vm *VM) pop() value.Value {
	n := len(vm.Stack)
	v := vm.Stack[n-1]
	vm.Stack = vm.Stack[:n-1]
	return v
}

func (vm *VM) peek(offset int) value.Value { return vm.Stack[len(vm.Stack)-1-offset] }

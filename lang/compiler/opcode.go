// Package compiler compiles a wenyan token stream straight to bytecode in
// a single pass: no AST, no separate resolver. The opcode table's
// name array and the disassembler text format are grounded
// on the teacher's lang/compiler/opcode.go and lang/compiler/asm.go;
// unlike the teacher, operands are fixed-width (u8 or u32) rather than
// varint-encoded, per spec.md §4.3's opcode table.
package compiler

import (
	"fmt"

	"golang.org/x/exp/maps"
)

// Opcode identifies a VM instruction.
type Opcode uint8

//nolint:revive
const (
	CONSTANT Opcode = iota // u32 k        - push constants[k]
	NIL                    // -            - push Nil
	TRUE                   // -            - push true
	FALSE                  // -            - push false
	POP                    // -            - discard top

	ADD      // u8 prep  - pop b,a; push a+b or b+a per preposition
	SUBTRACT // u8 prep
	MULTIPLY // u8 prep

	INVERT // -  pop x; push !truthy(x)

	EQUAL_EQUAL // -  pop b,a; push a==b
	LESS        // -  pop b,a; push a<b
	GREATER     // -  pop b,a; push a>b

	AND // -  pop b,a; push truthy(a) && truthy(b)
	OR  // -  pop b,a; push truthy(a) || truthy(b)

	PRINT // -  pop every value above the frame's print floor; print them space-joined, newline terminated

	DEFINE_GLOBAL // u32 name_k, u8 peek  - globals[name] := stack[top-peek]
	GET_GLOBAL    // u32 name_k
	SET_GLOBAL    // u32 name_k

	DEFINE_LOCAL // u8 peek  - push locals <- stack[top-peek]
	GET_LOCAL    // u32 slot
	SET_LOCAL    // u32 slot
	POP_LOCAL    // -  discard top local

	JUMP_IF_FALSE // u32 offset
	JUMP          // u32 offset
	LOOP          // u32 offset (backward)

	RECORD_BREAK  // u32 offset  - push break-target = ip+offset
	BREAK         // -  ip := top of break-target stack
	DISCARD_BREAK // -  pop break-target stack

	CALL   // u32 arity
	RETURN // -  pop return value, unwind frame

	opcodeMax
)

// ArgWidth returns the number of operand bytes following op's opcode byte.
func ArgWidth(op Opcode) int { return argWidth(op) }

// argWidth returns the number of operand bytes following the opcode byte.
func argWidth(op Opcode) int {
	switch op {
	case ADD, SUBTRACT, MULTIPLY, DEFINE_LOCAL:
		return 1
	case DEFINE_GLOBAL:
		return 5 // u32 name_k + u8 peek
	case GET_GLOBAL, SET_GLOBAL, GET_LOCAL, SET_LOCAL,
		JUMP_IF_FALSE, JUMP, LOOP, RECORD_BREAK, CALL, CONSTANT:
		return 4
	default:
		return 0
	}
}

var opcodeNames = [...]string{
	CONSTANT:      "constant",
	NIL:           "nil",
	TRUE:          "true",
	FALSE:         "false",
	POP:           "pop",
	ADD:           "add",
	SUBTRACT:      "subtract",
	MULTIPLY:      "multiply",
	INVERT:        "invert",
	EQUAL_EQUAL:   "equal_equal",
	LESS:          "less",
	GREATER:       "greater",
	AND:           "and",
	OR:            "or",
	PRINT:         "print",
	DEFINE_GLOBAL: "define_global",
	GET_GLOBAL:    "get_global",
	SET_GLOBAL:    "set_global",
	DEFINE_LOCAL:  "define_local",
	GET_LOCAL:     "get_local",
	SET_LOCAL:     "set_local",
	POP_LOCAL:     "pop_local",
	JUMP_IF_FALSE: "jump_if_false",
	JUMP:          "jump",
	LOOP:          "loop",
	RECORD_BREAK:  "record_break",
	BREAK:         "break",
	DISCARD_BREAK: "discard_break",
	CALL:          "call",
	RETURN:        "return",
}

var reverseLookupOpcode = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		if name != "" {
			m[name] = Opcode(op)
		}
	}
	return m
}()

// Names returns the full set of disassembler mnemonics, for tooling that
// wants to validate or enumerate them.
func Names() []string { return maps.Keys(reverseLookupOpcode) }

func (op Opcode) String() string {
	if op < opcodeMax {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("illegal opcode (%d)", int(op))
}

// Preposition selects operand order for ADD/SUBTRACT/MULTIPLY, per
// spec.md §4.2: 於 (PrepLeft) is right-operand-first, 以 (PrepRight) is
// left-operand-first.
type Preposition uint8

const (
	PrepLeft  Preposition = iota // 於: produces b OP a
	PrepRight                    // 以: produces a OP b
)

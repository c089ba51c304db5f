package compiler

import (
	"fmt"
	"strings"

	"github.com/mna/wenyan/lang/chunk"
	"github.com/mna/wenyan/lang/interner"
	"github.com/mna/wenyan/lang/object"
	"github.com/mna/wenyan/lang/value"
)

// Disassemble renders every instruction of c as one text line each,
// grounded on the teacher's lang/compiler/asm.go disassembly format but
// adapted for fixed-width (not varint) operands. in and names resolve
// interned strings and function/closure ids for display; either may be
// nil, in which case string and callable constants are shown by raw id
// instead of their resolved text.
func Disassemble(name string, c *chunk.Chunk, in *interner.Interner, names *object.Table) []string {
	var lines []string
	if name != "" {
		lines = append(lines, fmt.Sprintf("== %s ==", name))
	}
	for ip := 0; ip < len(c.Code); {
		line, next := disassembleInstruction(c, ip, in, names)
		lines = append(lines, line)
		ip = next
	}
	return lines
}

func disassembleInstruction(c *chunk.Chunk, ip int, in *interner.Interner, names *object.Table) (string, int) {
	op := Opcode(c.Code[ip])
	srcLine := c.GetLine(ip)

	if int(op) >= int(opcodeMax) {
		return fmt.Sprintf("%04d %4d illegal opcode %d", ip, srcLine, op), ip + 1
	}

	width := argWidth(op)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%04d %4d %-16s", ip, srcLine, op.String())

	switch op {
	case CONSTANT:
		k := c.ReadUint32(ip + 1)
		sb.WriteString(formatConstantOperand(c, k, in, names))
	case DEFINE_GLOBAL, GET_GLOBAL, SET_GLOBAL:
		k := c.ReadUint32(ip + 1)
		sb.WriteString(formatConstantOperand(c, k, in, names))
		if op == DEFINE_GLOBAL {
			peek := c.Code[ip+5]
			fmt.Fprintf(&sb, " peek=%d", peek)
		}
	case GET_LOCAL, SET_LOCAL:
		fmt.Fprintf(&sb, "slot=%d", c.ReadUint32(ip+1))
	case DEFINE_LOCAL:
		fmt.Fprintf(&sb, "peek=%d", c.Code[ip+1])
	case ADD, SUBTRACT, MULTIPLY:
		prep := Preposition(c.Code[ip+1])
		if prep == PrepLeft {
			sb.WriteString("於")
		} else {
			sb.WriteString("以")
		}
	case JUMP_IF_FALSE, JUMP, RECORD_BREAK:
		offset := c.ReadUint32(ip + 1)
		fmt.Fprintf(&sb, "-> %04d", ip+5+int(offset))
	case LOOP:
		offset := c.ReadUint32(ip + 1)
		fmt.Fprintf(&sb, "-> %04d", ip+5-int(offset)-1)
	case CALL:
		fmt.Fprintf(&sb, "argc=%d", c.ReadUint32(ip+1))
	}

	return sb.String(), ip + 1 + width
}

// stubStringer/stubNamer let Disassemble run without a live interner or
// function table (e.g. disassembling a chunk right after compilation,
// before a runtime.Runtime exists), rendering refs by id instead of text.
type stubStringer struct{}

func (stubStringer) Lookup(id uint32) string { return fmt.Sprintf("<string %d>", id) }

type stubNamer struct{}

func (stubNamer) Name(_ value.Kind, id uint32) string { return fmt.Sprintf("<id %d>", id) }

func formatConstantOperand(c *chunk.Chunk, k uint32, in *interner.Interner, names *object.Table) string {
	if int(k) >= len(c.Constants) {
		return fmt.Sprintf("%d <out of range>", k)
	}
	v := c.Constants[k]

	var strs value.Stringer = stubStringer{}
	if in != nil {
		strs = in
	}
	var namer value.Namer = stubNamer{}
	if names != nil {
		namer = object.Namer{Table: names}
	}
	return fmt.Sprintf("%d (%s)", k, v.Format(strs, namer))
}

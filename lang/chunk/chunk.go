// Package chunk implements the compiled code container: a growable byte
// buffer of bytecode, its constant pool, and a run-length-encoded line
// table, grounded on the Funcode.Code/Consts split of the teacher's
// lang/compiler/compiled.go.
package chunk

import (
	"encoding/binary"

	"github.com/mna/wenyan/lang/value"
)

// LineRun is one entry of the run-length-encoded line table: Line applies
// to the next Length bytes of code.
type LineRun struct {
	Line   int
	Length int
}

// Chunk is a compiled unit: bytecode plus its constant pool and line table.
type Chunk struct {
	Code      []byte
	Constants []value.Value
	Lines     []LineRun
}

// New returns an empty Chunk.
func New() *Chunk { return &Chunk{} }

// WriteByte appends a single byte (an opcode, or a u8 operand) at the given
// source line.
func (c *Chunk) WriteByte(b byte, line int) int {
	pos := len(c.Code)
	c.Code = append(c.Code, b)
	c.addLine(line)
	return pos
}

// WriteUint32 appends a 4-byte little-endian operand at the given source
// line and returns the offset of the first of those 4 bytes.
func (c *Chunk) WriteUint32(v uint32, line int) int {
	pos := len(c.Code)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	c.Code = append(c.Code, buf[:]...)
	for i := 0; i < 4; i++ {
		c.addLine(line)
	}
	return pos
}

// PatchUint32 overwrites the 4-byte little-endian operand starting at
// offset with v. Used for backpatching forward jumps.
func (c *Chunk) PatchUint32(offset int, v uint32) {
	binary.LittleEndian.PutUint32(c.Code[offset:offset+4], v)
}

// ReadUint32 reads the 4-byte little-endian operand starting at offset.
func (c *Chunk) ReadUint32(offset int) uint32 {
	return binary.LittleEndian.Uint32(c.Code[offset : offset+4])
}

// AddConstant appends v to the constant pool and returns its index. It is a
// compile error (signaled by the caller) if the pool would exceed 2^32
// entries.
func (c *Chunk) AddConstant(v value.Value) uint32 {
	c.Constants = append(c.Constants, v)
	return uint32(len(c.Constants) - 1)
}

// addLine records that the byte just appended belongs to line. Consecutive
// bytes on the same line extend the last run instead of creating a new
// entry.
func (c *Chunk) addLine(line int) {
	if n := len(c.Lines); n > 0 && c.Lines[n-1].Line == line {
		c.Lines[n-1].Length++
		return
	}
	c.Lines = append(c.Lines, LineRun{Line: line, Length: 1})
}

// GetLine returns the 1-based line number of the instruction whose first
// byte is at ip, per the run-length table: ip belongs to the first entry
// whose cumulative run length exceeds it.
func (c *Chunk) GetLine(ip int) int {
	cum := 0
	for _, r := range c.Lines {
		cum += r.Length
		if ip < cum {
			return r.Line
		}
	}
	if len(c.Lines) > 0 {
		return c.Lines[len(c.Lines)-1].Line
	}
	return 0
}

// Len returns the number of bytes of code currently in the chunk.
func (c *Chunk) Len() int { return len(c.Code) }

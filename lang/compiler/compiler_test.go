package compiler_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/wenyan/lang/compiler"
	"github.com/mna/wenyan/lang/interner"
	"github.com/mna/wenyan/lang/object"
)

func compile(t *testing.T, src string) (*object.Function, *object.Table, bool) {
	t.Helper()
	in := interner.New()
	table := &object.Table{}
	var errBuf bytes.Buffer
	fn, ok := compiler.Compile([]byte(src), in, table, &errBuf)
	if !ok {
		t.Logf("compile errors:\n%s", errBuf.String())
	}
	return fn, table, ok
}

func TestCompileSimpleDeclaration(t *testing.T) {
	fn, _, ok := compile(t, "吾有一數曰五名之曰「甲」")
	require.True(t, ok)
	require.NotNil(t, fn)
	assert.NotEmpty(t, fn.Chunk.Code)
}

func TestCompileArithmeticAndPrint(t *testing.T) {
	fn, _, ok := compile(t, "加一以二書之")
	require.True(t, ok)
	ops := opcodeSequence(t, fn)
	assert.Contains(t, ops, compiler.ADD)
	assert.Contains(t, ops, compiler.PRINT)
}

func TestCompileConditional(t *testing.T) {
	fn, _, ok := compile(t, "若二等於二者加一以五書之云云")
	require.True(t, ok)
	ops := opcodeSequence(t, fn)
	assert.Contains(t, ops, compiler.EQUAL_EQUAL)
	assert.Contains(t, ops, compiler.JUMP_IF_FALSE)
}

func TestCompileForLoopWithBreak(t *testing.T) {
	fn, _, ok := compile(t, "為是三遍「一遍」書之乃止云云")
	require.True(t, ok)
	ops := opcodeSequence(t, fn)
	assert.Contains(t, ops, compiler.RECORD_BREAK)
	assert.Contains(t, ops, compiler.BREAK)
	assert.Contains(t, ops, compiler.DISCARD_BREAK)
	assert.Contains(t, ops, compiler.LOOP)
}

func TestCompileFunctionDefinitionAndCall(t *testing.T) {
	src := "吾有一術名之曰「階乘」欲行是術必先得曰「n」是術曰" +
		"若「n」等於一者乃得「n」若非減「n」以一名之曰「m」施「階乘」於「m」名之曰「r」乘「r」以「n」名之曰「k」乃得「k」云云是謂「階乘」之術也" +
		"施「階乘」於五書之"
	fn, table, ok := compile(t, src)
	require.True(t, ok)
	require.Len(t, table.Functions, 1)
	assert.Equal(t, "階乘", table.Functions[0].Name)
	assert.Equal(t, 1, table.Functions[0].Arity)

	ops := opcodeSequence(t, fn)
	assert.Contains(t, ops, compiler.CALL)
	assert.Contains(t, ops, compiler.PRINT)

	bodyOps := opcodeSequence(t, fn)
	_ = bodyOps
	fnOps := opcodeSequenceOf(table.Functions[0])
	assert.Contains(t, fnOps, compiler.RETURN)
	assert.Contains(t, fnOps, compiler.CALL)
}

func TestCompileReturnAtTopLevelIsError(t *testing.T) {
	_, _, ok := compile(t, "乃得一")
	assert.False(t, ok)
}

func TestCompileUnterminatedStringRecoversAndReportsError(t *testing.T) {
	_, _, ok := compile(t, "吾有一言曰「甲\n書之")
	assert.False(t, ok)
}

// opcodeSequence walks fn's chunk using the disassembler's own width table
// indirectly by decoding opcodes only (skipping their operand bytes),
// returning the linear opcode sequence for assertions.
func opcodeSequence(t *testing.T, fn *object.Function) []compiler.Opcode {
	t.Helper()
	return opcodeSequenceOf(fn)
}

func opcodeSequenceOf(fn *object.Function) []compiler.Opcode {
	var out []compiler.Opcode
	code := fn.Chunk.Code
	for ip := 0; ip < len(code); {
		op := compiler.Opcode(code[ip])
		out = append(out, op)
		ip += 1 + compiler.ArgWidth(op)
	}
	return out
}

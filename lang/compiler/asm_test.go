package compiler_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/wenyan/lang/compiler"
	"github.com/mna/wenyan/lang/interner"
	"github.com/mna/wenyan/lang/object"
)

func TestDisassembleContainsExpectedMnemonics(t *testing.T) {
	in := interner.New()
	table := &object.Table{}
	var errBuf bytes.Buffer
	fn, ok := compiler.Compile([]byte("加一以二書之"), in, table, &errBuf)
	require.True(t, ok, errBuf.String())

	lines := compiler.Disassemble("script", fn.Chunk, in, table)
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "== script ==")
	assert.Contains(t, joined, "add")
	assert.Contains(t, joined, "print")
}

func TestDisassembleWithoutInternerOrTableStillRenders(t *testing.T) {
	in := interner.New()
	table := &object.Table{}
	var errBuf bytes.Buffer
	fn, ok := compiler.Compile([]byte("吾有一數曰五名之曰「甲」"), in, table, &errBuf)
	require.True(t, ok, errBuf.String())

	lines := compiler.Disassemble("", fn.Chunk, nil, nil)
	assert.NotEmpty(t, lines)
}

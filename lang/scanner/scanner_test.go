package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/wenyan/lang/scanner"
	"github.com/mna/wenyan/lang/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	s := scanner.New([]byte(src))
	var toks []token.Token
	for {
		tok, _ := s.Scan()
		toks = append(toks, tok)
		if tok == token.EOF {
			return toks
		}
	}
}

func TestTokenizerTotality(t *testing.T) {
	for _, src := range []string{"", "吾有一數曰五名之曰「甲」", "某某未知字串"} {
		toks := scanAll(t, src)
		require.NotEmpty(t, toks)
		assert.Equal(t, token.EOF, toks[len(toks)-1])
	}
}

func TestDeclarationKeywords(t *testing.T) {
	toks := scanAll(t, "吾有一數曰五名之曰「甲」")
	assert.Equal(t, []token.Token{
		token.DECL, token.NUMBER, token.TYPE, token.IS, token.NUMBER, token.NAME_IS, token.IDENT, token.EOF,
	}, toks)
}

func TestLongestMatchKeywords(t *testing.T) {
	// 若非 must win over 若, and 是術曰 (3 chars) must win over the 2-char
	// 是-prefixed keywords (是謂, 是矣).
	s := scanner.New([]byte("若非"))
	tok, val := s.Scan()
	assert.Equal(t, token.ELSE, tok)
	assert.Equal(t, "若非", val.Raw)

	s = scanner.New([]byte("是術曰"))
	tok, val = s.Scan()
	assert.Equal(t, token.FUNCTION_BODY_BEGIN, tok)
	assert.Equal(t, "是術曰", val.Raw)
}

func TestStringsAndIdentifiers(t *testing.T) {
	s := scanner.New([]byte("「甲」『乙』「「丙」」"))

	tok, val := s.Scan()
	require.Equal(t, token.IDENT, tok)
	assert.Equal(t, "甲", val.Raw)

	tok, val = s.Scan()
	require.Equal(t, token.STRING, tok)
	assert.Equal(t, "乙", val.Raw)

	tok, val = s.Scan()
	require.Equal(t, token.STRING, tok)
	assert.Equal(t, "丙", val.Raw)
}

func TestUnterminatedString(t *testing.T) {
	s := scanner.New([]byte("「甲"))
	tok, _ := s.Scan()
	assert.Equal(t, token.ERROR, tok)
}

func TestNumberLiteral(t *testing.T) {
	s := scanner.New([]byte("三百二十加一"))
	tok, val := s.Scan()
	require.Equal(t, token.NUMBER, tok)
	assert.Equal(t, "三百二十", val.Raw)

	tok, _ = s.Scan()
	assert.Equal(t, token.PLUS, tok)
}

func TestLineTracking(t *testing.T) {
	s := scanner.New([]byte("陽\n陰\n陽"))
	_, v1 := s.Scan()
	_, v2 := s.Scan()
	_, v3 := s.Scan()
	assert.Equal(t, 1, v1.Span.Line)
	assert.Equal(t, 2, v2.Span.Line)
	assert.Equal(t, 3, v3.Span.Line)
}

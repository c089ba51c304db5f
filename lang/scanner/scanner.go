// Package scanner tokenizes wenyan source text into the token stream
// consumed by the compiler. The character-at-a-time advance/peek idiom and
// byte-offset bookkeeping are grounded on the teacher's
// lang/scanner/scanner.go Scanner type.
package scanner

import (
	"fmt"
	"unicode/utf8"

	"github.com/mna/wenyan/lang/numeral"
	"github.com/mna/wenyan/lang/token"
)

// Scanner tokenizes a single UTF-8 source buffer.
type Scanner struct {
	src []byte

	cur  rune // current character, -1 at EOF
	off  int  // byte offset of cur
	roff int  // byte offset right after cur
	line int  // 1-based line of cur
}

// New returns a Scanner positioned at the start of src.
func New(src []byte) *Scanner {
	s := &Scanner{src: src, line: 1}
	s.advance()
	return s
}

func (s *Scanner) advance() {
	if s.roff >= len(s.src) {
		s.off = len(s.src)
		s.cur = -1
		return
	}
	if s.cur == '\n' {
		s.line++
	}
	s.off = s.roff
	r, w := utf8.DecodeRune(s.src[s.roff:])
	s.roff += w
	s.cur = r
}

// Scan returns the next token and its value. Scanning never halts on a
// lexical error: malformed input yields an ERROR token carrying a message,
// and scanning can continue afterward (spec.md §4.1 "Error policy").
func (s *Scanner) Scan() (token.Token, token.Value) {
	s.skipSkippable()

	start := s.off
	line := s.line

	if s.cur == -1 {
		return token.EOF, token.Value{Span: token.Span{Start: start, End: start, Line: line}}
	}

	if numeral.Set[s.cur] {
		return s.scanNumber(start, line)
	}

	if s.cur == '「' {
		s.advance()
		if s.cur == '「' {
			s.advance()
			return s.scanDelimited(start, line, "」」", token.STRING)
		}
		return s.scanDelimited(start, line, "」", token.IDENT)
	}
	if s.cur == '『' {
		s.advance()
		return s.scanDelimited(start, line, "』", token.STRING)
	}

	if tok, n, ok := lookupKeyword(s.src, s.off); ok {
		for consumed := 0; consumed < n; {
			_, w := utf8.DecodeRune(s.src[s.off:])
			consumed += w
			s.advance()
		}
		end := s.off
		return tok, token.Value{Raw: string(s.src[start:end]), Span: token.Span{Start: start, End: end, Line: line}}
	}

	// nothing matched: advance one character and emit an error token
	bad := s.cur
	s.advance()
	end := s.off
	msg := fmt.Sprintf("unexpected character %q", bad)
	return token.ERROR, token.Value{Raw: msg, Span: token.Span{Start: start, End: end, Line: line}}
}

// skipSkippable consumes whitespace and the punctuation characters that
// never carry meaning on their own (SP, TAB, CR, LF, 。, 、, and the
// statement-terminating particle 也). 也 is only ever meaningful as the
// tail of a longer keyword (之術也); keyword lookup always consumes such
// runs atomically before skipSkippable would see the trailing 也 in
// isolation, so skipping it unconditionally here is safe. Every LF
// increments the line counter via advance.
func (s *Scanner) skipSkippable() {
	for {
		switch s.cur {
		case ' ', '\t', '\r', '\n', '。', '、', '也':
			s.advance()
		default:
			return
		}
	}
}

// scanNumber consumes a maximal run of wenyan numeral characters,
// optionally followed by "·" and a second run, and converts the literal
// via lang/numeral at scan-detection time is NOT done here: the scanner
// only recognizes the span and hands the raw text along; conversion
// happens when the compiler emits the CONSTANT (spec.md §4.2).
func (s *Scanner) scanNumber(start, line int) (token.Token, token.Value) {
	for numeral.Set[s.cur] {
		s.advance()
	}
	if s.cur == '·' {
		// peek: only consume the dot if a numeral run follows it
		savedOff, savedROff, savedCur, savedLine := s.off, s.roff, s.cur, s.line
		s.advance()
		if numeral.Set[s.cur] {
			for numeral.Set[s.cur] {
				s.advance()
			}
		} else {
			s.off, s.roff, s.cur, s.line = savedOff, savedROff, savedCur, savedLine
		}
	}
	end := s.off
	raw := string(s.src[start:end])
	return token.NUMBER, token.Value{Raw: raw, Span: token.Span{Start: start, End: end, Line: line}}
}

// scanDelimited consumes characters up to (and including) the given
// closing delimiter, which may be one or two runes (e.g. "」" or "」」").
// The returned Raw text excludes both the opening bracket (already
// consumed by the caller) and the closing one, per spec.md §8 ("every
// Identifier/String span excludes its surrounding brackets"). An
// unterminated opening yields an ERROR token.
func (s *Scanner) scanDelimited(start, line int, closing string, tok token.Token) (token.Token, token.Value) {
	closingRunes := []rune(closing)
	contentStart := s.off

	for {
		if s.cur == -1 {
			return token.ERROR, token.Value{
				Raw:  "unterminated string or identifier",
				Span: token.Span{Start: start, End: s.off, Line: line},
			}
		}
		if s.matchesClosing(closingRunes) {
			contentEnd := s.off
			for range closingRunes {
				s.advance()
			}
			raw := string(s.src[contentStart:contentEnd])
			return tok, token.Value{Raw: raw, Span: token.Span{Start: contentStart, End: contentEnd, Line: line}}
		}
		s.advance()
	}
}

// matchesClosing reports whether the scanner is currently positioned at
// the start of the closing rune sequence.
func (s *Scanner) matchesClosing(closing []rune) bool {
	off := s.off
	for _, want := range closing {
		if off >= len(s.src) {
			return false
		}
		r, w := utf8.DecodeRune(s.src[off:])
		if r != want {
			return false
		}
		off += w
	}
	return true
}

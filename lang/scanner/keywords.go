package scanner

import (
	"unicode/utf8"

	"golang.org/x/exp/slices"

	"github.com/mna/wenyan/lang/token"
)

// keywordEntry pairs a literal keyword's text with the token it produces.
type keywordEntry struct {
	Text string
	Tok  token.Token
}

// keywords is the static keyword table of spec.md §4.1, sorted once at
// init by descending character length so the scan loop's linear walk
// tries the longest candidates first, guaranteeing longest-match
// semantics (spec.md §8 "Longest-match keywords").
var keywords = func() []keywordEntry {
	table := []keywordEntry{
		{"吾有", token.DECL},
		{"今有", token.DECL},
		{"有", token.DECL_SHORT},
		{"數", token.TYPE},
		{"言", token.TYPE},
		{"爻", token.TYPE},
		{"書之", token.PRINT},
		{"名之曰", token.NAME_IS},
		{"曰", token.IS},
		{"陽", token.TRUE},
		{"陰", token.FALSE},
		{"加", token.PLUS},
		{"減", token.MINUS},
		{"乘", token.STAR},
		{"於", token.PREP_LEFT},
		{"以", token.PREP_RIGHT},
		{"等於", token.EQUAL_EQUAL},
		{"不等於", token.BANG_EQUAL},
		{"大於", token.GREATER},
		{"小於", token.LESS},
		{"不大於", token.BANG_GREATER},
		{"不小於", token.BANG_LESS},
		{"昔之", token.ASSIGN_FROM},
		{"今", token.ASSIGN_TO},
		{"其", token.PREV},
		{"是矣", token.SURE},
		{"者", token.CONJUNCTION},
		{"若", token.IF},
		{"若非", token.ELSE},
		{"云云", token.YUN_YUN},
		{"恆為是", token.LOOP},
		{"為是", token.FOR},
		{"遍", token.FOR_MID},
		{"乃止", token.BREAK},
		{"中無陰乎", token.AND},
		{"中有陽乎", token.OR},
		{"變", token.INVERT},
		{"夫", token.FU},
		{"吾有一術", token.FUN},
		{"欲行是術必先得", token.FUNCTION_READY},
		{"是術曰", token.FUNCTION_BODY_BEGIN},
		{"是謂", token.FUNCTION_END1},
		{"之術也", token.FUNCTION_END2},
		{"施", token.CALL},
		{"乃得", token.RETURN},
	}
	slices.SortStableFunc(table, func(a, b keywordEntry) int {
		return utf8.RuneCountInString(b.Text) - utf8.RuneCountInString(a.Text)
	})
	return table
}()

// lookupKeyword walks the sorted table and returns the first keyword that
// is a prefix of src at the given byte offset, plus its byte length. It
// returns ok=false if nothing matches.
func lookupKeyword(src []byte, at int) (tok token.Token, byteLen int, ok bool) {
	for _, kw := range keywords {
		n := len(kw.Text)
		if at+n <= len(src) && string(src[at:at+n]) == kw.Text {
			return kw.Tok, n, true
		}
	}
	return 0, 0, false
}

// Package numeral converts classical Chinese numeral literals (as
// recognized by lang/scanner) into decimal strings. This is the
// implemented form of spec.md's "number-word-to-digits converter"
// external collaborator: input is the literal run of numeral
// characters, output is a decimal string or an error.
package numeral

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// digit maps the ten classical digit characters (and their two zero
// variants) to their value.
var digit = map[rune]int64{
	'零': 0, '〇': 0,
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
}

// smallUnit maps the positional characters below 萬 to their multiplier;
// they compound multiplicatively with the digit immediately before them
// and sum within one "section" (三百二十 = 3*100 + 2*10 = 320).
var smallUnit = map[rune]int64{
	'十': 1e1,
	'百': 1e2,
	'千': 1e3,
}

// bigUnit maps 萬 and every larger grouping character to its multiplier;
// a big unit closes out and multiplies everything accumulated in the
// current section, then that is added to the running total
// (三萬二千 = (3)*1e4 + (2)*1e3 = 32000). A literal whose value does not
// fit in an int64 is rejected with ErrInvalid.
var bigUnit = map[rune]float64{
	'萬': 1e4,
	'億': 1e8,
	'兆': 1e12,
	'京': 1e16,
	'垓': 1e20,
	'秭': 1e24,
	'穰': 1e28,
	'溝': 1e32,
	'澗': 1e36,
	'正': 1e40,
	'載': 1e44,
	'極': 1e48,
}

// fractionUnit lists the classical small-fraction characters, from the
// first place below the decimal point downward. They belong to Set, so the
// scanner accepts them inside a numeral run, but ToDecimalString gives them
// no value and rejects any literal that contains one; fractional values are
// converted only in the "·"-plus-digits form.
var fractionUnit = []rune{'分', '釐', '毫', '絲', '忽', '微', '纖', '沙', '塵', '埃', '渺', '漠'}

// Set is the full set of characters that make up a wenyan numeral run,
// used by the scanner to recognize the longest maximal run.
var Set = func() map[rune]bool {
	m := make(map[rune]bool)
	m['負'] = true
	m['又'] = true
	for r := range digit {
		m[r] = true
	}
	for r := range smallUnit {
		m[r] = true
	}
	for r := range bigUnit {
		m[r] = true
	}
	for _, r := range fractionUnit {
		m[r] = true
	}
	return m
}()

// ErrInvalid is returned when a numeral literal cannot be parsed.
var ErrInvalid = errors.New("invalid wenyan numeral")

// ToDecimalString converts a wenyan numeral literal (possibly containing a
// leading 負 negation marker, 又 separators, and a "·" separating an
// integer run from a fractional run) to its decimal string representation.
func ToDecimalString(lit string) (string, error) {
	if lit == "" {
		return "", fmt.Errorf("%w: empty literal", ErrInvalid)
	}

	runs := strings.SplitN(lit, "·", 2)
	intPart, err := parseIntegerRun(runs[0])
	if err != nil {
		return "", err
	}

	if len(runs) == 1 {
		return strconv.FormatInt(intPart, 10), nil
	}

	frac, err := parseFractionRun(runs[1])
	if err != nil {
		return "", err
	}

	sign := ""
	if intPart < 0 {
		sign = "-"
		intPart = -intPart
	}
	return fmt.Sprintf("%s%d.%s", sign, intPart, frac), nil
}

// parseIntegerRun parses a run of digits/units (optionally 負-negated, with
// 又 separators) into an integer value.
//
// Algorithm: pending holds a digit not yet consumed by a unit character;
// section accumulates the value below the current big-unit grouping
// (multiplied in by small units as they're seen); total accumulates
// completed big-unit groupings.
func parseIntegerRun(s string) (int64, error) {
	run := []rune(s)
	negative := false
	if len(run) > 0 && run[0] == '負' {
		negative = true
		run = run[1:]
	}

	var total, section, pending int64
	var havePending, haveDigit bool

	for _, r := range run {
		switch {
		case r == '又':
			// separator between magnitude groups, no numeric effect

		case r == '零' || r == '〇':
			// an explicit zero never multiplies a unit; it only matters as a
			// placeholder between groups, which this additive algorithm
			// already handles correctly by ignoring it
			haveDigit = true

		case digit[r] != 0:
			if havePending {
				section += pending
			}
			pending = digit[r]
			havePending = true
			haveDigit = true

		case smallUnit[r] != 0:
			d := pending
			if !havePending {
				d = 1 // elided leading one, e.g. 十 == 一十
			}
			section += d * smallUnit[r]
			pending, havePending = 0, false
			haveDigit = true

		case bigUnit[r] != 0:
			if havePending {
				section += pending
				pending, havePending = 0, false
			}
			if section == 0 {
				section = 1 // elided leading one, e.g. 萬 == 一萬
			}
			if float64(total)+float64(section)*bigUnit[r] >= 1<<63 {
				return 0, fmt.Errorf("%w: value out of range", ErrInvalid)
			}
			total += section * int64(bigUnit[r])
			section = 0
			haveDigit = true

		default:
			return 0, fmt.Errorf("%w: unexpected character %q", ErrInvalid, r)
		}
	}
	if havePending {
		section += pending
	}
	total += section

	if !haveDigit {
		return 0, fmt.Errorf("%w: no digits in literal", ErrInvalid)
	}
	if negative {
		total = -total
	}
	return total, nil
}

func parseFractionRun(s string) (string, error) {
	var b strings.Builder
	for _, r := range s {
		d, ok := digit[r]
		if !ok {
			return "", fmt.Errorf("%w: invalid fraction digit %q", ErrInvalid, r)
		}
		b.WriteByte(byte('0' + d))
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty fraction", ErrInvalid)
	}
	return b.String(), nil
}

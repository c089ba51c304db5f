package numeral_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/wenyan/lang/numeral"
)

func TestToDecimalString(t *testing.T) {
	cases := []struct {
		lit  string
		want string
	}{
		{"一", "1"},
		{"五", "5"},
		{"十", "10"},
		{"二十三", "23"},
		{"一百二十", "120"},
		{"三百", "300"},
		{"三萬二千", "32000"},
		{"一萬", "10000"},
		{"萬", "10000"},
		{"負五", "-5"},
		{"一百〇五", "105"},
		{"一百又五", "105"},
	}
	for _, c := range cases {
		got, err := numeral.ToDecimalString(c.lit)
		require.NoError(t, err, c.lit)
		assert.Equal(t, c.want, got, c.lit)
	}
}

func TestToDecimalStringFraction(t *testing.T) {
	got, err := numeral.ToDecimalString("一·五")
	require.NoError(t, err)
	assert.Equal(t, "1.5", got)
}

func TestToDecimalStringInvalid(t *testing.T) {
	_, err := numeral.ToDecimalString("")
	assert.ErrorIs(t, err, numeral.ErrInvalid)

	_, err = numeral.ToDecimalString("甲")
	assert.ErrorIs(t, err, numeral.ErrInvalid)
}

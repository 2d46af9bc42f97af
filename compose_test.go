package sevseg_test

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/coreman2200/sevseg"
)

var ComposeScenarios = []struct {
	Name    string
	Value   int
	Decimal int
	Digits  int
	Expect  string
}{
	{"decimal second from left", 1022, 2, 4, "10.22"},
	{"decimal third from left", 3141, 3, 4, "314.1"},
	{"negative single digit", -7, 0, 4, "  -7"},
	{"negative fills display", -999, 0, 4, "-999"},
	{"overflow", 10000, 0, 4, "----"},
	{"overflow ignores decimal", 10000, 2, 4, "----"},
	{"underflow", -1000, 1, 4, "----"},
	{"zero", 0, 0, 4, "   0"},
	{"max", 9999, 0, 4, "9999"},
	{"leading zeros suppressed", 42, 0, 4, "  42"},
	{"inner zeros kept", 1001, 0, 4, "1001"},
	{"decimal on blank position", 5, 2, 4, "  . 5"},
	{"decimal past the end", 12, 5, 4, "  12"},
	{"two digit display", 99, 1, 2, "9.9"},
	{"two digit negative", -9, 0, 2, "-9"},
	{"two digit overflow", 100, 0, 2, "--"},
	{"one digit has no room for a sign", -1, 0, 1, "-"},
	{"one digit", 7, 1, 1, "7."},
}

func TestComposeScenarios(t *testing.T) {
	for _, v := range ComposeScenarios {
		t.Run(v.Name, func(t *testing.T) {
			f := Compose(v.Value, v.Decimal, v.Digits)
			require.Len(t, f, v.Digits)
			assert.Equal(t, v.Expect, f.String())
		})
	}
}

func TestComposeNegativeSevenCells(t *testing.T) {
	f := Compose(-7, 0, 4)
	assert.Equal(t, Frame{
		{Glyph: Blank},
		{Glyph: Blank},
		{Glyph: Dash},
		{Glyph: Digit7},
	}, f)
}

func TestComposeDecimalCell(t *testing.T) {
	f := Compose(1022, 2, 4)
	assert.Equal(t, Frame{
		{Glyph: Digit1},
		{Glyph: Digit0, Point: true},
		{Glyph: Digit2},
		{Glyph: Digit2},
	}, f)
}

// Every displayable value reads back as its own decimal digits.
func TestComposeRoundTrip(t *testing.T) {
	for n := 1; n <= MaxDigits; n++ {
		lo, hi := Range(n)
		for v := lo; v <= hi; v++ {
			f := Compose(v, 0, n)
			text := f.String()

			dashes := strings.Count(text, "-")
			if v < 0 {
				require.Equal(t, 1, dashes, "value %d on %d digits: %q", v, n, text)
			} else {
				require.Zero(t, dashes, "value %d on %d digits: %q", v, n, text)
			}

			abs := v
			if abs < 0 {
				abs = -abs
			}
			got := strings.TrimLeft(text, " -")
			require.Equal(t, strconv.Itoa(abs), got, "value %d on %d digits", v, n)
		}
	}
}

func TestComposeOutOfRange(t *testing.T) {
	for _, v := range []int{-1000, 10000, 123456, math.MaxInt, math.MinInt} {
		for dp := 0; dp <= 4; dp++ {
			f := Compose(v, dp, 4)
			assert.Equal(t, Dashes(4), f, "value %d decimal %d", v, dp)
		}
	}
}

func TestComposeMinusSignOnlyOnce(t *testing.T) {
	for v := -99; v < 0; v++ {
		f := Compose(v, 0, 4)
		dashes := 0
		firstDigit := -1
		for i, c := range f {
			if c.Glyph == Dash {
				dashes++
			}
			if c.Glyph <= Digit9 && firstDigit < 0 {
				firstDigit = i
			}
		}
		require.Equal(t, 1, dashes, "value %d", v)
		assert.Equal(t, Dash, f[firstDigit-1].Glyph, "value %d: sign sits left of the digits", v)
	}
}

func TestRange(t *testing.T) {
	for _, v := range []struct{ n, lo, hi int }{
		{0, 0, 0},
		{1, 0, 9},
		{2, -9, 99},
		{3, -99, 999},
		{4, -999, 9999},
	} {
		lo, hi := Range(v.n)
		assert.Equal(t, v.lo, lo, "min for %d digits", v.n)
		assert.Equal(t, v.hi, hi, "max for %d digits", v.n)
	}
}

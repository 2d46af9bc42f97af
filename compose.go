package sevseg

import "strings"

// MaxDigits is the largest display this driver multiplexes.
const MaxDigits = 4

// Cell is what one digit position shows during a pass.
type Cell struct {
	Glyph Glyph
	Point bool
}

// Segments returns the lit segments for the cell.
func (c Cell) Segments() (Segments, error) {
	m, err := Pattern(c.Glyph)
	if err != nil {
		return 0, err
	}
	if c.Point {
		m = m.With(SegDP)
	}
	return m, nil
}

// Frame holds one cell per position, index 0 being the leftmost digit.
type Frame []Cell

// String renders the frame the way it reads on the display, e.g. "10.22".
func (f Frame) String() string {
	var b strings.Builder
	for _, c := range f {
		b.WriteString(c.Glyph.String())
		if c.Point {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// Range returns the smallest and largest value n digits can show. One
// position is kept for the minus sign of negative values.
func Range(n int) (min, max int) {
	if n <= 0 {
		return 0, 0
	}
	p := 1
	for i := 0; i < n; i++ {
		p *= 10
	}
	return -(p/10 - 1), p - 1
}

// Dashes returns a frame with a dash in every position.
func Dashes(n int) Frame {
	f := make(Frame, n)
	for i := range f {
		f[i] = Cell{Glyph: Dash}
	}
	return f
}

// Compose lays value out over n positions. Values outside Range(n) yield
// Dashes(n). The range follows the digit count, so a two digit display
// shows dashes for 100 rather than a truncated "00"; only four digits give
// the full [-999, 9999]. decimalPlace counts positions from the left
// starting at 1; 0 or anything past n lights no decimal point.
func Compose(value, decimalPlace, n int) Frame {
	lo, hi := Range(n)
	if n <= 0 || value < lo || value > hi {
		return Dashes(n)
	}

	negative := value < 0
	if negative {
		value = -value
	}

	f := make(Frame, n)
	for pos := n - 1; pos >= 0; pos-- {
		switch {
		case value > 0 || pos == n-1:
			f[pos].Glyph = Glyph(value % 10)
		case negative:
			f[pos].Glyph = Dash
			negative = false
		default:
			f[pos].Glyph = Blank
		}
		value /= 10
		if decimalPlace == pos+1 {
			f[pos].Point = true
		}
	}
	return f
}

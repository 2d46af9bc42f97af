package sevseg

import (
	"fmt"
	"strings"
)

// Segment is the index of a segment line, in wiring order A..G then DP.
//
//	  -A-
//	F|   |B
//	  -G-
//	E|   |C
//	  -D-  .DP
type Segment uint8

const (
	SegA Segment = iota
	SegB
	SegC
	SegD
	SegE
	SegF
	SegG
	SegDP

	// SegmentCount is the number of segment lines a display needs.
	SegmentCount = 8
)

var segmentNames = [SegmentCount]string{"A", "B", "C", "D", "E", "F", "G", "DP"}

func (s Segment) String() string {
	if int(s) < len(segmentNames) {
		return segmentNames[s]
	}
	return fmt.Sprintf("Segment(%d)", uint8(s))
}

// Segments is a set of lit segments, bit n set for Segment n.
type Segments uint8

// Has reports whether s is part of the set.
func (m Segments) Has(s Segment) bool {
	return m&(1<<s) != 0
}

// With returns the set with s added.
func (m Segments) With(s Segment) Segments {
	return m | 1<<s
}

// Count returns how many segments are lit.
func (m Segments) Count() int {
	n := 0
	for s := SegA; s <= SegDP; s++ {
		if m.Has(s) {
			n++
		}
	}
	return n
}

func (m Segments) String() string {
	if m == 0 {
		return "-"
	}
	var b strings.Builder
	for s := SegA; s <= SegDP; s++ {
		if m.Has(s) {
			b.WriteString(s.String())
		}
	}
	return b.String()
}

func segs(list ...Segment) Segments {
	var m Segments
	for _, s := range list {
		m = m.With(s)
	}
	return m
}

// Glyph is something a single position can show.
type Glyph uint8

const (
	Digit0 Glyph = iota
	Digit1
	Digit2
	Digit3
	Digit4
	Digit5
	Digit6
	Digit7
	Digit8
	Digit9
	Blank
	Dash
	Point

	glyphCount
)

var patterns = [glyphCount]Segments{
	Digit0: segs(SegA, SegB, SegC, SegD, SegE, SegF),
	Digit1: segs(SegB, SegC),
	Digit2: segs(SegA, SegB, SegD, SegE, SegG),
	Digit3: segs(SegA, SegB, SegC, SegD, SegG),
	Digit4: segs(SegB, SegC, SegF, SegG),
	Digit5: segs(SegA, SegC, SegD, SegF, SegG),
	Digit6: segs(SegA, SegC, SegD, SegE, SegF, SegG),
	Digit7: segs(SegA, SegB, SegC),
	Digit8: segs(SegA, SegB, SegC, SegD, SegE, SegF, SegG),
	Digit9: segs(SegA, SegB, SegC, SegD, SegF, SegG),
	Blank:  0,
	Dash:   segs(SegG),
	Point:  segs(SegDP),
}

// DigitGlyph returns the glyph for a decimal digit 0..9.
func DigitGlyph(d int) (Glyph, error) {
	if d < 0 || d > 9 {
		return Blank, fmt.Errorf("%w: digit %d", ErrUnknownGlyph, d)
	}
	return Glyph(d), nil
}

// Pattern returns the segments a glyph lights.
func Pattern(g Glyph) (Segments, error) {
	if g >= glyphCount {
		return 0, fmt.Errorf("%w: %d", ErrUnknownGlyph, uint8(g))
	}
	return patterns[g], nil
}

// Glyphs lists every glyph with a pattern, digits first.
func Glyphs() []Glyph {
	out := make([]Glyph, 0, glyphCount)
	for g := Digit0; g < glyphCount; g++ {
		out = append(out, g)
	}
	return out
}

func (g Glyph) String() string {
	switch {
	case g <= Digit9:
		return string(rune('0' + g))
	case g == Blank:
		return " "
	case g == Dash:
		return "-"
	case g == Point:
		return "."
	}
	return fmt.Sprintf("Glyph(%d)", uint8(g))
}

// Decode maps lit segments back to the cell that produces them. ok is false
// when no glyph matches.
func Decode(m Segments) (c Cell, ok bool) {
	c.Point = m.Has(SegDP)
	body := m &^ (1 << SegDP)
	for g := Digit0; g < glyphCount; g++ {
		if g == Point {
			continue
		}
		if patterns[g] == body {
			c.Glyph = g
			return c, true
		}
	}
	return Cell{Glyph: Blank}, false
}

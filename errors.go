package sevseg

import "errors"

var (
	ErrDigitCount   = errors.New("sevseg: digit pin count must be 1..4")
	ErrSegmentCount = errors.New("sevseg: exactly 8 segment pins (A..G, DP) are required")
	ErrNilPin       = errors.New("sevseg: nil pin")
	ErrDuplicatePin = errors.New("sevseg: pin assigned twice")
	ErrDwell        = errors.New("sevseg: dwell must not be negative")
	ErrUnknownGlyph = errors.New("sevseg: no segment pattern for glyph")
)

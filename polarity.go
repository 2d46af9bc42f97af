package sevseg

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/gpio"
)

// Polarity describes which side of the LEDs is tied together per digit.
type Polarity uint8

const (
	// CommonCathode displays light a segment when its line is High and the
	// digit common is pulled Low.
	CommonCathode Polarity = iota
	// CommonAnode displays light a segment when its line is Low and the
	// digit common is driven High.
	CommonAnode
)

func (p Polarity) String() string {
	switch p {
	case CommonCathode:
		return "common_cathode"
	case CommonAnode:
		return "common_anode"
	}
	return fmt.Sprintf("Polarity(%d)", uint8(p))
}

// ParsePolarity accepts "cathode", "anode" and their "common_" forms.
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cathode", "common_cathode", "cc":
		return CommonCathode, nil
	case "anode", "common_anode", "ca":
		return CommonAnode, nil
	}
	return CommonCathode, fmt.Errorf("sevseg: unknown polarity %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Polarity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Polarity) UnmarshalText(b []byte) error {
	v, err := ParsePolarity(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Levels are the electrical levels meaning on and off for each line family.
type Levels struct {
	DigitOn    gpio.Level
	DigitOff   gpio.Level
	SegmentOn  gpio.Level
	SegmentOff gpio.Level
}

// Levels derives the line levels for the polarity. invertDigits flips the
// digit family only, for commons switched through a transistor.
func (p Polarity) Levels(invertDigits bool) Levels {
	l := Levels{
		DigitOn:    gpio.Low,
		DigitOff:   gpio.High,
		SegmentOn:  gpio.High,
		SegmentOff: gpio.Low,
	}
	if p == CommonAnode {
		l = Levels{
			DigitOn:    gpio.High,
			DigitOff:   gpio.Low,
			SegmentOn:  gpio.Low,
			SegmentOff: gpio.High,
		}
	}
	if invertDigits {
		l.DigitOn, l.DigitOff = l.DigitOff, l.DigitOn
	}
	return l
}

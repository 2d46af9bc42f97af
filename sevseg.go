// Package sevseg drives a multiplexed 7-segment LED display (up to four
// digits) straight from digital output pins.
//
// Only one digit is lit at a time. RenderFrame walks every position, lights
// it for a short dwell and turns it off again, so it must be called in a
// tight loop for persistence of vision to show a steady number:
//
//	d, err := sevseg.New(sevseg.Config{Polarity: sevseg.CommonCathode}, digits, segments)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for {
//		d.RenderFrame(1022, 2) // "10.22"
//	}
package sevseg

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// DefaultDwell is how long each digit stays lit during a pass. Longer
// dwells are brighter but start to flicker past a few milliseconds.
const DefaultDwell = 2000 * time.Microsecond

// Waiter blocks for the per-digit dwell.
type Waiter interface {
	Wait(d time.Duration)
}

// WaiterFunc adapts a function to Waiter.
type WaiterFunc func(d time.Duration)

func (f WaiterFunc) Wait(d time.Duration) { f(d) }

// Sleep is the default Waiter.
var Sleep Waiter = WaiterFunc(time.Sleep)

// Config holds the settings fixed at construction.
type Config struct {
	Polarity Polarity
	// InvertDigits flips the digit line sense, for commons switched through
	// a transistor.
	InvertDigits bool
	// Dwell per digit. Zero means DefaultDwell.
	Dwell time.Duration
	// Waiter performs the dwell. Nil means Sleep.
	Waiter Waiter
}

// Driver owns the digit and segment lines of one display.
type Driver struct {
	mu       sync.Mutex
	polarity Polarity
	levels   Levels
	dwell    time.Duration
	wait     Waiter
	digits   []gpio.PinOut
	segments [SegmentCount]gpio.PinOut
}

// New validates the pin table, drives every line off and returns the
// driver. digits are the digit commons left to right; segments are the
// A..G and DP lines in that order.
func New(cfg Config, digits []gpio.PinOut, segments []gpio.PinOut) (*Driver, error) {
	if len(digits) < 1 || len(digits) > MaxDigits {
		return nil, fmt.Errorf("%w: got %d", ErrDigitCount, len(digits))
	}
	if len(segments) != SegmentCount {
		return nil, fmt.Errorf("%w: got %d", ErrSegmentCount, len(segments))
	}
	if cfg.Dwell < 0 {
		return nil, fmt.Errorf("%w: %s", ErrDwell, cfg.Dwell)
	}
	if err := checkPins(digits, segments); err != nil {
		return nil, err
	}

	d := &Driver{
		polarity: cfg.Polarity,
		levels:   cfg.Polarity.Levels(cfg.InvertDigits),
		dwell:    cfg.Dwell,
		wait:     cfg.Waiter,
		digits:   append([]gpio.PinOut(nil), digits...),
	}
	copy(d.segments[:], segments)
	if d.dwell == 0 {
		d.dwell = DefaultDwell
	}
	if d.wait == nil {
		d.wait = Sleep
	}

	// Out both switches the line to output and sets its level.
	for _, p := range d.digits {
		if err := p.Out(d.levels.DigitOff); err != nil {
			return nil, fmt.Errorf("sevseg: configure digit %s: %w", p, err)
		}
	}
	for i, p := range d.segments {
		if err := p.Out(d.levels.SegmentOff); err != nil {
			return nil, fmt.Errorf("sevseg: configure segment %s (%s): %w", Segment(i), p, err)
		}
	}
	return d, nil
}

func checkPins(digits, segments []gpio.PinOut) error {
	seen := map[string]string{}
	claim := func(role string, p gpio.PinOut) error {
		if p == nil {
			return fmt.Errorf("%w: %s", ErrNilPin, role)
		}
		name := p.Name()
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s used for %s and %s", ErrDuplicatePin, name, prev, role)
		}
		seen[name] = role
		return nil
	}
	for i, p := range digits {
		if err := claim(fmt.Sprintf("digit %d", i+1), p); err != nil {
			return err
		}
	}
	for i, p := range segments {
		if err := claim("segment "+Segment(i).String(), p); err != nil {
			return err
		}
	}
	return nil
}

// Digits returns the number of positions.
func (d *Driver) Digits() int { return len(d.digits) }

// Polarity returns the configured polarity.
func (d *Driver) Polarity() Polarity { return d.polarity }

// Levels returns the line levels derived from the polarity.
func (d *Driver) Levels() Levels { return d.levels }

// Dwell returns the per-digit dwell.
func (d *Driver) Dwell() time.Duration { return d.dwell }

// Range returns the displayable values for this driver.
func (d *Driver) Range() (min, max int) { return Range(len(d.digits)) }

func (d *Driver) String() string {
	names := make([]string, len(d.digits))
	for i, p := range d.digits {
		names[i] = p.Name()
	}
	return fmt.Sprintf("sevseg{%s, digits=[%s], dwell=%s}", d.polarity, strings.Join(names, ","), d.dwell)
}

// RenderFrame shows value for one pass over every digit and returns with
// the display dark. decimalPlace lights the point of that position counted
// from the left (1-based); 0 lights none. Values the display cannot hold
// render as dashes.
func (d *Driver) RenderFrame(value, decimalPlace int) error {
	return d.RenderCells(Compose(value, decimalPlace, len(d.digits)))
}

// RenderCells shows an arbitrary frame for one pass. Positions missing from
// f are left blank and extra cells are ignored.
func (d *Driver) RenderCells(f Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for pos := len(d.digits) - 1; pos >= 0; pos-- {
		c := Cell{Glyph: Blank}
		if pos < len(f) {
			c = f[pos]
		}
		if err := d.light(pos, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// light runs one on, assert, hold, clear, off cycle for a position. The
// clear and off steps run even when an earlier write failed, so a digit is
// never left on.
func (d *Driver) light(pos int, c Cell) error {
	m, err := c.Segments()
	if err != nil {
		return err
	}
	digit := d.digits[pos]
	if err := digit.Out(d.levels.DigitOn); err != nil {
		return errors.Join(
			fmt.Errorf("sevseg: digit %d on: %w", pos+1, err),
			digit.Out(d.levels.DigitOff),
		)
	}

	var errs []error
	for s, p := range d.segments {
		if !m.Has(Segment(s)) {
			continue
		}
		if err := p.Out(d.levels.SegmentOn); err != nil {
			errs = append(errs, fmt.Errorf("sevseg: segment %s on: %w", Segment(s), err))
		}
	}
	if len(errs) == 0 {
		d.wait.Wait(d.dwell)
	}

	errs = append(errs, d.clearSegments())
	if err := digit.Out(d.levels.DigitOff); err != nil {
		errs = append(errs, fmt.Errorf("sevseg: digit %d off: %w", pos+1, err))
	}
	return errors.Join(errs...)
}

func (d *Driver) clearSegments() error {
	var errs []error
	for s, p := range d.segments {
		if err := p.Out(d.levels.SegmentOff); err != nil {
			errs = append(errs, fmt.Errorf("sevseg: segment %s off: %w", Segment(s), err))
		}
	}
	return errors.Join(errs...)
}

// Blank drives every line off.
func (d *Driver) Blank() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blank()
}

func (d *Driver) blank() error {
	var errs []error
	for i, p := range d.digits {
		if err := p.Out(d.levels.DigitOff); err != nil {
			errs = append(errs, fmt.Errorf("sevseg: digit %d off: %w", i+1, err))
		}
	}
	errs = append(errs, d.clearSegments())
	return errors.Join(errs...)
}

// Halt blanks the display and halts every pin. It implements conn.Resource.
func (d *Driver) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	errs := []error{d.blank()}
	for _, p := range d.digits {
		errs = append(errs, p.Halt())
	}
	for _, p := range d.segments {
		errs = append(errs, p.Halt())
	}
	return errors.Join(errs...)
}

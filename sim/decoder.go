package sim

import (
	"sync"

	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/sevseg"
)

// Wiring names the board pins a display is attached to.
type Wiring struct {
	Digits   []string
	Segments [sevseg.SegmentCount]string
	Levels   sevseg.Levels
}

// Decoder watches a board and reconstructs what a viewer would see: at each
// dwell the segments lit on the single active digit are latched into that
// position. It also counts ghosting, any instant with more than one digit
// on.
type Decoder struct {
	mu      sync.Mutex
	w       Wiring
	digitAt map[string]int
	segAt   map[string]sevseg.Segment
	levels  map[string]gpio.Level

	visible  []sevseg.Segments
	latched  []bool
	passes   uint64
	ghosts   uint64
	maxOn    int
	dwells   uint64
	onFrame  func(sevseg.Frame, []sevseg.Segments)
	lastSeen []sevseg.Segments
}

// NewDecoder returns a decoder for w. Attach it with Board.Observe(d.Observe).
func NewDecoder(w Wiring) *Decoder {
	d := &Decoder{
		w:        w,
		digitAt:  map[string]int{},
		segAt:    map[string]sevseg.Segment{},
		levels:   map[string]gpio.Level{},
		visible:  make([]sevseg.Segments, len(w.Digits)),
		latched:  make([]bool, len(w.Digits)),
		lastSeen: make([]sevseg.Segments, len(w.Digits)),
	}
	for i, n := range w.Digits {
		d.digitAt[n] = i
		d.levels[n] = w.Levels.DigitOff
	}
	for i, n := range w.Segments {
		d.segAt[n] = sevseg.Segment(i)
		d.levels[n] = w.Levels.SegmentOff
	}
	return d
}

// Attach creates a decoder for w and registers it on b.
func Attach(b *Board, w Wiring) *Decoder {
	d := NewDecoder(w)
	b.Observe(d.Observe)
	return d
}

// OnFrame registers f to run each time every position has been latched
// once since the previous call. f receives copies.
func (d *Decoder) OnFrame(f func(sevseg.Frame, []sevseg.Segments)) {
	d.mu.Lock()
	d.onFrame = f
	d.mu.Unlock()
}

// Observe is a board Observer.
func (d *Decoder) Observe(_ *Board, e Event) {
	d.mu.Lock()
	var (
		cb    func(sevseg.Frame, []sevseg.Segments)
		frame sevseg.Frame
		raw   []sevseg.Segments
	)
	switch e.Kind {
	case Out:
		if _, ok := d.levels[e.Pin]; !ok {
			break
		}
		d.levels[e.Pin] = e.Level
		on := d.digitsOn()
		if len(on) > 1 {
			d.ghosts++
		}
		if len(on) > d.maxOn {
			d.maxOn = len(on)
		}
	case Dwell:
		d.dwells++
		on := d.digitsOn()
		if len(on) != 1 {
			break
		}
		pos := on[0]
		d.visible[pos] = d.litSegments()
		d.latched[pos] = true
		if d.allLatched() {
			d.passes++
			copy(d.lastSeen, d.visible)
			for i := range d.latched {
				d.latched[i] = false
			}
			if d.onFrame != nil {
				cb = d.onFrame
				raw = append([]sevseg.Segments(nil), d.lastSeen...)
				frame = decodeAll(raw)
			}
		}
	}
	d.mu.Unlock()

	if cb != nil {
		cb(frame, raw)
	}
}

func (d *Decoder) digitsOn() []int {
	var on []int
	for i, n := range d.w.Digits {
		if d.levels[n] == d.w.Levels.DigitOn {
			on = append(on, i)
		}
	}
	return on
}

func (d *Decoder) litSegments() sevseg.Segments {
	var m sevseg.Segments
	for n, s := range d.segAt {
		if d.levels[n] == d.w.Levels.SegmentOn {
			m = m.With(s)
		}
	}
	return m
}

func (d *Decoder) allLatched() bool {
	for _, ok := range d.latched {
		if !ok {
			return false
		}
	}
	return len(d.latched) > 0
}

func decodeAll(raw []sevseg.Segments) sevseg.Frame {
	f := make(sevseg.Frame, len(raw))
	for i, m := range raw {
		f[i], _ = sevseg.Decode(m)
	}
	return f
}

// Visible returns the segments of the last complete pass, leftmost first.
func (d *Decoder) Visible() []sevseg.Segments {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sevseg.Segments(nil), d.lastSeen...)
}

// Frame decodes Visible into cells.
func (d *Decoder) Frame() sevseg.Frame {
	return decodeAll(d.Visible())
}

// Text returns the last complete pass as it reads, e.g. "10.22".
func (d *Decoder) Text() string {
	return d.Frame().String()
}

// Stats summarises what the decoder saw.
type Stats struct {
	Passes    uint64
	Dwells    uint64
	Ghosts    uint64
	MaxDigits int
}

// Stats returns counters since creation.
func (d *Decoder) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Passes: d.passes, Dwells: d.dwells, Ghosts: d.ghosts, MaxDigits: d.maxOn}
}

// Pins returns the board pins for w, in driver order.
func (w Wiring) Pins(b *Board) (digits, segments []gpio.PinOut) {
	for _, n := range w.Digits {
		digits = append(digits, b.Pin(n))
	}
	for _, n := range w.Segments {
		segments = append(segments, b.Pin(n))
	}
	return digits, segments
}

// DefaultWiring names the lines D1..Dn and A..G, DP.
func DefaultWiring(n int, l sevseg.Levels) Wiring {
	w := Wiring{Levels: l}
	for i := 0; i < n; i++ {
		w.Digits = append(w.Digits, "D"+string(rune('1'+i)))
	}
	for s := sevseg.SegA; s <= sevseg.SegDP; s++ {
		w.Segments[s] = s.String()
	}
	return w
}

// Package sim is an in-memory stand-in for the pins and clock a display is
// wired to. It records every level change and dwell so tests and previews
// can see exactly what the hardware would.
package sim

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// ErrNotImplemented is returned by PWM; the board only does digital out.
var ErrNotImplemented = errors.New("sim: not implemented")

// Kind tells what an Event records.
type Kind uint8

const (
	// Out is a level written to a pin.
	Out Kind = iota
	// Dwell is a wait issued by the driver.
	Dwell
	// Halt is a pin being halted.
	Halt
)

func (k Kind) String() string {
	switch k {
	case Out:
		return "out"
	case Dwell:
		return "dwell"
	case Halt:
		return "halt"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Event is one recorded step.
type Event struct {
	Seq   uint64
	Kind  Kind
	Pin   string
	Level gpio.Level
	Wait  time.Duration
}

func (e Event) String() string {
	switch e.Kind {
	case Out:
		return fmt.Sprintf("#%d %s=%s", e.Seq, e.Pin, e.Level)
	case Dwell:
		return fmt.Sprintf("#%d wait %s", e.Seq, e.Wait)
	}
	return fmt.Sprintf("#%d %s %s", e.Seq, e.Kind, e.Pin)
}

// Observer is notified of every event, after it is applied to the board.
// It runs with the board lock released and must not block for long.
type Observer func(b *Board, e Event)

// Board hands out named pins and plays the role of the dwell clock.
type Board struct {
	mu        sync.Mutex
	pins      map[string]*Pin
	order     []string
	events    []Event
	seq       uint64
	keep      int
	realTime  bool
	observers []Observer
	failing   map[string]error
}

// NewBoard returns a board that keeps every event and never sleeps.
func NewBoard() *Board {
	return &Board{
		pins:    map[string]*Pin{},
		keep:    -1,
		failing: map[string]error{},
	}
}

// KeepEvents bounds the event log to the last n events; n < 0 keeps all and
// n == 0 keeps none.
func (b *Board) KeepEvents(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keep = n
	b.trim()
}

// RealTime makes Wait actually sleep, for previews that run at hardware
// speed.
func (b *Board) RealTime(on bool) {
	b.mu.Lock()
	b.realTime = on
	b.mu.Unlock()
}

// Observe registers o for every future event.
func (b *Board) Observe(o Observer) {
	b.mu.Lock()
	b.observers = append(b.observers, o)
	b.mu.Unlock()
}

// Fail makes writes to the named pin return err. A nil err clears it.
func (b *Board) Fail(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failing, name)
		return
	}
	b.failing[name] = err
}

// Pin returns the pin with that name, creating it on first use. New pins
// start Low and are not yet outputs.
func (b *Board) Pin(name string) *Pin {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pins[name]; ok {
		return p
	}
	p := &Pin{board: b, name: name, number: len(b.order)}
	b.pins[name] = p
	b.order = append(b.order, name)
	return p
}

// Pins returns the names of every pin handed out, in creation order.
func (b *Board) Pins() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.order...)
}

// Level returns the current level of the named pin and whether it exists.
func (b *Board) Level(name string) (gpio.Level, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pins[name]
	if !ok {
		return gpio.Low, false
	}
	return p.level, true
}

// Snapshot returns the level of every pin.
func (b *Board) Snapshot() map[string]gpio.Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]gpio.Level, len(b.pins))
	for n, p := range b.pins {
		out[n] = p.level
	}
	return out
}

// Outputs returns the names of pins that were switched to output, sorted.
func (b *Board) Outputs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for n, p := range b.pins {
		if p.output {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Events returns a copy of the event log.
func (b *Board) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Reset clears the event log but keeps pin levels.
func (b *Board) Reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

// Wait records a dwell. It satisfies sevseg.Waiter.
func (b *Board) Wait(d time.Duration) {
	b.mu.Lock()
	sleep := b.realTime
	e := b.record(Event{Kind: Dwell, Wait: d})
	obs := b.observers
	b.mu.Unlock()

	b.notify(obs, e)
	if sleep {
		time.Sleep(d)
	}
}

func (b *Board) write(p *Pin, l gpio.Level) error {
	b.mu.Lock()
	if err := b.failing[p.name]; err != nil {
		b.mu.Unlock()
		return err
	}
	p.output = true
	p.level = l
	e := b.record(Event{Kind: Out, Pin: p.name, Level: l})
	obs := b.observers
	b.mu.Unlock()

	b.notify(obs, e)
	return nil
}

func (b *Board) halt(p *Pin) {
	b.mu.Lock()
	e := b.record(Event{Kind: Halt, Pin: p.name})
	obs := b.observers
	b.mu.Unlock()
	b.notify(obs, e)
}

func (b *Board) record(e Event) Event {
	b.seq++
	e.Seq = b.seq
	if b.keep != 0 {
		b.events = append(b.events, e)
		b.trim()
	}
	return e
}

func (b *Board) trim() {
	if b.keep >= 0 && len(b.events) > b.keep {
		b.events = append(b.events[:0], b.events[len(b.events)-b.keep:]...)
	}
}

func (b *Board) notify(obs []Observer, e Event) {
	for _, o := range obs {
		o(b, e)
	}
}

// Pin is a board line. It implements gpio.PinOut.
type Pin struct {
	board  *Board
	name   string
	number int

	// guarded by board.mu
	output bool
	level  gpio.Level
}

var _ gpio.PinOut = &Pin{}

func (p *Pin) String() string { return p.name }

// Name returns the name given to Board.Pin.
func (p *Pin) Name() string { return p.name }

// Number returns the creation index of the pin on its board.
func (p *Pin) Number() int { return p.number }

// Function is deprecated by periph; it returns "Out" once configured and
// "In" before.
func (p *Pin) Function() string {
	p.board.mu.Lock()
	defer p.board.mu.Unlock()
	if p.output {
		return "Out"
	}
	return "In"
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	p.board.halt(p)
	return nil
}

// Out switches the pin to output and drives it to l.
func (p *Pin) Out(l gpio.Level) error {
	return p.board.write(p, l)
}

// PWM is not supported.
func (p *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return ErrNotImplemented
}

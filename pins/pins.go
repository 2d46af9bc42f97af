// Package pins resolves pin names to gpio.PinOut lines on the host the
// display is wired to.
package pins

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/sevseg/sim"
)

var (
	ErrUnknownProvider = errors.New("pins: unknown provider")
	ErrUnknownPin      = errors.New("pins: unknown pin")
	ErrUnsupported     = errors.New("pins: provider not supported on this platform")
)

// Provider hands out output lines by name.
type Provider interface {
	// Pin returns the line called name. Repeated calls return the same line.
	Pin(name string) (gpio.PinOut, error)
	// Close releases every line handed out.
	Close() error
	String() string
}

// Kind selects a Provider implementation.
type Kind string

const (
	// Periph uses periph.io host drivers and the gpioreg registry.
	Periph Kind = "periph"
	// CDev uses the Linux GPIO character device.
	CDev Kind = "cdev"
	// RPIO uses memory mapped Raspberry Pi registers.
	RPIO Kind = "rpio"
	// Expander uses an MCP23xxx I2C port expander.
	Expander Kind = "expander"
	// Sim uses an in-memory board.
	Sim Kind = "sim"
)

// Kinds lists every provider kind.
func Kinds() []Kind {
	return []Kind{Periph, CDev, RPIO, Expander, Sim}
}

// Options configures Open.
type Options struct {
	Kind Kind

	// Chip is the character device for CDev, e.g. "gpiochip0".
	Chip string

	// Bus is the periph I2C bus name for Expander; empty picks the first.
	Bus string
	// Addr is the expander address, default 0x20.
	Addr uint16
	// Variant is the expander part, default "MCP23017".
	Variant string

	// Board backs Sim; nil creates a fresh one.
	Board *sim.Board
}

// Open returns the provider selected by o.Kind.
func Open(o Options) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch o.Kind {
	case Periph:
		p, err = openPeriph()
	case CDev:
		if o.Chip == "" {
			o.Chip = "gpiochip0"
		}
		p, err = openCDev(o.Chip)
	case RPIO:
		p, err = openRPIO()
	case Expander:
		if o.Addr == 0 {
			o.Addr = 0x20
		}
		if o.Variant == "" {
			o.Variant = "MCP23017"
		}
		p, err = openExpander(o.Bus, o.Addr, o.Variant)
	case Sim:
		b := o.Board
		if b == nil {
			b = sim.NewBoard()
		}
		p = &simProvider{board: b}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, o.Kind)
	}
	if err != nil {
		return nil, err
	}
	log.Debug().Str("driver", string(o.Kind)).Str("provider", p.String()).Msg("pin provider open")
	return p, nil
}

// Resolve looks up every name in order.
func Resolve(p Provider, names []string) ([]gpio.PinOut, error) {
	out := make([]gpio.PinOut, 0, len(names))
	for _, n := range names {
		pin, err := p.Pin(n)
		if err != nil {
			return nil, err
		}
		out = append(out, pin)
	}
	return out, nil
}

// lineNumber parses "17", "GPIO17" or "gpio17".
func lineNumber(name string) (int, error) {
	s := strings.TrimSpace(name)
	if len(s) > 4 && strings.EqualFold(s[:4], "gpio") {
		s = s[4:]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPin, name)
	}
	return n, nil
}

type simProvider struct {
	board *sim.Board
}

func (s *simProvider) Pin(name string) (gpio.PinOut, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownPin)
	}
	return s.board.Pin(name), nil
}

func (s *simProvider) Close() error { return nil }

func (s *simProvider) String() string { return "sim" }

// Board returns the board behind a Sim provider, or nil.
func Board(p Provider) *sim.Board {
	if s, ok := p.(*simProvider); ok {
		return s.board
	}
	return nil
}

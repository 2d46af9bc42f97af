//go:build linux

package pins

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

type rpioProvider struct {
	mu   sync.Mutex
	pins map[int]*rpioPin
}

func openRPIO() (Provider, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("pins: rpio open: %w", err)
	}
	return &rpioProvider{pins: map[int]*rpioPin{}}, nil
}

func (r *rpioProvider) Pin(name string) (gpio.PinOut, error) {
	n, err := lineNumber(name)
	if err != nil {
		return nil, err
	}
	if n > 53 {
		return nil, fmt.Errorf("%w: %q is not a BCM line", ErrUnknownPin, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pins[n]; ok {
		return p, nil
	}
	p := &rpioPin{pin: rpio.Pin(n), name: fmt.Sprintf("GPIO%d", n)}
	r.pins[n] = p
	return p, nil
}

func (r *rpioProvider) Close() error { return rpio.Close() }

func (r *rpioProvider) String() string { return "rpio" }

// rpioPin adapts a BCM line to gpio.PinOut. The line is switched to output
// on its first write.
type rpioPin struct {
	pin    rpio.Pin
	name   string
	output bool
}

func (p *rpioPin) String() string   { return p.name }
func (p *rpioPin) Name() string     { return p.name }
func (p *rpioPin) Number() int      { return int(p.pin) }
func (p *rpioPin) Function() string { return "Out" }

func (p *rpioPin) Halt() error {
	p.pin.Input()
	p.output = false
	return nil
}

func (p *rpioPin) Out(l gpio.Level) error {
	if !p.output {
		p.pin.Output()
		p.output = true
	}
	if l {
		p.pin.High()
	} else {
		p.pin.Low()
	}
	return nil
}

func (p *rpioPin) PWM(gpio.Duty, physic.Frequency) error {
	return fmt.Errorf("pins: %s: PWM not supported", p.name)
}

//go:build linux

package pins

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

type cdevProvider struct {
	chip string

	mu    sync.Mutex
	lines map[int]*cdevPin
}

func openCDev(chip string) (Provider, error) {
	return &cdevProvider{chip: chip, lines: map[int]*cdevPin{}}, nil
}

func (c *cdevProvider) Pin(name string) (gpio.PinOut, error) {
	offset, err := lineNumber(name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.lines[offset]; ok {
		return p, nil
	}
	line, err := gpiocdev.RequestLine(c.chip, offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("sevseg"))
	if err != nil {
		return nil, fmt.Errorf("pins: request %s line %d: %w", c.chip, offset, err)
	}
	p := &cdevPin{line: line, name: fmt.Sprintf("GPIO%d", offset), offset: offset}
	c.lines[offset] = p
	return p, nil
}

func (c *cdevProvider) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for _, p := range c.lines {
		errs = append(errs, p.line.Close())
	}
	c.lines = map[int]*cdevPin{}
	return errors.Join(errs...)
}

func (c *cdevProvider) String() string { return "cdev(" + c.chip + ")" }

// cdevPin adapts a requested line to gpio.PinOut.
type cdevPin struct {
	line   *gpiocdev.Line
	name   string
	offset int
}

func (p *cdevPin) String() string   { return p.name }
func (p *cdevPin) Name() string     { return p.name }
func (p *cdevPin) Number() int      { return p.offset }
func (p *cdevPin) Function() string { return "Out" }
func (p *cdevPin) Halt() error      { return nil }

func (p *cdevPin) Out(l gpio.Level) error {
	v := 0
	if l {
		v = 1
	}
	return p.line.SetValue(v)
}

func (p *cdevPin) PWM(gpio.Duty, physic.Frequency) error {
	return fmt.Errorf("pins: %s: PWM not supported", p.name)
}

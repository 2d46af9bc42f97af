package pins

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/mcp23xxx"
	"periph.io/x/host/v3"
)

// expanderProvider serves lines of an MCP23xxx on an I2C bus. Names are a
// port letter and bit, "A0".."A7" then "B0".."B7" on two-port parts.
type expanderProvider struct {
	bus     i2c.BusCloser
	dev     *mcp23xxx.Dev
	variant string
	addr    uint16
}

func expanderVariant(name string) (mcp23xxx.Variant, error) {
	switch strings.ToUpper(name) {
	case "MCP23008":
		return mcp23xxx.MCP23008, nil
	case "MCP23017":
		return mcp23xxx.MCP23017, nil
	}
	return mcp23xxx.MCP23017, fmt.Errorf("pins: unknown expander %q", name)
}

func openExpander(busName string, addr uint16, variant string) (Provider, error) {
	v, err := expanderVariant(variant)
	if err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("pins: periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("pins: open i2c bus %q: %w", busName, err)
	}
	dev, err := mcp23xxx.NewI2C(bus, v, addr)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("pins: %s at %#x: %w", variant, addr, err)
	}
	return &expanderProvider{bus: bus, dev: dev, variant: strings.ToUpper(variant), addr: addr}, nil
}

// expanderLine parses "A3" into port 0 bit 3.
func expanderLine(name string) (port, bit int, err error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	if len(s) != 2 || s[0] < 'A' || s[0] > 'Z' || s[1] < '0' || s[1] > '7' {
		return 0, 0, fmt.Errorf("%w: %q, want port letter and bit like A3", ErrUnknownPin, name)
	}
	return int(s[0] - 'A'), int(s[1] - '0'), nil
}

func (e *expanderProvider) Pin(name string) (gpio.PinOut, error) {
	port, bit, err := expanderLine(name)
	if err != nil {
		return nil, err
	}
	if port >= len(e.dev.Pins) || bit >= len(e.dev.Pins[port]) {
		return nil, fmt.Errorf("%w: %q not on %s", ErrUnknownPin, name, e.variant)
	}
	return e.dev.Pins[port][bit], nil
}

// Close releases the bus; the expander keeps its last output state.
func (e *expanderProvider) Close() error {
	return e.bus.Close()
}

func (e *expanderProvider) String() string {
	return fmt.Sprintf("expander(%s@%#x)", e.variant, e.addr)
}

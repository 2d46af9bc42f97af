package pins

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

type periphProvider struct {
	drivers int
}

func openPeriph() (Provider, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("pins: periph host init: %w", err)
	}
	return &periphProvider{drivers: len(state.Loaded)}, nil
}

func (p *periphProvider) Pin(name string) (gpio.PinOut, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPin, name)
	}
	return pin, nil
}

// Close is a no-op; periph host drivers live for the process.
func (p *periphProvider) Close() error { return nil }

func (p *periphProvider) String() string {
	return fmt.Sprintf("periph(%d drivers)", p.drivers)
}

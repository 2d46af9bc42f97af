// Package mirror repeats what a display shows onto a periph display.Drawer:
// an addressable LED strip on SPI with one pixel per segment, or the
// terminal.
package mirror

import (
	"errors"
	"image"
	"image/color"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"

	"github.com/coreman2200/sevseg"
)

// Mirror draws frames onto a drawer with eight pixels per position.
type Mirror struct {
	drawer display.Drawer
	port   spi.PortCloser
	digits int

	On  color.NRGBA
	Off color.NRGBA
}

// New mirrors a display of n digits onto d.
func New(d display.Drawer, digits int) *Mirror {
	return &Mirror{
		drawer: d,
		digits: digits,
		On:     color.NRGBA{R: 255, G: 32, A: 255},
		Off:    color.NRGBA{A: 255},
	}
}

// Console mirrors onto the terminal.
func Console(digits int) *Mirror {
	return New(screen.New(digits*sevseg.SegmentCount), digits)
}

// Open mirrors onto a WS2812 strip on the SPI port, falling back to the
// console when there is no such port.
func Open(port string, digits int) (*Mirror, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	p, err := spireg.Open(port)
	if err != nil {
		log.Warn().Err(err).Str("port", port).Msg("no SPI port, mirroring to the console")
		return Console(digits), nil
	}
	opts := nrzled.Opts{
		NumPixels: digits * sevseg.SegmentCount,
		Channels:  3,
		Freq:      2500 * physic.KiloHertz,
	}
	d, err := nrzled.NewSPI(p, &opts)
	if err != nil {
		p.Close()
		return nil, err
	}
	_ = d.Halt()
	m := New(d, digits)
	m.port = p
	return m, nil
}

// Image lays f out as one row, eight pixels per position in segment order.
func (m *Mirror) Image(f sevseg.Frame) *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, m.digits*sevseg.SegmentCount, 1))
	for pos := 0; pos < m.digits; pos++ {
		var lit sevseg.Segments
		if pos < len(f) {
			lit, _ = f[pos].Segments()
		}
		for s := sevseg.SegA; s <= sevseg.SegDP; s++ {
			c := m.Off
			if lit.Has(s) {
				c = m.On
			}
			im.SetNRGBA(pos*sevseg.SegmentCount+int(s), 0, c)
		}
	}
	return im
}

// Render draws f.
func (m *Mirror) Render(f sevseg.Frame) error {
	return m.drawer.Draw(m.drawer.Bounds(), m.Image(f), image.Point{})
}

// Close turns the strip off and releases the port.
func (m *Mirror) Close() error {
	err := m.drawer.Halt()
	if m.port != nil {
		err = errors.Join(err, m.port.Close())
	}
	return err
}

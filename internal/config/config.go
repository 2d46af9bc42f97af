package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/sevseg"
	"github.com/coreman2200/sevseg/internal/sequence"
)

type CDev struct {
	Chip string `yaml:"chip"` // e.g. gpiochip0
}

type Expander struct {
	Bus     string `yaml:"bus"`     // periph i2c bus name, "" = first
	Addr    uint16 `yaml:"addr"`    // e.g. 0x20
	Variant string `yaml:"variant"` // MCP23008 | MCP23017
}

type Preview struct {
	Addr string `yaml:"addr"` // e.g. :8080, empty disables
}

type Config struct {
	Driver       string          `yaml:"driver"` // periph | cdev | rpio | expander | sim
	Polarity     sevseg.Polarity `yaml:"polarity"`
	InvertDigits bool            `yaml:"invert_digits"`
	Digits       []string        `yaml:"digits"`   // left to right
	Segments     []string        `yaml:"segments"` // A B C D E F G DP
	DwellUs      int             `yaml:"dwell_us"`

	Value   int `yaml:"value"`
	Decimal int `yaml:"decimal"`

	CDev     CDev              `yaml:"cdev,omitempty"`
	Expander Expander          `yaml:"expander,omitempty"`
	Preview  Preview           `yaml:"preview,omitempty"`
	Program  *sequence.Program `yaml:"program,omitempty"`
}

// Default is a Raspberry Pi wiring of a common cathode 4-digit display.
func Default() *Config {
	return &Config{
		Driver:   "sim",
		Polarity: sevseg.CommonCathode,
		Digits:   []string{"GPIO2", "GPIO3", "GPIO4", "GPIO17"},
		Segments: []string{"GPIO27", "GPIO22", "GPIO10", "GPIO9", "GPIO11", "GPIO5", "GPIO6", "GPIO13"},
		DwellUs:  int(sevseg.DefaultDwell / time.Microsecond),
		CDev:     CDev{Chip: "gpiochip0"},
		Expander: Expander{Addr: 0x20, Variant: "MCP23017"},
	}
}

// Dwell returns the per-digit dwell, zero meaning the driver default.
func (c *Config) Dwell() time.Duration {
	return time.Duration(c.DwellUs) * time.Microsecond
}

// Validate checks the pin table shape before any hardware is touched.
func (c *Config) Validate() error {
	var errs []error
	if n := len(c.Digits); n < 1 || n > sevseg.MaxDigits {
		errs = append(errs, fmt.Errorf("digits: %w: got %d", sevseg.ErrDigitCount, n))
	}
	if n := len(c.Segments); n != sevseg.SegmentCount {
		errs = append(errs, fmt.Errorf("segments: %w: got %d", sevseg.ErrSegmentCount, n))
	}
	seen := map[string]bool{}
	for _, n := range append(append([]string(nil), c.Digits...), c.Segments...) {
		if seen[n] {
			errs = append(errs, fmt.Errorf("%w: %s", sevseg.ErrDuplicatePin, n))
		}
		seen[n] = true
	}
	if c.DwellUs < 0 {
		errs = append(errs, fmt.Errorf("dwell_us: %w", sevseg.ErrDwell))
	}
	if c.Decimal < 0 || c.Decimal > len(c.Digits) {
		errs = append(errs, fmt.Errorf("decimal: must be 0..%d, got %d", len(c.Digits), c.Decimal))
	}
	return errors.Join(errs...)
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// LoadProgram reads a standalone playlist file.
func LoadProgram(path string) (*sequence.Program, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p sequence.Program
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("program %s: %w", path, err)
	}
	return &p, nil
}

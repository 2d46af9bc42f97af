package diagnostics

import (
	"errors"
	"time"

	"github.com/coreman2200/sevseg"
	"github.com/coreman2200/sevseg/sim"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// FromConfigError explains why a display could not be configured.
func FromConfigError(err error) Diagnostic {
	d := Diagnostic{
		Severity: Err,
		Code:     "CONFIG.INVALID",
		Summary:  "Display configuration rejected",
		Detail:   err.Error(),
	}
	switch {
	case errors.Is(err, sevseg.ErrDigitCount):
		d.Code = "CONFIG.DIGITS"
		d.SuggestedFixes = []string{"List between 1 and 4 digit pins, leftmost first"}
	case errors.Is(err, sevseg.ErrSegmentCount):
		d.Code = "CONFIG.SEGMENTS"
		d.SuggestedFixes = []string{"List exactly 8 segment pins in the order A B C D E F G DP"}
	case errors.Is(err, sevseg.ErrDuplicatePin):
		d.Code = "CONFIG.DUPLICATE_PIN"
		d.LikelyCauses = []string{"Copy-pasted pin name", "Digit common listed as a segment"}
	case errors.Is(err, sevseg.ErrNilPin):
		d.Code = "CONFIG.MISSING_PIN"
	case errors.Is(err, sevseg.ErrDwell):
		d.Code = "CONFIG.DWELL"
		d.SuggestedFixes = []string{"Use a dwell between 500 and 5000 microseconds"}
	}
	return d
}

// FromDecoder reports ghosting and slow passes seen on a simulated board.
func FromDecoder(st sim.Stats, period, limit time.Duration) []Diagnostic {
	var out []Diagnostic
	if st.Ghosts > 0 {
		out = append(out, Diagnostic{
			Severity: Err,
			Code:     "SCAN.GHOSTING",
			Summary:  "More than one digit was on at once",
			LikelyCauses: []string{
				"Another writer is driving the display pins",
				"Digit polarity does not match the hardware",
			},
			Evidence: map[string]any{"ghosts": st.Ghosts, "max_digits_on": st.MaxDigits},
		})
	}
	if limit > 0 && period > limit {
		out = append(out, Diagnostic{
			Severity:       Warn,
			Code:           "SCAN.FLICKER",
			Summary:        "Render pass slower than the flicker limit",
			SuggestedFixes: []string{"Lower dwell_us", "Use fewer digits"},
			Evidence:       map[string]any{"period_us": period.Microseconds(), "limit_us": limit.Microseconds()},
		})
	}
	return out
}

// FromFallback reports that the requested pin provider could not open and
// the simulator is standing in.
func FromFallback(driver string, err error) Diagnostic {
	return Diagnostic{
		Severity: Warn,
		Code:     "DRIVER.FALLBACK",
		Summary:  "Pin provider failed; running on the simulator",
		Detail:   err.Error(),
		LikelyCauses: []string{
			"Not running on the target board",
			"Missing permission on /dev/gpiochip* or /dev/mem",
		},
		Evidence: map[string]any{"driver": driver},
	}
}

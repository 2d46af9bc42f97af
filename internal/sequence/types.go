package sequence

// Step shows one value for a while.
type Step struct {
	Name      string  `json:"name,omitempty" yaml:"name,omitempty"`
	Value     int     `json:"value" yaml:"value"`
	Decimal   int     `json:"decimal,omitempty" yaml:"decimal,omitempty"`
	DurationS float64 `json:"durationS" yaml:"duration_s"`
}

// Program is an ordered playlist of steps.
type Program struct {
	Version string `json:"version" yaml:"version"` // e.g., "seq.v1"
	Loop    bool   `json:"loop,omitempty" yaml:"loop,omitempty"`
	Steps   []Step `json:"steps" yaml:"steps"`
}

// PlayerState enumerates sequencer states.
type PlayerState string

const (
	Idle    PlayerState = "idle"
	Running PlayerState = "running"
	Paused  PlayerState = "paused"
)

// Hooks are dependency-injected callbacks into the display.
type Hooks struct {
	// Show switches the display to a value.
	Show func(value, decimal int)
}

// Player owns the current Program timeline and uses Hooks to drive the display.
type Player struct {
	State PlayerState

	prog Program
	nowS float64 // position within the current step
	idx  int     // current step index

	hooks Hooks
}

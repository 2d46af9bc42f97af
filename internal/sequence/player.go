package sequence

import (
	"errors"
	"fmt"
	"sync"
)

// NewPlayer constructs a Player with provided hooks.
func NewPlayer(h Hooks) *Player {
	return &Player{
		State: Idle,
		hooks: h,
	}
}

// Load replaces the current program. Resets time and state to Idle.
func (p *Player) Load(prog Program) error {
	if len(prog.Steps) == 0 {
		return errors.New("program has no steps")
	}
	for i, s := range prog.Steps {
		if s.DurationS <= 0 {
			return fmt.Errorf("step %d (%s): duration must be positive", i, s.Name)
		}
	}
	p.prog = prog
	p.nowS = 0
	p.idx = 0
	p.State = Idle
	return nil
}

// Start moves to Running and shows the current step.
func (p *Player) Start() {
	if p.State == Running || len(p.prog.Steps) == 0 {
		return
	}
	p.State = Running
	p.show()
}

// Pause pauses playback.
func (p *Player) Pause() {
	if p.State == Running {
		p.State = Paused
	}
}

// Resume resumes playback.
func (p *Player) Resume() {
	if p.State == Paused {
		p.State = Running
	}
}

// Stop stops and resets to start.
func (p *Player) Stop() {
	p.State = Idle
	p.nowS = 0
	p.idx = 0
}

// Current returns the index of the active step.
func (p *Player) Current() int { return p.idx }

// Tick advances the sequencer by dt seconds, moving through as many steps
// as dt covers.
func (p *Player) Tick(dt float64) {
	if p.State != Running || dt <= 0 {
		return
	}
	p.nowS += dt
	for p.State == Running && p.nowS >= p.prog.Steps[p.idx].DurationS {
		p.nowS -= p.prog.Steps[p.idx].DurationS
		p.advance()
	}
}

func (p *Player) advance() {
	next := p.idx + 1
	if next >= len(p.prog.Steps) {
		if !p.prog.Loop {
			// End of program; the last value stays on the display.
			p.State = Idle
			p.nowS = 0
			return
		}
		next = 0
	}
	p.idx = next
	p.show()
}

func (p *Player) show() {
	s := p.prog.Steps[p.idx]
	if p.hooks.Show != nil {
		p.hooks.Show(s.Value, s.Decimal)
	}
}

// --- Lightweight synchronization helpers ---

type SafePlayer struct {
	mu sync.Mutex
	P  *Player
}

func NewSafePlayer(h Hooks) *SafePlayer {
	return &SafePlayer{P: NewPlayer(h)}
}

func (s *SafePlayer) With(f func(p *Player)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.P)
}

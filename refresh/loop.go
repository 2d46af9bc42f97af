// Package refresh keeps a multiplexed display lit by calling its render
// pass back to back from one goroutine.
package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/sevseg"
)

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("refresh: loop already running")

// FlickerLimit is the longest pass before the display visibly flickers.
const FlickerLimit = 16 * time.Millisecond

// Renderer is the part of *sevseg.Driver the loop needs.
type Renderer interface {
	RenderFrame(value, decimalPlace int) error
	RenderCells(f sevseg.Frame) error
	Blank() error
}

type content struct {
	value   int
	decimal int
	frame   sevseg.Frame
}

// Stats are counters since the loop started.
type Stats struct {
	Frames     uint64
	Errors     uint64
	LastPeriod time.Duration
	Value      int
	Decimal    int
}

// Loop renders the latest content until its context ends.
type Loop struct {
	r       Renderer
	current atomic.Pointer[content]
	frames  atomic.Uint64
	errors  atomic.Uint64
	period  atomic.Int64
	onPass  func(n uint64)
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
}

// New returns a loop that starts out showing 0.
func New(r Renderer) *Loop {
	l := &Loop{
		r:      r,
		logger: log.Sample(&zerolog.BurstSampler{Burst: 1, Period: 5 * time.Second}),
	}
	l.current.Store(&content{})
	return l
}

// OnPass registers f to run after every pass. Set it before Run.
func (l *Loop) OnPass(f func(n uint64)) { l.onPass = f }

// Show switches to a number. It is safe to call while Run is active.
func (l *Loop) Show(value, decimalPlace int) {
	l.current.Store(&content{value: value, decimal: decimalPlace})
}

// ShowFrame switches to a raw frame until the next Show.
func (l *Loop) ShowFrame(f sevseg.Frame) {
	c := *l.current.Load()
	c.frame = append(sevseg.Frame(nil), f...)
	l.current.Store(&c)
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	c := l.current.Load()
	return Stats{
		Frames:     l.frames.Load(),
		Errors:     l.errors.Load(),
		LastPeriod: time.Duration(l.period.Load()),
		Value:      c.value,
		Decimal:    c.decimal,
	}
}

// Current returns what the loop is showing, laid out over n positions.
func (l *Loop) Current(n int) sevseg.Frame {
	c := l.current.Load()
	if c.frame != nil {
		return append(sevseg.Frame(nil), c.frame...)
	}
	return sevseg.Compose(c.value, c.decimal, n)
}

// Run renders until ctx is done, then blanks the display. Only one Run may
// be active per loop.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	warned := false
	for {
		select {
		case <-ctx.Done():
			return l.r.Blank()
		default:
		}

		t := time.Now()
		c := l.current.Load()
		var err error
		if c.frame != nil {
			err = l.r.RenderCells(c.frame)
		} else {
			err = l.r.RenderFrame(c.value, c.decimal)
		}
		d := time.Since(t)
		l.period.Store(int64(d))
		n := l.frames.Add(1)

		if err != nil {
			l.errors.Add(1)
			l.logger.Error().Err(err).Int("value", c.value).Msg("render pass failed")
		}
		if d > FlickerLimit && !warned {
			warned = true
			log.Warn().Dur("period", d).Dur("limit", FlickerLimit).Msg("render pass too slow, display will flicker")
		}
		if l.onPass != nil {
			l.onPass(n)
		}
	}
}

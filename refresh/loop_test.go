package refresh_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/sevseg"
	. "github.com/coreman2200/sevseg/refresh"
	"github.com/coreman2200/sevseg/sim"
)

type fakeRenderer struct {
	mu      sync.Mutex
	values  []int
	frames  []string
	blanked int
	fail    error
}

func (f *fakeRenderer) RenderFrame(value, decimalPlace int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = append(f.values, value)
	return f.fail
}

func (f *fakeRenderer) RenderCells(fr sevseg.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr.String())
	return f.fail
}

func (f *fakeRenderer) Blank() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blanked++
	return nil
}

func runPasses(t *testing.T, l *Loop, n uint64) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	l.OnPass(func(i uint64) {
		if i >= n {
			cancel()
		}
	})
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopRendersLatestValueAndBlanks(t *testing.T) {
	f := &fakeRenderer{}
	l := New(f)
	l.Show(42, 1)
	runPasses(t, l, 3)

	assert.Equal(t, []int{42, 42, 42}, f.values)
	assert.Equal(t, 1, f.blanked)
	st := l.Stats()
	assert.Equal(t, uint64(3), st.Frames)
	assert.Zero(t, st.Errors)
	assert.Equal(t, 42, st.Value)
	assert.Equal(t, 1, st.Decimal)
}

func TestLoopShowFrameUntilShow(t *testing.T) {
	f := &fakeRenderer{}
	l := New(f)
	l.ShowFrame(sevseg.Dashes(2))
	runPasses(t, l, 2)
	assert.Equal(t, []string{"--", "--"}, f.frames)
	assert.Empty(t, f.values)

	l.Show(7, 0)
	runPasses(t, l, 3)
	assert.Equal(t, []int{7}, f.values)
}

func TestLoopCountsErrors(t *testing.T) {
	f := &fakeRenderer{fail: errors.New("pin gone")}
	l := New(f)
	runPasses(t, l, 4)
	assert.Equal(t, uint64(4), l.Stats().Errors)
}

func TestLoopSingleRun(t *testing.T) {
	f := &fakeRenderer{}
	l := New(f)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var once sync.Once
	l.OnPass(func(uint64) { once.Do(func() { close(started) }) })
	go func() { _ = l.Run(ctx) }()
	<-started
	assert.ErrorIs(t, l.Run(ctx), ErrAlreadyRunning)
	cancel()
}

func TestLoopDrivesRealDriver(t *testing.T) {
	b := sim.NewBoard()
	b.KeepEvents(0)
	w := sim.DefaultWiring(4, sevseg.CommonCathode.Levels(false))
	dec := sim.Attach(b, w)
	digits, segments := w.Pins(b)
	d, err := sevseg.New(sevseg.Config{Waiter: b}, digits, segments)
	require.NoError(t, err)

	l := New(d)
	l.Show(-42, 3)
	runPasses(t, l, 10)

	assert.Equal(t, " -4.2", dec.Text())
	assert.Zero(t, dec.Stats().Ghosts)
	for _, n := range w.Digits {
		lv, _ := b.Level(n)
		assert.Equal(t, w.Levels.DigitOff, lv)
	}
}

func TestLoopCurrent(t *testing.T) {
	l := New(&fakeRenderer{})
	assert.Equal(t, "   0", l.Current(4).String())
	l.Show(1022, 2)
	assert.Equal(t, "10.22", l.Current(4).String())
	l.ShowFrame(sevseg.Frame{{Glyph: sevseg.Digit8, Point: true}})
	assert.Equal(t, "8.", l.Current(4).String())
}

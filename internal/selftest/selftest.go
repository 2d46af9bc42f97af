package selftest

import "github.com/coreman2200/sevseg"

type Kind string

const (
	None       Kind = ""
	DigitSweep Kind = "digit_sweep"
	GlyphCycle Kind = "glyph_cycle"
	Count      Kind = "count"
	Dashes     Kind = "dashes"
)

// Kinds lists the runnable tests.
func Kinds() []Kind { return []Kind{DigitSweep, GlyphCycle, Count, Dashes} }

// ParseKind returns the kind named s, or false.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, true
		}
	}
	return None, false
}

type Plan struct{ Kind Kind }

type Runner struct {
	plan Plan
	step int
}

func NewRunner(plan Plan) *Runner { return &Runner{plan: plan} }
func (r *Runner) Kind() Kind      { return r.plan.Kind }

// Step returns the next frame for a display of n digits; false when complete.
func (r *Runner) Step(n int) (sevseg.Frame, bool) {
	if n < 1 {
		return nil, false
	}
	f := make(sevseg.Frame, n)
	for i := range f {
		f[i] = sevseg.Cell{Glyph: sevseg.Blank}
	}

	switch r.plan.Kind {
	case DigitSweep:
		if r.step >= n {
			return nil, false
		}
		f[r.step] = sevseg.Cell{Glyph: sevseg.Digit8, Point: true}
	case GlyphCycle:
		glyphs := sevseg.Glyphs()
		if r.step >= len(glyphs) {
			return nil, false
		}
		for i := range f {
			f[i].Glyph = glyphs[r.step]
		}
	case Count:
		_, hi := sevseg.Range(n)
		if r.step > hi {
			return nil, false
		}
		f = sevseg.Compose(r.step, 0, n)
	case Dashes:
		if r.step > 0 {
			return nil, false
		}
		f = sevseg.Dashes(n)
	default:
		return nil, false
	}
	r.step++
	return f, true
}

package predict

import (
	"math"
	"time"
)

// OneEuro is an adaptive low-pass filter for one scalar channel. Its
// cutoff rises with the signal's speed, so fast motion passes with little
// lag while slow jitter is smoothed heavily.
//
// The first sample initializes the filter and passes through unchanged.
type OneEuro struct {
	cfg  FilterConfig
	freq float64

	initialized bool
	x           float64
	dx          float64
	last        time.Time
}

// NewOneEuro creates a filter.
func NewOneEuro(cfg FilterConfig) *OneEuro {
	return &OneEuro{cfg: cfg, freq: cfg.Frequency}
}

// Filter feeds one sample taken at ts and returns the filtered value.
// Timestamps that do not advance reuse the last known frequency.
func (f *OneEuro) Filter(x float64, ts time.Time) float64 {
	if !f.initialized {
		f.initialized = true
		f.x = x
		f.dx = 0
		f.last = ts
		return x
	}

	if dt := ts.Sub(f.last).Seconds(); dt > 0 {
		f.freq = 1 / dt
	}
	f.last = ts

	rawDx := (x - f.x) * f.freq
	f.dx = lowPass(f.dx, rawDx, alpha(f.cfg.DerivativeCutoff, f.freq))

	cutoff := f.cfg.MinCutoff + f.cfg.Beta*math.Abs(f.dx)
	f.x = lowPass(f.x, x, alpha(cutoff, f.freq))
	return f.x
}

// Value returns the last filtered value.
func (f *OneEuro) Value() (float64, bool) { return f.x, f.initialized }

// Reset forgets all state; the next sample passes through.
func (f *OneEuro) Reset() {
	f.initialized = false
	f.freq = f.cfg.Frequency
	f.x, f.dx = 0, 0
}

func alpha(cutoff, freq float64) float64 {
	tau := 1 / (2 * math.Pi * cutoff)
	te := 1 / freq
	return 1 / (1 + tau/te)
}

func lowPass(prev, x, a float64) float64 {
	return a*x + (1-a)*prev
}

// vectorFilter filters each axis of a vector independently.
type vectorFilter [3]*OneEuro

func newVectorFilter(cfg FilterConfig) vectorFilter {
	return vectorFilter{NewOneEuro(cfg), NewOneEuro(cfg), NewOneEuro(cfg)}
}

func (vf vectorFilter) filter(x, y, z float64, ts time.Time) (float64, float64, float64) {
	return vf[0].Filter(x, ts), vf[1].Filter(y, ts), vf[2].Filter(z, ts)
}

func (vf vectorFilter) reset() {
	for _, f := range vf {
		f.Reset()
	}
}

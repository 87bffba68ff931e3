package playback

import "math"

// detuneWindow is the length of the modulated delay line.
const detuneWindow = 0.04 // seconds

// Detuner shifts pitch by a number of cents without changing duration. It
// reads a short delay line through two taps whose delay sweeps at the rate
// implied by the pitch ratio; the taps are half a window apart and
// crossfaded with complementary sin² gains so one is silent whenever the
// other wraps.
type Detuner struct {
	window  float64
	history []float32
	write   int
	phase   float64
	ratio   float64
}

// NewDetuner returns a bypassed detuner for audio at sampleRate.
func NewDetuner(sampleRate int) *Detuner {
	window := math.Max(8, math.Round(detuneWindow*float64(sampleRate)))

	return &Detuner{
		window:  window,
		history: make([]float32, int(window)+4),
		ratio:   1,
	}
}

// SetCents sets the shift in cents. Zero bypasses the shifter.
func (d *Detuner) SetCents(cents float64) {
	d.ratio = math.Pow(2, cents/1200)
}

// Process shifts buf in place.
func (d *Detuner) Process(buf []float32) {
	n := len(d.history)
	bypass := d.ratio == 1
	step := (1 - d.ratio) / d.window

	for i, x := range buf {
		d.history[d.write] = x

		if !bypass {
			p1 := d.phase
			p2 := math.Mod(p1+0.5, 1)
			g1 := math.Sin(math.Pi * p1)
			g2 := math.Sin(math.Pi * p2)

			y := g1*g1*d.tap(p1*d.window) + g2*g2*d.tap(p2*d.window)
			buf[i] = float32(y)

			d.phase += step
			d.phase -= math.Floor(d.phase)
		}

		d.write++
		if d.write == n {
			d.write = 0
		}
	}
}

// tap reads the delay line delay frames behind the newest sample.
func (d *Detuner) tap(delay float64) float64 {
	n := len(d.history)
	pos := float64(d.write) - delay
	for pos < 0 {
		pos += float64(n)
	}

	i0 := int(pos)
	frac := pos - float64(i0)
	i0 %= n
	i1 := (i0 + 1) % n

	return float64(d.history[i0])*(1-frac) + float64(d.history[i1])*frac
}

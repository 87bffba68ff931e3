package render

import "math"

// Resampler reads planar input at a fractional position using linear
// interpolation. The position advances by ratio input frames per output
// frame and carries over between calls, so the ratio may change between
// chunks without discontinuity.
type Resampler struct {
	ratio    float64
	position float64
}

// NewResampler creates a resampler that consumes ratio input frames per
// output frame.
func NewResampler(ratio float64) *Resampler {
	return &Resampler{ratio: ratio}
}

// SetRatio changes the step used by subsequent calls.
func (r *Resampler) SetRatio(ratio float64) { r.ratio = ratio }

// Exhausted reports whether the read head is past the last of n input frames.
func (r *Resampler) Exhausted(n int) bool {
	return r.position >= float64(n)
}

// ProcessFrames fills len(outputs[0]) frames of every output channel from
// the matching input channel, sharing one read head. Input channels must
// have equal length. Positions past the end of input produce silence. It
// returns the number of output frames that fell inside the input.
func (r *Resampler) ProcessFrames(inputs, outputs [][]float32) int {
	if len(outputs) == 0 {
		return 0
	}

	start := r.position
	n := len(outputs[0])
	inFrames := 0
	if len(inputs) > 0 {
		inFrames = len(inputs[0])
	}

	live := 0
	for i := range n {
		pos := start + float64(i)*r.ratio
		idx := int(math.Floor(pos))
		if idx >= inFrames || idx < 0 {
			for c := range outputs {
				outputs[c][i] = 0
			}
			continue
		}

		live++
		frac := float32(pos - float64(idx))
		for c := range outputs {
			in := inputs[c]
			s0 := in[idx]
			if frac == 0 {
				outputs[c][i] = s0
				continue
			}

			var s1 float32
			if idx+1 < inFrames {
				s1 = in[idx+1]
			}
			outputs[c][i] = s0 + (s1-s0)*frac
		}
	}

	r.position = start + float64(n)*r.ratio

	return live
}

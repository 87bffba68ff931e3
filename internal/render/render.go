// Package render bakes speed and pitch into a new buffer.
//
// The live player treats speed and pitch as separate playback parameters.
// Offline rendering folds both into one resampling rate,
//
//	effectiveRate = speed * 2^(pitchCents/1200)
//
// and resamples the source deterministically at that rate, so the result
// played at unit speed sounds like the transformed preview.
package render

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/go-voicebake/internal/audio"
)

// ErrInvalidDuration is returned when the requested transform would yield a
// non-finite or non-positive output length.
var ErrInvalidDuration = errors.New("invalid target duration")

// frameEpsilon absorbs floating-point noise in the frame count so that an
// exact duration like 0.5 s at 24 kHz does not round up to an extra frame.
const frameEpsilon = 1e-9

// Request describes one offline render.
type Request struct {
	Source     *audio.Buffer
	Speed      float64
	PitchCents float64
}

// EffectiveRate returns the combined playback-rate multiplier.
func (r Request) EffectiveRate() float64 {
	return r.Speed * math.Pow(2, r.PitchCents/1200)
}

// TargetDuration returns the output length in seconds.
func (r Request) TargetDuration() float64 {
	return r.Source.Duration() / r.EffectiveRate()
}

// Validate checks that the request can produce a buffer.
func (r Request) Validate() error {
	if err := r.Source.Validate(); err != nil {
		return fmt.Errorf("render source: %w", err)
	}

	d := r.TargetDuration()
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return fmt.Errorf("%w: %v s (speed %v, pitch %v cents)", ErrInvalidDuration, d, r.Speed, r.PitchCents)
	}

	return nil
}

// FrameCount returns the number of frames Render will produce.
func (r Request) FrameCount() int {
	return int(math.Ceil(float64(r.Source.SampleRate())*r.TargetDuration() - frameEpsilon))
}

// Render produces a new buffer at the source sample rate and channel count
// whose samples carry the speed/pitch transform.
func Render(req Request) (*audio.Buffer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	frames := req.FrameCount()
	if frames <= 0 {
		return nil, fmt.Errorf("%w: %d frames", ErrInvalidDuration, frames)
	}

	src := req.Source
	in := make([][]float32, src.ChannelCount())
	out := make([][]float32, src.ChannelCount())
	for c := range out {
		in[c] = src.Channel(c)
		out[c] = make([]float32, frames)
	}
	NewResampler(req.EffectiveRate()).ProcessFrames(in, out)

	return audio.NewBuffer(src.SampleRate(), out)
}

// Package audio holds the in-memory speech buffer and its PCM/WAV codecs.
package audio

import (
	"errors"
	"fmt"
)

// Defaults for speech delivered by the upstream TTS service.
const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	BitDepth          = 16
)

// ErrInvalidFormat is returned when a sample rate or channel layout is unusable.
var ErrInvalidFormat = errors.New("invalid audio format")

// Buffer is a planar block of normalized float samples.
//
// A Buffer is never modified after construction. Renderers and encoders read
// from it and allocate their own output.
type Buffer struct {
	sampleRate int
	channels   [][]float32
}

// NewBuffer copies channels into a new Buffer. Every channel must have the
// same length.
func NewBuffer(sampleRate int, channels [][]float32) (*Buffer, error) {
	cp := make([][]float32, len(channels))
	for i, ch := range channels {
		cp[i] = append([]float32(nil), ch...)
	}

	return wrap(sampleRate, cp)
}

// wrap takes ownership of channels without copying.
func wrap(sampleRate int, channels [][]float32) (*Buffer, error) {
	b := &Buffer{sampleRate: sampleRate, channels: channels}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	return b, nil
}

// Validate reports whether the buffer satisfies its shape invariants.
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidFormat)
	}
	if b.sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, b.sampleRate)
	}
	if len(b.channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrInvalidFormat)
	}
	n := len(b.channels[0])
	for i, ch := range b.channels[1:] {
		if len(ch) != n {
			return fmt.Errorf("%w: channel %d has %d frames, want %d", ErrInvalidFormat, i+1, len(ch), n)
		}
	}

	return nil
}

func (b *Buffer) SampleRate() int   { return b.sampleRate }
func (b *Buffer) ChannelCount() int { return len(b.channels) }

// FrameCount is the number of samples in each channel.
func (b *Buffer) FrameCount() int {
	if len(b.channels) == 0 {
		return 0
	}

	return len(b.channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(b.FrameCount()) / float64(b.sampleRate)
}

// Channel returns the samples of channel i. Callers must not modify the
// returned slice.
func (b *Buffer) Channel(i int) []float32 {
	return b.channels[i]
}


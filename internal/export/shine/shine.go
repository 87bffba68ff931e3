// Package shine provides a pure-Go MP3 backend built on the shine
// fixed-point encoder.
package shine

import (
	"bytes"
	"fmt"

	"github.com/braheezy/shine-mp3/pkg/mp3"

	"github.com/example/go-voicebake/internal/export"
)

// Bitrate is the only bitrate the shine encoder is configured for.
const Bitrate = 128

// Backend implements export.MP3Backend.
type Backend struct{}

// New returns the shine backend.
func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return "shine" }

// NewStream opens an encoder for one file.
func (*Backend) NewStream(sampleRate, channels, kbps int) (export.MP3Stream, error) {
	if kbps != Bitrate {
		return nil, fmt.Errorf("shine: unsupported bitrate %d kbps (only %d)", kbps, Bitrate)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("shine: unsupported channel count %d", channels)
	}
	if !SupportedSampleRate(sampleRate) {
		return nil, fmt.Errorf("shine: unsupported sample rate %d Hz", sampleRate)
	}

	return newStream(sampleRate, channels), nil
}

// SupportedSampleRate reports whether MPEG-1/2/2.5 layer III defines rate.
func SupportedSampleRate(rate int) bool {
	switch rate {
	case 8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000:
		return true
	}

	return false
}

type stream struct {
	enc      *mp3.Encoder
	channels int
	// frameSamples is one encoder frame of interleaved samples.
	frameSamples int
	pending      []int16
	out          bytes.Buffer
}

func newStream(sampleRate, channels int) *stream {
	enc := mp3.NewEncoder(sampleRate, channels)
	perChannel := int(enc.Mpeg.GranulesPerFrame) * mp3.GRANULE_SIZE

	return &stream{
		enc:          enc,
		channels:     channels,
		frameSamples: perChannel * channels,
	}
}

// EncodeBlock queues one block and encodes every whole frame now available.
// Samples short of a frame wait for the next block or for Flush.
func (s *stream) EncodeBlock(left, right []int16) ([]byte, error) {
	if s.channels == 2 {
		if len(right) != len(left) {
			return nil, fmt.Errorf("shine: channel length mismatch %d != %d", len(left), len(right))
		}
		for i := range left {
			s.pending = append(s.pending, left[i], right[i])
		}
	} else {
		s.pending = append(s.pending, left...)
	}

	s.out.Reset()
	n := 0
	for ; n+s.frameSamples <= len(s.pending); n += s.frameSamples {
		if err := s.writeFrame(s.pending[n : n+s.frameSamples]); err != nil {
			return nil, err
		}
	}
	s.pending = append(s.pending[:0], s.pending[n:]...)

	return append([]byte(nil), s.out.Bytes()...), nil
}

// Flush zero-pads the queued samples to a whole frame and encodes it.
func (s *stream) Flush() ([]byte, error) {
	if len(s.pending) == 0 {
		return nil, nil
	}

	frame := make([]int16, s.frameSamples)
	copy(frame, s.pending)
	s.pending = s.pending[:0]

	s.out.Reset()
	if err := s.writeFrame(frame); err != nil {
		return nil, err
	}

	return append([]byte(nil), s.out.Bytes()...), nil
}

// writeFrame hands the encoder exactly one frame. The encoder reads a full
// frame from the first sample regardless of slice length.
func (s *stream) writeFrame(frame []int16) error {
	if err := s.enc.Write(&s.out, frame); err != nil {
		return fmt.Errorf("shine: %w", err)
	}

	return nil
}

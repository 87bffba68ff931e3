package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// ErrFormatMismatch is returned when a decoded WAV is not 16-bit PCM.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// DecodeWAV decodes 16-bit PCM WAV bytes into a Buffer. Sample rate and
// channel count are taken from the file header.
func DecodeWAV(data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("empty WAV input")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	if dec.BitDepth != BitDepth {
		return nil, fmt.Errorf("%w: bit depth %d, want %d", ErrFormatMismatch, dec.BitDepth, BitDepth)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	return FromFloat32Buffer(&goaudio.Float32Buffer{
		Data:           pcm.Data,
		Format:         &goaudio.Format{SampleRate: int(dec.SampleRate), NumChannels: int(dec.NumChans)},
		SourceBitDepth: BitDepth,
	})
}

// FromFloat32Buffer de-interleaves a go-audio float buffer.
func FromFloat32Buffer(fb *goaudio.Float32Buffer) (*Buffer, error) {
	if fb == nil || fb.Format == nil {
		return nil, fmt.Errorf("%w: missing format", ErrInvalidFormat)
	}

	channels := fb.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count %d", ErrInvalidFormat, channels)
	}

	frames := len(fb.Data) / channels
	if frames == 0 {
		return nil, ErrEmptyPayload
	}

	planar := make([][]float32, channels)
	for c := range planar {
		planar[c] = make([]float32, frames)
		for i := range frames {
			planar[c][i] = fb.Data[i*channels+c]
		}
	}

	return wrap(fb.Format.SampleRate, planar)
}

package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedBase64 is returned when the upstream payload is not valid base64.
	ErrMalformedBase64 = errors.New("malformed base64 payload")
	// ErrEmptyPayload is returned when a payload decodes to zero whole frames.
	ErrEmptyPayload = errors.New("empty PCM payload")
)

// DecodeBase64 decodes a standard base64 payload to raw bytes.
func DecodeBase64(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBase64, err)
	}

	return raw, nil
}

// FromPCM16 reinterprets b as interleaved little-endian signed 16-bit PCM
// and returns it as a normalized Buffer. Trailing bytes that do not form a
// whole frame are dropped.
func FromPCM16(b []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count %d", ErrInvalidFormat, channels)
	}

	frames := (len(b) / 2) / channels
	if frames == 0 {
		return nil, ErrEmptyPayload
	}

	planar := make([][]float32, channels)
	for c := range planar {
		planar[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range channels {
			off := (i*channels + c) * 2
			v := int16(binary.LittleEndian.Uint16(b[off:]))
			planar[c][i] = float32(v) / 32768.0
		}
	}

	return wrap(sampleRate, planar)
}

// DecodePCMBase64 decodes a base64 PCM16 payload straight into a Buffer.
func DecodePCMBase64(s string, sampleRate, channels int) (*Buffer, error) {
	raw, err := DecodeBase64(s)
	if err != nil {
		return nil, err
	}

	return FromPCM16(raw, sampleRate, channels)
}

// FloatToPCM16 clamps s to [-1, 1] and scales it to int16. Negative values
// use 32768 and non-negative values 32767 so both extremes are reachable.
func FloatToPCM16(s float32) int16 {
	v := float64(s)
	switch {
	case v < -1:
		v = -1
	case v > 1:
		v = 1
	case v != v: // NaN
		v = 0
	}
	if v < 0 {
		return int16(v * 32768)
	}

	return int16(v * 32767)
}

// ToPCM16 converts a channel slice with FloatToPCM16.
func ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = FloatToPCM16(s)
	}

	return out
}

// Package testutil provides signal generators and WAV assertions shared by
// package tests.
package testutil

import (
	"encoding/binary"
	"errors"
	"testing"
)

// WAVFormat is the format a WAV fixture is expected to carry.
type WAVFormat struct {
	SampleRate int
	Channels   int
}

// AssertValidWAV checks that data is a 16-bit PCM WAV with the expected
// format and a data chunk whose size matches the file length.
func AssertValidWAV(tb testing.TB, data []byte, want WAVFormat) {
	tb.Helper()

	if len(data) < 44 {
		tb.Fatalf("WAV data too short: %d bytes", len(data))
	}

	if string(data[0:4]) != "RIFF" {
		tb.Fatalf("WAV: missing RIFF header (got %q)", string(data[0:4]))
	}

	if riff := binary.LittleEndian.Uint32(data[4:8]); int(riff) != len(data)-8 {
		tb.Fatalf("WAV: RIFF size %d, want %d", riff, len(data)-8)
	}

	if string(data[8:12]) != "WAVE" {
		tb.Fatalf("WAV: missing WAVE marker (got %q)", string(data[8:12]))
	}

	if string(data[12:16]) != "fmt " {
		tb.Fatalf("WAV: missing fmt chunk (got %q)", string(data[12:16]))
	}

	audioFmt := binary.LittleEndian.Uint16(data[20:22])
	if audioFmt != 1 {
		tb.Fatalf("WAV: expected PCM format (1), got %d", audioFmt)
	}

	channels := binary.LittleEndian.Uint16(data[22:24])
	if int(channels) != want.Channels {
		tb.Fatalf("WAV: expected %d channel(s), got %d", want.Channels, channels)
	}

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	if int(sampleRate) != want.SampleRate {
		tb.Fatalf("WAV: expected sample rate %d, got %d", want.SampleRate, sampleRate)
	}

	if byteRate := binary.LittleEndian.Uint32(data[28:32]); int(byteRate) != want.SampleRate*want.Channels*2 {
		tb.Fatalf("WAV: byte rate %d, want %d", byteRate, want.SampleRate*want.Channels*2)
	}

	if blockAlign := binary.LittleEndian.Uint16(data[32:34]); int(blockAlign) != want.Channels*2 {
		tb.Fatalf("WAV: block align %d, want %d", blockAlign, want.Channels*2)
	}

	bitDepth := binary.LittleEndian.Uint16(data[34:36])
	if bitDepth != 16 {
		tb.Fatalf("WAV: expected 16-bit depth, got %d", bitDepth)
	}

	payload, err := DataChunk(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	if len(payload)%(want.Channels*2) != 0 {
		tb.Fatalf("WAV: data chunk of %d bytes is not frame aligned", len(payload))
	}
}

// DataChunk walks the WAV chunk list and returns the payload of the "data"
// sub-chunk.
func DataChunk(data []byte) ([]byte, error) {
	// Start after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])

		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		if id == "data" {
			end := offset + 8 + size
			if end > len(data) {
				return nil, errors.New("data chunk truncated")
			}

			return data[offset+8 : end], nil
		}

		offset += 8 + size
		// Pad to even boundary.
		if size%2 != 0 {
			offset++
		}
	}

	return nil, errors.New("data chunk not found in WAV")
}

package doctor

import (
	"bytes"
	"fmt"
	"io"
	"math"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/example/go-voicebake/internal/audio"
	"github.com/example/go-voicebake/internal/export"
	"github.com/example/go-voicebake/internal/playback"
)

// DeviceProbe opens dev at the given format and releases it again.
func DeviceProbe(name string, dev playback.Device, sampleRate, channels int) ProbeFunc {
	return func() (string, error) {
		sink, err := dev.Open(sampleRate, channels)
		if err != nil {
			return "", err
		}
		if err := sink.Close(); err != nil {
			return "", fmt.Errorf("close: %w", err)
		}

		return fmt.Sprintf("%s opened at %d Hz/%d ch", name, sampleRate, channels), nil
	}
}

// MP3Probe encodes a quarter second tone at the configured format with
// backend and decodes it again. The decoded length must match the input to
// within one MP3 frame.
func MP3Probe(backend export.MP3Backend, sampleRate, channels int) ProbeFunc {
	return func() (string, error) {
		frames := sampleRate / 4

		planar := make([][]float32, channels)
		for c := range planar {
			planar[c] = make([]float32, frames)
			for i := range planar[c] {
				planar[c][i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
			}
		}

		buf, err := audio.NewBuffer(sampleRate, planar)
		if err != nil {
			return "", err
		}

		data, err := export.EncodeMP3(backend, buf)
		if err != nil {
			return "", fmt.Errorf("encode: %w", err)
		}

		dec, err := gomp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("decode: %w", err)
		}

		pcm, err := io.ReadAll(dec)
		if err != nil {
			return "", fmt.Errorf("decode: %w", err)
		}

		// go-mp3 yields 16-bit stereo.
		decoded := len(pcm) / 4
		if d := decoded - frames; d < 0 || d > export.MP3BlockFrames {
			return "", fmt.Errorf("decoded %d frames from %d input frames", decoded, frames)
		}

		return fmt.Sprintf("%s, %d bytes for %d frames at %d Hz/%d ch, %d kbps",
			backend.Name(), len(data), frames, sampleRate, channels, export.MP3Bitrate), nil
	}
}

package export

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/example/go-voicebake/internal/audio"
)

// ErrBackendUnavailable is returned when MP3 encoding is requested without a
// codec backend.
var ErrBackendUnavailable = errors.New("mp3 backend unavailable")

const (
	// MP3Bitrate is the constant bitrate in kbps used for every export.
	MP3Bitrate = 128
	// MP3BlockFrames is the number of frames per channel fed to the codec at once.
	MP3BlockFrames = 1152
)

// MP3Backend opens encoder streams. Implementations wrap a concrete codec.
type MP3Backend interface {
	Name() string
	NewStream(sampleRate, channels, kbps int) (MP3Stream, error)
}

// MP3Stream encodes one file. EncodeBlock receives at most MP3BlockFrames
// samples per channel; right is nil for mono input. Chunks returned by
// EncodeBlock and Flush concatenate to the complete file.
type MP3Stream interface {
	EncodeBlock(left, right []int16) ([]byte, error)
	Flush() ([]byte, error)
}

// EncodeMP3 encodes buf at MP3Bitrate through backend.
func EncodeMP3(backend MP3Backend, buf *audio.Buffer) ([]byte, error) {
	if backend == nil {
		return nil, ErrBackendUnavailable
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	channels := buf.ChannelCount()
	if channels > 2 {
		return nil, fmt.Errorf("%w: mp3 supports 1 or 2 channels, got %d", audio.ErrInvalidFormat, channels)
	}

	stream, err := backend.NewStream(buf.SampleRate(), channels, MP3Bitrate)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", backend.Name(), err)
	}

	left := audio.ToPCM16(buf.Channel(0))
	var right []int16
	if channels == 2 {
		right = audio.ToPCM16(buf.Channel(1))
	}

	var out bytes.Buffer
	for start := 0; start < len(left); start += MP3BlockFrames {
		end := min(start+MP3BlockFrames, len(left))

		var r []int16
		if right != nil {
			r = right[start:end]
		}

		chunk, err := stream.EncodeBlock(left[start:end], r)
		if err != nil {
			return nil, fmt.Errorf("encode block at frame %d: %w", start, err)
		}
		out.Write(chunk)
	}

	tail, err := stream.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush %s stream: %w", backend.Name(), err)
	}
	out.Write(tail)

	return out.Bytes(), nil
}

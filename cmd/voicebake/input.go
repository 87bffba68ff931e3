package main

import (
	"fmt"
	"io"
	"os"

	"github.com/example/go-voicebake/internal/audio"
	"github.com/example/go-voicebake/internal/config"
)

// readInput loads speech from path ("-" for stdin). The payload is base64
// PCM in the configured format unless isWAV is set.
func readInput(path string, isWAV bool, stdin io.Reader, cfg config.Config) (*audio.Buffer, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if isWAV {
		return audio.DecodeWAV(data)
	}

	return audio.DecodePCMBase64(string(data), cfg.Audio.SampleRate, cfg.Audio.Channels)
}

package export

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrUnknownFormat is returned for output formats other than wav and mp3.
var ErrUnknownFormat = errors.New("unknown output format")

// Format selects the container of an exported file.
type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// ParseFormat normalizes a user supplied format name. An empty string
// selects WAV.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "wav", "wave":
		return FormatWAV, nil
	case "mp3", "mpeg":
		return FormatMP3, nil
	default:
		return "", fmt.Errorf("%w %q (expected wav|mp3)", ErrUnknownFormat, raw)
	}
}

// MIMEType returns the content type served for f.
func (f Format) MIMEType() string {
	if f == FormatMP3 {
		return "audio/mp3"
	}

	return "audio/wav"
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == FormatMP3 {
		return ".mp3"
	}

	return ".wav"
}

// FallbackName is used when the source text has no usable characters.
const FallbackName = "speech"

// namePrefixRunes bounds how much of the source text ends up in a file name.
const namePrefixRunes = 30

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// FileName derives a download name from the source text: the first
// characters are lowercased, runs of other characters collapse to a single
// underscore, and the extension of f is appended.
func FileName(text string, f Format) string {
	prefix := text
	if utf8.RuneCountInString(prefix) > namePrefixRunes {
		prefix = string([]rune(prefix)[:namePrefixRunes])
	}

	name := nonAlnum.ReplaceAllString(strings.ToLower(prefix), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = FallbackName
	}

	return name + f.Extension()
}

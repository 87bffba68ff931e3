// Package export turns a decoded speech buffer into a downloadable file with
// speed and pitch baked in.
//
// WAV is always available. MP3 needs an MP3Backend; when none is configured
// an MP3 request is served as WAV instead, and the returned File says so.
package export

import (
	"fmt"
	"log/slog"

	"github.com/example/go-voicebake/internal/audio"
	"github.com/example/go-voicebake/internal/render"
)

// Request is a render request plus the output container and the text the
// speech was generated from.
type Request struct {
	render.Request

	Format Format
	Text   string
}

// File is an encoded export ready to be saved.
type File struct {
	Data     []byte
	MIMEType string
	FileName string
	Format   Format
	Frames   int
}

// Encoder serializes a rendered buffer into one container format.
type Encoder interface {
	Format() Format
	Encode(buf *audio.Buffer) ([]byte, error)
}

type wavEncoder struct{}

func (wavEncoder) Format() Format { return FormatWAV }

func (wavEncoder) Encode(buf *audio.Buffer) ([]byte, error) {
	return audio.EncodeWAV(buf), nil
}

type mp3Encoder struct {
	backend MP3Backend
}

func (mp3Encoder) Format() Format { return FormatMP3 }

func (m mp3Encoder) Encode(buf *audio.Buffer) ([]byte, error) {
	return EncodeMP3(m.backend, buf)
}

// Exporter renders and encodes speech buffers.
type Exporter struct {
	mp3 MP3Backend
	log *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithMP3 installs an MP3 codec backend. A nil backend leaves MP3 disabled.
func WithMP3(b MP3Backend) Option {
	return func(e *Exporter) { e.mp3 = b }
}

// WithLogger sets the logger used for fallback and export messages.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) { e.log = l }
}

// New returns an Exporter. Without WithMP3 only WAV output is produced.
func New(opts ...Option) *Exporter {
	e := &Exporter{log: slog.Default()}
	for _, fn := range opts {
		fn(e)
	}

	return e
}

// MP3Available reports whether an MP3 backend is installed.
func (e *Exporter) MP3Available() bool { return e.mp3 != nil }

// Formats lists the formats that are encoded natively.
func (e *Exporter) Formats() []Format {
	if e.MP3Available() {
		return []Format{FormatWAV, FormatMP3}
	}

	return []Format{FormatWAV}
}

// EncoderFor returns the encoder used for f, falling back to WAV when the
// MP3 backend is missing.
func (e *Exporter) EncoderFor(f Format) Encoder {
	if f == FormatMP3 && e.mp3 != nil {
		return mp3Encoder{backend: e.mp3}
	}

	return wavEncoder{}
}

// Export validates req, renders the transform, and encodes the result.
// Validation failures are reported before any encoding work starts.
func (e *Exporter) Export(req Request) (File, error) {
	format := req.Format
	if format == "" {
		format = FormatWAV
	}
	if format != FormatWAV && format != FormatMP3 {
		return File{}, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}

	if err := req.Validate(); err != nil {
		return File{}, err
	}

	rendered, err := render.Render(req.Request)
	if err != nil {
		return File{}, err
	}

	enc := e.EncoderFor(format)
	if enc.Format() != format {
		e.log.Warn("mp3 backend unavailable, exporting wav",
			slog.String("requested", string(format)),
		)
	}

	data, err := enc.Encode(rendered)
	if err != nil {
		return File{}, fmt.Errorf("encode %s: %w", enc.Format(), err)
	}

	e.log.Debug("export complete",
		slog.String("format", string(enc.Format())),
		slog.Float64("speed", req.Speed),
		slog.Float64("pitch_cents", req.PitchCents),
		slog.Int("frames", rendered.FrameCount()),
		slog.Int("bytes", len(data)),
	)

	return File{
		Data:     data,
		MIMEType: enc.Format().MIMEType(),
		FileName: FileName(req.Text, enc.Format()),
		Format:   enc.Format(),
		Frames:   rendered.FrameCount(),
	}, nil
}

package export_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/example/go-voicebake/internal/audio"
	"github.com/example/go-voicebake/internal/export"
	"github.com/example/go-voicebake/internal/render"
	"github.com/example/go-voicebake/internal/testutil"
)

// recordingBackend implements export.MP3Backend and records what the
// encoder loop feeds it.
type recordingBackend struct {
	sampleRate int
	channels   int
	kbps       int
	stream     *recordingStream
	openErr    error
}

func (b *recordingBackend) Name() string { return "recording" }

func (b *recordingBackend) NewStream(sampleRate, channels, kbps int) (export.MP3Stream, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.sampleRate, b.channels, b.kbps = sampleRate, channels, kbps
	b.stream = &recordingStream{}

	return b.stream, nil
}

type recordingStream struct {
	leftSizes []int
	rightNil  []bool
	left      []int16
	right     []int16
	flushed   bool
}

func (s *recordingStream) EncodeBlock(left, right []int16) ([]byte, error) {
	s.leftSizes = append(s.leftSizes, len(left))
	s.rightNil = append(s.rightNil, right == nil)
	s.left = append(s.left, left...)
	s.right = append(s.right, right...)

	return []byte(fmt.Sprintf("B%d;", len(left))), nil
}

func (s *recordingStream) Flush() ([]byte, error) {
	s.flushed = true
	return []byte("F"), nil
}

func newBuffer(t *testing.T, sampleRate int, channels ...[]float32) *audio.Buffer {
	t.Helper()

	buf, err := audio.NewBuffer(sampleRate, channels)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	return buf
}

func TestEncodeMP3_BlocksAndFlush(t *testing.T) {
	const frames = 1152*2 + 100
	left := testutil.Ramp(frames)
	right := testutil.Sine(300, 24000, frames, 0.5)
	buf := newBuffer(t, 24000, left, right)

	backend := &recordingBackend{}
	data, err := export.EncodeMP3(backend, buf)
	if err != nil {
		t.Fatalf("EncodeMP3: %v", err)
	}

	if backend.kbps != 128 || backend.sampleRate != 24000 || backend.channels != 2 {
		t.Errorf("stream opened with %d Hz / %d ch / %d kbps", backend.sampleRate, backend.channels, backend.kbps)
	}

	s := backend.stream
	wantSizes := []int{1152, 1152, 100}
	if fmt.Sprint(s.leftSizes) != fmt.Sprint(wantSizes) {
		t.Errorf("block sizes = %v; want %v", s.leftSizes, wantSizes)
	}

	if !s.flushed {
		t.Error("stream was not flushed")
	}

	if string(data) != "B1152;B1152;B100;F" {
		t.Errorf("output = %q; want concatenated chunks", data)
	}

	for i := range frames {
		if s.left[i] != audio.FloatToPCM16(left[i]) || s.right[i] != audio.FloatToPCM16(right[i]) {
			t.Fatalf("frame %d not converted with clamp-and-scale", i)
		}
	}
}

func TestEncodeMP3_MonoPassesNilRight(t *testing.T) {
	buf := newBuffer(t, 24000, testutil.Sine(440, 24000, 1152, 0.5))

	backend := &recordingBackend{}
	if _, err := export.EncodeMP3(backend, buf); err != nil {
		t.Fatalf("EncodeMP3: %v", err)
	}

	if len(backend.stream.rightNil) != 1 || !backend.stream.rightNil[0] {
		t.Errorf("right channel nil flags = %v; want [true]", backend.stream.rightNil)
	}
}

func TestEncodeMP3_NoBackend(t *testing.T) {
	buf := newBuffer(t, 24000, []float32{0, 0.1})

	_, err := export.EncodeMP3(nil, buf)
	if !errors.Is(err, export.ErrBackendUnavailable) {
		t.Fatalf("err = %v; want ErrBackendUnavailable", err)
	}
}

func TestEncodeMP3_BackendOpenError(t *testing.T) {
	buf := newBuffer(t, 24000, []float32{0, 0.1})
	boom := errors.New("boom")

	_, err := export.EncodeMP3(&recordingBackend{openErr: boom}, buf)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v; want wrapped boom", err)
	}
}

func TestExporter_WAV(t *testing.T) {
	src := newBuffer(t, 24000, testutil.Sine(440, 24000, 24000, 0.8))

	f, err := export.New().Export(export.Request{
		Request: render.Request{Source: src, Speed: 2},
		Format:  export.FormatWAV,
		Text:    "Hello, World!",
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if len(f.Data) != 24044 {
		t.Errorf("len = %d; want 24044", len(f.Data))
	}

	if f.MIMEType != "audio/wav" || f.FileName != "hello_world.wav" || f.Format != export.FormatWAV {
		t.Errorf("file = %q %q %q", f.MIMEType, f.FileName, f.Format)
	}

	if f.Frames != 12000 {
		t.Errorf("Frames = %d; want 12000", f.Frames)
	}

	testutil.AssertValidWAV(t, f.Data, testutil.WAVFormat{SampleRate: 24000, Channels: 1})
}

func TestExporter_MP3FallsBackToWAV(t *testing.T) {
	src := newBuffer(t, 24000, testutil.Sine(440, 24000, 2400, 0.8))
	e := export.New()

	if e.MP3Available() {
		t.Fatal("MP3Available = true without backend")
	}

	f, err := e.Export(export.Request{
		Request: render.Request{Source: src, Speed: 1},
		Format:  export.FormatMP3,
		Text:    "fallback",
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if f.Format != export.FormatWAV || f.MIMEType != "audio/wav" || f.FileName != "fallback.wav" {
		t.Errorf("file = %q %q %q; want wav fallback", f.Format, f.MIMEType, f.FileName)
	}

	if !bytes.HasPrefix(f.Data, []byte("RIFF")) {
		t.Error("fallback output is not a WAV file")
	}
}

func TestExporter_MP3WithBackend(t *testing.T) {
	src := newBuffer(t, 24000, testutil.Sine(440, 24000, 2400, 0.8))
	backend := &recordingBackend{}
	e := export.New(export.WithMP3(backend))

	if got := e.Formats(); len(got) != 2 {
		t.Errorf("Formats = %v; want wav and mp3", got)
	}

	f, err := e.Export(export.Request{
		Request: render.Request{Source: src, Speed: 0.5},
		Format:  export.FormatMP3,
		Text:    "",
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if f.Format != export.FormatMP3 || f.MIMEType != "audio/mp3" || f.FileName != "speech.mp3" {
		t.Errorf("file = %q %q %q", f.Format, f.MIMEType, f.FileName)
	}

	// 4800 rendered frames split into 1152-frame blocks.
	if n := len(backend.stream.leftSizes); n != 5 {
		t.Errorf("blocks = %d; want 5", n)
	}
}

func TestExporter_InvalidDurationBeforeEncoding(t *testing.T) {
	src := newBuffer(t, 24000, testutil.Sine(440, 24000, 2400, 0.8))
	backend := &recordingBackend{}

	_, err := export.New(export.WithMP3(backend)).Export(export.Request{
		Request: render.Request{Source: src, Speed: 0},
		Format:  export.FormatMP3,
	})
	if !errors.Is(err, render.ErrInvalidDuration) {
		t.Fatalf("err = %v; want ErrInvalidDuration", err)
	}

	if backend.stream != nil {
		t.Error("encoder stream opened despite invalid request")
	}
}

func TestExporter_UnknownFormat(t *testing.T) {
	src := newBuffer(t, 24000, []float32{0, 0})

	_, err := export.New().Export(export.Request{
		Request: render.Request{Source: src, Speed: 1},
		Format:  export.Format("ogg"),
	})
	if !errors.Is(err, export.ErrUnknownFormat) {
		t.Fatalf("err = %v; want ErrUnknownFormat", err)
	}
}

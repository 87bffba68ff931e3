package server_test

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/example/go-voicebake/internal/export"
	"github.com/example/go-voicebake/internal/server"
)

// capturingHandler captures all slog records during a test.
type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (c *capturingHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }
func (c *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	c.mu.Lock()
	c.records = append(c.records, r)
	c.mu.Unlock()

	return nil
}
func (c *capturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return c }
func (c *capturingHandler) WithGroup(name string) slog.Handler       { return c }

// find returns the attributes of the first record with msg.
func (c *capturingHandler) find(msg string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.records {
		if r.Message != msg {
			continue
		}
		m := make(map[string]any)
		r.Attrs(func(a slog.Attr) bool {
			m[a.Key] = a.Value.Any()
			return true
		})

		return m, true
	}

	return nil, false
}

func TestRender_LogsFormatAndFrames(t *testing.T) {
	capture := &capturingHandler{}
	logger := slog.New(capture)

	h := server.NewHandler(export.New(export.WithLogger(logger)), nil, server.WithLogger(logger))

	rec := postRender(h, map[string]any{"audio": sinePCM(24000), "speed": 2.0})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	attrs, ok := capture.find("render complete")
	if !ok {
		t.Fatal("no render complete record")
	}

	if attrs["format"] != "wav" {
		t.Errorf("format attr = %v; want wav", attrs["format"])
	}

	if attrs["frames"] != int64(12000) {
		t.Errorf("frames attr = %v; want 12000", attrs["frames"])
	}

	if _, ok := attrs["duration_ms"]; !ok {
		t.Error("missing duration_ms attr")
	}
}

func TestRender_LogsFallbackWarning(t *testing.T) {
	capture := &capturingHandler{}
	logger := slog.New(capture)

	h := server.NewHandler(export.New(export.WithLogger(logger)), nil, server.WithLogger(logger))

	rec := postRender(h, map[string]any{"audio": sinePCM(100), "format": "mp3"})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	if _, ok := capture.find("mp3 backend unavailable, exporting wav"); !ok {
		t.Error("no fallback warning logged")
	}
}

func TestRender_LogsStatusOnError(t *testing.T) {
	capture := &capturingHandler{}
	logger := slog.New(capture)

	h := server.NewHandler(failingRenderer{}, nil, server.WithLogger(logger))

	rec := postRender(h, map[string]any{"audio": sinePCM(100)})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}

	attrs, ok := capture.find("render failed")
	if !ok {
		t.Fatal("no render failed record")
	}

	if attrs["status"] != int64(http.StatusInternalServerError) {
		t.Errorf("status attr = %v; want 500", attrs["status"])
	}
}

type failingRenderer struct{}

func (failingRenderer) Export(export.Request) (export.File, error) {
	return export.File{}, errEncoderBroken
}

func (failingRenderer) Formats() []export.Format { return []export.Format{export.FormatWAV} }

var errEncoderBroken = &encoderError{"encoder broken"}

type encoderError struct{ msg string }

func (e *encoderError) Error() string { return e.msg }

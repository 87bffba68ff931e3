package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/go-voicebake/internal/audio"
	"github.com/example/go-voicebake/internal/config"
	"github.com/example/go-voicebake/internal/export"
	"github.com/example/go-voicebake/internal/render"
)

func freeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	return addr
}

func TestStart_LifecycleHealthAndShutdown(t *testing.T) {
	addr := freeAddr(t)

	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = addr

	s := New(cfg, export.New(), nil).WithShutdownTimeout(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(ctx)
	}()

	client := &http.Client{Timeout: 2 * time.Second}

	var (
		resp *http.Response
		err  error
	)
	for range 50 {
		resp, err = client.Get(fmt.Sprintf("http://%s/health", addr))
		if err == nil {
			break
		}

		time.Sleep(20 * time.Millisecond)
	}

	if err != nil {
		t.Fatalf("server never became ready: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/health status = %d; want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode /health: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("status = %q; want ok", body["status"])
	}

	if h, err := ProbeHTTP(context.Background(), addr); err != nil || h.Version == "" {
		t.Errorf("ProbeHTTP = %+v, %v", h, err)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start() returned error on shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStart_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = ln.Addr().String()

	err = New(cfg, export.New(), nil).Start(context.Background())
	if err == nil {
		t.Fatal("Start() on a taken port = nil; want error")
	}
}

func TestStart_RequiresRenderer(t *testing.T) {
	if err := New(config.DefaultConfig(), nil, nil).Start(context.Background()); err == nil {
		t.Fatal("Start() without renderer = nil; want error")
	}
}

func TestNew_ShutdownTimeoutFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	if s := New(cfg, nil, nil); s.shutdownTimeout != 30*time.Second {
		t.Errorf("shutdownTimeout = %v; want 30s", s.shutdownTimeout)
	}

	cfg.Server.ShutdownTimeout = 5
	s := New(cfg, nil, nil)
	if s.shutdownTimeout != 5*time.Second {
		t.Errorf("shutdownTimeout = %v; want 5s", s.shutdownTimeout)
	}

	if s.WithShutdownTimeout(time.Second) != s {
		t.Error("WithShutdownTimeout should return the same *Server")
	}
}

func TestProbeHTTP_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	if _, err := ProbeHTTP(context.Background(), ts.Listener.Addr().String()); err == nil {
		t.Fatal("ProbeHTTP() = nil; want error for 503")
	}
}

func TestProbeHTTP_BadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "ok"},
		{"degraded", `{"status":"degraded","version":"dev"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			if _, err := ProbeHTTP(context.Background(), ts.Listener.Addr().String()); err == nil {
				t.Fatal("ProbeHTTP() = nil; want error")
			}
		})
	}
}

func TestProbeHTTP_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := ProbeHTTP(ctx, ts.Listener.Addr().String()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ProbeHTTP err = %v; want deadline exceeded", err)
	}
}

func TestProbeHTTP_ConnectionRefused(t *testing.T) {
	if _, err := ProbeHTTP(context.Background(), freeAddr(t)); err == nil {
		t.Fatal("ProbeHTTP() = nil; want connection error")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid duration", fmt.Errorf("wrap: %w", render.ErrInvalidDuration), http.StatusUnprocessableEntity},
		{"malformed base64", audio.ErrMalformedBase64, http.StatusBadRequest},
		{"empty payload", audio.ErrEmptyPayload, http.StatusBadRequest},
		{"invalid format", audio.ErrInvalidFormat, http.StatusBadRequest},
		{"unknown format", export.ErrUnknownFormat, http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d; want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestOriginMatchesHost(t *testing.T) {
	tests := []struct {
		origin, host string
		want         bool
	}{
		{"http://localhost:8080", "localhost:8080", true},
		{"https://example.com", "example.com", true},
		{"http://evil.example", "localhost:8080", false},
	}

	for _, tt := range tests {
		if got := originMatchesHost(tt.origin, tt.host); got != tt.want {
			t.Errorf("originMatchesHost(%q, %q) = %v; want %v", tt.origin, tt.host, got, tt.want)
		}
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/go-voicebake/internal/audio"
	"github.com/example/go-voicebake/internal/config"
	"github.com/example/go-voicebake/internal/export"
	"github.com/example/go-voicebake/internal/playback"
	"github.com/example/go-voicebake/internal/render"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Renderer bakes a transform into an encoded file.
type Renderer interface {
	Export(req export.Request) (export.File, error)
	Formats() []export.Format
}

// Player drives live preview sessions.
type Player interface {
	Start(buf *audio.Buffer, speed, pitchCents float64) (*playback.Session, error)
	SetSpeed(id uuid.UUID, speed float64) bool
	SetPitch(id uuid.UUID, cents float64) bool
	Stop(id uuid.UUID)
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxPayloadBytes int64
	workers         int
	requestTimeout  time.Duration
	sampleRate      int
	channels        int
	logger          *slog.Logger
}

func defaultOptions() options {
	return options{
		maxPayloadBytes: 16 << 20,
		workers:         2,
		requestTimeout:  60 * time.Second,
		sampleRate:      audio.DefaultSampleRate,
		channels:        audio.DefaultChannels,
		logger:          slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxPayloadBytes caps the request body size for POST /render.
func WithMaxPayloadBytes(n int64) Option {
	return func(o *options) { o.maxPayloadBytes = n }
}

// WithWorkers sets the maximum number of concurrent renders.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request render deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithPCMFormat sets the sample rate and channel count assumed when a
// request does not carry them.
func WithPCMFormat(sampleRate, channels int) Option {
	return func(o *options) {
		o.sampleRate = sampleRate
		o.channels = channels
	}
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	renderer Renderer
	player   Player
	opts     options
	sem      chan struct{} // semaphore for worker pool
	log      *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, /info, POST
// /render and, when player is non-nil, the /playback WebSocket.
func NewHandler(renderer Renderer, player Player, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		renderer: renderer,
		player:   player,
		opts:     opts,
		log:      opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/info", h.handleInfo)
	mux.HandleFunc("/render", h.handleRender)
	if player != nil {
		mux.HandleFunc("/playback", h.handlePlayback)
	}

	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}

	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Health{Status: "ok", Version: buildVersion()})
}

type infoResponse struct {
	SampleRate int      `json:"sample_rate"`
	Channels   int      `json:"channels"`
	MP3        bool     `json:"mp3"`
	Formats    []string `json:"formats"`
	Playback   bool     `json:"playback"`
}

func (h *handler) handleInfo(w http.ResponseWriter, _ *http.Request) {
	resp := infoResponse{
		SampleRate: h.opts.sampleRate,
		Channels:   h.opts.channels,
		Playback:   h.player != nil,
		Formats:    []string{},
	}
	for _, f := range h.renderer.Formats() {
		resp.Formats = append(resp.Formats, string(f))
		if f == export.FormatMP3 {
			resp.MP3 = true
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// audioPayload is the PCM part shared by render and playback requests.
type audioPayload struct {
	Audio      string `json:"audio"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

func (p audioPayload) decode(o options) (*audio.Buffer, error) {
	sampleRate, channels := p.SampleRate, p.Channels
	if sampleRate == 0 {
		sampleRate = o.sampleRate
	}
	if channels == 0 {
		channels = o.channels
	}

	return audio.DecodePCMBase64(p.Audio, sampleRate, channels)
}

type renderRequest struct {
	audioPayload

	Text   string   `json:"text"`
	Speed  *float64 `json:"speed,omitempty"`
	Pitch  float64  `json:"pitch"`
	Format string   `json:"format"`
}

func (h *handler) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.maxPayloadBytes)

	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("payload exceeds maximum size of %d bytes", h.opts.maxPayloadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.Audio == "" {
		writeError(w, http.StatusBadRequest, "audio field is required")
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	buf, err := req.decode(h.opts)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	speed := 1.0
	if req.Speed != nil {
		speed = *req.Speed
	}

	exportReq := export.Request{
		Request: render.Request{Source: buf, Speed: speed, PitchCents: req.Pitch},
		Format:  format,
		Text:    req.Text,
	}

	// Reject bad transforms before queueing for a worker.
	if err := exportReq.Validate(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	// Acquire a worker slot, honouring cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	file, err := h.export(ctx, exportReq)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.log.WarnContext(r.Context(), "render timed out",
				slog.String("format", string(format)),
				slog.Int("frames", buf.FrameCount()),
				slog.Int64("duration_ms", durationMS),
			)
			writeError(w, http.StatusGatewayTimeout, "render timed out")
			return
		}
		status := statusFor(err)
		h.log.ErrorContext(r.Context(), "render failed",
			slog.String("format", string(format)),
			slog.Int("status", status),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, status, err.Error())
		return
	}

	h.log.InfoContext(r.Context(), "render complete",
		slog.String("format", string(file.Format)),
		slog.Float64("speed", speed),
		slog.Float64("pitch_cents", req.Pitch),
		slog.Int("frames", file.Frames),
		slog.Int("bytes", len(file.Data)),
		slog.Int64("duration_ms", durationMS),
	)

	w.Header().Set("Content-Type", file.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

type exportResult struct {
	file export.File
	err  error
}

// export runs the render on its own goroutine so the request deadline can
// abandon it.
func (h *handler) export(ctx context.Context, req export.Request) (export.File, error) {
	done := make(chan exportResult, 1)
	go func() {
		file, err := h.renderer.Export(req)
		done <- exportResult{file: file, err: err}
	}()

	select {
	case res := <-done:
		return res.file, res.err
	case <-ctx.Done():
		return export.File{}, ctx.Err()
	}
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, render.ErrInvalidDuration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, audio.ErrMalformedBase64),
		errors.Is(err, audio.ErrEmptyPayload),
		errors.Is(err, audio.ErrInvalidFormat),
		errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server lifecycle
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	renderer        Renderer
	player          Player
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New returns a server for renderer. player may be nil to disable the
// playback endpoint.
func New(cfg config.Config, renderer Renderer, player Player) *Server {
	timeout := 30 * time.Second
	if cfg.Server.ShutdownTimeout > 0 {
		timeout = time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	}

	return &Server{
		cfg:             cfg,
		renderer:        renderer,
		player:          player,
		logger:          slog.Default(),
		shutdownTimeout: timeout,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

func (s *Server) Start(ctx context.Context) error {
	if s.renderer == nil {
		return errors.New("server: renderer is required")
	}

	h := NewHandler(s.renderer, s.player,
		WithWorkers(s.cfg.Server.Workers),
		WithMaxPayloadBytes(s.cfg.Server.MaxPayloadBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
		WithPCMFormat(s.cfg.Audio.SampleRate, s.cfg.Audio.Channels),
		WithLogger(s.logger),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("listening", slog.String("addr", s.cfg.Server.ListenAddr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http listen: %w", err)
	}
}

// Health is the /health response body.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ProbeHTTP queries the /health endpoint at addr. The request is bounded by
// ctx.
func ProbeHTTP(ctx context.Context, addr string) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return Health{}, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Health{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("unexpected health status: %s", resp.Status)
	}

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("decode health response: %w", err)
	}
	if h.Status != "ok" {
		return h, fmt.Errorf("server reports status %q", h.Status)
	}

	return h, nil
}

// Package playback previews a speech buffer on an output device with live
// speed and pitch control.
//
// A Controller plays at most one Session at a time. Starting a new session
// stops the active one and waits for it to release the device first. Speed
// and pitch changes are posted to the running session and applied from the
// next quantum on.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/go-voicebake/internal/audio"
	"github.com/example/go-voicebake/internal/render"
)

// DefaultQuantum is the amount of audio produced per scheduling step.
const DefaultQuantum = 20 * time.Millisecond

// drainTimeout bounds how long a finished session waits for queued audio.
const drainTimeout = 5 * time.Second

type options struct {
	quantum time.Duration
	logger  *slog.Logger
	onEnded func(id uuid.UUID, reason EndReason)
}

// Option configures a Controller.
type Option func(*options)

// WithQuantum sets the scheduling quantum.
func WithQuantum(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.quantum = d
		}
	}
}

// WithLogger sets the logger for session lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOnEnded registers a callback run after every session ends, whatever
// the reason. It runs on the session goroutine after the device is released.
func WithOnEnded(fn func(id uuid.UUID, reason EndReason)) Option {
	return func(o *options) { o.onEnded = fn }
}

// Controller owns an output device and the single active session.
type Controller struct {
	device Device
	opts   options
	log    *slog.Logger

	mu     sync.Mutex
	active *Session
	closed bool
}

// NewController returns a Controller playing through device.
func NewController(device Device, optFns ...Option) *Controller {
	opts := options{quantum: DefaultQuantum, logger: slog.Default()}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Controller{device: device, opts: opts, log: opts.logger}
}

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("playback controller closed")

// Start stops any active session, then begins playing buf. Speed and pitch
// are clamped to their domains.
func (c *Controller) Start(buf *audio.Buffer, speed, pitchCents float64) (*Session, error) {
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("playback buffer: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	if prev := c.active; prev != nil {
		prev.requestStop(ReasonSuperseded)
		<-prev.done
		c.active = nil
	}

	s := newSession(buf, speed, pitchCents)

	sink, err := c.device.Open(buf.SampleRate(), buf.ChannelCount())
	if err != nil {
		return nil, fmt.Errorf("open output device: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = StatePlaying
	c.active = s

	c.log.Info("playback started",
		slog.String("session", s.id.String()),
		slog.Float64("speed", s.speed),
		slog.Float64("pitch_cents", s.pitch),
		slog.Int("frames", buf.FrameCount()),
	)

	go c.run(ctx, s, sink)

	return s, nil
}

// SetSpeed changes the speed of the active session identified by id. It
// reports whether a playing session received the change.
func (c *Controller) SetSpeed(id uuid.UUID, speed float64) bool {
	s := c.lookup(id)
	if s == nil {
		return false
	}

	return s.update(&speed, nil)
}

// SetPitch changes the pitch of the active session identified by id.
func (c *Controller) SetPitch(id uuid.UUID, cents float64) bool {
	s := c.lookup(id)
	if s == nil {
		return false
	}

	return s.update(nil, &cents)
}

// Stop ends the session identified by id and waits for the device to be
// released. Unknown or already stopped sessions are ignored.
func (c *Controller) Stop(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.active
	if s == nil || s.id != id {
		return
	}

	s.requestStop(ReasonStopped)
	<-s.done
	c.active = nil
}

// Active returns the playing session, if any.
func (c *Controller) Active() (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active, c.active != nil
}

// Close stops the active session and closes the device.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if s := c.active; s != nil {
		s.requestStop(ReasonStopped)
		<-s.done
		c.active = nil
	}

	return c.device.Close()
}

func (c *Controller) lookup(id uuid.UUID) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.active.id != id {
		return nil
	}

	return c.active
}

// release clears the active slot if s still holds it.
func (c *Controller) release(s *Session) {
	c.mu.Lock()
	if c.active == s {
		c.active = nil
	}
	c.mu.Unlock()
}

// run is the scheduling loop of one session. Each iteration renders one
// quantum: the rate stage reads the source at the current speed, the detune
// stage shifts pitch in place, and the blocking sink write paces the loop.
func (c *Controller) run(ctx context.Context, s *Session, sink Sink) {
	reason := ReasonCompleted
	var runErr error

	defer func() {
		if reason == ReasonCompleted {
			drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
			_ = sink.Drain(drainCtx)
			cancel()
		}
		if err := sink.Close(); err != nil && runErr == nil {
			runErr = err
		}
		s.cancel()

		s.finish(reason, runErr)
		close(s.done)
		c.release(s)

		final := s.EndReason()
		c.log.Info("playback ended",
			slog.String("session", s.id.String()),
			slog.String("reason", string(final)),
		)
		if c.opts.onEnded != nil {
			c.opts.onEnded(s.id, final)
		}
	}()

	buf := s.buf
	nch := buf.ChannelCount()
	quantumFrames := max(1, int(float64(buf.SampleRate())*c.opts.quantum.Seconds()))

	src := make([][]float32, nch)
	out := make([][]float32, nch)
	detuners := make([]*Detuner, nch)
	for ch := range nch {
		src[ch] = buf.Channel(ch)
		out[ch] = make([]float32, quantumFrames)
		detuners[ch] = NewDetuner(buf.SampleRate())
	}
	pcm := make([]int16, quantumFrames*nch)

	s.mu.Lock()
	current := params{speed: s.speed, pitch: s.pitch}
	s.mu.Unlock()

	rs := render.NewResampler(current.speed)
	for _, d := range detuners {
		d.SetCents(current.pitch)
	}

	for {
		select {
		case <-ctx.Done():
			reason = ReasonStopped
			return
		case p := <-s.updates:
			current = p
			rs.SetRatio(p.speed)
			for _, d := range detuners {
				d.SetCents(p.pitch)
			}
		default:
		}

		live := rs.ProcessFrames(src, out)
		if live == 0 {
			return
		}

		for ch, d := range detuners {
			d.Process(out[ch][:live])
		}

		frame := pcm[:live*nch]
		for i := range live {
			for ch := range nch {
				frame[i*nch+ch] = audio.FloatToPCM16(out[ch][i])
			}
		}

		if err := sink.Write(frame); err != nil {
			if ctx.Err() != nil {
				reason = ReasonStopped
				return
			}
			reason = ReasonFailed
			runErr = err
			c.log.Error("playback write failed",
				slog.String("session", s.id.String()),
				slog.String("error", err.Error()),
			)
			return
		}

		if rs.Exhausted(buf.FrameCount()) {
			return
		}
	}
}

package playback

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/example/go-voicebake/internal/audio"
)

// Parameter domains. Out-of-range values are clamped.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
	MinPitch = -1200.0
	MaxPitch = 1200.0
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EndReason explains why a session stopped.
type EndReason string

const (
	ReasonNone       EndReason = ""
	ReasonCompleted  EndReason = "completed"
	ReasonStopped    EndReason = "stopped"
	ReasonSuperseded EndReason = "superseded"
	ReasonFailed     EndReason = "failed"
)

// ClampSpeed limits v to [MinSpeed, MaxSpeed].
func ClampSpeed(v float64) float64 {
	if v != v {
		return 1
	}

	return min(max(v, MinSpeed), MaxSpeed)
}

// ClampPitch limits cents to [MinPitch, MaxPitch].
func ClampPitch(cents float64) float64 {
	if cents != cents {
		return 0
	}

	return min(max(cents, MinPitch), MaxPitch)
}

// params is a full snapshot of the live parameters. Sending snapshots lets
// the loop keep only the newest one.
type params struct {
	speed float64
	pitch float64
}

// Session is one playback of a buffer. It is created by Controller.Start
// and owns the output device until it stops.
type Session struct {
	id  uuid.UUID
	buf *audio.Buffer

	mu     sync.Mutex
	state  State
	speed  float64
	pitch  float64
	reason EndReason
	err    error

	updates chan params
	cancel  context.CancelFunc
	done    chan struct{}
}

func newSession(buf *audio.Buffer, speed, pitch float64) *Session {
	return &Session{
		id:      uuid.New(),
		buf:     buf,
		state:   StateIdle,
		speed:   ClampSpeed(speed),
		pitch:   ClampPitch(pitch),
		updates: make(chan params, 1),
		done:    make(chan struct{}),
	}
}

// ID is the handle used with Controller methods.
func (s *Session) ID() uuid.UUID { return s.id }

// Buffer returns the buffer being played.
func (s *Session) Buffer() *audio.Buffer { return s.buf }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Speed returns the most recently requested speed.
func (s *Session) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.speed
}

// Pitch returns the most recently requested pitch in cents.
func (s *Session) Pitch() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pitch
}

// Done is closed once the session has stopped and released the device.
func (s *Session) Done() <-chan struct{} { return s.done }

// EndReason reports why the session stopped, or ReasonNone while it plays.
func (s *Session) EndReason() EndReason {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reason
}

// Err returns the device error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// update records new parameters and posts them to the playback loop,
// replacing any snapshot the loop has not consumed yet.
func (s *Session) update(speed, pitch *float64) bool {
	s.mu.Lock()
	if s.state != StatePlaying {
		s.mu.Unlock()
		return false
	}
	if speed != nil {
		s.speed = ClampSpeed(*speed)
	}
	if pitch != nil {
		s.pitch = ClampPitch(*pitch)
	}
	p := params{speed: s.speed, pitch: s.pitch}

	for {
		select {
		case s.updates <- p:
			s.mu.Unlock()
			return true
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}

// requestStop asks the loop to end with reason. The first reason wins.
func (s *Session) requestStop(reason EndReason) {
	s.mu.Lock()
	if s.reason == ReasonNone {
		s.reason = reason
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
}

// finish marks the session stopped. It must run before done is closed.
func (s *Session) finish(reason EndReason, err error) {
	s.mu.Lock()
	if s.reason == ReasonNone {
		s.reason = reason
	}
	if err != nil && s.err == nil {
		s.err = err
	}
	s.state = StateStopped
	s.mu.Unlock()
}

package playback

import (
	"context"
	"errors"
	"time"
)

// ErrDeviceBusy is returned when an exclusive output device is already open.
var ErrDeviceBusy = errors.New("output device busy")

// Device is an audio output that can be opened by one session at a time.
type Device interface {
	// Open acquires the device for interleaved 16-bit PCM at the given format.
	Open(sampleRate, channels int) (Sink, error)
	// Close releases process-wide resources held by the device.
	Close() error
}

// Sink is an open device. Write blocks until the device accepts the samples,
// which paces the playback loop in real time.
type Sink interface {
	Write(pcm []int16) error
	// Drain waits until queued samples have been played.
	Drain(ctx context.Context) error
	// Close releases the device immediately, dropping queued samples.
	Close() error
}

// DiscardDevice drops samples but blocks for their real-time duration. It
// stands in for speakers on headless hosts.
type DiscardDevice struct {
	busy chan struct{}
}

// NewDiscardDevice returns a DiscardDevice.
func NewDiscardDevice() *DiscardDevice {
	return &DiscardDevice{busy: make(chan struct{}, 1)}
}

func (d *DiscardDevice) Open(sampleRate, channels int) (Sink, error) {
	select {
	case d.busy <- struct{}{}:
	default:
		return nil, ErrDeviceBusy
	}

	return &discardSink{dev: d, sampleRate: sampleRate, channels: channels}, nil
}

func (d *DiscardDevice) Close() error { return nil }

type discardSink struct {
	dev        *DiscardDevice
	sampleRate int
	channels   int
	closed     bool
}

func (s *discardSink) Write(pcm []int16) error {
	frames := len(pcm) / s.channels
	time.Sleep(time.Duration(frames) * time.Second / time.Duration(s.sampleRate))

	return nil
}

func (s *discardSink) Drain(context.Context) error { return nil }

func (s *discardSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	<-s.dev.busy

	return nil
}

package playback

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoDevice plays through the system audio output using oto. oto allows a
// single context per process, so the first Open fixes the output format.
type OtoDevice struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	sampleRate int
	channels   int
	busy       bool
	log        *slog.Logger
}

// NewOtoDevice returns an unopened oto device.
func NewOtoDevice(logger *slog.Logger) *OtoDevice {
	if logger == nil {
		logger = slog.Default()
	}

	return &OtoDevice{log: logger}
}

func (d *OtoDevice) Open(sampleRate, channels int) (Sink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.busy {
		return nil, ErrDeviceBusy
	}

	if d.otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return nil, fmt.Errorf("create oto context: %w", err)
		}
		<-readyChan

		d.otoCtx = ctx
		d.sampleRate = sampleRate
		d.channels = channels
		d.log.Info("audio output initialized",
			slog.Int("sample_rate", sampleRate),
			slog.Int("channels", channels),
		)
	} else {
		if d.sampleRate != sampleRate || d.channels != channels {
			return nil, fmt.Errorf("oto context fixed at %d Hz/%d ch, cannot open %d Hz/%d ch",
				d.sampleRate, d.channels, sampleRate, channels)
		}
		if err := d.otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("resume oto context: %w", err)
		}
	}

	pr, pw := io.Pipe()
	player := d.otoCtx.NewPlayer(pr)
	player.Play()
	d.busy = true

	return &otoSink{dev: d, player: player, pr: pr, pw: pw}, nil
}

// Close suspends the oto context. It can be resumed by a later Open.
func (d *OtoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.otoCtx == nil {
		return nil
	}

	return d.otoCtx.Suspend()
}

func (d *OtoDevice) release() {
	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()
}

type otoSink struct {
	dev    *OtoDevice
	player *oto.Player
	pr     *io.PipeReader
	pw     *io.PipeWriter
	once   sync.Once
}

func (s *otoSink) Write(pcm []int16) error {
	out := make([]byte, len(pcm)*2)
	for i, v := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}

	// Blocks until the player has pulled the previous data.
	if _, err := s.pw.Write(out); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}

	return nil
}

func (s *otoSink) Drain(ctx context.Context) error {
	_ = s.pw.Close()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for s.player.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}

func (s *otoSink) Close() error {
	var err error
	s.once.Do(func() {
		_ = s.pw.Close()
		err = s.player.Close()
		_ = s.pr.Close()
		s.dev.release()
	})

	return err
}

package server

import (
	"testing"

	"github.com/example/go-voicebake/internal/audio"
	"github.com/example/go-voicebake/internal/playback"
)

func TestReportEnded_OncePerSessionInOrder(t *testing.T) {
	ctrl := playback.NewController(playback.NewDiscardDevice())
	t.Cleanup(func() { _ = ctrl.Close() })

	buf, err := audio.NewBuffer(8000, [][]float32{make([]float32, 80000)})
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	pc := &playbackConn{
		send: make(chan playbackEvent, 16),
		done: make(chan struct{}),
	}

	var sessions []trackedSession
	for i := range 3 {
		s, err := ctrl.Start(buf, 1, 0)
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		ctrl.Stop(s.ID())

		ts := trackedSession{Session: s, seq: uint64(i + 1)}
		sessions = append(sessions, ts)

		pc.reportEnded(ts)
		pc.reportEnded(ts)
	}

	// A late report for an older session is dropped.
	pc.reportEnded(sessions[0])

	if got := len(pc.send); got != len(sessions) {
		t.Fatalf("queued %d ended events; want %d", got, len(sessions))
	}

	for _, ts := range sessions {
		ev := <-pc.send
		if ev.Event != "ended" || ev.Session != ts.ID().String() {
			t.Errorf("event = %+v; want ended for %s", ev, ts.ID())
		}
	}

	if pc.lastEnded != 3 {
		t.Errorf("lastEnded = %d; want 3", pc.lastEnded)
	}
}

func TestReportEnded_IgnoresRunningSession(t *testing.T) {
	ctrl := playback.NewController(playback.NewDiscardDevice())
	t.Cleanup(func() { _ = ctrl.Close() })

	buf, err := audio.NewBuffer(8000, [][]float32{make([]float32, 80000)})
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	s, err := ctrl.Start(buf, 1, 0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ctrl.Stop(s.ID())

	pc := &playbackConn{
		send: make(chan playbackEvent, 1),
		done: make(chan struct{}),
	}
	pc.reportEnded(trackedSession{Session: s, seq: 1})

	if len(pc.send) != 0 || pc.lastEnded != 0 {
		t.Error("running session reported as ended")
	}
}

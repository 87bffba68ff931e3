package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/go-voicebake/internal/playback"
)

const (
	wsWriteDeadline = 10 * time.Second
	wsPingInterval  = 30 * time.Second
	wsSendBuffer    = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		return originMatchesHost(origin, r.Host)
	},
}

func originMatchesHost(origin, host string) bool {
	for _, scheme := range []string{"http://", "https://"} {
		if origin == scheme+host {
			return true
		}
	}

	return false
}

// Client operations on the /playback socket.
const (
	opStart = "start"
	opSpeed = "speed"
	opPitch = "pitch"
	opStop  = "stop"
)

type controlMessage struct {
	audioPayload

	Op    string   `json:"op"`
	Speed *float64 `json:"speed,omitempty"`
	Pitch float64  `json:"pitch"`
	Value float64  `json:"value"`
}

// playbackEvent is sent to the client whenever a session changes.
type playbackEvent struct {
	Event   string   `json:"event"`
	Session string   `json:"session,omitempty"`
	State   string   `json:"state,omitempty"`
	Speed   *float64 `json:"speed,omitempty"`
	Pitch   *float64 `json:"pitch,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// playbackConn is one control connection. It tracks the session it started
// so that closing the socket stops that session only.
type playbackConn struct {
	h    *handler
	conn *websocket.Conn
	send chan playbackEvent
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	session trackedSession
	// started numbers sessions in start order. Sessions of one connection
	// end in that order, so lastEnded suffices to report each end once.
	started   uint64
	lastEnded uint64
}

// trackedSession is a session started on this connection.
type trackedSession struct {
	*playback.Session
	seq uint64
}

func (h *handler) handlePlayback(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	pc := &playbackConn{
		h:    h,
		conn: conn,
		send: make(chan playbackEvent, wsSendBuffer),
		done: make(chan struct{}),
	}

	h.log.InfoContext(r.Context(), "playback client connected", slog.String("remote", r.RemoteAddr))

	go pc.writer()
	pc.reader()

	pc.close()
	if s := pc.current(); s.Session != nil {
		h.player.Stop(s.ID())
	}

	h.log.InfoContext(r.Context(), "playback client disconnected", slog.String("remote", r.RemoteAddr))
}

func (pc *playbackConn) close() {
	pc.once.Do(func() {
		close(pc.done)
		_ = pc.conn.Close()
	})
}

func (pc *playbackConn) current() trackedSession {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	return pc.session
}

// emit queues ev for the writer. Events are dropped once the connection is
// closing.
func (pc *playbackConn) emit(ev playbackEvent) {
	select {
	case pc.send <- ev:
	case <-pc.done:
	}
}

func (pc *playbackConn) emitError(msg string) {
	pc.emit(playbackEvent{Event: "error", Error: msg})
}

func (pc *playbackConn) emitState(s *playback.Session) {
	speed, pitch := s.Speed(), s.Pitch()
	pc.emit(playbackEvent{
		Event:   "state",
		Session: s.ID().String(),
		State:   s.State().String(),
		Speed:   &speed,
		Pitch:   &pitch,
	})
}

func (pc *playbackConn) reader() {
	for {
		_, data, err := pc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				pc.h.log.Warn("playback socket error", slog.String("error", err.Error()))
			}

			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			pc.emitError("invalid JSON: " + err.Error())
			continue
		}

		pc.handle(msg)
	}
}

func (pc *playbackConn) handle(msg controlMessage) {
	switch msg.Op {
	case opStart:
		pc.start(msg)
	case opSpeed:
		pc.adjust(func(id uuid.UUID) bool { return pc.h.player.SetSpeed(id, msg.Value) })
	case opPitch:
		pc.adjust(func(id uuid.UUID) bool { return pc.h.player.SetPitch(id, msg.Value) })
	case opStop:
		if s := pc.current(); s.Session != nil {
			pc.h.player.Stop(s.ID())
			pc.reportEnded(s)
		}
	default:
		pc.emitError(fmt.Sprintf("unknown op %q", msg.Op))
	}
}

func (pc *playbackConn) start(msg controlMessage) {
	buf, err := msg.decode(pc.h.opts)
	if err != nil {
		pc.emitError(err.Error())
		return
	}

	speed := 1.0
	if msg.Speed != nil {
		speed = *msg.Speed
	}

	prev := pc.current()

	s, err := pc.h.player.Start(buf, speed, msg.Pitch)
	if err != nil {
		pc.h.log.Error("playback start failed", slog.String("error", err.Error()))
		pc.emitError(err.Error())
		return
	}

	// Start has already waited for any previous session to stop.
	if prev.Session != nil {
		pc.reportEnded(prev)
	}

	pc.mu.Lock()
	pc.started++
	t := trackedSession{Session: s, seq: pc.started}
	pc.session = t
	pc.mu.Unlock()

	pc.emitState(s)
	go pc.watch(t)
}

// watch reports the end of s to the client.
func (pc *playbackConn) watch(s trackedSession) {
	select {
	case <-s.Done():
	case <-pc.done:
		return
	}

	pc.reportEnded(s)
}

// reportEnded sends the ended event for a stopped session exactly once.
func (pc *playbackConn) reportEnded(s trackedSession) {
	select {
	case <-s.Done():
	default:
		return
	}

	// Held across emit so a caller returning from here knows the event
	// is already queued.
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if s.seq <= pc.lastEnded {
		return
	}
	pc.lastEnded = s.seq

	pc.emit(playbackEvent{
		Event:   "ended",
		Session: s.ID().String(),
		Reason:  string(s.EndReason()),
	})
}

func (pc *playbackConn) adjust(apply func(uuid.UUID) bool) {
	s := pc.current()
	if s.Session == nil || !apply(s.ID()) {
		pc.emitError("no active session")
		return
	}

	pc.emitState(s.Session)
}

// writer is the only goroutine writing to the socket.
func (pc *playbackConn) writer() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-pc.send:
			_ = pc.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
			if err := pc.conn.WriteJSON(ev); err != nil {
				pc.close()
				return
			}
		case <-ticker.C:
			if err := pc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteDeadline)); err != nil {
				pc.close()
				return
			}
		case <-pc.done:
			return
		}
	}
}

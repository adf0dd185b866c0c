package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/taiji/internal/align"
	"github.com/ayusman/taiji/internal/practice"
	"github.com/ayusman/taiji/internal/session"
)

const (
	writeWait = 5 * time.Second
	// defaultSnapshotInterval paces practice snapshots at ~15 FPS.
	defaultSnapshotInterval = 66 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// readLoop drains conn until it closes, handing text messages to handle.
// The returned channel is closed when the peer goes away.
func readLoop(conn *websocket.Conn, handle func([]byte)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if handle != nil {
				handle(msg)
			}
		}
	}()
	return done
}

func writeJSON(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// EventsHandler forwards session change notifications to the browser.
type EventsHandler struct {
	session *session.Session
	logger  *slog.Logger
}

// NewEventsHandler creates an events socket for s.
func NewEventsHandler(s *session.Session, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{session: s, logger: logger}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := make(chan session.Event, 32)
	unsubscribe := h.session.Subscribe("", func(e session.Event) {
		select {
		case events <- e:
		default:
		}
	})
	defer unsubscribe()

	closed := readLoop(conn, nil)
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := writeJSON(conn, e); err != nil {
				return
			}
		}
	}
}

// PracticeSource is the live practice state the socket mirrors.
type PracticeSource interface {
	Practice() *practice.Controller
	LastOutput() align.Output
}

type practiceSnapshot struct {
	State  practice.State `json:"state"`
	Output align.Output   `json:"output"`
	Error  string         `json:"error,omitempty"`
}

type practiceCommand struct {
	Action string `json:"action"`
	Show   *bool  `json:"show,omitempty"`
}

// PracticeSocket pushes practice snapshots and accepts playback commands
// ({"action": "play" | "pause" | "toggle" | "skip" | "restart" | "expert"}).
type PracticeSocket struct {
	source   PracticeSource
	interval time.Duration
	logger   *slog.Logger
}

// NewPracticeSocket creates the practice channel. A zero interval uses the
// default snapshot rate.
func NewPracticeSocket(source PracticeSource, interval time.Duration, logger *slog.Logger) *PracticeSocket {
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PracticeSocket{source: source, interval: interval, logger: logger}
}

func (p *PracticeSocket) snapshot() practiceSnapshot {
	return practiceSnapshot{
		State:  p.source.Practice().State(),
		Output: p.source.LastOutput(),
	}
}

// apply runs one command and returns the snapshot to send back.
func (p *PracticeSocket) apply(cmd practiceCommand) practiceSnapshot {
	c := p.source.Practice()
	var err error
	switch cmd.Action {
	case "play":
		_, err = c.Play()
	case "pause":
		_, err = c.Pause()
	case "toggle":
		_, err = c.Toggle()
	case "skip":
		_, err = c.Skip()
	case "restart":
		err = c.Restart()
	case "expert":
		show := !c.State().ShowExpert
		if cmd.Show != nil {
			show = *cmd.Show
		}
		c.SetShowExpert(show)
	default:
		snap := p.snapshot()
		snap.Error = "unknown action: " + cmd.Action
		return snap
	}
	snap := p.snapshot()
	if err != nil {
		snap.Error = err.Error()
	}
	return snap
}

// ServeHTTP handles WebSocket upgrade requests.
func (p *PracticeSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	replies := make(chan practiceSnapshot, 4)
	reply := func(s practiceSnapshot) {
		select {
		case replies <- s:
		case <-stop:
		}
	}
	closed := readLoop(conn, func(msg []byte) {
		var cmd practiceCommand
		if err := json.Unmarshal(msg, &cmd); err != nil {
			reply(practiceSnapshot{Error: "invalid command"})
			return
		}
		p.logger.Debug("practice command", "action", cmd.Action)
		reply(p.apply(cmd))
	})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if err := writeJSON(conn, p.snapshot()); err != nil {
		return
	}
	for {
		var out practiceSnapshot
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case out = <-replies:
		case <-ticker.C:
			out = p.snapshot()
		}
		if err := writeJSON(conn, out); err != nil {
			return
		}
	}
}

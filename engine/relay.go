package engine

import (
	"drawsync-server/core"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// frame is the envelope for relay traffic. A "snapshot" frame replaces the
// room's document state; every other type is forwarded untouched.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Relay is the built-in document engine: it tracks the latest full-document
// snapshot a client published and forwards every frame to the other sessions
// of the room. Conflict resolution between concurrent edits is the clients'
// concern, not this engine's.
type Relay struct {
	mu       sync.Mutex
	sessions map[string]core.Socket
	snapshot core.Snapshot
	onChange func()
}

// NewRelay constructs a relay engine, optionally seeded with a persisted
// snapshot. It satisfies core.EngineFactory.
func NewRelay(initial core.Snapshot, onChange func()) (core.Engine, error) {
	return &Relay{
		sessions: make(map[string]core.Socket),
		snapshot: append(core.Snapshot(nil), initial...),
		onChange: onChange,
	}, nil
}

func (e *Relay) HandleSocketConnect(sessionID string, socket core.Socket) {
	e.mu.Lock()
	if prev, ok := e.sessions[sessionID]; ok {
		// Session identity is not reused; a reconnect under the same id
		// replaces the old transport.
		_ = prev.Close()
	}
	e.sessions[sessionID] = socket
	snapshot := append(core.Snapshot(nil), e.snapshot...)
	e.mu.Unlock()

	socket.OnMessage(func(data string) {
		e.handleFrame(sessionID, data)
	})
	socket.OnClose(func() {
		e.mu.Lock()
		if e.sessions[sessionID] == socket {
			delete(e.sessions, sessionID)
		}
		e.mu.Unlock()
		logrus.WithField("session_id", sessionID).Debug("Session closed")
	})

	if len(snapshot) > 0 {
		buf, err := json.Marshal(frame{Type: "snapshot", Data: json.RawMessage(snapshot)})
		if err != nil {
			logrus.WithField("session_id", sessionID).WithError(err).Error("Failed to encode snapshot frame")
			return
		}
		socket.Send(string(buf))
	}
}

func (e *Relay) CurrentSnapshot() core.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(core.Snapshot(nil), e.snapshot...)
}

// SessionCount returns the number of attached sessions.
func (e *Relay) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *Relay) handleFrame(from string, data string) {
	var f frame
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		logrus.WithField("session_id", from).WithError(err).Debug("Dropping malformed frame")
		return
	}

	mutated := false
	e.mu.Lock()
	if f.Type == "snapshot" && len(f.Data) > 0 {
		e.snapshot = append(core.Snapshot(nil), f.Data...)
		mutated = true
	}
	peers := make([]core.Socket, 0, len(e.sessions))
	for id, peer := range e.sessions {
		if id != from {
			peers = append(peers, peer)
		}
	}
	e.mu.Unlock()

	for _, peer := range peers {
		peer.Send(data)
	}

	if mutated && e.onChange != nil {
		e.onChange()
	}
}

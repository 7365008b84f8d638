package engine

import (
	"drawsync-server/core"
	"sync"
	"testing"
)

// recordingSocket captures sent frames and lets tests inject messages and
// close events.
type recordingSocket struct {
	mu        sync.Mutex
	sent      []string
	open      bool
	onMessage []func(string)
	onClose   []func()
}

func newRecordingSocket() *recordingSocket {
	return &recordingSocket{open: true}
}

func (s *recordingSocket) Send(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	s.sent = append(s.sent, data)
}

func (s *recordingSocket) Close() error {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	return nil
}

func (s *recordingSocket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *recordingSocket) OnMessage(fn func(string)) {
	s.mu.Lock()
	s.onMessage = append(s.onMessage, fn)
	s.mu.Unlock()
}

func (s *recordingSocket) OnClose(fn func()) {
	s.mu.Lock()
	s.onClose = append(s.onClose, fn)
	s.mu.Unlock()
}

func (s *recordingSocket) receive(data string) {
	s.mu.Lock()
	handlers := make([]func(string), len(s.onMessage))
	copy(handlers, s.onMessage)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(data)
	}
}

func (s *recordingSocket) fireClose() {
	s.mu.Lock()
	s.open = false
	handlers := make([]func(), len(s.onClose))
	copy(handlers, s.onClose)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (s *recordingSocket) sentFrames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := make([]string, len(s.sent))
	copy(frames, s.sent)
	return frames
}

func TestRelay_BroadcastsToOtherSessions(t *testing.T) {
	relay, err := NewRelay(nil, nil)
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	a := newRecordingSocket()
	b := newRecordingSocket()
	relay.HandleSocketConnect("session-a", a)
	relay.HandleSocketConnect("session-b", b)

	a.receive(`{"type":"cursor","data":{"x":1}}`)

	if got := b.sentFrames(); len(got) != 1 || got[0] != `{"type":"cursor","data":{"x":1}}` {
		t.Errorf("Peer frames mismatch: %v", got)
	}
	if got := a.sentFrames(); len(got) != 0 {
		t.Errorf("Sender received its own frame: %v", got)
	}
}

func TestRelay_SnapshotFrameMutatesDocument(t *testing.T) {
	changes := 0
	relay, err := NewRelay(nil, func() { changes++ })
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	a := newRecordingSocket()
	relay.HandleSocketConnect("session-a", a)

	a.receive(`{"type":"snapshot","data":{"shapes":[1]}}`)
	a.receive(`{"type":"snapshot","data":{"shapes":[1,2]}}`)

	if changes != 2 {
		t.Errorf("Expected 2 change notifications, got %d", changes)
	}
	if got := string(relay.CurrentSnapshot()); got != `{"shapes":[1,2]}` {
		t.Errorf("Snapshot mismatch: got %q", got)
	}
}

func TestRelay_NonSnapshotFrameDoesNotMutate(t *testing.T) {
	changes := 0
	relay, err := NewRelay(nil, func() { changes++ })
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	a := newRecordingSocket()
	relay.HandleSocketConnect("session-a", a)
	a.receive(`{"type":"presence","data":{"cursor":[3,4]}}`)

	if changes != 0 {
		t.Errorf("Presence frame fired %d change notifications", changes)
	}
	if got := relay.CurrentSnapshot(); len(got) != 0 {
		t.Errorf("Snapshot mutated by presence frame: %q", got)
	}
}

func TestRelay_MalformedFrameIsDropped(t *testing.T) {
	relay, err := NewRelay(nil, nil)
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	a := newRecordingSocket()
	b := newRecordingSocket()
	relay.HandleSocketConnect("session-a", a)
	relay.HandleSocketConnect("session-b", b)

	a.receive(`{not json at all`)

	if got := b.sentFrames(); len(got) != 0 {
		t.Errorf("Malformed frame was forwarded: %v", got)
	}
}

func TestRelay_LateJoinerReceivesSnapshot(t *testing.T) {
	initial := core.Snapshot(`{"shapes":["seed"]}`)
	relay, err := NewRelay(initial, nil)
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	a := newRecordingSocket()
	relay.HandleSocketConnect("session-a", a)

	frames := a.sentFrames()
	if len(frames) != 1 {
		t.Fatalf("Expected 1 catch-up frame, got %d", len(frames))
	}
	if frames[0] != `{"type":"snapshot","data":{"shapes":["seed"]}}` {
		t.Errorf("Catch-up frame mismatch: %q", frames[0])
	}
}

func TestRelay_ClosedSessionStopsReceiving(t *testing.T) {
	relay, err := NewRelay(nil, nil)
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	a := newRecordingSocket()
	b := newRecordingSocket()
	relay.HandleSocketConnect("session-a", a)
	relay.HandleSocketConnect("session-b", b)

	b.fireClose()
	a.receive(`{"type":"cursor","data":{}}`)

	if got := b.sentFrames(); len(got) != 0 {
		t.Errorf("Closed session still received frames: %v", got)
	}
	if got := relay.(*Relay).SessionCount(); got != 1 {
		t.Errorf("Expected 1 remaining session, got %d", got)
	}
}

func TestRelay_ReconnectReplacesSession(t *testing.T) {
	relay, err := NewRelay(nil, nil)
	if err != nil {
		t.Fatalf("NewRelay() failed: %v", err)
	}

	old := newRecordingSocket()
	relay.HandleSocketConnect("session-a", old)

	replacement := newRecordingSocket()
	relay.HandleSocketConnect("session-a", replacement)

	if old.IsOpen() {
		t.Error("Old transport left open after reconnect under the same id")
	}
	if got := relay.(*Relay).SessionCount(); got != 1 {
		t.Errorf("Expected 1 session after reconnect, got %d", got)
	}
}

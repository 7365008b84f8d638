package websocket

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// bridge adapts a websocket connection to the core.Socket shape the document
// engine consumes. It does no buffering, no reconnection and no backpressure
// handling; flow control belongs to the transport.
type bridge struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	open    atomic.Bool

	mu        sync.Mutex
	onMessage []func(string)
	onClose   []func()

	closeOnce sync.Once
}

func newBridge(conn *websocket.Conn) *bridge {
	b := &bridge{conn: conn}
	b.open.Store(true)
	return b
}

// Send writes a text frame. Once the transport is closed it silently does
// nothing; it never queues and never surfaces an error to the engine.
func (b *bridge) Send(data string) {
	if !b.open.Load() {
		return
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
		logrus.WithError(err).Debug("Websocket send failed")
	}
}

func (b *bridge) Close() error {
	b.open.Store(false)
	return b.conn.Close()
}

func (b *bridge) IsOpen() bool {
	return b.open.Load()
}

func (b *bridge) OnMessage(fn func(string)) {
	b.mu.Lock()
	b.onMessage = append(b.onMessage, fn)
	b.mu.Unlock()
}

func (b *bridge) OnClose(fn func()) {
	b.mu.Lock()
	b.onClose = append(b.onClose, fn)
	b.mu.Unlock()
}

// readLoop pumps frames from the transport to the message subscribers and
// reports the close event exactly once, whatever ends the connection. The
// engine expects text frames; other frame types are dropped.
func (b *bridge) readLoop() {
	defer b.dispatchClose()

	for {
		msgType, data, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Debug("Websocket read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		b.mu.Lock()
		handlers := make([]func(string), len(b.onMessage))
		copy(handlers, b.onMessage)
		b.mu.Unlock()
		for _, fn := range handlers {
			fn(string(data))
		}
	}
}

func (b *bridge) dispatchClose() {
	b.closeOnce.Do(func() {
		b.open.Store(false)
		b.conn.Close()

		b.mu.Lock()
		handlers := make([]func(), len(b.onClose))
		copy(handlers, b.onClose)
		b.mu.Unlock()
		for _, fn := range handlers {
			fn()
		}
	})
}

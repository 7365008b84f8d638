package core

type (
	// Socket is the capability set a document engine expects from one
	// attached transport connection. Message payloads are text frames.
	Socket interface {
		// Send writes a text frame. It is a no-op when the underlying
		// transport is not open; it never queues.
		Send(data string)

		// Close tears down the underlying transport.
		Close() error

		// IsOpen reports whether the transport can currently send.
		IsOpen() bool

		// OnMessage subscribes to incoming text frames.
		OnMessage(fn func(data string))

		// OnClose subscribes to the transport close event.
		OnClose(fn func())
	}

	// Engine maintains the in-memory document for one room. The real-time
	// synchronization algorithm lives behind this interface; the rest of
	// the server treats it as opaque.
	Engine interface {
		// HandleSocketConnect attaches one connection to the room under
		// the caller-supplied session id. The engine owns the session
		// from here on, including cleanup when the socket closes.
		HandleSocketConnect(sessionID string, socket Socket)

		// CurrentSnapshot returns the full document state as of now.
		CurrentSnapshot() Snapshot
	}

	// EngineFactory constructs an engine for one room. initial may be nil
	// (the room starts empty). onChange is invoked after every document
	// mutation and must be cheap; persistence is scheduled from it.
	EngineFactory func(initial Snapshot, onChange func()) (Engine, error)
)

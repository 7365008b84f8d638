package websocket

import (
	"context"
	"drawsync-server/core"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	// closeBadRequest rejects a protocol failure: malformed connect path
	// or a missing required parameter.
	closeBadRequest = websocket.CloseUnsupportedData // 1003

	// closeConnectionFailed signals a server-side failure while attaching
	// the connection to its room.
	closeConnectionFailed = websocket.CloseInternalServerErr // 1011

	closeWriteTimeout = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The HTTP API is open to any origin; the socket endpoint matches.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Registry is the subset of the room registry the connect handler needs.
type Registry interface {
	Attach(ctx context.Context, roomID, sessionID string, socket core.Socket) error
}

// HandleConnect upgrades a room connect request and attaches the connection
// to its room. A malformed path or missing sessionId closes the socket with
// 1003 before any registry lookup happens; a failed room lookup closes it
// with 1011.
func HandleConnect(registry Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")
		sessionID := r.URL.Query().Get("sessionId")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error response.
			logrus.WithError(err).Debug("Websocket upgrade failed")
			return
		}

		log := logrus.WithFields(logrus.Fields{
			"room_id":    roomID,
			"session_id": sessionID,
			"conn_id":    ulid.Make().String(),
		})

		if roomID == "" {
			log.Warn("Rejecting connect request with invalid path")
			closeWith(conn, closeBadRequest, "Invalid path")
			return
		}
		if sessionID == "" {
			log.Warn("Rejecting connect request without sessionId")
			closeWith(conn, closeBadRequest, "Missing sessionId")
			return
		}

		b := newBridge(conn)
		if err := registry.Attach(r.Context(), roomID, sessionID, b); err != nil {
			log.WithError(err).Error("Failed to attach connection to room")
			closeWith(conn, closeConnectionFailed, "Connection failed")
			return
		}

		log.Info("Session attached to room")
		go b.readLoop()
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(closeWriteTimeout)
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		logrus.WithError(err).Debug("Failed to write close frame")
	}
	conn.Close()
}

package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/awahab1116/video-streaming/internal/signaling"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB
}

// ServeWS returns an http.HandlerFunc that handles websocket requests.
// Each upgraded connection gets a fresh id and is handed to the hub.
func ServeWS(hub *signaling.Hub, allowedOrigins []string, log *slog.Logger) http.HandlerFunc {
	up := upgrader
	up.CheckOrigin = func(r *http.Request) bool {
		return originAllowed(r.Header.Get("Origin"), allowedOrigins)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response (403 on a rejected
			// origin, 400 on a malformed handshake).
			log.Warn("websocket upgrade failed", "err", err, "remote", r.RemoteAddr)
			return
		}

		client := signaling.NewClient(uuid.NewString(), hub, conn, log)
		client.Hub.Register <- client

		// Start the client's read and write pumps in separate goroutines.
		// These handle the rest of the connection's lifecycle.
		go client.WritePump()
		go client.ReadPump()
	}
}

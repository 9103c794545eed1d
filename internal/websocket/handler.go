package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"twmarket/pkg/contracts"
	"twmarket/pkg/contracts/events"
)

// Handler upgrades requests and attaches the connections to a hub
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler creates the upgrade handler. Requests without an Origin header
// and same-host origins are always accepted; other origins must be listed.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	h := &Handler{hub: hub}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
				return true
			}
			if slices.Contains(allowedOrigins, origin) {
				return true
			}
			hub.logger.WarnContext(r.Context(), "origin_rejected", slog.String("origin", origin))
			return false
		},
	}
	return h
}

// ServeHTTP upgrades the request. The upgrader has already replied when it fails.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.WarnContext(r.Context(), "upgrade_failed", slog.String("error", err.Error()))
		return
	}

	client := newClient(h.hub, conn)
	// queued before registration so the greeting is always the first frame
	greeting, _ := json.Marshal(events.Message{
		Type:      events.TypeConnected,
		Timestamp: time.Now(),
		Data:      events.Connected{ClientID: client.id, Version: contracts.Version},
	})
	client.send <- greeting

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

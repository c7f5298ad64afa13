package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridbase/gridbase/internal/events"
)

// writeTimeout bounds each outbound event write; a wedged client drops its
// connection instead of wedging the broker's subscriber.
const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The peer is the local GUI shell; Origin carries no meaning here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsHandler streams workspace notifications to the front end over a
// WebSocket. Messages are events.Event encoded as JSON; the client sends
// nothing but close frames.
type EventsHandler struct {
	broker *events.Broker
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(broker *events.Broker) *EventsHandler {
	return &EventsHandler{broker: broker}
}

// ServeHTTP implements http.Handler.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(ctx, "Failed to upgrade events connection", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	sub := h.broker.Subscribe()
	defer sub.Close()

	// Drain inbound frames so close/ping handling works; any read error
	// means the client is gone.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slog.DebugContext(ctx, "Events subscriber connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				slog.DebugContext(ctx, "Events subscriber write failed", "err", err)
				return
			}
		}
	}
}

package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"imcore/internal/debuglog"
)

// EventsHub fans out every debug-sink log line to connected WebSocket
// clients, so an embedder's debug console can tail the core's
// diagnostics live instead of only through stderr/zap. Mirrors the
// teacher's internal/ws.Handler connection/broadcast shape, narrowed
// from chat-room fan-out to a single debug event stream.
type EventsHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan eventPayload
}

type eventPayload struct {
	Level    string `json:"level"`
	Category string `json:"category"`
	Message  string `json:"message"`
	TS       int64  `json:"ts"`
}

// NewEventsHub constructs an EventsHub with no connected clients yet.
func NewEventsHub() *EventsHub {
	return &EventsHub{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]chan eventPayload),
	}
}

// UiOps returns a debuglog.UiOps whose Print broadcasts to every
// connected client; compose it with debuglog.Tee alongside a structured
// logging backend so both keep receiving every line.
func (h *EventsHub) UiOps() debuglog.UiOps {
	return debuglog.UiOps{Print: h.broadcast}
}

func (h *EventsHub) broadcast(level debuglog.Level, category, message string) {
	payload := eventPayload{
		Level:    level.String(),
		Category: category,
		Message:  message,
		TS:       time.Now().UnixMilli(),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- payload:
		default: // slow client: drop this line rather than block the sink
		}
	}
}

// Register binds the debug event stream at /debug/events.
func (h *EventsHub) Register(e *echo.Echo) {
	e.GET("/debug/events", h.handle)
}

func (h *EventsHub) handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch := make(chan eventPayload, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		close(ch)
	}()

	for payload := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(payload); err != nil {
			return nil
		}
	}
	return nil
}

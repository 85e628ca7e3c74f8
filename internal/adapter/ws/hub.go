// Package ws streams pipeline phase transitions, agent status changes,
// and worker output to connected observers over WebSocket. The stream
// is advisory; the authoritative surface stays the polled pipeline
// status record.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// envelope frames every outbound event.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub tracks observer connections and fans events out to them.
type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]context.CancelFunc
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]context.CancelFunc)}
}

// HandleWS upgrades the request and tracks the connection until it drops.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	h.mu.Lock()
	h.conns[c] = cancel
	h.mu.Unlock()

	slog.Info("websocket connected", "remote", r.RemoteAddr)

	// Observers never send; the read loop only detects disconnects and
	// consumes pings.
	go func() {
		defer func() {
			h.drop(c)
			_ = c.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := c.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// BroadcastEvent frames payload under eventType and writes it to every
// connected observer. Observers that fail the write are dropped.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(envelope{Type: eventType, Payload: payload})
	if err != nil {
		slog.Error("marshal ws event", "type", eventType, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.conns {
		if err := c.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("websocket write failed", "error", err)
			go h.drop(c)
		}
	}
}

func (h *Hub) drop(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cancel, ok := h.conns[c]; ok {
		cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected")
	}
}

// Package ws pushes screening events to connected review clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Message is the envelope for all WebSocket messages. ProjectID scopes
// delivery; an empty value means the message goes to every client.
type Message struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"project_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// sendBuffer is the per-client outbound queue depth. A client that falls
// this far behind loses messages instead of stalling the broadcaster; the
// feed is advisory and clients re-sync through the queue endpoint.
const sendBuffer = 32

// client is one subscriber. projectID narrows the feed to a single project
// when the client connected with ?project_id=; empty subscribes to all.
type client struct {
	ws        *websocket.Conn
	projectID string
	send      chan []byte
	cancel    context.CancelFunc
}

// Hub tracks active subscribers and fans screening events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
	}
}

// HandleWS upgrades the request and registers the client. Reads and writes
// run on their own goroutines so the handler returns immediately.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	// The request context is cancelled when this handler returns; the
	// connection must outlive it.
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		ws:        ws,
		projectID: projectID,
		send:      make(chan []byte, sendBuffer),
		cancel:    cancel,
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("websocket connected", "remote", r.RemoteAddr, "project_id", projectID)

	go h.writeLoop(ctx, c)
	go h.readLoop(ctx, c)
}

// readLoop consumes inbound frames to detect disconnects and answer pings.
// Clients never send application data.
func (h *Hub) readLoop(ctx context.Context, c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.ws.Read(ctx); err != nil {
			return
		}
	}
}

// writeLoop drains the client's send queue onto the wire.
func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
				slog.Debug("websocket write failed", "error", err)
				h.remove(c)
				return
			}
		}
	}
}

// Broadcast queues a message for every subscribed client. Clients scoped to
// a project only receive messages for that project. Never blocks: a full
// client queue drops the message.
func (h *Hub) Broadcast(_ context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.projectID != "" && msg.ProjectID != "" && c.projectID != msg.ProjectID {
			continue
		}
		select {
		case c.send <- data:
		default:
			slog.Debug("websocket client lagging, message dropped", "project_id", c.projectID)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		c.cancel()
		delete(h.clients, c)
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
		slog.Info("websocket disconnected")
	}
}

package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nao1215/sitemirror/internal/event"
)

const (
	// sendBuffer is the number of outgoing messages queued per client.
	sendBuffer = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 64 * 1024
)

// Hub broadcasts session events to websocket clients and accepts commands
// from them. It implements event.Emitter.
type Hub struct {
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

var _ event.Emitter = (*Hub)(nil)

// NewHub creates a Hub that dispatches incoming commands to d.
func NewHub(d *Dispatcher, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		dispatcher: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Emit sends ev to every connected client. Clients whose queue is full
// miss the event.
func (h *Hub) Emit(ev event.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("failed to encode event", "channel", ev.Channel, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping event for slow client", "channel", ev.Channel)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and serves the client
// until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	h.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(r.Context(), c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// readPump decodes commands and queues their results. It owns the read
// side of the connection.
func (h *Hub) readPump(ctx context.Context, c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		result := h.dispatcher.Dispatch(context.WithoutCancel(ctx), cmd)
		data, err := json.Marshal(result)
		if err != nil {
			h.logger.Warn("failed to encode result", "error", err)
			continue
		}

		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			select {
			case c.send <- data:
			default:
				h.logger.Warn("dropping result for slow client", "channel", cmd.Channel)
			}
		}
		h.mu.Unlock()
	}
}

// writePump writes queued messages and pings. It owns the write side of
// the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

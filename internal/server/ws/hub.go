// Package ws implements the push surface: a WebSocket hub that delivers the
// freshly recomputed dataset envelope to every connected client as soon as a
// refresh cycle completes.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/arbilo/arbilod/internal/domain"
	"github.com/arbilo/arbilod/internal/metrics"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pingPeriod is the liveness probe interval.
	pingPeriod = 30 * time.Second

	// maxMissedPongs is the number of unanswered pings tolerated before the
	// client is considered dead and disconnected.
	maxMissedPongs = 2

	// maxMessageSize is the maximum size of an incoming message. Clients are
	// receive-only; inbound frames carry control traffic at most.
	maxMessageSize = 1024

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 64
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// client represents a single WebSocket connection.
type client struct {
	id          string
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	missedPongs atomic.Int32
}

// Authenticator validates the credential carried by a handshake request.
// The hub accepts the connection only when it returns nil.
type Authenticator func(r *http.Request) error

// Hub manages the set of connected WebSocket clients and broadcasts refresh
// envelopes to all of them. Delivery failures are isolated per client: a slow
// or dead connection never blocks the others.
type Hub struct {
	clients    map[string]*client
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	auth       Authenticator // nil means open access
	count      atomic.Int64  // mirrors len(clients) for readers outside Run
	logger     *slog.Logger
}

// NewHub creates a new WebSocket hub. auth may be nil when the push surface
// runs without authentication.
func NewHub(auth Authenticator, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*client),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		auth:       auth,
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
}

// Run starts the hub's main event loop. It handles client registration,
// unregistration, and message broadcasting, and exits when the provided
// context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.count.Store(0)
			metrics.PushClients.Set(0)
			return ctx.Err()

		case c := <-h.register:
			h.clients[c.id] = c
			h.count.Store(int64(len(h.clients)))
			metrics.PushClients.Set(float64(len(h.clients)))
			h.logger.Info("ws: client connected",
				slog.String("client_id", c.id),
				slog.Int("total_clients", len(h.clients)),
			)

		case c := <-h.unregister:
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.count.Store(int64(len(h.clients)))
			metrics.PushClients.Set(float64(len(h.clients)))
			h.logger.Info("ws: client disconnected",
				slog.String("client_id", c.id),
				slog.Int("total_clients", len(h.clients)),
			)

		case msg := <-h.broadcast:
			for _, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Client's send buffer is full; drop the message.
					h.logger.Warn("ws: dropping message for slow client",
						slog.String("client_id", c.id),
					)
				}
			}
		}
	}
}

// Broadcast queues a refresh envelope for delivery to every connected client.
// It never blocks the caller; if the hub's queue is full the envelope is
// dropped and the next refresh cycle supersedes it anyway.
func (h *Hub) Broadcast(env domain.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("ws: marshal envelope failed", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("ws: broadcast queue full, dropping envelope",
			slog.String("key", env.Key),
		)
	}
}

// SubscriberCount returns the number of currently connected clients.
func (h *Hub) SubscriberCount() int {
	return int(h.count.Load())
}

// HandleWS authenticates the handshake, upgrades the connection, and
// registers the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	if h.auth != nil {
		if err := h.auth(r); err != nil {
			h.logger.Warn("ws: handshake rejected", slog.String("error", err.Error()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.register <- c

	// Start read and write pumps in separate goroutines.
	go c.writePump()
	go c.readPump()
}

// readPump drains messages from the WebSocket connection so control frames
// are processed. A pong from the client resets its liveness counter.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pingPeriod * (maxMissedPongs + 1)))
	c.conn.SetPongHandler(func(string) error {
		c.missedPongs.Store(0)
		c.conn.SetReadDeadline(time.Now().Add(pingPeriod * (maxMissedPongs + 1)))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("client_id", c.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection and
// probes liveness with periodic pings. A client that leaves two consecutive
// pings unanswered is disconnected.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if c.missedPongs.Add(1) > maxMissedPongs {
				c.hub.logger.Warn("ws: client failed liveness probes",
					slog.String("client_id", c.id),
				)
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

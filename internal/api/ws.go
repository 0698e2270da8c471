package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vigilstack/vigil-rca/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// liveMessage is the envelope pushed to live-feed clients.
type liveMessage struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans service updates out to connected websocket clients. All client
// set mutation happens inside Run's select loop.
type Hub struct {
	logger     *slog.Logger
	clients    map[*wsClient]struct{}
	broadcast  chan liveMessage
	register   chan *wsClient
	unregister chan *wsClient
}

// NewHub constructs a Hub; call Run before serving connections.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger,
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan liveMessage, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

// Run owns the client set until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			metrics.WebsocketConnected(1)
			h.logger.Info("websocket client connected", slog.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebsocketConnected(-1)
				h.logger.Info("websocket client disconnected", slog.Int("clients", len(h.clients)))
			}

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.Warn("live message marshal failed", slog.Any("error", err))
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// slow client, drop it
					delete(h.clients, client)
					close(client.send)
					metrics.WebsocketConnected(-1)
				}
			}
		}
	}
}

// Broadcast queues a typed payload for all connected clients. Drops the
// message when the hub's queue is full rather than blocking the caller.
func (h *Hub) Broadcast(eventType string, payload any) {
	message := liveMessage{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()}
	select {
	case h.broadcast <- message:
	default:
	}
}

// ServeWS upgrades the request and attaches the client to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, 32)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// wsClient is one connected live-feed consumer. The feed is one-way; reads
// only service control frames.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
